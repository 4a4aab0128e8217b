package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-carepush-service/pkg/push"
)

// RequestSender is the synchronous send path shared with the HTTP API.
type RequestSender interface {
	Send(ctx context.Context, req *push.NotificationRequest) (*push.Result, error)
}

// NewProcessor creates the stream processor for reminder messages.
// Delivery is at-most-once: every failure is logged and the message is acknowledged.
func NewProcessor(
	sender RequestSender,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[push.NotificationRequest] {

	return func(ctx context.Context, original messagepipeline.Message, request *push.NotificationRequest) error {
		procLogger := logger.With(
			"user_id", request.UserID,
			"pubsub_msg_id", original.ID,
		)

		res, err := sender.Send(ctx, request)
		if err != nil {
			var ve *push.ValidationError
			if errors.As(err, &ve) {
				procLogger.Warn("Dropping invalid reminder", "err", err)
				return nil
			}
			procLogger.Error("Reminder dispatch failed", "err", err)
			return nil
		}

		if res.Multicast {
			procLogger.Info("Reminder dispatched",
				"success_count", res.SuccessCount,
				"failure_count", res.FailureCount,
			)
			return nil
		}
		procLogger.Info("Reminder dispatched", "message_id", res.ID, "topic", res.Target.Topic)
		return nil
	}
}
