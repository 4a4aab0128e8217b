package notify

import (
	"context"
	"log/slog"

	"github.com/tinywideclouds/go-carepush-service/pkg/dispatch"
	"github.com/tinywideclouds/go-carepush-service/pkg/push"
)

// Router picks the delivery mode from the shape of the target:
// topic send, single-token send or multicast.
type Router struct {
	transport dispatch.Transport
	logger    *slog.Logger
}

func NewRouter(transport dispatch.Transport, logger *slog.Logger) *Router {
	return &Router{
		transport: transport,
		logger:    logger.With("component", "DispatchRouter"),
	}
}

// Dispatch makes exactly one transport call. Nothing is retried.
func (r *Router) Dispatch(ctx context.Context, target push.Target, payload push.Payload, dryRun bool) (*push.Result, error) {
	switch {
	case target.IsTopic():
		id, err := r.transport.SendToTopic(ctx, target.Topic, payload, dryRun)
		if err != nil {
			return nil, &push.TransportError{Op: "topic send", Err: err}
		}
		r.logger.Debug("Topic send accepted", "topic", target.Topic, "id", id, "dry_run", dryRun)
		return &push.Result{ID: id, Target: target}, nil

	case len(target.Tokens) == 1:
		id, err := r.transport.Send(ctx, target.Tokens[0], payload, dryRun)
		if err != nil {
			return nil, &push.TransportError{Op: "single send", Err: err}
		}
		r.logger.Debug("Single send accepted", "id", id, "dry_run", dryRun)
		return &push.Result{ID: id, Target: target}, nil

	case len(target.Tokens) > 1:
		outcomes, err := r.transport.SendMulticast(ctx, target.Tokens, payload, dryRun)
		if err != nil {
			return nil, &push.TransportError{Op: "multicast send", Err: err}
		}
		res := &push.Result{Target: target, Multicast: true, Outcomes: outcomes}
		for _, o := range outcomes {
			if o.Success {
				res.SuccessCount++
			} else {
				res.FailureCount++
			}
		}
		r.logger.Debug("Multicast send finished",
			"tokens", len(target.Tokens),
			"success", res.SuccessCount,
			"failure", res.FailureCount,
			"dry_run", dryRun,
		)
		return res, nil
	}

	return nil, &push.ValidationError{Err: push.ErrMissingTarget}
}
