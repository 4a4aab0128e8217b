// Package pipeline adapts the Pub/Sub appointment-reminder stream onto the push send path.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-carepush-service/pkg/push"
)

// NotificationRequestTransformer is a dataflow Transformer that unmarshals a raw
// message payload into a push.NotificationRequest.
//
// Numbers inside "data" are kept as json.Number so large ids reach the device unchanged.
func NotificationRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*push.NotificationRequest, bool, error) {
	var req push.NotificationRequest

	dec := json.NewDecoder(bytes.NewReader(msg.Payload))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		// skip=true lets the StreamingService route the message to the DLQ.
		return nil, true, fmt.Errorf("failed to unmarshal notification request from message %s: %w", msg.ID, err)
	}

	return &req, false, nil
}
