package fcm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-carepush-service/pkg/push"
)

// rejectingClient fails every single send with err.
type rejectingClient struct {
	err error
}

func (c *rejectingClient) Send(context.Context, *messaging.Message) (string, error) {
	return "", c.err
}
func (c *rejectingClient) SendDryRun(context.Context, *messaging.Message) (string, error) {
	return "", c.err
}
func (c *rejectingClient) SendEachForMulticast(context.Context, *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	return nil, c.err
}
func (c *rejectingClient) SendEachForMulticastDryRun(context.Context, *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	return nil, c.err
}

func TestTransport_UnregisteredToken(t *testing.T) {
	ctx := context.Background()
	notRegistered := errors.New("Requested entity was not found.")

	orig := isUnregistered
	isUnregistered = func(err error) bool { return errors.Is(err, notRegistered) }
	t.Cleanup(func() { isUnregistered = orig })

	newTransport := func(err error) *Transport {
		tr, terr := NewTransport(&rejectingClient{err: err}, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, terr)
		return tr
	}
	payload := push.Payload{Title: "t", Body: "b", DisplayHint: push.DisplayHint{LinkURL: "/"}}

	t.Run("Not-registered rejection is marked and keeps the vendor message", func(t *testing.T) {
		_, err := newTransport(notRegistered).Send(ctx, "T-dead", payload, false)

		require.Error(t, err)
		assert.ErrorIs(t, err, push.ErrTokenUnregistered)
		assert.Equal(t, "Requested entity was not found.", err.Error())
	})

	t.Run("Other failures are returned as-is", func(t *testing.T) {
		_, err := newTransport(errors.New("quota exceeded")).Send(ctx, "T1", payload, false)

		require.Error(t, err)
		assert.NotErrorIs(t, err, push.ErrTokenUnregistered)
	})
}
