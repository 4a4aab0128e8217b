package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-carepush-service/pkg/push"
)

// Transport defines the contract for a push delivery vendor (FCM, APNs, Web Push).
// Every send honours dryRun: the message is validated and built but not delivered.
type Transport interface {
	// Send delivers one message to a single device token and returns the vendor message id.
	Send(ctx context.Context, token string, payload push.Payload, dryRun bool) (string, error)

	// SendToTopic delivers one message to every device subscribed to topic.
	SendToTopic(ctx context.Context, topic string, payload push.Payload, dryRun bool) (string, error)

	// SendMulticast delivers one message to many tokens. The returned outcomes are in
	// token order; per-token failures are reported there, not as the error.
	SendMulticast(ctx context.Context, tokens []string, payload push.Payload, dryRun bool) ([]push.TokenOutcome, error)
}

// TokenStore reads the device token saved on a user record.
type TokenStore interface {
	// FetchToken returns the user's stored token, or "" when the user or token is absent.
	FetchToken(ctx context.Context, userID string) (string, error)
}

// TokenRegistry is a TokenStore that can also be written by the token API.
type TokenRegistry interface {
	TokenStore
	SaveToken(ctx context.Context, userID, token string) error
	ClearToken(ctx context.Context, userID string) error
}
