// Package apns provides a transport that talks to the Apple Push Notification Service directly.
package apns

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
	"github.com/tinywideclouds/go-carepush-service/pkg/push"
)

// APNSClient defines the subset of the apns2.Client methods we use.
// This allows mocking for unit tests.
type APNSClient interface {
	Push(n *apns2.Notification) (*apns2.Response, error)
}

type Transport struct {
	client APNSClient
	topic  string // The App Bundle ID
	logger *slog.Logger
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the raw string content of the .p8 file
	P8KeyContent string
	Sandbox      bool
}

// NewTransport creates a configured APNs transport.
// It parses the P8 key immediately to fail fast on startup if credentials are bad.
func NewTransport(cfg Config, logger *slog.Logger) (*Transport, error) {
	authKey, err := token.AuthKeyFromBytes([]byte(cfg.P8KeyContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Sandbox {
		client = client.Development()
	} else {
		client = client.Production()
	}

	return &Transport{
		client: client,
		topic:  cfg.BundleID,
		logger: logger.With("component", "APNSTransport"),
	}, nil
}

// Send pushes to one device. A rejected push is returned as an error carrying the APNs reason.
func (t *Transport) Send(_ context.Context, deviceToken string, p push.Payload, dryRun bool) (string, error) {
	n := t.notification(deviceToken, p)
	if dryRun {
		return n.ApnsID, nil
	}

	res, err := t.client.Push(n)
	if err != nil {
		return "", fmt.Errorf("apns transport failed: %w", err)
	}
	if !res.Sent() {
		rejected := fmt.Errorf("apns rejected notification: %s (status %d)", res.Reason, res.StatusCode)
		if deadToken(res.Reason) {
			return "", &push.UnregisteredError{Err: rejected}
		}
		return "", rejected
	}
	return res.ApnsID, nil
}

// SendToTopic is not supported: APNs addresses devices, not broadcast channels.
func (t *Transport) SendToTopic(context.Context, string, push.Payload, bool) (string, error) {
	return "", push.ErrTopicUnsupported
}

// SendMulticast pushes sequentially; the APNs HTTP/2 API has no batch endpoint.
func (t *Transport) SendMulticast(_ context.Context, tokens []string, p push.Payload, dryRun bool) ([]push.TokenOutcome, error) {
	outcomes := make([]push.TokenOutcome, 0, len(tokens))
	for _, deviceToken := range tokens {
		n := t.notification(deviceToken, p)
		if dryRun {
			outcomes = append(outcomes, push.TokenOutcome{Success: true})
			continue
		}

		res, err := t.client.Push(n)
		if err != nil {
			t.logger.Error("APNs transport failed", "err", err)
			outcomes = append(outcomes, push.TokenOutcome{Success: false, Error: err.Error()})
			continue
		}
		if res.Sent() {
			outcomes = append(outcomes, push.TokenOutcome{Success: true})
			continue
		}

		if deadToken(res.Reason) {
			t.logger.Warn("APNs reported dead device token", "reason", res.Reason)
		} else {
			t.logger.Warn("APNs rejected notification", "reason", res.Reason, "status", res.StatusCode)
		}
		outcomes = append(outcomes, push.TokenOutcome{Success: false, Error: res.Reason})
	}
	return outcomes, nil
}

func (t *Transport) notification(deviceToken string, p push.Payload) *apns2.Notification {
	builder := payload.NewPayload().
		AlertTitle(p.Title).
		AlertBody(p.Body).
		Custom("link", p.DisplayHint.LinkURL)
	for k, v := range p.Data {
		// "aps" would replace the alert dictionary.
		if k == "aps" {
			continue
		}
		builder.Custom(k, v)
	}

	return &apns2.Notification{
		ApnsID:      uuid.NewString(),
		DeviceToken: deviceToken,
		Topic:       t.topic,
		Payload:     builder,
	}
}

func deadToken(reason string) bool {
	switch reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
		return true
	}
	return false
}
