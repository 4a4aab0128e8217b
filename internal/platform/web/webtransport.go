// Package web delivers notifications straight to browsers with VAPID Web Push,
// bypassing FCM. A device token here is the JSON form of a browser PushSubscription.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/tinywideclouds/go-carepush-service/pkg/push"
	"github.com/tinywideclouds/go-carepush-service/pushservice/config"
)

// ErrInvalidSubscription is returned when a token is not a usable PushSubscription.
var ErrInvalidSubscription = errors.New("invalid web push subscription")

type Transport struct {
	subscriber string
	privateKey string
	publicKey  string
	ttl        int
	logger     *slog.Logger
	httpClient *http.Client
}

func NewTransport(cfg config.VapidConfig, logger *slog.Logger) *Transport {
	ttl := cfg.TTLSeconds
	if ttl <= 0 {
		ttl = 60
	}
	return &Transport{
		privateKey: cfg.PrivateKey,
		publicKey:  cfg.PublicKey,
		subscriber: cfg.SubscriberEmail,
		ttl:        ttl,
		logger:     logger.With("component", "WebPushTransport"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Transport) Send(_ context.Context, token string, p push.Payload, dryRun bool) (string, error) {
	sub, err := parseSubscription(token)
	if err != nil {
		return "", err
	}
	body, err := encodePayload(p)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if dryRun {
		return id, nil
	}
	if err := t.deliver(sub, body); err != nil {
		return "", err
	}
	return id, nil
}

// SendToTopic is not supported: Web Push has no broadcast channels.
func (t *Transport) SendToTopic(context.Context, string, push.Payload, bool) (string, error) {
	return "", push.ErrTopicUnsupported
}

// SendMulticast sends one request per subscription; failures are per token.
func (t *Transport) SendMulticast(_ context.Context, tokens []string, p push.Payload, dryRun bool) ([]push.TokenOutcome, error) {
	body, err := encodePayload(p)
	if err != nil {
		return nil, err
	}

	outcomes := make([]push.TokenOutcome, 0, len(tokens))
	for _, token := range tokens {
		sub, err := parseSubscription(token)
		if err == nil && !dryRun {
			err = t.deliver(sub, body)
		}
		if err != nil {
			outcomes = append(outcomes, push.TokenOutcome{Success: false, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, push.TokenOutcome{Success: true})
	}
	return outcomes, nil
}

func (t *Transport) deliver(sub *webpush.Subscription, body []byte) error {
	resp, err := webpush.SendNotification(body, sub, &webpush.Options{
		Subscriber:      t.subscriber,
		VAPIDPublicKey:  t.publicKey,
		VAPIDPrivateKey: t.privateKey,
		TTL:             t.ttl,
		HTTPClient:      t.httpClient,
	})
	if err != nil {
		t.logger.Error("WebPush transport error", "endpoint", sub.Endpoint, "err", err)
		return fmt.Errorf("web push transport failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	case http.StatusGone, http.StatusNotFound:
		t.logger.Warn("WebPush subscription expired", "endpoint", sub.Endpoint, "status", resp.StatusCode)
		return &push.UnregisteredError{Err: fmt.Errorf("web push subscription expired (status %d)", resp.StatusCode)}
	default:
		t.logger.Warn("WebPush rejected", "status", resp.StatusCode, "endpoint", sub.Endpoint)
		return fmt.Errorf("web push rejected (status %d)", resp.StatusCode)
	}
}

func parseSubscription(token string) (*webpush.Subscription, error) {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(token), &sub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubscription, err)
	}
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return nil, fmt.Errorf("%w: missing endpoint or keys", ErrInvalidSubscription)
	}
	return &sub, nil
}

// encodePayload renders the message the service worker reads from the push event.
func encodePayload(p push.Payload) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"notification": map[string]string{
			"title": p.Title,
			"body":  p.Body,
			"icon":  p.DisplayHint.Icon,
		},
		"data": p.Data,
		"link": p.DisplayHint.LinkURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return body, nil
}
