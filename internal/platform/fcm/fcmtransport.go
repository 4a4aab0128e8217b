// Package fcm delivers notifications through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-carepush-service/pkg/push"
)

// MaxMulticastTokens is the FCM limit on tokens per multicast request.
const MaxMulticastTokens = 500

var isUnregistered = messaging.IsRegistrationTokenNotRegistered

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it; tests substitute a mock.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendDryRun(ctx context.Context, message *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
	SendEachForMulticastDryRun(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Transport struct {
	client  MessagingClient
	baseURL *url.URL
	logger  *slog.Logger
}

// NewTransport wraps an FCM client. baseURL, when set, is used to turn relative
// click-through links into the absolute https links FCM requires.
func NewTransport(client MessagingClient, baseURL string, logger *slog.Logger) (*Transport, error) {
	t := &Transport{
		client: client,
		logger: logger.With("component", "FCMTransport"),
	}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid web base url %q: %w", baseURL, err)
		}
		t.baseURL = u
	}
	return t, nil
}

// Send delivers to one device. A not-registered rejection is returned as a push.UnregisteredError.
func (t *Transport) Send(ctx context.Context, token string, payload push.Payload, dryRun bool) (string, error) {
	msg := t.message(payload)
	msg.Token = token
	id, err := t.send(ctx, msg, dryRun)
	if err != nil && isUnregistered(err) {
		return "", &push.UnregisteredError{Err: err}
	}
	return id, err
}

func (t *Transport) SendToTopic(ctx context.Context, topic string, payload push.Payload, dryRun bool) (string, error) {
	msg := t.message(payload)
	msg.Topic = topic
	return t.send(ctx, msg, dryRun)
}

func (t *Transport) send(ctx context.Context, msg *messaging.Message, dryRun bool) (string, error) {
	if dryRun {
		return t.client.SendDryRun(ctx, msg)
	}
	return t.client.Send(ctx, msg)
}

// SendMulticast sends in batches of MaxMulticastTokens. A failure of the first
// batch fails the call; a failure of a later batch is reported against each of
// its tokens.
func (t *Transport) SendMulticast(ctx context.Context, tokens []string, payload push.Payload, dryRun bool) ([]push.TokenOutcome, error) {
	base := t.message(payload)
	outcomes := make([]push.TokenOutcome, 0, len(tokens))
	stale := 0

	for start := 0; start < len(tokens); start += MaxMulticastTokens {
		end := min(start+MaxMulticastTokens, len(tokens))
		batch := tokens[start:end]

		msg := &messaging.MulticastMessage{
			Tokens:       batch,
			Data:         base.Data,
			Notification: base.Notification,
			Webpush:      base.Webpush,
		}

		var br *messaging.BatchResponse
		var err error
		if dryRun {
			br, err = t.client.SendEachForMulticastDryRun(ctx, msg)
		} else {
			br, err = t.client.SendEachForMulticast(ctx, msg)
		}
		if err != nil {
			if start == 0 {
				return nil, fmt.Errorf("fcm multicast failed: %w", err)
			}
			t.logger.Error("FCM batch failed after partial delivery", "offset", start, "size", len(batch), "err", err)
			for range batch {
				outcomes = append(outcomes, push.TokenOutcome{Success: false, Error: err.Error()})
			}
			continue
		}

		for i := range batch {
			if i >= len(br.Responses) || br.Responses[i] == nil {
				outcomes = append(outcomes, push.TokenOutcome{Success: false, Error: "no response for token"})
				continue
			}
			resp := br.Responses[i]
			if resp.Success {
				outcomes = append(outcomes, push.TokenOutcome{Success: true})
				continue
			}
			o := push.TokenOutcome{Success: false}
			if resp.Error != nil {
				o.Error = resp.Error.Error()
				if isUnregistered(resp.Error) || messaging.IsInvalidArgument(resp.Error) {
					stale++
				}
			}
			outcomes = append(outcomes, o)
		}
	}

	if stale > 0 {
		t.logger.Warn("FCM reported unregistered or invalid tokens", "count", stale)
	}
	return outcomes, nil
}

// message maps the vendor-agnostic payload onto an FCM message without an address.
func (t *Transport) message(p push.Payload) *messaging.Message {
	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: p.Title,
				Body:  p.Body,
				Icon:  p.DisplayHint.Icon,
			},
		},
	}
	if len(p.Data) > 0 {
		msg.Data = p.Data
	}

	if link, ok := t.absoluteLink(p.DisplayHint.LinkURL); ok {
		msg.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: link}
	} else if p.DisplayHint.LinkURL != "" {
		// FCM only accepts https links; hand the raw link to the service worker instead.
		data := make(map[string]string, len(p.Data)+1)
		for k, v := range p.Data {
			data[k] = v
		}
		data["link"] = p.DisplayHint.LinkURL
		msg.Webpush.Data = data
	}
	return msg
}

func (t *Transport) absoluteLink(link string) (string, bool) {
	ref, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	if !ref.IsAbs() && t.baseURL != nil {
		ref = t.baseURL.ResolveReference(ref)
	}
	if ref.Scheme != "https" {
		return "", false
	}
	return ref.String(), true
}
