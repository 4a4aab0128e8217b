// Package push contains the public domain models for the care push service:
// the inbound notification request, the resolved delivery target, the
// vendor-agnostic payload and the dispatch result.
package push

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultLink is the click-through link used when the request data carries no "link".
const DefaultLink = "/"

var (
	// ErrMissingFields is returned when a request has an empty title or body.
	ErrMissingFields = errors.New("Missing title or body")
	// ErrMissingTarget is returned when no topic or device token could be derived.
	ErrMissingTarget = errors.New("Provide token/tokens/topic or a userId with saved fcmToken")
	// ErrTopicUnsupported is returned by transports that cannot address topics.
	ErrTopicUnsupported = errors.New("transport does not support topic sends")
	// ErrTokenUnregistered matches deliveries the vendor rejected because the device token is dead.
	ErrTokenUnregistered = errors.New("device token is no longer registered")
)

// NotificationRequest is the inbound send request, shared by the HTTP API and
// the Pub/Sub ingestion pipeline.
type NotificationRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Token  string   `json:"token,omitempty"`
	Tokens []string `json:"tokens,omitempty"`
	Topic  string   `json:"topic,omitempty"`
	UserID string   `json:"userId,omitempty"`
	// Data is left untyped: anything that is not a JSON object is dropped by the payload builder.
	Data   any  `json:"data,omitempty"`
	DryRun bool `json:"dryRun,omitempty"`
}

// Target is the resolved delivery target. Exactly one of Topic or Tokens is set.
type Target struct {
	Topic  string   `json:"topic,omitempty"`
	Tokens []string `json:"tokens,omitempty"`
	// StoredFor is the userId whose record supplied the token.
	StoredFor string `json:"-"`
}

// TopicTarget addresses a broadcast topic.
func TopicTarget(topic string) Target {
	return Target{Topic: topic}
}

// TokenTarget addresses an ordered list of device tokens.
func TokenTarget(tokens []string) Target {
	return Target{Tokens: tokens}
}

// StoredTokenTarget addresses the token read from a user's record.
func StoredTokenTarget(userID, token string) Target {
	return Target{Tokens: []string{token}, StoredFor: userID}
}

// IsTopic reports whether the target addresses a topic.
func (t Target) IsTopic() bool {
	return t.Topic != ""
}

// DisplayHint carries the web notification presentation fields.
type DisplayHint struct {
	Icon    string `json:"icon"`
	LinkURL string `json:"linkUrl"`
}

// Payload is the vendor-agnostic notification content. Data values are text only.
type Payload struct {
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	DisplayHint DisplayHint       `json:"displayHint"`
}

// TokenOutcome is the delivery outcome of one token in a multicast send.
type TokenOutcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of a dispatch. ID is set for topic and single-token
// sends; the counts and Outcomes are set for multicast sends.
type Result struct {
	ID           string
	Target       Target
	Multicast    bool
	SuccessCount int
	FailureCount int
	Outcomes     []TokenOutcome
}

// MarshalJSON renders the result in the HTTP response shape.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Multicast {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			ID      string `json:"id"`
			Target  Target `json:"target"`
		}{true, r.ID, r.Target})
	}

	type counts struct {
		Success int `json:"success"`
		Failure int `json:"failure"`
	}
	type outcome struct {
		Success bool    `json:"success"`
		Error   *string `json:"error"`
	}
	responses := make([]outcome, len(r.Outcomes))
	for i, o := range r.Outcomes {
		responses[i] = outcome{Success: o.Success}
		if o.Error != "" {
			msg := o.Error
			responses[i].Error = &msg
		}
	}
	return json.Marshal(struct {
		Success   bool      `json:"success"`
		Target    Target    `json:"target"`
		Count     counts    `json:"count"`
		Responses []outcome `json:"responses"`
	}{true, r.Target, counts{r.SuccessCount, r.FailureCount}, responses})
}

// ValidationError marks a request that was rejected before any delivery attempt.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// TransportError marks a failure raised by the push transport. Its message is
// the vendor's message so callers can surface it unchanged.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }

// Describe includes the failed operation, for logs.
func (e *TransportError) Describe() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnregisteredError is a TransportError cause for a dead device token. It keeps
// the vendor message and matches ErrTokenUnregistered.
type UnregisteredError struct {
	Err error
}

func (e *UnregisteredError) Error() string { return e.Err.Error() }

func (e *UnregisteredError) Unwrap() []error { return []error{ErrTokenUnregistered, e.Err} }
