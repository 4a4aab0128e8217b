// Package notify holds the send path of the service: target resolution,
// payload building and dispatch routing, composed by Sender.
package notify

import (
	"context"
	"fmt"

	"github.com/tinywideclouds/go-carepush-service/pkg/dispatch"
	"github.com/tinywideclouds/go-carepush-service/pkg/push"
)

// Resolver turns the target fields of a request into a push.Target.
type Resolver struct {
	store dispatch.TokenStore
}

func NewResolver(store dispatch.TokenStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve applies the targeting rules in order:
//  1. a topic wins outright; tokens and userId are ignored.
//  2. tokens (empty entries dropped) followed by token.
//  3. with no tokens, the token stored on the userId record.
//
// Duplicate tokens are kept as given.
func (r *Resolver) Resolve(ctx context.Context, req *push.NotificationRequest) (push.Target, error) {
	if req.Topic != "" {
		return push.TopicTarget(req.Topic), nil
	}

	candidates := make([]string, 0, len(req.Tokens)+1)
	for _, t := range req.Tokens {
		if t != "" {
			candidates = append(candidates, t)
		}
	}
	if req.Token != "" {
		candidates = append(candidates, req.Token)
	}

	if len(candidates) == 0 && req.UserID != "" && r.store != nil {
		stored, err := r.store.FetchToken(ctx, req.UserID)
		if err != nil {
			return push.Target{}, fmt.Errorf("failed to fetch stored token for user %s: %w", req.UserID, err)
		}
		if stored != "" {
			return push.StoredTokenTarget(req.UserID, stored), nil
		}
	}

	if len(candidates) == 0 {
		return push.Target{}, &push.ValidationError{Err: push.ErrMissingTarget}
	}
	return push.TokenTarget(candidates), nil
}
