package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tinywideclouds/go-carepush-service/pkg/dispatch"
	"github.com/tinywideclouds/go-carepush-service/pkg/push"
)

// tokenClearer is implemented by stores that can drop a dead token (dispatch.TokenRegistry).
type tokenClearer interface {
	ClearToken(ctx context.Context, userID string) error
}

// Sender runs one notification request through build, resolve and dispatch.
// It holds no per-call state and is safe for concurrent use.
type Sender struct {
	builder  *Builder
	resolver *Resolver
	router   *Router
	clearer  tokenClearer
	logger   *slog.Logger
}

func NewSender(transport dispatch.Transport, store dispatch.TokenStore, icon string, logger *slog.Logger) *Sender {
	clearer, _ := store.(tokenClearer)
	return &Sender{
		builder:  NewBuilder(icon),
		resolver: NewResolver(store),
		router:   NewRouter(transport, logger),
		clearer:  clearer,
		logger:   logger.With("component", "Sender"),
	}
}

// Send validates title/body first, then resolves the target, so a request
// missing both content and target reports the missing content.
//
// When the vendor reports that a token read from a user record is dead, the
// token is cleared from that record. The send still fails.
func (s *Sender) Send(ctx context.Context, req *push.NotificationRequest) (*push.Result, error) {
	payload, err := s.builder.Build(req.Title, req.Body, req.Data)
	if err != nil {
		return nil, err
	}

	target, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := s.router.Dispatch(ctx, target, payload, req.DryRun)
	if err != nil {
		var te *push.TransportError
		if errors.As(err, &te) {
			s.logger.Error("Push dispatch failed", "err", te.Describe(), "dry_run", req.DryRun)
		}
		if target.StoredFor != "" && errors.Is(err, push.ErrTokenUnregistered) {
			s.clearStaleToken(ctx, target.StoredFor)
		}
		return nil, err
	}
	return res, nil
}

func (s *Sender) clearStaleToken(ctx context.Context, userID string) {
	if s.clearer == nil {
		return
	}
	if err := s.clearer.ClearToken(ctx, userID); err != nil {
		s.logger.Warn("Failed to clear dead device token", "user", userID, "err", err)
		return
	}
	s.logger.Info("Cleared dead device token", "user", userID)
}
