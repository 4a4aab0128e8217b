package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	"github.com/tinywideclouds/go-carepush-service/pkg/dispatch"
)

// TokenAPI lets a signed-in patient save or clear the device token on their own record.
type TokenAPI struct {
	Store  dispatch.TokenRegistry
	Logger *slog.Logger
}

func NewTokenAPI(store dispatch.TokenRegistry, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		Store:  store,
		Logger: logger.With("component", "TokenAPI"),
	}
}

type RegisterTokenRequest struct {
	Token string `json:"token"`
}

// RegisterToken handles POST /api/v1/tokens.
func (api *TokenAPI) RegisterToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok || userID == "" {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := api.Store.SaveToken(ctx, userID, req.Token); err != nil {
		api.Logger.Error("failed to save device token", "user", userID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("RegisterToken: device token saved", "user", userID)

	w.WriteHeader(http.StatusNoContent)
}

// UnregisterToken handles DELETE /api/v1/tokens. It is idempotent.
func (api *TokenAPI) UnregisterToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok || userID == "" {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := api.Store.ClearToken(ctx, userID); err != nil {
		api.Logger.Warn("failed to clear device token", "user", userID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to clear token")
		return
	}
	api.Logger.Info("UnregisterToken: device token cleared", "user", userID)

	w.WriteHeader(http.StatusNoContent)
}
