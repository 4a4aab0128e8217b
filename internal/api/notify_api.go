package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-carepush-service/pkg/push"
)

// NotificationSender is the send path the API hands requests to.
type NotificationSender interface {
	Send(ctx context.Context, req *push.NotificationRequest) (*push.Result, error)
}

type NotifyAPI struct {
	Sender NotificationSender
	Logger *slog.Logger
}

func NewNotifyAPI(sender NotificationSender, logger *slog.Logger) *NotifyAPI {
	return &NotifyAPI{
		Sender: sender,
		Logger: logger.With("component", "NotifyAPI"),
	}
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SendNotification handles POST /api/v1/notifications.
func (api *NotifyAPI) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req push.NotificationRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		// Only the two validation failures are client errors; anything else is a 500.
		api.Logger.Warn("SendNotification: JSON Decode failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	res, err := api.Sender.Send(r.Context(), &req)
	if err != nil {
		var ve *push.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error()})
			return
		}
		api.Logger.Error("SendNotification failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
