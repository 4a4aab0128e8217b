package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-carepush-service/internal/api"
)

// --- Mocks ---
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) FetchToken(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}
func (m *MockTokenStore) SaveToken(ctx context.Context, userID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}
func (m *MockTokenStore) ClearToken(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Setup ---
func setupTokenAPI(t *testing.T) (*api.TokenAPI, *MockTokenStore) {
	mockStore := new(MockTokenStore)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return api.NewTokenAPI(mockStore, logger), mockStore
}

// withUser stands in for the auth middleware.
func withUser(req *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(req.Context(), userID)
	return req.WithContext(ctx)
}

// --- Tests ---

func TestRegisterToken(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		apiHandler, mockStore := setupTokenAPI(t)
		body, _ := json.Marshal(map[string]string{"token": "fcm-token-abc"})

		req := withUser(httptest.NewRequest("POST", "/api/v1/tokens", bytes.NewReader(body)), "patient-123")
		w := httptest.NewRecorder()

		mockStore.On("SaveToken", mock.Anything, "patient-123", "fcm-token-abc").Return(nil)

		apiHandler.RegisterToken(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("Rejects Empty Token", func(t *testing.T) {
		apiHandler, mockStore := setupTokenAPI(t)
		body, _ := json.Marshal(map[string]string{"token": ""})
		req := withUser(httptest.NewRequest("POST", "/api/v1/tokens", bytes.NewReader(body)), "patient-123")
		w := httptest.NewRecorder()

		apiHandler.RegisterToken(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockStore.AssertNotCalled(t, "SaveToken", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Rejects Malformed Body", func(t *testing.T) {
		apiHandler, _ := setupTokenAPI(t)
		req := withUser(httptest.NewRequest("POST", "/api/v1/tokens", bytes.NewBufferString("{not json")), "patient-123")
		w := httptest.NewRecorder()

		apiHandler.RegisterToken(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Unauthorized Without User", func(t *testing.T) {
		apiHandler, mockStore := setupTokenAPI(t)
		body, _ := json.Marshal(map[string]string{"token": "fcm-token-abc"})
		req := httptest.NewRequest("POST", "/api/v1/tokens", bytes.NewReader(body))
		w := httptest.NewRecorder()

		apiHandler.RegisterToken(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockStore.AssertNotCalled(t, "SaveToken", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Storage Failure", func(t *testing.T) {
		apiHandler, mockStore := setupTokenAPI(t)
		body, _ := json.Marshal(map[string]string{"token": "fcm-token-abc"})
		req := withUser(httptest.NewRequest("POST", "/api/v1/tokens", bytes.NewReader(body)), "patient-123")
		w := httptest.NewRecorder()

		mockStore.On("SaveToken", mock.Anything, "patient-123", "fcm-token-abc").Return(errors.New("db down"))

		apiHandler.RegisterToken(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestUnregisterToken(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		apiHandler, mockStore := setupTokenAPI(t)
		req := withUser(httptest.NewRequest("DELETE", "/api/v1/tokens", nil), "patient-123")
		w := httptest.NewRecorder()

		mockStore.On("ClearToken", mock.Anything, "patient-123").Return(nil)

		apiHandler.UnregisterToken(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("Unauthorized Without User", func(t *testing.T) {
		apiHandler, mockStore := setupTokenAPI(t)
		req := httptest.NewRequest("DELETE", "/api/v1/tokens", nil)
		w := httptest.NewRecorder()

		apiHandler.UnregisterToken(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockStore.AssertNotCalled(t, "ClearToken", mock.Anything, mock.Anything)
	})

	t.Run("Storage Failure", func(t *testing.T) {
		apiHandler, mockStore := setupTokenAPI(t)
		req := withUser(httptest.NewRequest("DELETE", "/api/v1/tokens", nil), "patient-123")
		w := httptest.NewRecorder()

		mockStore.On("ClearToken", mock.Anything, "patient-123").Return(errors.New("db down"))

		apiHandler.UnregisterToken(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
