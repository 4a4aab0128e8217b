package config_test

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-carepush-service/pushservice/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ProjectID:  "base-project",
			ListenAddr: ":8080",
			Vapid: config.VapidConfig{
				PublicKey:  "base-pub",
				PrivateKey: "base-priv",
			},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("PUSH_TRANSPORT", "WEB")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("NUM_PIPELINE_WORKERS", "4")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("WEB_BASE_URL", "https://care.example.com")
		t.Setenv("VAPID_PUBLIC_KEY", "env-pub")
		t.Setenv("VAPID_PRIVATE_KEY", "env-priv")
		t.Setenv("VAPID_SUB_EMAIL", "env@test.com")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, config.TransportWeb, finalCfg.Transport)
		assert.True(t, finalCfg.Ingestion.Enabled)
		assert.Equal(t, "env-sub", finalCfg.Ingestion.SubscriptionID)
		assert.Equal(t, 4, finalCfg.Ingestion.NumPipelineWorkers)
		assert.NotNil(t, finalCfg.Ingestion.PubsubConsumerConfig)
		assert.True(t, finalCfg.Redis.Enabled)
		assert.Equal(t, "https://care.example.com", finalCfg.Web.BaseURL)
		assert.Equal(t, "env-pub", finalCfg.Vapid.PublicKey)
		assert.Equal(t, "env-priv", finalCfg.Vapid.PrivateKey)
		assert.Equal(t, "env@test.com", finalCfg.Vapid.SubscriberEmail)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, finalCfg.CorsConfig.AllowedOrigins)
	})

	t.Run("Success - Defaults applied", func(t *testing.T) {
		cfg := baseConfig()
		cfg.ListenAddr = ""
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "base-project", finalCfg.ProjectID)
		assert.Equal(t, ":8080", finalCfg.ListenAddr)
		assert.Equal(t, config.TransportFCM, finalCfg.Transport)
		assert.Equal(t, "users", finalCfg.Users.Collection)
		assert.Equal(t, "fcmToken", finalCfg.Users.TokenField)
		assert.Equal(t, 24*time.Hour, finalCfg.Redis.TTL)
		assert.False(t, finalCfg.Ingestion.Enabled)
		assert.Equal(t, "base-pub", finalCfg.Vapid.PublicKey)
	})

	t.Run("Validation Failure - Missing ProjectID", func(t *testing.T) {
		cfg := &config.Config{}
		os.Unsetenv("PROJECT_ID")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Unknown transport", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Transport = "sms"
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "unknown transport")
	})

	t.Run("Validation Failure - APNs without credentials", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Transport = config.TransportAPNS
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "apns transport requires")
	})

	t.Run("Validation Failure - Ingestion without subscription", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Ingestion.Enabled = true
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "subscription_id")
	})
}
