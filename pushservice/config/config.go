package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

// Supported push transports.
const (
	TransportFCM  = "fcm"
	TransportAPNS = "apns"
	TransportWeb  = "web"
)

type FirebaseConfig struct {
	// CredentialsFile is a service-account JSON file; empty means application default credentials.
	CredentialsFile string
}

type UserStoreConfig struct {
	Collection string
	TokenField string
}

type WebConfig struct {
	Icon    string
	BaseURL string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type VapidConfig struct {
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
	TTLSeconds      int
}

type APNSConfig struct {
	KeyID     string
	TeamID    string
	BundleID  string
	P8KeyFile string
	Sandbox   bool
}

// IngestionConfig describes the optional Pub/Sub feed of appointment reminders.
type IngestionConfig struct {
	Enabled                bool
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int
	PubsubConsumerConfig   *messagepipeline.GooglePubsubConsumerConfig
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID          string
	ListenAddr         string
	Transport          string
	IdentityServiceURL string

	Firebase   FirebaseConfig
	Users      UserStoreConfig
	Web        WebConfig
	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Vapid      VapidConfig
	APNS       APNSConfig
	Ingestion  IngestionConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("PUSH_TRANSPORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSH_TRANSPORT", "source", "env")
		cfg.Transport = strings.ToLower(val)
	}
	if val := os.Getenv("IDENTITY_SERVICE_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "IDENTITY_SERVICE_URL", "source", "env")
		cfg.IdentityServiceURL = val
	}
	if val := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_FILE"); val != "" {
		logger.Debug("Overriding config value", "key", "GOOGLE_APPLICATION_CREDENTIALS_FILE", "source", "env")
		cfg.Firebase.CredentialsFile = val
	}
	if val := os.Getenv("USERS_COLLECTION"); val != "" {
		cfg.Users.Collection = val
	}
	if val := os.Getenv("WEB_BASE_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "WEB_BASE_URL", "source", "env")
		cfg.Web.BaseURL = val
	}

	// Ingestion Overrides
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.Ingestion.SubscriptionID = val
		cfg.Ingestion.Enabled = true
		cfg.Ingestion.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.Ingestion.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.Ingestion.NumPipelineWorkers = workers
		}
	}
	if val := os.Getenv("INGESTION_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Ingestion.Enabled = enabled
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// VAPID Overrides
	if val := os.Getenv("VAPID_PUBLIC_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PUBLIC_KEY", "source", "env")
		cfg.Vapid.PublicKey = val
	}
	if val := os.Getenv("VAPID_PRIVATE_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PRIVATE_KEY", "source", "env")
		cfg.Vapid.PrivateKey = val
	}
	if val := os.Getenv("VAPID_SUB_EMAIL"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_SUB_EMAIL", "source", "env")
		cfg.Vapid.SubscriberEmail = val
	}

	// APNs Overrides
	if val := os.Getenv("APNS_KEY_ID"); val != "" {
		cfg.APNS.KeyID = val
	}
	if val := os.Getenv("APNS_TEAM_ID"); val != "" {
		cfg.APNS.TeamID = val
	}
	if val := os.Getenv("APNS_BUNDLE_ID"); val != "" {
		cfg.APNS.BundleID = val
	}
	if val := os.Getenv("APNS_P8_KEY_FILE"); val != "" {
		cfg.APNS.P8KeyFile = val
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportFCM
	}
	switch cfg.Transport {
	case TransportFCM, TransportWeb:
	case TransportAPNS:
		if cfg.APNS.P8KeyFile == "" || cfg.APNS.KeyID == "" || cfg.APNS.TeamID == "" || cfg.APNS.BundleID == "" {
			return nil, fmt.Errorf("apns transport requires key_id, team_id, bundle_id and p8_key_file")
		}
	default:
		return nil, fmt.Errorf("unknown transport %q (want fcm, apns or web)", cfg.Transport)
	}
	if cfg.Users.Collection == "" {
		cfg.Users.Collection = "users"
	}
	if cfg.Users.TokenField == "" {
		cfg.Users.TokenField = "fcmToken"
	}
	if cfg.IdentityServiceURL == "" {
		cfg.IdentityServiceURL = "http://localhost:3000"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}

	if cfg.Ingestion.Enabled {
		if cfg.Ingestion.SubscriptionID == "" {
			return nil, fmt.Errorf("ingestion.subscription_id is required when ingestion is enabled")
		}
		if cfg.Ingestion.NumPipelineWorkers <= 0 {
			cfg.Ingestion.NumPipelineWorkers = 1
		}
		if cfg.Ingestion.PubsubConsumerConfig == nil {
			cfg.Ingestion.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.Ingestion.SubscriptionID)
		}
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
