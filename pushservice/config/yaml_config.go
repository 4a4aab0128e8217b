package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlFirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

type YamlUsersConfig struct {
	Collection string `yaml:"collection"`
	TokenField string `yaml:"token_field"`
}

type YamlWebConfig struct {
	Icon    string `yaml:"icon"`
	BaseURL string `yaml:"base_url"`
}

type YamlRedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	Enabled    bool   `yaml:"enabled"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

type YamlVapidConfig struct {
	PublicKey       string `yaml:"public_key"`
	PrivateKey      string `yaml:"private_key"`
	SubscriberEmail string `yaml:"subscriber_email"`
	TTLSeconds      int    `yaml:"ttl_seconds"`
}

type YamlAPNSConfig struct {
	KeyID     string `yaml:"key_id"`
	TeamID    string `yaml:"team_id"`
	BundleID  string `yaml:"bundle_id"`
	P8KeyFile string `yaml:"p8_key_file"`
	Sandbox   bool   `yaml:"sandbox"`
}

type YamlIngestionConfig struct {
	Enabled                bool   `yaml:"enabled"`
	TopicID                string `yaml:"topic_id"`
	SubscriptionID         string `yaml:"subscription_id"`
	SubscriptionDLQTopicID string `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int    `yaml:"num_pipeline_workers"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID          string              `yaml:"project_id"`
	ListenAddr         string              `yaml:"listen_addr"`
	Transport          string              `yaml:"transport"`
	IdentityServiceURL string              `yaml:"identity_service_url"`
	Firebase           YamlFirebaseConfig  `yaml:"firebase"`
	Users              YamlUsersConfig     `yaml:"users"`
	Web                YamlWebConfig       `yaml:"web"`
	CorsConfig         YamlCorsConfig      `yaml:"cors"`
	RedisConfig        YamlRedisConfig     `yaml:"redis"`
	VapidConfig        YamlVapidConfig     `yaml:"vapid"`
	APNSConfig         YamlAPNSConfig      `yaml:"apns"`
	Ingestion          YamlIngestionConfig `yaml:"ingestion"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	switch {
	case baseCfg.RedisConfig.TTLMinutes < 0:
		return nil, fmt.Errorf("redis.ttl_minutes must not be negative (got %d)", baseCfg.RedisConfig.TTLMinutes)
	case baseCfg.VapidConfig.TTLSeconds < 0:
		return nil, fmt.Errorf("vapid.ttl_seconds must not be negative (got %d)", baseCfg.VapidConfig.TTLSeconds)
	case baseCfg.Ingestion.NumPipelineWorkers < 0:
		return nil, fmt.Errorf("ingestion.num_pipeline_workers must not be negative (got %d)", baseCfg.Ingestion.NumPipelineWorkers)
	}

	cfg := &Config{
		ProjectID:          baseCfg.ProjectID,
		ListenAddr:         baseCfg.ListenAddr,
		Transport:          baseCfg.Transport,
		IdentityServiceURL: baseCfg.IdentityServiceURL,
		Firebase: FirebaseConfig{
			CredentialsFile: baseCfg.Firebase.CredentialsFile,
		},
		Users: UserStoreConfig{
			Collection: baseCfg.Users.Collection,
			TokenField: baseCfg.Users.TokenField,
		},
		Web: WebConfig{
			Icon:    baseCfg.Web.Icon,
			BaseURL: baseCfg.Web.BaseURL,
		},
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			TTL:      time.Duration(baseCfg.RedisConfig.TTLMinutes) * time.Minute,
		},
		Vapid: VapidConfig{
			PublicKey:       baseCfg.VapidConfig.PublicKey,
			PrivateKey:      baseCfg.VapidConfig.PrivateKey,
			SubscriberEmail: baseCfg.VapidConfig.SubscriberEmail,
			TTLSeconds:      baseCfg.VapidConfig.TTLSeconds,
		},
		APNS: APNSConfig{
			KeyID:     baseCfg.APNSConfig.KeyID,
			TeamID:    baseCfg.APNSConfig.TeamID,
			BundleID:  baseCfg.APNSConfig.BundleID,
			P8KeyFile: baseCfg.APNSConfig.P8KeyFile,
			Sandbox:   baseCfg.APNSConfig.Sandbox,
		},
		Ingestion: IngestionConfig{
			Enabled:                baseCfg.Ingestion.Enabled,
			TopicID:                baseCfg.Ingestion.TopicID,
			SubscriptionID:         baseCfg.Ingestion.SubscriptionID,
			SubscriptionDLQTopicID: baseCfg.Ingestion.SubscriptionDLQTopicID,
			NumPipelineWorkers:     baseCfg.Ingestion.NumPipelineWorkers,
		},
	}

	if cfg.Ingestion.SubscriptionID != "" {
		cfg.Ingestion.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.Ingestion.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"transport", cfg.Transport,
		"ingestion_enabled", cfg.Ingestion.Enabled,
	)

	return cfg, nil
}
