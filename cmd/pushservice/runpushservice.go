package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	firebase "firebase.google.com/go/v4"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-carepush-service/internal/platform/apns"
	"github.com/tinywideclouds/go-carepush-service/internal/platform/fcm"
	"github.com/tinywideclouds/go-carepush-service/internal/platform/web"

	"github.com/tinywideclouds/go-carepush-service/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-carepush-service/internal/storage/firestore"
	"github.com/tinywideclouds/go-carepush-service/pkg/dispatch"

	"github.com/tinywideclouds/go-carepush-service/pushservice"
	"github.com/tinywideclouds/go-carepush-service/pushservice/config"

	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"gopkg.in/yaml.v3"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-carepush-service")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Failed to map yaml config", "err", err)
		os.Exit(1)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	var gcpOpts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		gcpOpts = append(gcpOpts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}

	// --- User Store ---
	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID, gcpOpts...)
	if err != nil {
		logger.Error("Firestore client failed", "err", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	var tokenStore dispatch.TokenRegistry = fsStore.NewFirestoreStore(fsClient, cfg.Users.Collection, cfg.Users.TokenField)
	logger.Info("TokenStore initialized", "type", "firestore", "collection", cfg.Users.Collection)

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		tokenStore = cache.NewCachedTokenStore(tokenStore, redisClient, cfg.Redis.TTL, logger)
		logger.Info("TokenStore upgraded", "type", "redis_cached_firestore", "ttl", cfg.Redis.TTL)
	}

	// --- Auth ---
	jwksURL, err := middleware.DiscoverAndValidateJWTConfig(cfg.IdentityServiceURL, middleware.RSA256, logger)
	if err != nil {
		logger.Error("Failed to discover identity service JWT config", "url", cfg.IdentityServiceURL, "err", err)
		os.Exit(1)
	}
	authMiddleware, err := middleware.NewJWKSAuthMiddleware(jwksURL, logger)
	if err != nil {
		logger.Error("Failed to create auth middleware", "err", err)
		os.Exit(1)
	}

	// --- Transport ---
	transport, err := newTransport(ctx, cfg, gcpOpts, logger)
	if err != nil {
		logger.Error("Failed to initialize push transport", "transport", cfg.Transport, "err", err)
		os.Exit(1)
	}
	logger.Info("Push transport enabled", "transport", cfg.Transport)

	// --- Consumer (optional) ---
	var consumer messagepipeline.MessageConsumer
	if cfg.Ingestion.Enabled {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID, gcpOpts...)
		if err != nil {
			logger.Error("PubSub client failed", "err", err)
			os.Exit(1)
		}
		defer psClient.Close()

		consumer, err = newIngestionConsumer(ctx, cfg, psClient, logger)
		if err != nil {
			logger.Error("Failed to create reminder consumer", "err", err)
			os.Exit(1)
		}
	}

	service, err := pushservice.New(cfg, consumer, transport, tokenStore, authMiddleware, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("Starting service...", "addr", cfg.ListenAddr)
		if err := service.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Service shutdown with error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "err", err)
	}
}

func newTransport(ctx context.Context, cfg *config.Config, opts []option.ClientOption, logger *slog.Logger) (dispatch.Transport, error) {
	switch cfg.Transport {
	case config.TransportAPNS:
		p8, err := os.ReadFile(cfg.APNS.P8KeyFile)
		if err != nil {
			return nil, fmt.Errorf("could not read APNs key file: %w", err)
		}
		return apns.NewTransport(apns.Config{
			KeyID:        cfg.APNS.KeyID,
			TeamID:       cfg.APNS.TeamID,
			BundleID:     cfg.APNS.BundleID,
			P8KeyContent: string(p8),
			Sandbox:      cfg.APNS.Sandbox,
		}, logger)

	case config.TransportWeb:
		if cfg.Vapid.PrivateKey == "" || cfg.Vapid.PublicKey == "" {
			return nil, errors.New("VAPID keys are required for the web transport")
		}
		return web.NewTransport(cfg.Vapid, logger), nil

	default:
		fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firebase App: %w", err)
		}
		fcmMessaging, err := fbApp.Messaging(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create FCM messaging client: %w", err)
		}
		return fcm.NewTransport(fcmMessaging, cfg.Web.BaseURL, logger)
	}
}

func newIngestionConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(cfg.ProjectID, cfg.Ingestion.SubscriptionID, "subscriptions")

	subConfig := &pubsubpb.Subscription{
		Name:                  sub,
		AckDeadlineSeconds:    10,
		EnableMessageOrdering: false,
		RetryPolicy: &pubsubpb.RetryPolicy{
			MinimumBackoff: &durationpb.Duration{Seconds: 10},
			MaximumBackoff: &durationpb.Duration{Seconds: 600},
		},
	}
	if cfg.Ingestion.TopicID != "" {
		subConfig.Topic = convertPubsub(cfg.ProjectID, cfg.Ingestion.TopicID, "topics")
	}
	if cfg.Ingestion.SubscriptionDLQTopicID != "" {
		subConfig.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     convertPubsub(cfg.ProjectID, cfg.Ingestion.SubscriptionDLQTopicID, "topics"),
			MaxDeliveryAttempts: 5,
		}
	}

	// Without a topic the subscription must already exist.
	if subConfig.Topic != "" {
		logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
		_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
		if err != nil {
			if status.Code(err) == codes.AlreadyExists {
				logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
			} else {
				logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
				return nil, fmt.Errorf("could not create sub: %s", sub)
			}
		}
	}

	return messagepipeline.NewGooglePubsubConsumer(cfg.Ingestion.PubsubConsumerConfig, psClient, logger)
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
