package pushservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-carepush-service/internal/api"
	"github.com/tinywideclouds/go-carepush-service/internal/notify"
	"github.com/tinywideclouds/go-carepush-service/internal/pipeline"
	"github.com/tinywideclouds/go-carepush-service/pkg/dispatch"
	"github.com/tinywideclouds/go-carepush-service/pkg/push"
	"github.com/tinywideclouds/go-carepush-service/pushservice/config"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[push.NotificationRequest]
	logger          *slog.Logger
}

// New assembles the service. consumer may be nil, in which case no
// reminder pipeline is run and only the HTTP API is served.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	transport dispatch.Transport,
	tokenStore dispatch.TokenRegistry,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Send path, shared by HTTP and the pipeline
	sender := notify.NewSender(transport, tokenStore, cfg.Web.Icon, logger)

	// 3. Pipeline (optional)
	var streamingService *messagepipeline.StreamingService[push.NotificationRequest]
	if consumer != nil {
		processor := pipeline.NewProcessor(sender, logger)
		svc, err := messagepipeline.NewStreamingService(
			messagepipeline.StreamingServiceConfig{NumWorkers: cfg.Ingestion.NumPipelineWorkers},
			consumer,
			pipeline.NotificationRequestTransformer,
			processor,
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create streaming service: %w", err)
		}
		streamingService = svc
	}

	// 4. API
	notifyAPI := api.NewNotifyAPI(sender, logger)
	tokenAPI := api.NewTokenAPI(tokenStore, logger)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	handle("POST /api/v1/notifications", notifyAPI.SendNotification)
	handle("POST /api/v1/tokens", tokenAPI.RegisterToken)
	handle("DELETE /api/v1/tokens", tokenAPI.UnregisterToken)

	// CORS preflight for the API namespace
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	if w.pipelineService != nil {
		w.logger.Info("Reminder pipeline starting...")
		if err := w.pipelineService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start processing service: %w", err)
		}
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if w.pipelineService != nil {
		if err := w.pipelineService.Stop(ctx); err != nil {
			w.logger.Error("Processing pipeline shutdown failed.", "err", err)
			finalErr = err
		}
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
