// Package pushdispatch assembles the dispatch service: HTTP trigger surface,
// device registration API, and the optional Pub/Sub trigger pipeline.
package pushdispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/jobmate-app/go-push-dispatch/internal/api"
	"github.com/jobmate-app/go-push-dispatch/internal/engine"
	"github.com/jobmate-app/go-push-dispatch/internal/pipeline"
	"github.com/jobmate-app/go-push-dispatch/pushdispatch/config"
	"github.com/jobmate-app/go-push-dispatch/pkg/notify"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[engine.Trigger]
	logger          *slog.Logger
}

// New assembles the service. A nil consumer disables the Pub/Sub trigger
// path; the HTTP trigger endpoint is always mounted.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	eng *engine.Engine,
	registrations notify.RegistrationStore,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Pipeline (optional)
	var streamingService *messagepipeline.StreamingService[engine.Trigger]
	if consumer != nil {
		processor := pipeline.NewProcessor(eng, logger)
		var err error
		streamingService, err = messagepipeline.NewStreamingService(
			messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
			consumer,
			pipeline.TriggerTransformer,
			processor,
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create streaming service: %w", err)
		}
	}

	// 3. APIs
	dispatchAPI := api.NewDispatchAPI(eng, logger)
	tokenAPI := api.NewTokenAPI(registrations, logger)

	// Register Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	// 1. Trigger path: the database webhook and the reminder scheduler call
	// this with their own verified service identity.
	mux.Handle("POST /v1/dispatch", authMiddleware(http.HandlerFunc(dispatchAPI.HandleTrigger)))

	// 2. Device registration paths
	handle("POST /api/v1/register/fcm", tokenAPI.RegisterFCM)
	handle("POST /api/v1/unregister/fcm", tokenAPI.UnregisterFCM)

	// 3. Global OPTIONS for the API namespace (CORS preflight)
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Just returns 200 OK with CORS headers handled by middleware
	})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	if w.pipelineService != nil {
		w.logger.Info("Core processing pipeline starting...")
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
