package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/TermDeck/backend/internal/api/http"
	"github.com/GriffinCanCode/TermDeck/backend/internal/api/middleware"
	"github.com/GriffinCanCode/TermDeck/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/TermDeck/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TermDeck/backend/internal/logging"
	"github.com/GriffinCanCode/TermDeck/backend/internal/providers"
	"github.com/GriffinCanCode/TermDeck/backend/internal/registry"
	"github.com/GriffinCanCode/TermDeck/backend/internal/workspace"
	"github.com/GriffinCanCode/TermDeck/backend/internal/ws"
)

// Server assembles the workspace core: provider configs, registry client,
// store, ledger, controller, REST surface, and the state stream.
type Server struct {
	cfg        *config.Config
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	controller *workspace.Controller
	events     *registry.EventStream
	httpServer *http.Server
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	metrics := monitoring.NewMetrics()

	configs := loadProviders(cfg, logger)

	store := workspace.NewStore(cfg.Workspace.DefaultGroupID)
	history := workspace.NewLedger(cfg.Workspace.HistoryLimit)

	client := buildRegistry(cfg, configs, logger)
	controller := workspace.NewController(store, history, client, configs, logger, metrics)

	// The embedded registry reports terminations in-process; a remote one
	// pushes them over the event stream.
	var events *registry.EventStream
	if local, ok := client.(*registry.Local); ok {
		local.OnTerminated(controller.HandleTerminated)
	} else if cfg.Registry.EventsURL != "" {
		events = registry.NewEventStream(cfg.Registry.EventsURL, logger, controller.HandleTerminated)
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger.Named("server"),
		metrics:    metrics,
		controller: controller,
		events:     events,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func loadProviders(cfg *config.Config, logger *logging.Logger) providers.Source {
	src, err := providers.NewFileSource(cfg.Providers.File)
	if err != nil {
		// A missing file falls back to a single default shell config so the
		// embedded registry stays usable out of the box.
		logger.Warn("provider config file unavailable, using default shell",
			zap.String("file", cfg.Providers.File), zap.Error(err))
		return providers.NewStaticSource(providers.Provider{
			ID:      "shell",
			Name:    "Shell",
			Enabled: true,
		})
	}
	logger.Info("provider configs loaded",
		zap.String("file", cfg.Providers.File),
		zap.Int("count", len(src.List())))
	return src
}

func buildRegistry(cfg *config.Config, configs providers.Source, logger *logging.Logger) registry.Client {
	if cfg.Registry.Address == "" {
		logger.Info("using embedded session registry")
		return registry.NewLocal(configs, logger)
	}

	logger.Info("using remote session registry", zap.String("address", cfg.Registry.Address))
	return registry.NewHTTPClient(registry.HTTPConfig{
		BaseURL:      cfg.Registry.Address,
		Timeout:      time.Duration(cfg.Registry.TimeoutSeconds) * time.Second,
		MaxRetries:   cfg.Registry.MaxRetries,
		RateLimitRPS: cfg.Registry.RateLimitRPS,
	})
}

func (s *Server) buildRouter() *gin.Engine {
	if !s.cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(monitoring.Middleware(s.metrics))
	if s.cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.cfg.RateLimit.RequestsPerSecond,
			Burst:             s.cfg.RateLimit.Burst,
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"initialized": s.controller.Store().Initialized(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers := apihttp.NewHandlers(s.controller, s.controller.Configs(), s.logger)
	handlers.Register(router.Group("/api"))

	stream := ws.NewHandler(s.controller.Store(), s.logger, s.metrics)
	router.GET("/stream", stream.HandleConnection)

	return router
}

// Run starts the server and blocks until ctx is cancelled. The workspace
// is reconciled against the registry before serving; a failure there is
// logged, not fatal, because a later reconcile can recover.
func (s *Server) Run(ctx context.Context) error {
	reconcileCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := s.controller.Reconcile(reconcileCtx); err != nil {
		s.logger.Warn("initial reconciliation failed", zap.Error(err))
	}
	cancel()

	if s.events != nil {
		go s.events.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
