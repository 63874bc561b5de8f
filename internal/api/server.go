package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"strapisync/internal/api/handlers"
	"strapisync/internal/api/middleware"
	"strapisync/internal/config"
	"strapisync/internal/guard"
	"strapisync/internal/logger"
	"strapisync/internal/worker/processors"

	"github.com/gin-gonic/gin"
)

// Dependencies are the services the routes call into. Publisher may be nil
// when no broker is configured, Bootstrap when nothing provisions accounts.
type Dependencies struct {
	Engine    processors.Engine
	Guard     *guard.Guard
	Health    handlers.HealthChecker
	Bootstrap handlers.BootstrapReporter
	Publisher handlers.Publisher
}

type Server struct {
	config  *config.Config
	logger  *logger.Logger
	router  *gin.Engine
	handler http.Handler
	server  *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, deps Dependencies) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger, "/health"))
	router.Use(middleware.Recovery(logger))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(deps.Health, deps.Bootstrap, cfg.RequestTimeout)
	syncHandler := handlers.NewSyncHandler(deps.Engine, deps.Publisher, cfg.EventTimeout, cfg.BulkSyncTimeout, logger)
	ignoreHandler := handlers.NewIgnoreHandler(deps.Guard, logger)

	router.GET("/health", healthHandler.Live)
	router.GET("/health/strapi", healthHandler.Strapi)

	// Routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/events", syncHandler.Event)

		sync := v1.Group("/sync")
		{
			sync.POST("/bootstrap", syncHandler.Bootstrap)
			sync.POST("/resync", syncHandler.Resync)
		}

		ignore := v1.Group("/ignore")
		{
			ignore.POST("", ignoreHandler.Add)
			ignore.GET("/:side/:id", ignoreHandler.Get)
		}
	}

	return &Server{
		config:  cfg,
		logger:  logger,
		router:  router,
		handler: middleware.CORS(cfg.AllowedOrigins()).Handler(router),
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.BulkSyncTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler is the router wrapped in the CORS policy.
func (s *Server) Handler() http.Handler {
	return s.handler
}
