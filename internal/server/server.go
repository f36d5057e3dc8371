package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ipdr-dashboard/internal/anomaly"
	"ipdr-dashboard/internal/config"
	"ipdr-dashboard/internal/enrichment"
	"ipdr-dashboard/internal/geoip"
	"ipdr-dashboard/internal/handler"
	"ipdr-dashboard/internal/metrics"
	"ipdr-dashboard/internal/middleware"
	"ipdr-dashboard/internal/notify"
	"ipdr-dashboard/internal/pipeline"
	"ipdr-dashboard/internal/rdns"
	"ipdr-dashboard/internal/repository"
	"ipdr-dashboard/internal/service"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	router   *gin.Engine
	db       *sqlx.DB
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	geo      enrichment.GeoLookup
	names    enrichment.NameLookup
	notifier notify.Notifier
}

// Option customizes a Server.
type Option func(*Server)

// WithLookups replaces the geolocation and reverse-name clients.
func WithLookups(geo enrichment.GeoLookup, names enrichment.NameLookup) Option {
	return func(s *Server) {
		s.geo = geo
		s.names = names
	}
}

// WithNotifier sets the anomaly notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Server) { s.notifier = n }
}

func NewServer(db *sqlx.DB, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	s := &Server{
		router:   router,
		db:       db,
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.New(registry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.geo == nil {
		s.geo = geoip.NewClient(
			geoip.WithBaseURL(cfg.GeoIP.BaseURL),
			geoip.WithToken(cfg.GeoIP.Token),
			geoip.WithTimeout(cfg.GeoIPTimeout()),
		)
	}
	if s.names == nil {
		s.names = rdns.NewClient(nil, cfg.DNSTimeout())
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	// Repositories
	authRepo := repository.NewAuthRepository(s.db, s.logger)
	logRepo := repository.NewIPDRLogRepository(s.db, s.logger)
	uploadRepo := repository.NewUploadRepository(s.db, s.logger)

	// Services
	authService := service.NewAuthService(authRepo, []byte(s.cfg.Server.JWTSecret), s.logger)
	ingestService := service.NewIngestService(
		pipeline.New(s.geo, s.names, s.logger, s.metrics),
		logRepo, uploadRepo, s.metrics, s.logger,
	)
	scorer := anomaly.NewScorer(
		anomaly.NewIsolationForest(s.cfg.Anomaly.Trees, s.cfg.Anomaly.SampleSize),
		s.logger, s.metrics,
	)
	anomalyService := service.NewAnomalyService(logRepo, scorer, s.notifier, s.cfg.Anomaly.DefaultContamination, s.logger)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, s.logger)
	uploadHandler := handler.NewUploadHandler(ingestService, uploadRepo, s.cfg.Server.MaxUploadBytes, s.logger)
	logsHandler := handler.NewLogsHandler(logRepo, s.logger)
	anomalyHandler := handler.NewAnomalyHandler(anomalyService, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	// Authentication routes
	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	// Authenticated routes
	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.AuthMiddleware([]byte(s.cfg.Server.JWTSecret), s.logger))
	{
		authRequired.POST("/auth/logout", authHandler.Logout)

		authRequired.POST("/uploads", uploadHandler.Upload)
		authRequired.GET("/uploads", uploadHandler.List)

		authRequired.GET("/logs/search", logsHandler.Search)
		authRequired.GET("/logs/bounds", logsHandler.Bounds)
		authRequired.GET("/logs/export", logsHandler.Export)

		authRequired.POST("/anomalies/detect", anomalyHandler.Detect)
	}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
