// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/vistapay/merchant-radar/internal/auth"
	"github.com/vistapay/merchant-radar/internal/config"
	"github.com/vistapay/merchant-radar/internal/features"
	"github.com/vistapay/merchant-radar/internal/health"
	"github.com/vistapay/merchant-radar/internal/inactivity"
	"github.com/vistapay/merchant-radar/internal/inscriptions"
	"github.com/vistapay/merchant-radar/internal/logging"
	"github.com/vistapay/merchant-radar/internal/metrics"
	"github.com/vistapay/merchant-radar/internal/model"
	"github.com/vistapay/merchant-radar/internal/ratelimit"
	"github.com/vistapay/merchant-radar/internal/security"
	"github.com/vistapay/merchant-radar/internal/traces"
	"github.com/vistapay/merchant-radar/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	authMgr      *auth.Manager
	inscriptions inscriptions.Store
	predictor    *inactivity.Service
	classifier   model.Classifier
	healthReg    *health.Registry
	rateLimiter  *ratelimit.Limiter
	db           *sql.DB // merchant data; nil if using in-memory
	authDB       *sql.DB // credentials; nil when shared with db or in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	shutdownTr   func(context.Context) error
	cancelRunCtx context.CancelFunc

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, "json"),
		healthReg: health.NewRegistry(2 * time.Second),
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Classifier: configured artifact or built-in fallback
	if cfg.ModelPath != "" {
		clf, err := model.Load(cfg.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("load classifier: %w", err)
		}
		s.classifier = clf
		s.logger.Info("classifier loaded", "path", cfg.ModelPath, "kind", clf.Kind())
	} else {
		s.classifier = model.Fallback()
		s.logger.Info("using built-in fallback classifier")
	}

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory demo data)
	var featureSource features.Source
	if cfg.DatabaseURL != "" {
		db, err := openDB(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		s.inscriptions = inscriptions.NewPostgresStore(db)
		featureSource = features.NewSQLSource(db)

		// Credentials may live in a separate database
		userDB := db
		if cfg.AuthDatabaseURL != "" && cfg.AuthDatabaseURL != cfg.DatabaseURL {
			authDB, err := openDB(cfg.AuthDatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("auth database: %w", err)
			}
			s.authDB = authDB
			userDB = authDB
			s.logger.Info("using separate credentials database", "url", maskDSN(cfg.AuthDatabaseURL))
		}

		userStore := auth.NewPostgresUserStore(userDB)
		if err := userStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate user store", "error", err)
		}
		s.authMgr = auth.NewManager(userStore, time.Duration(cfg.TokenTTLHours)*time.Hour)

		s.healthReg.Register("database", db.PingContext)
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")

		memSource := features.NewMemorySource()
		memInscriptions := inscriptions.NewMemoryStore()
		userStore := auth.NewMemoryUserStore()
		seedDemoData(memSource, memInscriptions, userStore)

		s.inscriptions = memInscriptions
		featureSource = memSource
		s.authMgr = auth.NewManager(userStore, time.Duration(cfg.TokenTTLHours)*time.Hour)
	}

	s.predictor = inactivity.NewService(featureSource, s.classifier)

	// Classify a zero vector once per probe. Catches a model artifact whose
	// dimensions don't match the feature extractor.
	s.healthReg.Register("model", func(context.Context) error {
		_, err := s.classifier.Predict(make([]float64, features.FeatureWidth))
		return err
	})

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

func openDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "an unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for the dashboard - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func generateRequestID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the host is broken; a constant ID at
		// least keeps requests serviceable.
		return "req_0"
	}
	return "req_" + hex.EncodeToString(b)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info (public)
	s.router.GET("/api", s.infoHandler)

	// Login (public)
	authHandler := auth.NewHandler(s.authMgr)
	s.router.POST("/auth/login", authHandler.Login)

	// PROTECTED ROUTES (require bearer token)
	protected := s.router.Group("")
	protected.Use(auth.RequireAuth(s.authMgr))
	{
		protected.POST("/auth/logout", authHandler.Logout)

		inscriptionHandler := inscriptions.NewHandler(s.inscriptions)
		protected.GET("/inscriptions", inscriptionHandler.List)

		predictHandler := inactivity.NewHandler(s.predictor)
		protected.POST("/predict/inactive-merchants", predictHandler.PredictInactive)
	}
}

// -----------------------------------------------------------------------------
// Info & health handlers
// -----------------------------------------------------------------------------

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Merchant Radar",
		"description": "Merchant registration listing and inactivity risk scoring",
		"version":     "0.1.0",
		"model":       s.classifier.Kind(),
	})
}

func (s *Server) healthHandler(c *gin.Context) {
	report := s.healthReg.Run(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !report.Healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   "0.1.0",
		"checks":    report.Results,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the server and blocks until shutdown
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing (no-op when no OTLP endpoint configured)
	shutdownTr, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownTr = shutdownTr
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Export DB pool stats while running
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush pending spans
	if s.shutdownTr != nil {
		if err := s.shutdownTr(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	// Close database connection pools
	for _, db := range []*sql.DB{s.authDB, s.db} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		}
	}
	if s.db != nil {
		s.logger.Info("database connections closed")
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
