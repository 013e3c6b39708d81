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

	"github.com/continuum-sec/continuum/internal/anomaly"
	"github.com/continuum-sec/continuum/internal/behavior"
	"github.com/continuum-sec/continuum/internal/config"
	"github.com/continuum-sec/continuum/internal/engine"
	"github.com/continuum-sec/continuum/internal/escalation"
	"github.com/continuum-sec/continuum/internal/fusion"
	"github.com/continuum-sec/continuum/internal/graph"
	"github.com/continuum-sec/continuum/internal/health"
	"github.com/continuum-sec/continuum/internal/logging"
	"github.com/continuum-sec/continuum/internal/metrics"
	"github.com/continuum-sec/continuum/internal/profile"
	"github.com/continuum-sec/continuum/internal/ratelimit"
	"github.com/continuum-sec/continuum/internal/realtime"
	"github.com/continuum-sec/continuum/internal/scorer"
	"github.com/continuum-sec/continuum/internal/security"
	"github.com/continuum-sec/continuum/internal/traces"
	"github.com/continuum-sec/continuum/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	profiles     *profile.Store
	orchestrator *engine.Orchestrator
	sessions     *graph.SessionGraph
	assessments  fusion.Store
	realtimeHub  *realtime.Hub
	rateLimiter  *ratelimit.Limiter
	healthChecks *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run
	traceStop    func(context.Context) error

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
		cfg:          cfg,
		logger:       logging.New(cfg.LogLevel, "json"),
		healthChecks: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Assessment storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.assessments = fusion.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL assessment storage", "url", maskDSN(cfg.DatabaseURL))

		s.healthChecks.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		s.assessments = fusion.NewMemoryStore()
		s.logger.Info("using in-memory assessment storage (audit trail will not persist)")
	}

	// Normalizer: offline-fitted params file, or the baked-in reference
	// population parameters.
	var normalizer scorer.Normalizer
	if cfg.NormalizerParams != "" {
		n, err := scorer.LoadNormalizer(cfg.NormalizerParams)
		if err != nil {
			return nil, fmt.Errorf("failed to load normalizer params: %w", err)
		}
		normalizer = n
		s.logger.Info("loaded normalizer parameters", "path", cfg.NormalizerParams)
	} else {
		normalizer = scorer.DefaultNormalizer()
	}

	similarity := &escalation.Stage{
		Normalizer: normalizer,
		Verifier:   scorer.DistanceVerifier{},
		Threshold:  cfg.SimilarityThreshold,
	}

	s.sessions = graph.NewSessionGraph()

	fusionEngine := fusion.NewEngine(s.sessions, scorer.GaussianDrift{}, scorer.CosineSimilarity{}, s.assessments).
		WithBlockThreshold(cfg.BlockThreshold).
		WithReviewThreshold(cfg.ReviewThreshold)

	s.profiles = profile.NewStore()
	s.orchestrator = engine.New(s.profiles, similarity, fusionEngine, s.assessments).
		WithObserver(s.sessions).
		WithAutoEnroll(cfg.AutoEnroll).
		WithThresholds(anomaly.Thresholds{Pass: cfg.PassThreshold, Severe: cfg.EscalateThreshold})

	if cfg.AutoEnroll {
		s.logger.Info("auto-enrollment enabled: unknown users bootstrap from their first sample")
	}

	// Create realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)
	s.logger.Info("realtime streaming enabled")

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
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS for dashboard clients (restrict origins in production deployments)
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

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
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
	s.router.GET("/healthz", s.livenessHandler)
	s.router.GET("/readyz", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/", s.infoHandler)

	// Live decision feed (websocket-backed)
	s.router.GET("/feed", feedPageHandler)

	// V1 API group
	v1 := s.router.Group("/v1")
	// Validate :id URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.UserIDParamMiddleware())

	v1.POST("/authenticate", s.authenticateHandler)
	v1.POST("/enroll", s.enrollHandler)
	v1.GET("/users/:id/assessments", s.assessmentsHandler)
	v1.GET("/users/:id/profile", s.profileHandler)
	v1.GET("/stats", s.statsHandler)

	// WebSocket for real-time streaming
	v1.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// Admin routes: confirm a manual-review outcome by flagging the user in
	// the session graph. Guarded by the shared admin secret.
	admin := v1.Group("/admin")
	admin.Use(s.adminAuthMiddleware())
	admin.POST("/users/:id/flag", s.flagUserHandler)
}

func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" || c.GetHeader("X-Admin-Secret") != s.cfg.AdminSecret {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin secret required",
			})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// authenticateRequest is the wire shape of POST /v1/authenticate.
type authenticateRequest struct {
	UserID     string                   `json:"userId" binding:"required"`
	Age        int                      `json:"age"`
	Sample     []float64                `json:"sample" binding:"required"`
	Location   behavior.LocationContext `json:"location" binding:"required"`
	DeviceID   string                   `json:"deviceId"`
	SourceAddr string                   `json:"sourceAddr"`
}

func (s *Server) authenticateHandler(c *gin.Context) {
	var req authenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	req.UserID = validation.SanitizeUserID(req.UserID)
	if verrs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.ValidUserID("userId", req.UserID),
		validation.ValidLatitude("location.currentSession.lat", req.Location.CurrentSession.Lat),
		validation.ValidLongitude("location.currentSession.lon", req.Location.CurrentSession.Lon),
	); len(verrs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"details": verrs,
		})
		return
	}

	ctx := logging.WithUserID(c.Request.Context(), req.UserID)
	ctx, span := traces.StartSpan(ctx, "authenticate", traces.UserID(req.UserID))
	defer span.End()

	decision, err := s.orchestrator.Authenticate(ctx, &engine.Request{
		UserID:     req.UserID,
		Age:        req.Age,
		Sample:     behavior.Vector(req.Sample),
		Location:   req.Location,
		DeviceID:   req.DeviceID,
		SourceAddr: req.SourceAddr,
	})
	if err != nil {
		s.dispatchError(c, err)
		return
	}

	s.recordDecision(decision)
	span.SetAttributes(
		traces.Tier(string(decision.Tier)),
		traces.Label(string(decision.Label)),
		traces.AssessmentID(decision.AssessmentID),
	)
	if decision.Score != nil {
		span.SetAttributes(traces.Score(*decision.Score))
	}

	c.JSON(http.StatusOK, decision)
}

// recordDecision applies the observability side effects of a terminal
// decision: counters, score histograms, and the realtime feed.
func (s *Server) recordDecision(d *engine.Decision) {
	metrics.DecisionsTotal.WithLabelValues(string(d.Tier), string(d.Label)).Inc()
	if d.Tier != fusion.TierAnomaly {
		metrics.EscalationsTotal.WithLabelValues(string(d.Tier)).Inc()
	}
	if d.Score != nil {
		switch d.Tier {
		case fusion.TierAnomaly:
			metrics.AnomalyScore.Observe(*d.Score)
		case fusion.TierFusion:
			metrics.FusedRiskScore.Observe(*d.Score)
		}
	}
	if d.Enrolled {
		metrics.EnrollmentsTotal.WithLabelValues("bootstrap").Inc()
		metrics.EnrolledProfiles.Set(float64(s.profiles.Count()))
		s.realtimeHub.BroadcastEnrollment(map[string]interface{}{
			"userId": d.UserID,
			"kind":   "bootstrap",
		})
	}

	event := map[string]interface{}{
		"assessmentId": d.AssessmentID,
		"userId":       d.UserID,
		"tier":         string(d.Tier),
		"label":        string(d.Label),
	}
	if d.Score != nil {
		event["score"] = *d.Score
	}
	if len(d.Flags) > 0 {
		event["flags"] = d.Flags
	}
	s.realtimeHub.BroadcastDecision(event)
}

// dispatchError maps pipeline errors onto HTTP status codes. Scorer faults
// are infrastructure failures, never decisions.
func (s *Server) dispatchError(c *gin.Context, err error) {
	var verr *engine.ValidationError
	var fault *engine.ScorerFault

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": verr.Error(),
		})
	case errors.Is(err, engine.ErrUnenrolled), errors.Is(err, profile.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "unknown_user",
			"message": "No behavioral profile exists for this user. Enroll first via POST /v1/enroll.",
		})
	case errors.Is(err, profile.ErrInsufficientSamples):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "insufficient_samples",
			"message": fmt.Sprintf("Enrollment needs at least %d samples and %d history vectors", profile.MinEnrollmentSamples, profile.MinHistorySamples),
		})
	case errors.As(err, &fault):
		metrics.ScorerFaultsTotal.WithLabelValues(string(fault.Tier)).Inc()
		logging.L(c.Request.Context()).Error("scorer fault",
			"tier", string(fault.Tier),
			"error", fault.Err,
		)
		s.realtimeHub.BroadcastScorerFault(map[string]interface{}{
			"tier":  string(fault.Tier),
			"error": fault.Err.Error(),
		})
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "scorer_unavailable",
			"message": "A scoring model failed; no decision was made",
		})
	default:
		logging.L(c.Request.Context()).Error("authentication failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}
}

// enrollRequest is the wire shape of POST /v1/enroll.
type enrollRequest struct {
	UserID  string      `json:"userId" binding:"required"`
	Age     int         `json:"age"`
	Samples [][]float64 `json:"samples" binding:"required"`
	History [][]float64 `json:"history" binding:"required"`
}

func (s *Server) enrollHandler(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	req.UserID = validation.SanitizeUserID(req.UserID)
	if verrs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.ValidUserID("userId", req.UserID),
	); len(verrs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"details": verrs,
		})
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "enroll", traces.UserID(req.UserID))
	defer span.End()

	batch := toVectors(req.Samples)
	history := toVectors(req.History)

	snap, created, err := s.orchestrator.Enroll(ctx, req.UserID, req.Age, batch, history)
	if err != nil {
		s.dispatchError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		metrics.EnrollmentsTotal.WithLabelValues("explicit").Inc()
		metrics.EnrolledProfiles.Set(float64(s.profiles.Count()))
		s.realtimeHub.BroadcastEnrollment(map[string]interface{}{
			"userId": req.UserID,
			"kind":   "explicit",
		})
	}

	c.JSON(status, gin.H{
		"userId":  snap.UserID,
		"created": created,
		"profile": profileSummary(snap),
	})
}

func (s *Server) assessmentsHandler(c *gin.Context) {
	userID := validation.SanitizeUserID(c.Param("id"))

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be a positive integer",
			})
			return
		}
	}
	if limit > 500 {
		limit = 500
	}

	assessments, err := s.assessments.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list assessments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load assessments",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":      userID,
		"assessments": assessments,
		"count":       len(assessments),
	})
}

func (s *Server) profileHandler(c *gin.Context) {
	userID := validation.SanitizeUserID(c.Param("id"))

	snap, err := s.profiles.Get(userID)
	if err != nil {
		s.dispatchError(c, err)
		return
	}

	c.JSON(http.StatusOK, profileSummary(snap))
}

// profileSummary exposes profile metadata without the raw behavioral
// vectors. The reference and deviation vectors are biometric material and
// never leave the process.
func profileSummary(snap *profile.Snapshot) gin.H {
	return gin.H{
		"userId":         snap.UserID,
		"age":            snap.Age,
		"enrolled":       snap.Enrolled,
		"idleStreak":     snap.IdleStreak,
		"historySamples": len(snap.History),
		"createdAt":      snap.CreatedAt,
		"updatedAt":      snap.UpdatedAt,
	}
}

func (s *Server) statsHandler(c *gin.Context) {
	users, infra, flagged := s.sessions.Stats()

	c.JSON(http.StatusOK, gin.H{
		"enrolledProfiles": s.profiles.Count(),
		"sessionGraph": gin.H{
			"users":   users,
			"infra":   infra,
			"flagged": flagged,
		},
		"realtime": s.realtimeHub.Stats(),
	})
}

func (s *Server) flagUserHandler(c *gin.Context) {
	userID := validation.SanitizeUserID(c.Param("id"))

	s.sessions.Flag(userID)
	logging.L(c.Request.Context()).Warn("user flagged by admin", "user_id", userID)

	c.JSON(http.StatusOK, gin.H{
		"userId":  userID,
		"flagged": true,
	})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Continuum",
		"description": "Continuous behavioral authentication service",
		"version":     "0.1.0",
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

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthChecks.CheckAll(ctx)
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"checks": statuses,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": statuses,
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	stop, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.traceStop = stop
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start DB stats collector
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

	// Cancel the context for all background goroutines (hub, collectors)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush pending trace spans
	if s.traceStop != nil {
		if err := s.traceStop(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func toVectors(raw [][]float64) []behavior.Vector {
	out := make([]behavior.Vector, len(raw))
	for i, v := range raw {
		out[i] = behavior.Vector(v)
	}
	return out
}

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
