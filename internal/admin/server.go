package admin

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/avsecgw/internal/crypto"
	"github.com/vyrodovalexey/avsecgw/internal/keyvault"
	"github.com/vyrodovalexey/avsecgw/internal/monitor"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
	"github.com/vyrodovalexey/avsecgw/internal/ratelimit"
	"github.com/vyrodovalexey/avsecgw/internal/token"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race conditions
var ginModeOnce sync.Once

// Config holds configuration for the admin HTTP server.
type Config struct {
	Port           int           `yaml:"port"`
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	MaxHeaderBytes int           `yaml:"maxHeaderBytes"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Port:           9090,
		Address:        "",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}
}

// SetDefaults fills in zero fields with default values.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.Port <= 0 {
		c.Port = d.Port
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = d.MaxHeaderBytes
	}
}

// Deps bundles the services the admin API operates on.
type Deps struct {
	Monitor *monitor.Monitor
	Limiter *ratelimit.Limiter
	Crypto  *crypto.Service
	Tokens  *token.Service
	Vault   *keyvault.Vault
}

// Server is the admin HTTP server.
type Server struct {
	engine     *gin.Engine
	handler    http.Handler
	httpServer *http.Server
	config     *Config
	deps       Deps
	logger     observability.Logger
	mu         sync.RWMutex
	running    bool
}

// NewServer creates a new admin server and registers all routes.
func NewServer(config *Config, deps Deps, logger observability.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	config.SetDefaults()

	if logger == nil {
		logger = observability.NopLogger()
	}

	// Set Gin mode only once to avoid race conditions
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		engine: gin.New(),
		config: config,
		deps:   deps,
		logger: logger,
	}

	s.registerRoutes()
	s.handler = s.engine

	return s
}

// Engine returns the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// WrapHandler wraps the engine with outer middleware, typically the
// security pipeline. Must be called before Start.
func (s *Server) WrapHandler(wrap func(http.Handler) http.Handler) {
	s.handler = wrap(s.engine)
}

// registerRoutes wires every admin endpoint into the engine.
func (s *Server) registerRoutes() {
	s.engine.Use(gin.Recovery())

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	security := s.engine.Group("/admin/security")
	{
		security.GET("/events", s.handleEvents)
		security.GET("/metrics", s.handleSecurityMetrics)
		security.GET("/blocked", s.handleBlocked)
		security.POST("/block", s.handleBlock)
		security.POST("/unblock", s.handleUnblock)
		security.GET("/ratelimit/status", s.handleRateLimitStatus)
		security.POST("/password-strength", s.handlePasswordStrength)
		security.POST("/api-key", s.handleAPIKey)
		security.POST("/session-token", s.handleSessionToken)
		security.POST("/rotate-keys", s.handleRotateKeys)
	}

	auth := s.engine.Group("/admin/auth")
	{
		auth.POST("/token", s.handleIssueToken)
		auth.POST("/verify", s.handleVerifyToken)
	}
}

// Start starts the admin server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("admin server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)

	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting admin server",
		observability.String("address", addr),
		observability.Duration("readTimeout", s.config.ReadTimeout),
		observability.Duration("writeTimeout", s.config.WriteTimeout),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("admin server error: %w", err)
	}

	return nil
}

// Stop stops the admin server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info("stopping admin server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown admin server: %w", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("admin server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
