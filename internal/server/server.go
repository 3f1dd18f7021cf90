package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harryzcy/pypiserver/internal/auth"
	"github.com/harryzcy/pypiserver/internal/catalog"
	"github.com/harryzcy/pypiserver/internal/config"
	"github.com/harryzcy/pypiserver/internal/messaging"
	"github.com/harryzcy/pypiserver/internal/metrics"
	"github.com/harryzcy/pypiserver/internal/storage"
)

// Version is reported on the welcome page and in build info metrics.
const Version = "2.1.0"

// Server represents the HTTP index server
type Server struct {
	config        *config.Config
	backend       storage.Backend
	catalog       *catalog.Catalog
	authService   *auth.Service
	publisher     messaging.Publisher
	metrics       *metrics.Service
	metricsServer *metrics.Server
	welcome       string
	router        *gin.Engine
	startTime     time.Time
}

// New creates a server instance over an initialized backend. Route
// configuration problems (health endpoint overlap, unreadable welcome
// file) are fatal here, before the listener starts.
func New(cfg *config.Config, backend storage.Backend, authService *auth.Service, publisher messaging.Publisher, metricsService *metrics.Service) (*Server, error) {
	welcome := defaultWelcome
	if cfg.WelcomeFile != "" {
		data, err := os.ReadFile(cfg.WelcomeFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read welcome file: %w", err)
		}
		welcome = string(data)
	}

	if err := validateHealthEndpoint(cfg); err != nil {
		return nil, err
	}

	var metricsServer *metrics.Server
	if metricsService != nil {
		metricsService.SetSystemInfo(Version, runtime.Version())
		if cfg.Metrics.SeparateServer {
			metricsServer = metrics.NewServer(cfg.Metrics.Port, metricsService)
		}
	}

	s := &Server{
		config:        cfg,
		backend:       backend,
		catalog:       catalog.New(backend),
		authService:   authService,
		publisher:     publisher,
		metrics:       metricsService,
		metricsServer: metricsServer,
		welcome:       welcome,
		startTime:     time.Now(),
	}
	s.setupRoutes()
	return s, nil
}

// fixedRoutes are the path prefixes owned by the protocol surface. The
// configurable health endpoint must not overlap any of them.
var fixedRoutes = []string{"/packages", "/simple", "/RPC2", "/favicon.ico"}

func validateHealthEndpoint(cfg *config.Config) error {
	health := cfg.Health
	if health == "/" {
		return fmt.Errorf("health endpoint %q overlaps with existing routes", health)
	}
	reserved := fixedRoutes
	if cfg.Metrics.Enabled && !cfg.Metrics.SeparateServer {
		reserved = append(append([]string{}, reserved...), cfg.Metrics.Path)
	}
	for _, route := range reserved {
		if health == route || strings.HasPrefix(health, route) {
			return fmt.Errorf("health endpoint %q overlaps with existing routes", health)
		}
	}
	return nil
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router = gin.Default()

	if s.metrics != nil {
		s.router.Use(s.metrics.GinMiddleware())
	}

	s.router.GET(s.config.Health, s.healthCheck)
	if s.metrics != nil && !s.config.Metrics.SeparateServer {
		s.router.GET(s.config.Metrics.Path, gin.WrapH(s.metrics.GetHandler()))
	}

	s.router.GET("/", s.welcomePage)
	s.router.POST("/", s.requireAuth("update"), s.update)

	s.router.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	s.router.GET("/packages", s.redirectWithSlash("/packages/"))
	s.router.GET("/packages/*filepath", s.packages)

	s.router.GET("/simple", s.redirectWithSlash("/simple/"))
	s.router.GET("/simple/", s.requireAuth("list"), s.simpleIndex)
	s.router.GET("/simple/:project", s.simpleProjectRedirect)
	s.router.GET("/simple/:project/", s.requireAuth("list"), s.simpleProject)

	s.router.POST("/RPC2", s.search)

	// gin cannot mount a root-level parameter next to static routes,
	// so /{project}/json is matched here.
	s.router.NoRoute(s.jsonInfoFallback)
}

// redirectWithSlash issues the canonical trailing-slash redirect,
// honoring any forwarded path prefix.
func (s *Server) redirectWithSlash(target string) gin.HandlerFunc {
	return func(c *gin.Context) {
		base := resolveBaseURL(c.Request)
		c.Redirect(http.StatusFound, base.Path(target))
	}
}

// healthCheck reports liveness.
func (s *Server) healthCheck(c *gin.Context) {
	c.String(http.StatusOK, "Ok")
}

// requireAuth gates an operation behind the configured authentication
// set. Either a Basic credential from the password file or a bearer
// token is accepted.
func (s *Server) requireAuth(operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.checkAuth(c, operation) {
			return
		}
		c.Next()
	}
}

func (s *Server) checkAuth(c *gin.Context, operation string) bool {
	if !s.config.Auth.Requires(operation) {
		return true
	}

	if authz := c.GetHeader("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		if _, err := s.authService.ValidateToken(authz); err == nil {
			return true
		}
	}
	if username, password, ok := c.Request.BasicAuth(); ok {
		if s.authService.VerifyBasic(username, password) {
			return true
		}
	}

	c.Header("WWW-Authenticate", `Basic realm="pypi"`)
	c.String(http.StatusUnauthorized, "Authentication required")
	c.Abort()
	return false
}

// serverError logs an internal failure and responds with a generic body.
func (s *Server) serverError(c *gin.Context, err error) {
	log.Printf("internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.String(http.StatusInternalServerError, "Internal server error")
	c.Abort()
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server and the metrics listener if configured.
func (s *Server) Start() error {
	if s.metricsServer != nil {
		go func() {
			if err := s.metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server failed: %v", err)
			}
		}()
		log.Printf("metrics server listening on port %d", s.config.Metrics.Port)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	log.Printf("pypiserver %s serving %v on %s", Version, s.config.Roots, addr)
	return s.router.Run(addr)
}

// Shutdown releases the server's collaborators.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.metricsServer != nil {
		if shutdownErr := s.metricsServer.Shutdown(ctx); shutdownErr != nil {
			err = shutdownErr
		}
	}
	if s.publisher != nil {
		if closeErr := s.publisher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
