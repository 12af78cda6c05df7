// Package api provides the HTTP surface for task submission and
// trajectory inspection.
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/odgrim/abathur/pkg/config"
	"github.com/odgrim/abathur/pkg/events"
	"github.com/odgrim/abathur/pkg/services"
	"github.com/odgrim/abathur/pkg/version"
)

// Server is the HTTP API server.
type Server struct {
	echo        *echo.Echo
	httpServer  *http.Server
	cfg         *config.Config
	taskService *services.TaskService
	connManager *events.ConnectionManager
}

// NewServer creates a new API server with Echo v5.
func NewServer(cfg *config.Config, taskService *services.TaskService, connManager *events.ConnectionManager) *Server {
	e := echo.New()

	s := &Server{
		echo:        e,
		cfg:         cfg,
		taskService: taskService,
		connManager: connManager,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.echo.Use(securityHeaders())
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")

	v1.POST("/tasks", s.submitTaskHandler)
	v1.GET("/tasks", s.listTasksHandler)
	v1.GET("/tasks/:id", s.getTaskHandler)
	v1.POST("/tasks/:id/cancel", s.cancelTaskHandler)
	v1.POST("/tasks/:id/converge", s.convergeTaskHandler)

	v1.GET("/tasks/:id/trajectories", s.listTrajectoriesHandler)
	v1.GET("/trajectories/:id", s.getTrajectoryHandler)

	// WebSocket endpoint for real-time event streaming.
	v1.GET("/ws", s.wsHandler)
}

// Start starts the HTTP server on the given address and blocks until the
// server stops; it returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *echo.Context) error {
	stats := s.cfg.Stats()
	return c.JSON(http.StatusOK, &HealthResponse{
		Status:  "healthy",
		Version: version.Full(),
		Configuration: ConfigurationStats{
			MaxParallelTrajectories: stats.MaxParallelTrajectories,
			MemoryBackend:           stats.MemoryBackend,
			EventEmissionEnabled:    stats.EventEmissionEnabled,
			GuardrailsEnforceBudget: stats.GuardrailsEnforceBudget,
		},
	})
}
