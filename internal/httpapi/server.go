// Package httpapi exposes the tool server over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/HendryAvila/aidev/internal/protocol"
	"github.com/HendryAvila/aidev/internal/registry"
	"github.com/HendryAvila/aidev/internal/store"
)

// Server serves the tool catalog, tool execution and project
// browsing endpoints.
type Server struct {
	echo       *echo.Echo
	store      *store.Store
	dispatcher *protocol.Dispatcher
	logger     *zap.Logger
	config     *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
}

// NewServer creates a new HTTP server around a dispatcher.
func NewServer(st *store.Store, dispatcher *protocol.Dispatcher, logger *zap.Logger, cfg *Config) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{Host: "0.0.0.0", Port: 8000, Version: "dev"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:       e,
		store:      st,
		dispatcher: dispatcher,
		logger:     logger,
		config:     cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)

	mcp := s.echo.Group("/mcp")
	mcp.GET("/tools", s.handleListTools)
	mcp.GET("/tools/:name", s.handleGetTool)
	mcp.POST("/execute", s.handleExecute)

	s.echo.GET("/projects", s.handleListProjects)
	s.echo.GET("/projects/:id", s.handleGetProject)
}

// ExecuteRequest is the body for POST /mcp/execute.
type ExecuteRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "AI Dev Tool Server",
		"health":  "/health",
		"tools":   "/mcp/tools",
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	database := "connected"
	if err := s.store.Ping(); err != nil {
		s.logger.Warn("database ping failed", zap.Error(err))
		database = "disconnected"
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  s.config.Version,
		Database: database,
	})
}

func (s *Server) handleListTools(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"tools": registry.All()})
}

func (s *Server) handleGetTool(c echo.Context) error {
	name := c.Param("name")
	def, ok := registry.Lookup(name)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{
			"detail": fmt.Sprintf("Tool '%s' not found", name),
		})
	}
	return c.JSON(http.StatusOK, def)
}

// handleExecute runs a tool. Outcomes travel in the result envelope,
// so a failed tool call is still HTTP 200; only a malformed request
// is a transport-level error.
func (s *Server) handleExecute(c echo.Context) error {
	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid execute request", zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{
			"detail": "invalid request body",
		})
	}
	if req.Tool == "" {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{
			"detail": "tool field is required",
		})
	}

	result := s.dispatcher.Execute(req.Tool, req.Arguments)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleListProjects(c echo.Context) error {
	projects, err := s.store.ListProjects()
	if err != nil {
		s.logger.Error("listing projects", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list projects")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"projects": projects,
		"total":    len(projects),
	})
}

// ProjectDetail is the body for GET /projects/:id.
type ProjectDetail struct {
	*store.Project
	Phases []*store.Phase `json:"phases"`
}

func (s *Server) handleGetProject(c echo.Context) error {
	id := c.Param("id")
	project, err := s.store.GetProject(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"detail": err.Error()})
		}
		s.logger.Error("loading project", zap.String("project_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load project")
	}

	phases, err := s.store.ListPhases(id)
	if err != nil {
		s.logger.Error("loading phases", zap.String("project_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load phases")
	}
	if phases == nil {
		phases = []*store.Phase{}
	}
	return c.JSON(http.StatusOK, ProjectDetail{Project: project, Phases: phases})
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
