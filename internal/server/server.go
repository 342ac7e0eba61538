package server

import (
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pvemon/pvemon/internal/api/check"
	"github.com/pvemon/pvemon/internal/api/hosts"
	"github.com/pvemon/pvemon/internal/api/user"
	"github.com/pvemon/pvemon/internal/middleware"
	"github.com/pvemon/pvemon/pkg/auth"
	"github.com/pvemon/pvemon/pkg/config"
	"github.com/pvemon/pvemon/pkg/influx"
	"github.com/pvemon/pvemon/pkg/monitor"
)

// VersionInfo contains build version information
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// Server represents the API server
type Server struct {
	echo        *echo.Echo
	cfg         *config.Config
	instanceID  string
	versionInfo *VersionInfo
	logger      *zap.Logger
}

// New creates a new API server instance
func New(
	e *echo.Echo,
	cfg *config.Config,
	engine *monitor.Engine,
	writer *influx.Writer, // nil when InfluxDB is disabled
	instanceID string,
	versionInfo *VersionInfo,
	logger *zap.Logger,
) *Server {
	srv := &Server{
		echo:        e,
		cfg:         cfg,
		instanceID:  instanceID,
		versionInfo: versionInfo,
		logger:      logger,
	}

	// A disabled writer must stay a nil interface value so the check
	// handler can detect it.
	var pusher check.Pusher
	if writer != nil {
		pusher = writer
	}

	checkHandler := check.NewHandler(engine, pusher, cfg.Hosts, logger)
	hostsHandler := hosts.NewHandler(cfg.Hosts)
	userHandler := user.NewHandler()

	// API routes with authentication
	api := e.Group("/api/v1")
	api.Use(middleware.APIKeyMiddleware(cfg.Server.APIKeys))
	// Add version header only to authenticated requests (security: prevents version fingerprinting)
	api.Use(middleware.VersionMiddleware(srv.versionInfo.Version))

	// Register resource routes
	hosts.RegisterRoutes(api.Group("/hosts"), hostsHandler)
	user.RegisterRoutes(api.Group("/user"), userHandler)
	check.RegisterRoutes(api.Group("/check", middleware.RequireRole(auth.Admin)), checkHandler)

	// Version endpoint (requires auth - security: prevents version fingerprinting by unauthenticated users)
	api.GET("/version", srv.handleVersion)

	// Health check (no auth required - for load balancers/probes)
	// Supports ?info=true to return the API instance ID
	// Note: Does NOT expose version information
	e.GET("/health", srv.handleHealth)

	return srv
}

// handleHealth handles the health check endpoint
// Returns 200 OK for normal health checks
// Returns JSON with API info when ?info=true is specified
func (s *Server) handleHealth(c echo.Context) error {
	if c.QueryParam("info") == "true" {
		info := map[string]string{
			"api_id": s.instanceID,
		}
		return c.JSON(200, info)
	}

	// Normal health check - just return 200
	return c.NoContent(200)
}

// handleVersion handles the version endpoint
// Returns detailed version information for client compatibility checks
func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(200, s.versionInfo)
}

// Start starts the API server
func (s *Server) Start() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = strconv.Itoa(s.cfg.Server.Port)
	}
	port = ":" + port
	s.logger.Info("Starting server", zap.String("port", port))
	return s.echo.Start(port)
}
