package main

import (
	"flag"
	"log"
	"runtime"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	internalMiddleware "github.com/pvemon/pvemon/internal/middleware"
	"github.com/pvemon/pvemon/internal/server"
	"github.com/pvemon/pvemon/pkg/cache"
	"github.com/pvemon/pvemon/pkg/config"
	"github.com/pvemon/pvemon/pkg/image"
	"github.com/pvemon/pvemon/pkg/influx"
	"github.com/pvemon/pvemon/pkg/logging"
	"github.com/pvemon/pvemon/pkg/monitor"
	"github.com/pvemon/pvemon/pkg/pve"
	"github.com/pvemon/pvemon/pkg/registry"
	pkgServer "github.com/pvemon/pvemon/pkg/server"
)

// Version information set via ldflags at build time
var (
	version   = "dev"
	buildTime = "unknown"
)

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the struct
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Parse flags
	var configPath string
	var logLevel string

	flag.StringVar(&configPath, "config", "", "Path to configuration file (defaults and environment apply when empty)")
	flag.StringVar(&logLevel, "log-level", "", "Override the configured log level")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Initialize structured logging
	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	logger.Info("Structured logging initialized",
		zap.String("level", cfg.LogLevel),
		zap.String("format", cfg.LogFormat))

	// Get or create API instance ID
	instanceID := pkgServer.GetOrCreateInstanceID(cfg.Server.InstanceIDPath, logger)
	logger.Info("API instance ID initialized", zap.String("id", instanceID))

	versionInfo := &server.VersionInfo{
		Version:   version,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}

	// Build the update check engine
	executor := pve.NewPCTExecutor(logger)
	store := cache.NewStore(cfg.Cache.Path, cfg.Cache.TTL(), logger)
	engine := monitor.NewEngine(executor, store, func() image.TagSearcher {
		return registry.NewHubSearcher(logger)
	}, cfg, logger)

	var writer *influx.Writer
	if cfg.Influx.Enabled() {
		writer = influx.NewWriter(cfg.Influx, logger)
		logger.Info("InfluxDB push enabled", zap.String("url", cfg.Influx.URL))
	} else {
		logger.Info("InfluxDB push disabled")
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Add global middleware (including API ID header)
	e.Use(internalMiddleware.RequestLogger(logger))
	e.Use(internalMiddleware.RecoverMiddleware())
	e.Use(internalMiddleware.CORSMiddleware())
	e.Use(internalMiddleware.APIIDMiddleware(instanceID))

	// Initialize and start server
	srv := server.New(e, cfg, engine, writer, instanceID, versionInfo, logger)
	logger.Info("Server initialized", zap.Int("hosts", len(cfg.Hosts)))

	if err := srv.Start(); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
