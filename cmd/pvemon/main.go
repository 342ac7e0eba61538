package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/pvemon/pvemon/pkg/cache"
	"github.com/pvemon/pvemon/pkg/config"
	"github.com/pvemon/pvemon/pkg/image"
	"github.com/pvemon/pvemon/pkg/influx"
	"github.com/pvemon/pvemon/pkg/logging"
	"github.com/pvemon/pvemon/pkg/monitor"
	"github.com/pvemon/pvemon/pkg/pve"
	"github.com/pvemon/pvemon/pkg/registry"
)

func main() {
	// Parse flags
	var configPath string
	var logLevel string
	var push bool
	var dryRun bool

	flag.StringVar(&configPath, "config", "", "Path to configuration file (defaults and environment apply when empty)")
	flag.StringVar(&logLevel, "log-level", "", "Override the configured log level")
	flag.BoolVar(&push, "push", true, "Push the report to InfluxDB when configured")
	flag.BoolVar(&dryRun, "dry-run", false, "Print the line protocol records instead of pushing")
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

	// Build the update check engine
	executor := pve.NewPCTExecutor(logger)
	store := cache.NewStore(cfg.Cache.Path, cfg.Cache.TTL(), logger)
	engine := monitor.NewEngine(executor, store, func() image.TagSearcher {
		return registry.NewHubSearcher(logger)
	}, cfg, logger)

	ctx := context.Background()
	report := engine.Run(ctx)

	updates := 0
	for _, container := range report.Containers {
		for _, result := range container.Results {
			if result.UpdateAvailable {
				updates++
			}
		}
	}
	logger.Info("Update check finished",
		zap.String("run_id", report.RunID),
		zap.Int("containers", len(report.Containers)),
		zap.Int("updates", updates))

	writer := influx.NewWriter(cfg.Influx, logger)

	if dryRun {
		for _, line := range writer.BuildLines(report) {
			fmt.Println(line)
		}
		return
	}

	if !push {
		return
	}
	if !cfg.Influx.Enabled() {
		logger.Info("InfluxDB is not configured, skipping push")
		return
	}

	// The check itself never aborts on a push failure, but cron jobs need
	// the non-zero exit to surface it.
	if err := writer.PushReport(ctx, report); err != nil {
		logger.Error("Failed to push update report", zap.Error(err))
		os.Exit(1)
	}
}
