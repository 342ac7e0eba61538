package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pvemon/pvemon/pkg/config"
	"github.com/pvemon/pvemon/pkg/image"
	"github.com/pvemon/pvemon/pkg/pve"
)

// ErrRunInProgress is returned by TryRun while another run holds the engine.
var ErrRunInProgress = errors.New("engine run already in progress")

// ManifestStore is the run-scoped cache: the resolver reads and writes it,
// the run flushes it once on release.
type ManifestStore interface {
	image.ManifestCache
	Flush() error
}

// SearcherFactory builds the tag searcher for one run. A run never shares a
// searcher with another run, so memoized hub responses stay run-scoped.
type SearcherFactory func() image.TagSearcher

// Engine drives one synchronous update-detection pass across the configured
// hosts. At most one run may execute at a time against a given cache file.
type Engine struct {
	executor  pve.Executor
	store     ManifestStore
	newSearch SearcherFactory
	hosts     []config.HostConfig
	checker   config.CheckerConfig
	blacklist []string
	logger    *zap.Logger

	runMu sync.Mutex
}

// NewEngine creates an engine over the configured hosts.
func NewEngine(executor pve.Executor, store ManifestStore, newSearch SearcherFactory, cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		executor:  executor,
		store:     store,
		newSearch: newSearch,
		hosts:     cfg.Hosts,
		checker:   cfg.Checker,
		blacklist: cfg.Checker.BlacklistList(),
		logger:    logger,
	}
}

// Run executes one detection pass over all configured hosts and returns the
// report. No failure aborts the run; the worst case for an image is a
// sentinel-filled entry. The cache is flushed exactly once on every exit
// path, panics included.
func (e *Engine) Run(ctx context.Context) *Report {
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}

	defer e.flushStore()

	resolver := e.newResolver()

	e.logger.Info("Checking updates",
		zap.String("run_id", report.RunID),
		zap.Int("hosts", len(e.hosts)))

	for _, host := range e.hosts {
		report.Containers = append(report.Containers, e.checkHost(ctx, resolver, host))
	}

	report.FinishedAt = time.Now()
	e.logger.Info("Update check finished",
		zap.String("run_id", report.RunID),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))

	return report
}

// TryRun executes Run unless another run is active, in which case it
// returns ErrRunInProgress.
func (e *Engine) TryRun(ctx context.Context) (*Report, error) {
	if !e.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer e.runMu.Unlock()

	return e.Run(ctx), nil
}

// ResolveImage resolves a single image on one host, sharing the engine's
// cache and run guard.
func (e *Engine) ResolveImage(ctx context.Context, containerID, rawImage string) (ImageUpdateResult, error) {
	if !e.runMu.TryLock() {
		return ImageUpdateResult{}, ErrRunInProgress
	}
	defer e.runMu.Unlock()
	defer e.flushStore()

	resolver := e.newResolver()

	return newImageUpdateResult(resolver.Resolve(ctx, containerID, rawImage)), nil
}

// newResolver binds a fresh per-run tag searcher to the shared cache.
func (e *Engine) newResolver() *image.Resolver {
	return image.NewResolver(e.executor, e.store, e.newSearch(), image.ResolverConfig{
		Architecture: e.checker.Architecture,
		OS:           e.checker.OS,
		RegistryHubs: e.checker.RegistryHubList(),
	}, e.logger)
}

func (e *Engine) flushStore() {
	if err := e.store.Flush(); err != nil {
		e.logger.Warn("Failed to flush manifest cache", zap.Error(err))
	}
}

// checkHost builds the report entry for one host container.
func (e *Engine) checkHost(ctx context.Context, resolver *image.Resolver, host config.HostConfig) ContainerReport {
	report := ContainerReport{
		ContainerID:   host.ID,
		ContainerName: host.Name,
		HostType:      host.Type,
	}

	if !host.HasChecker(config.CheckerDocker) {
		e.logger.Debug("No checkers attached, reporting metadata only",
			zap.String("container_id", host.ID))
		return report
	}

	e.logger.Info("Checking host container",
		zap.String("container_id", host.ID),
		zap.String("container_name", host.Name))

	// Execution failures are logged by the executor; whatever was captured
	// is still used.
	images, _ := e.executor.Run(ctx, host.ID, pve.CommandListImages)

	report.Results = make(map[string]ImageUpdateResult, len(images))
	for _, img := range images {
		if e.blacklisted(img) {
			e.logger.Info("Skipping blacklisted image",
				zap.String("container_id", host.ID),
				zap.String("image", img))
			continue
		}
		if _, done := report.Results[img]; done {
			// Several containers can run the same image; one result is
			// enough.
			continue
		}

		e.logger.Info("Checking image",
			zap.String("container_id", host.ID),
			zap.String("image", img))

		report.Images = append(report.Images, img)
		report.Results[img] = newImageUpdateResult(resolver.Resolve(ctx, host.ID, img))
	}

	return report
}

func (e *Engine) blacklisted(img string) bool {
	for _, entry := range e.blacklist {
		if strings.Contains(img, entry) {
			return true
		}
	}
	return false
}
