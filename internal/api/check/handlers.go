package check

import (
	"context"
	"errors"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pvemon/pvemon/internal/api/common"
	"github.com/pvemon/pvemon/pkg/config"
	"github.com/pvemon/pvemon/pkg/monitor"
	"github.com/pvemon/pvemon/pkg/response"
)

// Runner triggers engine work while holding the engine's run guard.
type Runner interface {
	TryRun(ctx context.Context) (*monitor.Report, error)
	ResolveImage(ctx context.Context, containerID, rawImage string) (monitor.ImageUpdateResult, error)
}

// Pusher forwards a report to the telemetry sink.
type Pusher interface {
	PushReport(ctx context.Context, report *monitor.Report) error
}

// Handler handles update check HTTP requests
type Handler struct {
	runner Runner
	pusher Pusher // nil when InfluxDB is not configured
	hosts  []config.HostConfig
	logger *zap.Logger
}

// NewHandler creates a new check handler
func NewHandler(runner Runner, pusher Pusher, hosts []config.HostConfig, logger *zap.Logger) *Handler {
	return &Handler{
		runner: runner,
		pusher: pusher,
		hosts:  hosts,
		logger: logger,
	}
}

// RunCheck handles POST /check
// Triggers one engine run across all configured hosts. With ?push=true the
// resulting records are forwarded to InfluxDB.
func (h *Handler) RunCheck(c echo.Context) error {
	push := c.QueryParam("push") == "true"
	if push && h.pusher == nil {
		return response.BadRequest(c, "InfluxDB is not configured")
	}

	report, err := h.runner.TryRun(c.Request().Context())
	if err != nil {
		if errors.Is(err, monitor.ErrRunInProgress) {
			return response.Conflict(c, "An update check is already running")
		}
		return response.InternalServerError(c, err.Error())
	}

	resp := common.CheckRunResponse{Report: report}
	if push {
		if err := h.pusher.PushReport(c.Request().Context(), report); err != nil {
			h.logger.Error("Failed to push update report", zap.Error(err))
			resp.PushError = err.Error()
		} else {
			resp.Pushed = true
		}
	}

	return response.OK(c, "Update check finished", resp)
}

// CheckImage handles POST /check/image
// Resolves a single image on one configured host without running the full
// inventory. Blacklist entries do not apply to targeted checks.
func (h *Handler) CheckImage(c echo.Context) error {
	var req common.CheckImageRequest

	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, err.Error())
	}

	if !h.knownHost(req.ContainerID) {
		return response.NotFound(c, "Host not configured: "+req.ContainerID)
	}
	if _, err := name.ParseReference(req.Image); err != nil {
		return response.BadRequest(c, "Invalid image reference: "+err.Error())
	}

	result, err := h.runner.ResolveImage(c.Request().Context(), req.ContainerID, req.Image)
	if err != nil {
		if errors.Is(err, monitor.ErrRunInProgress) {
			return response.Conflict(c, "An update check is already running")
		}
		return response.InternalServerError(c, err.Error())
	}

	return response.OK(c, "Image checked", common.ImageCheckResponse{
		ContainerID: req.ContainerID,
		Image:       req.Image,
		Result:      result,
	})
}

func (h *Handler) knownHost(id string) bool {
	for _, host := range h.hosts {
		if host.ID == id {
			return true
		}
	}
	return false
}
