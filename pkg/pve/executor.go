package pve

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Command templates for the docker checker. Parameters are substituted
// explicitly at the call site; the command itself runs inside the target
// container through pct exec on the host.
const (
	CommandListImages    = "docker ps --format {{.Image}}"
	CommandInspect       = "docker inspect %s"
	CommandBuildxInspect = `docker buildx imagetools inspect %s --format "{{json .}}"`
)

// InspectCommand returns the local inspection command for an image.
func InspectCommand(image string) string {
	return fmt.Sprintf(CommandInspect, image)
}

// BuildxInspectCommand returns the remote inspection command for an image.
func BuildxInspectCommand(image string) string {
	return fmt.Sprintf(CommandBuildxInspect, image)
}

// Executor runs a command inside a named host container and returns its
// captured stdout lines. No parsing logic lives here.
type Executor interface {
	Run(ctx context.Context, containerID, command string) ([]string, error)
}

// PCTExecutor executes commands through pct exec on a Proxmox VE host.
type PCTExecutor struct {
	logger *zap.Logger
}

// NewPCTExecutor creates an executor using the host's pct binary.
func NewPCTExecutor(logger *zap.Logger) *PCTExecutor {
	return &PCTExecutor{logger: logger}
}

// Run executes command inside the container via
// pct exec <id> -- bash -c '<command>'. Captured stdout is returned as
// trimmed lines with blanks dropped, together with any execution error;
// callers decide whether partial output is still usable.
func (e *PCTExecutor) Run(ctx context.Context, containerID, command string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "pct", "exec", containerID, "--", "bash", "-c", command)

	output, err := cmd.Output()
	lines := splitLines(output)

	if err != nil {
		e.logger.Error("Command execution failed",
			zap.String("container_id", containerID),
			zap.String("command", command),
			zap.Error(err))
		return lines, fmt.Errorf("pct exec failed on container %s: %w", containerID, err)
	}

	return lines, nil
}

// splitLines trims every stdout line and drops empty ones.
func splitLines(output []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
