package server

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GetOrCreateInstanceID retrieves or creates a unique instance ID for this
// server. The ID is persisted to a file so it survives restarts; clients
// use it to verify they are talking to the same instance. With an empty
// path, or when the file cannot be written, the ID is ephemeral.
func GetOrCreateInstanceID(path string, logger *zap.Logger) string {
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				logger.Info("Loaded existing instance ID", zap.String("id", id))
				return id
			}
		}
	}

	instanceID := uuid.New().String()
	logger.Info("Generated new instance ID", zap.String("id", instanceID))

	if path == "" {
		return instanceID
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Warn("Failed to create instance ID directory, ID will not persist",
			zap.String("path", path),
			zap.Error(err))
		return instanceID
	}
	if err := os.WriteFile(path, []byte(instanceID+"\n"), 0600); err != nil {
		logger.Warn("Failed to save instance ID, ID will not persist",
			zap.String("path", path),
			zap.Error(err))
		return instanceID
	}

	logger.Info("Saved instance ID", zap.String("path", path))
	return instanceID
}
