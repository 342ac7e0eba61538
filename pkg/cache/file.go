package cache

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/pvemon/pvemon/pkg/image"
)

// load reads the cache file into the store. A missing file is fine; corrupt
// content is an error and the store stays empty.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var loaded map[string]map[image.ManifestKind]*Entry
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to unmarshal cache file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Expired entries are kept; Get filters them.
	for img, kinds := range loaded {
		if kinds == nil {
			continue
		}
		s.data[img] = kinds
	}

	return nil
}

// Flush writes the whole store to the cache file. It is called once per
// engine run, on every exit path. Memory-only stores do nothing.
func (s *Store) Flush() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	data, err := json.MarshalIndent(s.data, "", "  ")
	images := len(s.data)
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	// Write to temp file first, then rename (atomic operation)
	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		return err
	}

	s.logger.Debug("Manifest cache saved to disk",
		zap.String("file", s.path),
		zap.Int("images", images))

	return nil
}
