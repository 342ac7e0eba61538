package cache

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pvemon/pvemon/pkg/image"
)

// Store is the manifest cache: a TTL-bounded mapping from (image reference,
// manifest kind) to a manifest record. It is loaded from disk once at
// construction, mutated in memory, and written back by Flush. With an empty
// path the store is memory-only and Flush is a no-op.
//
// Expired entries count as misses but stay in the store until overwritten
// (lazy invalidation).
type Store struct {
	path   string
	ttl    time.Duration
	logger *zap.Logger

	mu   sync.RWMutex
	data map[string]map[image.ManifestKind]*Entry
	now  func() time.Time
}

// NewStore creates a manifest cache. A non-empty path enables persistence;
// an unreadable or corrupt file logs a warning and starts the store empty.
func NewStore(path string, ttl time.Duration, logger *zap.Logger) *Store {
	s := &Store{
		path:   path,
		ttl:    ttl,
		logger: logger,
		data:   make(map[string]map[image.ManifestKind]*Entry),
		now:    time.Now,
	}

	if path == "" {
		logger.Info("Initialized in-memory manifest cache")
		return s
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Warn("Failed to create cache directory, falling back to memory-only cache",
			zap.String("path", path),
			zap.Error(err))
		s.path = ""
		return s
	}

	if err := s.load(); err != nil {
		logger.Warn("Failed to load manifest cache, starting with empty cache",
			zap.String("file", path),
			zap.Error(err))
	} else {
		logger.Info("Loaded manifest cache",
			zap.String("file", path),
			zap.Int("images", len(s.data)))
	}

	return s
}

// Get returns the cached manifest for (img, kind). A missing entry or one
// older than the TTL is a miss; expired entries are not deleted.
func (s *Store) Get(img string, kind image.ManifestKind) (image.ManifestRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[img][kind]
	if !exists || entry == nil {
		return image.ManifestRecord{}, false
	}
	if s.now().After(entry.UpdatedDate.Add(s.ttl)) {
		return image.ManifestRecord{}, false
	}
	return entry.Manifest, true
}

// Put stores the manifest for (img, kind) with a fresh timestamp.
func (s *Store) Put(img string, kind image.ManifestKind, m image.ManifestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds, exists := s.data[img]
	if !exists {
		kinds = make(map[image.ManifestKind]*Entry)
		s.data[img] = kinds
	}
	kinds[kind] = &Entry{
		Manifest:    m,
		UpdatedDate: s.now(),
	}
}
