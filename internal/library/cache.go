package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cadenza/pkg/models"

	"github.com/sirupsen/logrus"
)

// cacheFormatVersion is bumped whenever the snapshot layout changes.
// Snapshots with any other version are discarded wholesale.
const cacheFormatVersion = 1

// cacheFile is the on-disk snapshot layout.
type cacheFile struct {
	Version     int            `json:"version"`
	Directories []string       `json:"directories"`
	CachedAt    time.Time      `json:"cached_at"`
	Tracks      []models.Track `json:"tracks"`
}

// CacheStore persists the track catalog to a single JSON snapshot file.
// Load never fails the caller: a missing, corrupt or version-mismatched
// snapshot is simply reported as absent. Freshness against disk is not
// re-validated here; the next scan reuses entries only when size and
// mtime still match.
type CacheStore struct {
	path   string
	logger *logrus.Logger
}

// NewCacheStore creates a cache store writing to the given path.
func NewCacheStore(path string, logger *logrus.Logger) *CacheStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &CacheStore{path: path, logger: logger}
}

// Load reads the snapshot. ok is false when no usable snapshot exists.
func (s *CacheStore) Load() (tracks []models.Track, directories []string, ok bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("cache_path", s.path).Warn("Failed to read library cache")
		}
		return nil, nil, false
	}

	var cache cacheFile
	if err := json.Unmarshal(data, &cache); err != nil {
		s.logger.WithError(err).WithField("cache_path", s.path).Warn("Library cache is corrupt, ignoring")
		return nil, nil, false
	}

	if cache.Version != cacheFormatVersion {
		s.logger.WithFields(logrus.Fields{
			"cache_path": s.path,
			"version":    cache.Version,
			"expected":   cacheFormatVersion,
		}).Warn("Library cache has unrecognized format version, ignoring")
		return nil, nil, false
	}

	s.logger.WithFields(logrus.Fields{
		"cache_path": s.path,
		"tracks":     len(cache.Tracks),
		"cached_at":  cache.CachedAt,
	}).Info("Loaded library cache")

	return cache.Tracks, cache.Directories, true
}

// Save writes a new snapshot. The write is atomic from the caller's point
// of view: the snapshot is written to a temp file in the same directory
// and renamed over the old one, so a failed save leaves the previous
// snapshot intact.
func (s *CacheStore) Save(tracks []models.Track, directories []string) error {
	cache := cacheFile{
		Version:     cacheFormatVersion,
		Directories: directories,
		CachedAt:    time.Now().UTC(),
		Tracks:      tracks,
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode library cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".library_cache-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace library cache: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"cache_path": s.path,
		"tracks":     len(tracks),
	}).Info("Saved library cache")

	return nil
}
