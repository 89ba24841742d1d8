package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cadenza/internal/events"
	"cadenza/internal/metadata"
	"cadenza/pkg/models"

	"github.com/sirupsen/logrus"
)

// ErrScanInProgress is returned when Scan is called while another scan is
// still running. Concurrent scan requests are rejected, not queued.
var ErrScanInProgress = errors.New("library scan already in progress")

// ErrNoReadableDirectory is returned when none of the requested
// directories could be read. Partial failures are skipped, not fatal.
var ErrNoReadableDirectory = errors.New("no readable music directory")

// defaultReadTimeout bounds a single metadata read so one stalled file
// cannot stall the whole scan. Files that exceed it are skipped.
const defaultReadTimeout = 10 * time.Second

// Scanner walks the configured directories and produces new catalog
// generations. It is the only writer of the catalog: each completed scan
// replaces the whole snapshot and persists it to the cache store.
type Scanner struct {
	catalog     *Catalog
	cache       *CacheStore
	reader      metadata.Reader
	formats     []string
	bus         *events.Bus
	logger      *logrus.Logger
	readTimeout time.Duration
	scanning    atomic.Bool
}

// NewScanner creates a scanner over the given catalog and cache store.
func NewScanner(catalog *Catalog, cache *CacheStore, reader metadata.Reader, formats []string, bus *events.Bus, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		catalog:     catalog,
		cache:       cache,
		reader:      reader,
		formats:     formats,
		bus:         bus,
		logger:      logger,
		readTimeout: defaultReadTimeout,
	}
}

// Scanning reports whether a scan is currently running.
func (s *Scanner) Scanning() bool {
	return s.scanning.Load()
}

// Scan walks the directories and replaces the catalog with a fresh
// generation. Unchanged files (same path, size and mtime as the current
// catalog entry) are reused without re-reading metadata; files that fail
// to read are skipped; files that vanished since the last scan are
// dropped. Returns the number of tracks in the new catalog.
func (s *Scanner) Scan(directories []string) (int, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		return 0, ErrScanInProgress
	}
	defer s.scanning.Store(false)

	s.bus.Publish(events.LibraryScan{Status: events.ScanStarted})

	s.logger.WithField("directories", directories).Info("Starting library scan")

	paths, readable := s.enumerate(directories)
	if readable == 0 {
		s.bus.Publish(events.LibraryScan{Status: events.ScanFailed})
		return 0, fmt.Errorf("%w: %v", ErrNoReadableDirectory, directories)
	}

	previous := s.catalog.All()
	previousByPath := make(map[string]models.Track, len(previous))
	for _, t := range previous {
		previousByPath[t.FilePath] = t
	}

	var (
		mu     sync.Mutex
		tracks []models.Track
		reused int64
	)

	jobs := make(chan string, 100)
	var wg sync.WaitGroup

	numWorkers := runtime.NumCPU()
	for i := 0; i < numWorkers; i++ {
		go func() {
			for path := range jobs {
				track, err := s.readWithTimeout(path)
				if err != nil {
					s.logger.WithError(err).WithField("file_path", path).Warn("Skipping unreadable file")
					wg.Done()
					continue
				}
				mu.Lock()
				tracks = append(tracks, track)
				mu.Unlock()
				wg.Done()
			}
		}()
	}

	for _, path := range paths {
		// Reuse the cached entry verbatim when the file is unchanged.
		if prev, ok := previousByPath[path]; ok {
			if info, err := os.Stat(path); err == nil &&
				info.Size() == prev.FileSize && info.ModTime().UTC().Equal(prev.ModTime) {
				mu.Lock()
				tracks = append(tracks, prev)
				mu.Unlock()
				atomic.AddInt64(&reused, 1)
				continue
			}
		}
		wg.Add(1)
		jobs <- path
	}

	close(jobs)
	wg.Wait()

	changed := catalogChanged(previousByPath, tracks)
	s.catalog.Replace(tracks)

	if err := s.cache.Save(s.catalog.All(), directories); err != nil {
		s.logger.WithError(err).Warn("Failed to persist library cache")
	}

	count := s.catalog.Count()
	s.logger.WithFields(logrus.Fields{
		"tracks":  count,
		"reused":  reused,
		"changed": changed,
	}).Info("Library scan completed")

	s.bus.Publish(events.LibraryScan{Status: events.ScanCompleted, Found: count})
	if changed {
		s.bus.Publish(events.LibraryUpdated{TotalTracks: count})
	}

	return count, nil
}

// enumerate walks each directory and collects supported audio files.
// Unreadable subtrees are logged and skipped; readable counts how many
// of the requested directories could be opened at all.
func (s *Scanner) enumerate(directories []string) (paths []string, readable int) {
	for _, dir := range directories {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			s.logger.WithError(err).WithField("directory", dir).Warn("Skipping unreadable directory")
			continue
		}
		readable++

		walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				s.logger.WithError(err).WithField("path", path).Warn("Skipping unreadable path")
				return nil
			}
			if !info.IsDir() && s.isSupported(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if walkErr != nil {
			s.logger.WithError(walkErr).WithField("directory", dir).Warn("Directory walk aborted")
		}
	}
	return paths, readable
}

// readWithTimeout runs one metadata read, bounding it so a stalled
// reader cannot hang the scan (skip-on-timeout).
func (s *Scanner) readWithTimeout(path string) (models.Track, error) {
	type result struct {
		track models.Track
		err   error
	}
	done := make(chan result, 1)

	go func() {
		track, err := s.reader.Read(path)
		done <- result{track, err}
	}()

	select {
	case r := <-done:
		return r.track, r.err
	case <-time.After(s.readTimeout):
		return models.Track{}, fmt.Errorf("metadata read timed out after %s", s.readTimeout)
	}
}

func (s *Scanner) isSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range s.formats {
		if ext == format {
			return true
		}
	}
	return false
}

// catalogChanged reports whether the new track set differs from the
// previous one by identity or attributes.
func catalogChanged(previousByPath map[string]models.Track, tracks []models.Track) bool {
	if len(previousByPath) != len(tracks) {
		return true
	}
	for _, t := range tracks {
		prev, ok := previousByPath[t.FilePath]
		if !ok || prev != t {
			return true
		}
	}
	return false
}
