package server

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cadenza/internal/library"

	"github.com/fsnotify/fsnotify"
)

// rescanDebounce collapses a burst of filesystem events into one scan.
const rescanDebounce = 2 * time.Second

// startFileWatcher initializes fsnotify for recursive music dir
// monitoring. The scanner is the only catalog writer, so the watcher
// never edits entries itself; it only schedules rescans.
func (s *Server) startFileWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	go s.watchFiles()

	for _, dir := range s.config.Music.Directories {
		if err := s.addDirectoryToWatcher(dir); err != nil {
			s.logger.WithError(err).WithField("directory", dir).Warn("Could not watch directory")
		}
	}

	s.logger.WithField("directories", s.config.Music.Directories).Info("File watcher started")
	return nil
}

// addDirectoryToWatcher recursively walks and adds subdirectories to watcher.
func (s *Server) addDirectoryToWatcher(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return s.watcher.Add(path)
		}
		return nil
	})
}

// watchFiles selects on watcher channels and debounces change bursts
// into full rescans.
func (s *Server) watchFiles() {
	timer := time.NewTimer(rescanDebounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if s.isRelevantEvent(event) {
				timer.Reset(rescanDebounce)
			}

		case <-timer.C:
			go s.rescan()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Error("File watcher error")
		}
	}
}

// isRelevantEvent filters noise and tracks newly created directories.
func (s *Server) isRelevantEvent(event fsnotify.Event) bool {
	// Ignore temporary files and hidden files
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			s.watcher.Add(event.Name)
			s.logger.WithField("directory", event.Name).Info("Watching new directory")
			return true
		}
	}

	ext := strings.ToLower(filepath.Ext(event.Name))
	return s.config.IsFormatSupported(ext)
}

// rescan runs a full scan; an already-running scan wins.
func (s *Server) rescan() {
	s.logger.Info("Filesystem change detected, rescanning library")
	if _, err := s.scanner.Scan(s.config.Music.Directories); err != nil {
		if errors.Is(err, library.ErrScanInProgress) {
			s.logger.Debug("Scan already in progress, skipping rescan")
			return
		}
		s.logger.WithError(err).Error("Rescan failed")
	}
}

// stopFileWatcher closes the watcher (idempotent).
func (s *Server) stopFileWatcher() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}
