package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cadenza/internal/config"
	"cadenza/internal/events"
	"cadenza/internal/library"
	"cadenza/internal/playback"
	"cadenza/internal/playlist"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Server wires the catalog, scanner, transport, playlists and event bus
// behind the HTTP/WebSocket surface.
type Server struct {
	config    *config.Config
	catalog   *library.Catalog
	scanner   *library.Scanner
	transport *playback.Transport
	playlists *playlist.Store
	bus       *events.Bus
	watcher   *fsnotify.Watcher
	logger    *logrus.Logger
	mux       *http.ServeMux
	upgrader  websocket.Upgrader
	httpSrv   *http.Server
}

// New creates a server over the given components.
func New(cfg *config.Config, catalog *library.Catalog, scanner *library.Scanner, transport *playback.Transport, playlists *playlist.Store, bus *events.Bus, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	s := &Server{
		config:    cfg,
		catalog:   catalog,
		scanner:   scanner,
		transport: transport,
		playlists: playlists,
		bus:       bus,
		logger:    logger,
		mux:       http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local backend; remote UI clients connect from any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealthCheck)

	s.mux.HandleFunc("GET /api/library/tracks", s.handleGetTracks)
	s.mux.HandleFunc("GET /api/library/tracks/{id}", s.handleGetTrack)
	s.mux.HandleFunc("GET /api/library/search", s.handleSearchTracks)
	s.mux.HandleFunc("GET /api/library/artists", s.handleGetArtists)
	s.mux.HandleFunc("GET /api/library/albums", s.handleGetAlbums)
	s.mux.HandleFunc("GET /api/library/stats", s.handleGetStats)
	s.mux.HandleFunc("POST /api/library/scan", s.handleScanLibrary)

	s.mux.HandleFunc("GET /api/playlists", s.handleGetPlaylists)
	s.mux.HandleFunc("POST /api/playlists", s.handleCreatePlaylist)
	s.mux.HandleFunc("GET /api/playlists/{id}", s.handleGetPlaylist)
	s.mux.HandleFunc("PUT /api/playlists/{id}", s.handleUpdatePlaylist)
	s.mux.HandleFunc("DELETE /api/playlists/{id}", s.handleDeletePlaylist)
	s.mux.HandleFunc("POST /api/playlists/{id}/tracks", s.handleAddPlaylistTrack)
	s.mux.HandleFunc("DELETE /api/playlists/{id}/tracks/{position}", s.handleRemovePlaylistTrack)
	s.mux.HandleFunc("PUT /api/playlists/{id}/tracks/{position}", s.handleMovePlaylistTrack)
	s.mux.HandleFunc("POST /api/playlists/cleanup", s.handleCleanupPlaylists)

	s.mux.HandleFunc("GET /api/player/state", s.handleGetPlayerState)
	s.mux.HandleFunc("POST /api/player/play", s.handlePlay)
	s.mux.HandleFunc("POST /api/player/pause", s.handlePause)
	s.mux.HandleFunc("POST /api/player/resume", s.handleResume)
	s.mux.HandleFunc("POST /api/player/stop", s.handleStop)
	s.mux.HandleFunc("POST /api/player/next", s.handleNext)
	s.mux.HandleFunc("POST /api/player/previous", s.handlePrevious)
	s.mux.HandleFunc("POST /api/player/volume", s.handleSetVolume)

	s.mux.HandleFunc("POST /api/queue", s.handleSetQueue)
	s.mux.HandleFunc("POST /api/queue/add", s.handleQueueAdd)
	s.mux.HandleFunc("POST /api/queue/remove", s.handleQueueRemove)
	s.mux.HandleFunc("POST /api/queue/clear", s.handleQueueClear)
	s.mux.HandleFunc("POST /api/queue/repeat", s.handleQueueRepeat)
	s.mux.HandleFunc("POST /api/queue/shuffle", s.handleQueueShuffle)

	s.mux.HandleFunc("GET /api/events/ws", s.handleEventsWS)
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	if s.config.Music.WatchForChanges {
		if err := s.startFileWatcher(); err != nil {
			s.logger.WithError(err).Warn("Could not start file watcher")
		}
	}

	s.httpSrv = &http.Server{
		Addr:        s.config.GetAddress(),
		Handler:     s.mux,
		ReadTimeout: time.Duration(s.config.Server.ReadTimeout) * time.Second,
	}

	s.logger.WithFields(logrus.Fields{
		"address": s.config.GetAddress(),
		"tracks":  s.catalog.Count(),
	}).Info("Cadenza server starting")

	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and the file watcher.
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("Shutting down server")

	s.stopFileWatcher()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.WithError(err).Warn("HTTP shutdown failed")
		}
	}
}

// Handler exposes the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// apiResponse is the JSON envelope shared by all endpoints.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data}); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message}); err != nil {
		s.logger.WithError(err).Error("Failed to encode error response")
	}
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
