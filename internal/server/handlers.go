package server

import (
	"errors"
	"net/http"

	"cadenza/internal/library"
)

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"tracks": s.catalog.Count(),
	})
}

// handleGetTracks lists the catalog, optionally filtered by exact artist
// or album.
func (s *Server) handleGetTracks(w http.ResponseWriter, r *http.Request) {
	if artist := r.URL.Query().Get("artist"); artist != "" {
		s.writeJSON(w, http.StatusOK, s.catalog.ByArtist(artist))
		return
	}
	if album := r.URL.Query().Get("album"); album != "" {
		s.writeJSON(w, http.StatusOK, s.catalog.ByAlbum(album))
		return
	}
	s.writeJSON(w, http.StatusOK, s.catalog.All())
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	track, ok := s.catalog.ByID(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "track not found")
		return
	}
	s.writeJSON(w, http.StatusOK, track)
}

func (s *Server) handleSearchTracks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	s.writeJSON(w, http.StatusOK, s.catalog.Search(query))
}

func (s *Server) handleGetArtists(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalog.Artists())
}

func (s *Server) handleGetAlbums(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalog.Albums())
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_tracks":  s.catalog.Count(),
		"total_artists": len(s.catalog.Artists()),
		"total_albums":  len(s.catalog.Albums()),
		"scanning":      s.scanner.Scanning(),
	})
}

// handleScanLibrary triggers a scan. Directories default to the
// configured library directories when the body omits them.
func (s *Server) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Directories []string `json:"directories"`
	}
	if r.ContentLength > 0 {
		if !s.decodeBody(w, r, &req) {
			return
		}
	}
	directories := req.Directories
	if len(directories) == 0 {
		directories = s.config.Music.Directories
	}

	count, err := s.scanner.Scan(directories)
	if err != nil {
		if errors.Is(err, library.ErrScanInProgress) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.WithError(err).Error("Library scan failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, count)
}
