package server

import (
	"net/http"
	"strconv"
)

func (s *Server) handleGetPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.playlists.All()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list playlists")
		s.writeError(w, http.StatusInternalServerError, "failed to list playlists")
		return
	}
	s.writeJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "playlist name is required")
		return
	}

	playlist, err := s.playlists.Create(req.Name, req.Description)
	if err != nil {
		s.logger.WithError(err).Error("Failed to create playlist")
		s.writeError(w, http.StatusInternalServerError, "failed to create playlist")
		return
	}
	s.writeJSON(w, http.StatusCreated, playlist)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, found, err := s.playlists.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load playlist")
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	s.writeJSON(w, http.StatusOK, playlist)
}

func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	updated, err := s.playlists.Update(r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to update playlist")
		return
	}
	if !updated {
		s.writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	s.writeJSON(w, http.StatusOK, "ok")
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.playlists.Delete(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to delete playlist")
		return
	}
	if !deleted {
		s.writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	s.writeJSON(w, http.StatusOK, "ok")
}

func (s *Server) handleAddPlaylistTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID string `json:"track_id"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	if _, ok := s.catalog.ByID(req.TrackID); !ok {
		s.writeError(w, http.StatusNotFound, "track not found")
		return
	}

	if err := s.playlists.AddTrack(r.PathValue("id"), req.TrackID); err != nil {
		s.logger.WithError(err).Error("Failed to add track to playlist")
		s.writeError(w, http.StatusInternalServerError, "failed to add track")
		return
	}
	s.writeJSON(w, http.StatusOK, "ok")
}

func (s *Server) handleRemovePlaylistTrack(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(r.PathValue("position"))
	if err != nil || position < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid position")
		return
	}

	removed, err := s.playlists.RemoveTrack(r.PathValue("id"), position)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to remove track")
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "no track at position")
		return
	}
	s.writeJSON(w, http.StatusOK, "ok")
}

// handleMovePlaylistTrack moves the entry at the path position to the
// position given in the body, shifting the entries in between.
func (s *Server) handleMovePlaylistTrack(w http.ResponseWriter, r *http.Request) {
	from, err := strconv.Atoi(r.PathValue("position"))
	if err != nil || from < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid position")
		return
	}

	var req struct {
		To int `json:"to"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	moved, err := s.playlists.MoveTrack(r.PathValue("id"), from, req.To)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to move track")
		return
	}
	if !moved {
		s.writeError(w, http.StatusBadRequest, "position out of range")
		return
	}
	s.writeJSON(w, http.StatusOK, "ok")
}

// handleCleanupPlaylists drops playlist entries whose tracks left the
// library.
func (s *Server) handleCleanupPlaylists(w http.ResponseWriter, r *http.Request) {
	removed, err := s.playlists.CleanupMissing(s.catalog.Contains)
	if err != nil {
		s.logger.WithError(err).Error("Playlist cleanup failed")
		s.writeError(w, http.StatusInternalServerError, "playlist cleanup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, removed)
}
