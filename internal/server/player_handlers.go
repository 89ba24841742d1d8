package server

import (
	"net/http"

	"cadenza/internal/playback"
	"cadenza/pkg/models"
)

func (s *Server) handleGetPlayerState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.transport.Status())
}

// handlePlay starts playback of a single catalog track.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID string `json:"track_id"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	track, ok := s.catalog.ByID(req.TrackID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "track not found")
		return
	}

	if err := s.transport.Play(track); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, "playback started")
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transport.Pause()
	s.writeJSON(w, http.StatusOK, "ok")
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.transport.Resume()
	s.writeJSON(w, http.StatusOK, "ok")
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.transport.Stop()
	s.writeJSON(w, http.StatusOK, "ok")
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.transport.Advance()
	s.writeJSON(w, http.StatusOK, s.transport.Status())
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.transport.Retreat()
	s.writeJSON(w, http.StatusOK, s.transport.Status())
}

func (s *Server) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume float64 `json:"volume"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.transport.SetVolume(req.Volume)
	s.writeJSON(w, http.StatusOK, "ok")
}

// handleSetQueue replaces the queue with catalog tracks and starts
// playing from start_index. Unknown track IDs are skipped.
func (s *Server) handleSetQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackIDs   []string `json:"track_ids"`
		StartIndex int      `json:"start_index"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	tracks := make([]models.Track, 0, len(req.TrackIDs))
	for _, id := range req.TrackIDs {
		if track, ok := s.catalog.ByID(id); ok {
			tracks = append(tracks, track)
		}
	}

	if err := s.transport.PlayQueue(tracks, req.StartIndex); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.transport.Status())
}

func (s *Server) handleQueueAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID string `json:"track_id"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	track, ok := s.catalog.ByID(req.TrackID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "track not found")
		return
	}
	s.transport.Enqueue(track)
	s.writeJSON(w, http.StatusOK, s.transport.Status())
}

func (s *Server) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	if !s.transport.RemoveFromQueue(req.Index) {
		s.writeError(w, http.StatusBadRequest, "index out of range")
		return
	}
	s.writeJSON(w, http.StatusOK, s.transport.Status())
}

func (s *Server) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	s.transport.ClearQueue()
	s.writeJSON(w, http.StatusOK, "ok")
}

func (s *Server) handleQueueRepeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.transport.SetRepeat(playback.ParseRepeatMode(req.Mode))
	s.writeJSON(w, http.StatusOK, s.transport.Status())
}

func (s *Server) handleQueueShuffle(w http.ResponseWriter, r *http.Request) {
	shuffle := s.transport.ToggleShuffle()
	s.writeJSON(w, http.StatusOK, map[string]bool{"shuffle": shuffle})
}
