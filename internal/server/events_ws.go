package server

import (
	"net/http"
	"time"

	"cadenza/internal/events"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// handleEventsWS streams bus events to a WebSocket client. On connect
// the client receives a snapshot (current playback state and library
// size) to reconcile against, then every event published afterwards.
// Events have no replay: a late subscriber has missed nothing it is
// entitled to.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Subscribe before the snapshot so no event published in between is
	// lost.
	sub, cancel := s.bus.Subscribe()
	defer cancel()

	if err := s.sendSnapshot(conn); err != nil {
		s.logger.WithError(err).Warn("Failed to send initial event snapshot")
		return
	}

	// Reader goroutine: detects client disconnect and answers pings.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				// Dropped by the bus (slow consumer); the client should
				// reconnect and reconcile via the state queries.
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// sendSnapshot pushes the current state as synthetic events so a fresh
// subscriber starts consistent with the backend.
func (s *Server) sendSnapshot(conn *websocket.Conn) error {
	status := s.transport.Status()

	playback := events.PlaybackState{
		State:  string(status.State),
		Volume: status.Volume,
	}
	if status.Track != nil {
		playback.TrackID = status.Track.ID
		playback.TrackPath = status.Track.FilePath
		playback.TrackDuration = status.Track.Duration
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(events.New(playback)); err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(events.New(events.LibraryUpdated{TotalTracks: s.catalog.Count()}))
}
