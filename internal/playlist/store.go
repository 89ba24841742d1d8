package playlist

import (
	"database/sql"
	"fmt"
	"time"

	"cadenza/pkg/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Store persists playlists in a SQLite database. It is safe for
// concurrent use because the underlying *sql.DB is concurrency-safe.
//
// Playlists are never auto-deleted; CleanupMissing only removes entries
// whose tracks have left the library.
type Store struct {
	conn   *sql.DB
	logger *logrus.Logger
}

// NewStore opens (or creates) the playlist database at the provided path
// and ensures all required tables exist. Caller should Close() it when
// finished.
func NewStore(dbPath string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist database: %w", err)
	}

	// SQLite works better with fewer connections
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=memory;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	store := &Store{conn: conn, logger: logger}
	if err := store.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create playlist tables: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Playlist store initialized")
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) createTables() error {
	playlistsTable := `
	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		created_at DATETIME NOT NULL,
		modified_at DATETIME NOT NULL
	);`

	playlistTracksTable := `
	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id TEXT NOT NULL,
		track_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		FOREIGN KEY(playlist_id) REFERENCES playlists(id) ON DELETE CASCADE
	);`

	indexStmt := `
	CREATE INDEX IF NOT EXISTS idx_playlist_tracks
	ON playlist_tracks(playlist_id, position);`

	for _, stmt := range []string{playlistsTable, playlistTracksTable, indexStmt} {
		if _, err := s.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts a new empty playlist and returns it.
func (s *Store) Create(name, description string) (models.Playlist, error) {
	now := time.Now().UTC()
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		ModifiedAt:  now,
	}

	_, err := s.conn.Exec(
		`INSERT INTO playlists (id, name, description, created_at, modified_at) VALUES (?, ?, ?, ?, ?)`,
		playlist.ID, playlist.Name, playlist.Description, playlist.CreatedAt, playlist.ModifiedAt,
	)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("failed to create playlist: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"playlist_id": playlist.ID,
		"name":        playlist.Name,
	}).Info("Created playlist")

	return playlist, nil
}

// Get returns a playlist with its ordered track IDs.
func (s *Store) Get(id string) (models.Playlist, bool, error) {
	var p models.Playlist
	err := s.conn.QueryRow(
		`SELECT id, name, COALESCE(description, ''), created_at, modified_at FROM playlists WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.ModifiedAt)
	if err == sql.ErrNoRows {
		return models.Playlist{}, false, nil
	}
	if err != nil {
		return models.Playlist{}, false, fmt.Errorf("failed to load playlist: %w", err)
	}

	trackIDs, err := s.trackIDs(id)
	if err != nil {
		return models.Playlist{}, false, err
	}
	p.TrackIDs = trackIDs
	return p, true, nil
}

// All returns every playlist, ordered by creation time.
func (s *Store) All() ([]models.Playlist, error) {
	rows, err := s.conn.Query(
		`SELECT id, name, COALESCE(description, ''), created_at, modified_at FROM playlists ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []models.Playlist
	for rows.Next() {
		var p models.Playlist
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.ModifiedAt); err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range playlists {
		trackIDs, err := s.trackIDs(playlists[i].ID)
		if err != nil {
			return nil, err
		}
		playlists[i].TrackIDs = trackIDs
	}
	return playlists, nil
}

// Update renames a playlist and/or changes its description.
func (s *Store) Update(id, name, description string) (bool, error) {
	res, err := s.conn.Exec(
		`UPDATE playlists SET name = ?, description = ?, modified_at = ? WHERE id = ?`,
		name, description, time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update playlist: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// Delete removes a playlist and its entries.
func (s *Store) Delete(id string) (bool, error) {
	res, err := s.conn.Exec(`DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete playlist: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// AddTrack appends a track to the playlist. Duplicates are allowed.
func (s *Store) AddTrack(playlistID, trackID string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(position), -1) + 1 FROM playlist_tracks WHERE playlist_id = ?`, playlistID,
	).Scan(&next); err != nil {
		return fmt.Errorf("failed to find playlist position: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES (?, ?, ?)`,
		playlistID, trackID, next,
	); err != nil {
		return fmt.Errorf("failed to add track to playlist: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE playlists SET modified_at = ? WHERE id = ?`, time.Now().UTC(), playlistID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// RemoveTrack removes the entry at the given position and compacts the
// remaining positions.
func (s *Store) RemoveTrack(playlistID string, position int) (bool, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`DELETE FROM playlist_tracks WHERE playlist_id = ? AND position = ?`, playlistID, position,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove track from playlist: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.Exec(
		`UPDATE playlist_tracks SET position = position - 1 WHERE playlist_id = ? AND position > ?`,
		playlistID, position,
	); err != nil {
		return false, err
	}

	if _, err := tx.Exec(
		`UPDATE playlists SET modified_at = ? WHERE id = ?`, time.Now().UTC(), playlistID,
	); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// MoveTrack moves the entry at from to position to, shifting the entries
// in between.
func (s *Store) MoveTrack(playlistID string, from, to int) (bool, error) {
	if from == to {
		return true, nil
	}

	trackIDs, err := s.trackIDs(playlistID)
	if err != nil {
		return false, err
	}
	if from < 0 || from >= len(trackIDs) || to < 0 || to >= len(trackIDs) {
		return false, nil
	}

	moved := trackIDs[from]
	trackIDs = append(trackIDs[:from], trackIDs[from+1:]...)
	trackIDs = append(trackIDs[:to], append([]string{moved}, trackIDs[to:]...)...)

	return true, s.rewriteEntries(playlistID, trackIDs)
}

// CleanupMissing removes entries whose track identity is no longer in
// the library. Returns the number of entries removed.
func (s *Store) CleanupMissing(exists func(trackID string) bool) (int, error) {
	playlists, err := s.All()
	if err != nil {
		return 0, err
	}

	totalRemoved := 0
	for _, p := range playlists {
		var kept []string
		for _, trackID := range p.TrackIDs {
			if exists(trackID) {
				kept = append(kept, trackID)
			}
		}
		removed := len(p.TrackIDs) - len(kept)
		if removed == 0 {
			continue
		}

		if err := s.rewriteEntries(p.ID, kept); err != nil {
			return totalRemoved, err
		}
		totalRemoved += removed

		s.logger.WithFields(logrus.Fields{
			"playlist_id": p.ID,
			"name":        p.Name,
			"removed":     removed,
		}).Info("Removed missing tracks from playlist")
	}

	return totalRemoved, nil
}

// rewriteEntries replaces a playlist's entries with the given order.
func (s *Store) rewriteEntries(playlistID string, trackIDs []string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ?`, playlistID); err != nil {
		return fmt.Errorf("failed to rewrite playlist entries: %w", err)
	}
	for i, trackID := range trackIDs {
		if _, err := tx.Exec(
			`INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES (?, ?, ?)`,
			playlistID, trackID, i,
		); err != nil {
			return fmt.Errorf("failed to rewrite playlist entries: %w", err)
		}
	}

	if _, err := tx.Exec(
		`UPDATE playlists SET modified_at = ? WHERE id = ?`, time.Now().UTC(), playlistID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) trackIDs(playlistID string) ([]string, error) {
	rows, err := s.conn.Query(
		`SELECT track_id FROM playlist_tracks WHERE playlist_id = ? ORDER BY position`, playlistID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist tracks: %w", err)
	}
	defer rows.Close()

	var trackIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		trackIDs = append(trackIDs, id)
	}
	return trackIDs, rows.Err()
}
