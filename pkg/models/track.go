package models

import (
	"crypto/md5"
	"fmt"
	"time"
)

// Track represents a music track in the catalog
type Track struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	TrackNumber int       `json:"trackNumber"`
	Year        int       `json:"year,omitempty"`
	Genre       string    `json:"genre,omitempty"`
	Duration    int       `json:"duration"` // in seconds
	FileSize    int64     `json:"fileSize"`
	ModTime     time.Time `json:"modTime"`
	FilePath    string    `json:"path"`
}

// TrackID derives the stable identifier for a file path. The same path
// always yields the same ID, so repeated scans of an unchanged file keep
// the identity that playlists and queues reference.
func TrackID(path string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(path)))
}

// Playlist represents a user-created playlist
type Playlist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	ModifiedAt  time.Time `json:"modifiedAt"`
	TrackIDs    []string  `json:"trackIds"`
}
