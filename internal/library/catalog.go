package library

import (
	"sort"
	"strings"
	"sync/atomic"

	"cadenza/pkg/models"
)

// snapshot is an immutable view of the catalog. A new snapshot replaces
// the old one wholesale, so readers never observe a half-updated catalog.
type snapshot struct {
	byID   map[string]models.Track
	byPath map[string]string
}

func newSnapshot(tracks []models.Track) *snapshot {
	s := &snapshot{
		byID:   make(map[string]models.Track, len(tracks)),
		byPath: make(map[string]string, len(tracks)),
	}
	for _, t := range tracks {
		s.byID[t.ID] = t
		s.byPath[t.FilePath] = t.ID
	}
	return s
}

// Catalog is the in-memory track catalog. All queries read the current
// snapshot at call time; Replace swaps in a whole new snapshot atomically.
type Catalog struct {
	snap atomic.Pointer[snapshot]
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	c := &Catalog{}
	c.snap.Store(newSnapshot(nil))
	return c
}

// Replace atomically swaps the catalog contents for the given tracks.
func (c *Catalog) Replace(tracks []models.Track) {
	c.snap.Store(newSnapshot(tracks))
}

// All returns every track, sorted by artist, album, track number, title.
func (c *Catalog) All() []models.Track {
	snap := c.snap.Load()
	tracks := make([]models.Track, 0, len(snap.byID))
	for _, t := range snap.byID {
		tracks = append(tracks, t)
	}
	sortTracks(tracks)
	return tracks
}

// ByID looks up a track by its identity.
func (c *Catalog) ByID(id string) (models.Track, bool) {
	t, ok := c.snap.Load().byID[id]
	return t, ok
}

// ByPath looks up a track by its file path.
func (c *Catalog) ByPath(path string) (models.Track, bool) {
	snap := c.snap.Load()
	id, ok := snap.byPath[path]
	if !ok {
		return models.Track{}, false
	}
	t, ok := snap.byID[id]
	return t, ok
}

// Search returns tracks whose title, artist or album contains the query,
// case-insensitively.
func (c *Catalog) Search(query string) []models.Track {
	q := strings.ToLower(query)
	snap := c.snap.Load()

	var matches []models.Track
	for _, t := range snap.byID {
		if strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Artist), q) ||
			strings.Contains(strings.ToLower(t.Album), q) {
			matches = append(matches, t)
		}
	}
	sortTracks(matches)
	return matches
}

// ByArtist returns all tracks with an exact artist match.
func (c *Catalog) ByArtist(artist string) []models.Track {
	snap := c.snap.Load()
	var matches []models.Track
	for _, t := range snap.byID {
		if t.Artist == artist {
			matches = append(matches, t)
		}
	}
	sortTracks(matches)
	return matches
}

// ByAlbum returns all tracks with an exact album match.
func (c *Catalog) ByAlbum(album string) []models.Track {
	snap := c.snap.Load()
	var matches []models.Track
	for _, t := range snap.byID {
		if t.Album == album {
			matches = append(matches, t)
		}
	}
	sortTracks(matches)
	return matches
}

// Artists returns the sorted set of artist names in the catalog.
func (c *Catalog) Artists() []string {
	snap := c.snap.Load()
	set := make(map[string]struct{})
	for _, t := range snap.byID {
		if t.Artist != "" {
			set[t.Artist] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Albums returns the sorted set of album names in the catalog.
func (c *Catalog) Albums() []string {
	snap := c.snap.Load()
	set := make(map[string]struct{})
	for _, t := range snap.byID {
		if t.Album != "" {
			set[t.Album] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Count returns the number of tracks in the catalog.
func (c *Catalog) Count() int {
	return len(c.snap.Load().byID)
}

// Contains reports whether a track identity exists in the catalog.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.snap.Load().byID[id]
	return ok
}

func sortTracks(tracks []models.Track) {
	sort.Slice(tracks, func(i, j int) bool {
		a, b := tracks[i], tracks[j]
		if a.Artist != b.Artist {
			return a.Artist < b.Artist
		}
		if a.Album != b.Album {
			return a.Album < b.Album
		}
		if a.TrackNumber != b.TrackNumber {
			return a.TrackNumber < b.TrackNumber
		}
		return a.Title < b.Title
	})
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
