package playback

import (
	"math/rand"

	"cadenza/pkg/models"
)

// RepeatMode controls what plays after the last track.
type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatOne  RepeatMode = "one"
	RepeatAll  RepeatMode = "all"
)

// ParseRepeatMode maps a string to a repeat mode, defaulting to none.
func ParseRepeatMode(s string) RepeatMode {
	switch RepeatMode(s) {
	case RepeatOne:
		return RepeatOne
	case RepeatAll:
		return RepeatAll
	default:
		return RepeatNone
	}
}

// Queue is the ordered list of tracks feeding the transport, with a
// cursor, shuffle flag and repeat mode. The cursor is -1 exactly when the
// queue is empty, otherwise always a valid index.
//
// Queue is not safe for concurrent use on its own: the transport owns it
// and guards queue and playback state behind one lock, so the cursor and
// the bound track never disagree.
type Queue struct {
	tracks  []models.Track
	index   int
	shuffle bool
	repeat  RepeatMode
	rng     func(n int) int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		index:  -1,
		repeat: RepeatNone,
		rng:    rand.Intn,
	}
}

// Set replaces the queue contents and positions the cursor at startIndex
// (clamped into range; -1 when tracks is empty).
func (q *Queue) Set(tracks []models.Track, startIndex int) {
	q.tracks = make([]models.Track, len(tracks))
	copy(q.tracks, tracks)

	if len(q.tracks) == 0 {
		q.index = -1
		return
	}
	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= len(q.tracks) {
		startIndex = len(q.tracks) - 1
	}
	q.index = startIndex
}

// Add appends a track. Adding a track already in the queue is a no-op.
func (q *Queue) Add(track models.Track) bool {
	for _, t := range q.tracks {
		if t.ID == track.ID {
			return false
		}
	}
	q.tracks = append(q.tracks, track)
	if q.index < 0 {
		q.index = 0
	}
	return true
}

// Remove drops the track at the given index. When the current track is
// removed the cursor clamps to the nearest valid index, or resets to -1
// if the queue becomes empty.
func (q *Queue) Remove(index int) bool {
	if index < 0 || index >= len(q.tracks) {
		return false
	}
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)

	if len(q.tracks) == 0 {
		q.index = -1
		return true
	}
	if index < q.index {
		q.index--
	}
	if q.index >= len(q.tracks) {
		q.index = len(q.tracks) - 1
	}
	return true
}

// Clear empties the queue and resets the cursor.
func (q *Queue) Clear() {
	q.tracks = nil
	q.index = -1
}

// Current returns the track at the cursor, or nil for an empty queue.
func (q *Queue) Current() *models.Track {
	if q.index < 0 || q.index >= len(q.tracks) {
		return nil
	}
	track := q.tracks[q.index]
	return &track
}

// Next advances the cursor and returns the next track to play.
//
// With repeat one the current track is returned unchanged. With shuffle
// a uniformly random index different from the cursor is picked (the only
// track repeats when the queue has one entry). Otherwise the cursor
// increments; past the end it wraps to 0 under repeat all, or returns nil
// with the cursor unchanged.
func (q *Queue) Next() *models.Track {
	if len(q.tracks) == 0 {
		return nil
	}

	if q.repeat == RepeatOne {
		return q.Current()
	}

	if q.shuffle {
		if len(q.tracks) == 1 {
			q.index = 0
			return q.Current()
		}
		// Uniform over all indices except the cursor.
		next := q.rng(len(q.tracks) - 1)
		if next >= q.index {
			next++
		}
		q.index = next
		return q.Current()
	}

	if q.index+1 >= len(q.tracks) {
		if q.repeat == RepeatAll {
			q.index = 0
			return q.Current()
		}
		return nil
	}
	q.index++
	return q.Current()
}

// Previous retreats the cursor and returns the previous track. Mirrors
// Next without a shuffle branch: below 0 it wraps to the last index under
// repeat all, otherwise clamps at 0 and returns nil.
func (q *Queue) Previous() *models.Track {
	if len(q.tracks) == 0 {
		return nil
	}

	if q.repeat == RepeatOne {
		return q.Current()
	}

	if q.index-1 < 0 {
		if q.repeat == RepeatAll {
			q.index = len(q.tracks) - 1
			return q.Current()
		}
		q.index = 0
		return nil
	}
	q.index--
	return q.Current()
}

// SetRepeat sets the repeat mode.
func (q *Queue) SetRepeat(mode RepeatMode) {
	q.repeat = mode
}

// Repeat returns the repeat mode.
func (q *Queue) Repeat() RepeatMode {
	return q.repeat
}

// ToggleShuffle flips the shuffle flag and returns the new value.
func (q *Queue) ToggleShuffle() bool {
	q.shuffle = !q.shuffle
	return q.shuffle
}

// Shuffle reports whether shuffle is enabled.
func (q *Queue) Shuffle() bool {
	return q.shuffle
}

// Tracks returns a copy of the queued tracks.
func (q *Queue) Tracks() []models.Track {
	tracks := make([]models.Track, len(q.tracks))
	copy(tracks, q.tracks)
	return tracks
}

// Index returns the cursor position (-1 when empty).
func (q *Queue) Index() int {
	return q.index
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}
