package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackIDDeterministic(t *testing.T) {
	a := TrackID("/music/artist/song.mp3")
	b := TrackID("/music/artist/song.mp3")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32, "md5 hex digest")
}

func TestTrackIDDistinctPaths(t *testing.T) {
	assert.NotEqual(t, TrackID("/music/a.mp3"), TrackID("/music/b.mp3"))
}
