package playback

import (
	"sync"

	"cadenza/internal/events"
	"cadenza/pkg/models"

	"github.com/sirupsen/logrus"
)

// State is the transport state.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Status is a consistent snapshot of transport and queue state, used by
// pull-based queries (and by fresh event subscribers to reconcile).
type Status struct {
	State      State          `json:"state"`
	Track      *models.Track  `json:"track,omitempty"`
	Progress   int            `json:"progress"` // in seconds
	Duration   int            `json:"duration"` // in seconds
	Volume     float64        `json:"volume"`
	Repeat     RepeatMode     `json:"repeat"`
	Shuffle    bool           `json:"shuffle"`
	Queue      []models.Track `json:"queue"`
	QueueIndex int            `json:"queueIndex"`
}

// Transport is the playback state machine. It owns the queue: every
// operation that moves the cursor and rebinds the playing track happens
// under one lock, so concurrent queries always observe them as a single
// atomic step.
//
// Operations invalid for the current state (pause while stopped, resume
// while playing) are silent no-ops; client commands may race with
// completion signals and the transport is forgiving of redundant ones.
type Transport struct {
	mu     sync.Mutex
	queue  *Queue
	player Player
	bus    *events.Bus
	logger *logrus.Logger

	state    State
	current  *models.Track
	progress int
	volume   float64
}

// NewTransport creates a stopped transport over an empty queue.
func NewTransport(player Player, bus *events.Bus, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	return &Transport{
		queue:  NewQueue(),
		player: player,
		bus:    bus,
		logger: logger,
		state:  StateStopped,
		volume: 0.7,
	}
}

// Play binds the track and starts playback.
func (t *Transport) Play(track models.Track) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playLocked(track)
}

// PlayQueue replaces the queue, positions the cursor at startIndex and
// starts playing the track there.
func (t *Transport) PlayQueue(tracks []models.Track, startIndex int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.queue.Set(tracks, startIndex)
	current := t.queue.Current()
	if current == nil {
		t.stopLocked()
		return nil
	}
	return t.playLocked(*current)
}

// Pause pauses playback. No-op unless currently playing.
func (t *Transport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePlaying {
		return
	}
	if err := t.player.Pause(); err != nil {
		t.logger.WithError(err).Warn("Player pause failed")
		return
	}
	t.state = StatePaused
	t.publishStateLocked()
}

// Resume resumes playback. No-op unless currently paused.
func (t *Transport) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePaused {
		return
	}
	if err := t.player.Resume(); err != nil {
		t.logger.WithError(err).Warn("Player resume failed")
		return
	}
	t.state = StatePlaying
	t.publishStateLocked()
}

// Stop stops playback from any state, clearing the bound track.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Advance moves to the next queue track. A yielded track behaves like
// Play; queue exhaustion behaves like Stop.
func (t *Transport) Advance() {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.queue.Next()
	if next == nil {
		t.stopLocked()
		return
	}
	if err := t.playLocked(*next); err != nil {
		t.logger.WithError(err).WithField("file_path", next.FilePath).Warn("Failed to play next track")
	}
}

// Retreat moves to the previous queue track, mirroring Advance.
func (t *Transport) Retreat() {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.queue.Previous()
	if prev == nil {
		t.stopLocked()
		return
	}
	if err := t.playLocked(*prev); err != nil {
		t.logger.WithError(err).WithField("file_path", prev.FilePath).Warn("Failed to play previous track")
	}
}

// TrackFinished handles the player's asynchronous completion signal as an
// implicit advance.
func (t *Transport) TrackFinished() {
	t.Advance()
}

// SetVolume clamps to [0,1], applies it to the player and publishes a
// volume_changed event.
func (t *Transport) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.player.SetVolume(volume); err != nil {
		t.logger.WithError(err).Warn("Player volume change failed")
		return
	}
	t.volume = volume
	t.bus.Publish(events.VolumeChanged{Volume: volume})
}

// UpdateProgress records the playback position reported by the player.
// Ignored while stopped.
func (t *Transport) UpdateProgress(seconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateStopped {
		return
	}
	t.progress = seconds
}

// Enqueue adds a track to the queue (no-op if already queued).
func (t *Transport) Enqueue(track models.Track) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queue.Add(track)
}

// RemoveFromQueue removes the track at index, clamping the cursor. When
// the queue empties under a bound track, playback stops.
func (t *Transport) RemoveFromQueue(index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := t.queue.Remove(index)
	if removed && t.queue.Len() == 0 && t.state != StateStopped {
		t.stopLocked()
	}
	return removed
}

// ClearQueue empties the queue and stops playback.
func (t *Transport) ClearQueue() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.queue.Clear()
	if t.state != StateStopped {
		t.stopLocked()
	}
}

// SetRepeat sets the queue repeat mode.
func (t *Transport) SetRepeat(mode RepeatMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue.SetRepeat(mode)
}

// ToggleShuffle flips shuffle and returns the new value.
func (t *Transport) ToggleShuffle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queue.ToggleShuffle()
}

// Status returns a consistent snapshot of transport and queue state.
func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := Status{
		State:      t.state,
		Progress:   t.progress,
		Volume:     t.volume,
		Repeat:     t.queue.Repeat(),
		Shuffle:    t.queue.Shuffle(),
		Queue:      t.queue.Tracks(),
		QueueIndex: t.queue.Index(),
	}
	if t.current != nil {
		track := *t.current
		status.Track = &track
		status.Duration = track.Duration
	}
	return status
}

// playLocked binds the track, starts the player and publishes the
// playing event. Caller holds the lock.
func (t *Transport) playLocked(track models.Track) error {
	if err := t.player.LoadAndPlay(track.FilePath); err != nil {
		t.logger.WithError(err).WithField("file_path", track.FilePath).Error("Failed to start playback")
		t.stopLocked()
		return err
	}

	t.current = &track
	t.state = StatePlaying
	t.progress = 0
	t.publishStateLocked()
	return nil
}

// stopLocked clears the bound track and resets progress. Caller holds
// the lock. Publishes only on an actual transition.
func (t *Transport) stopLocked() {
	wasStopped := t.state == StateStopped && t.current == nil

	if err := t.player.Stop(); err != nil {
		t.logger.WithError(err).Warn("Player stop failed")
	}

	t.state = StateStopped
	t.current = nil
	t.progress = 0

	if !wasStopped {
		t.publishStateLocked()
	}
}

// publishStateLocked emits a playback_state event for the current state.
// Caller holds the lock.
func (t *Transport) publishStateLocked() {
	payload := events.PlaybackState{
		State:  string(t.state),
		Volume: t.volume,
	}
	if t.current != nil {
		payload.TrackID = t.current.ID
		payload.TrackPath = t.current.FilePath
		payload.TrackDuration = t.current.Duration
	}
	t.bus.Publish(payload)
}
