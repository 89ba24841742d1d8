package playback

import (
	"errors"
	"testing"

	"cadenza/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlayer records calls so tests can assert the transport drives the
// backend correctly.
type fakePlayer struct {
	loaded   []string
	pauses   int
	resumes  int
	stops    int
	volumes  []float64
	failLoad bool
}

func (p *fakePlayer) LoadAndPlay(path string) error {
	if p.failLoad {
		return errors.New("decode failed")
	}
	p.loaded = append(p.loaded, path)
	return nil
}

func (p *fakePlayer) Pause() error  { p.pauses++; return nil }
func (p *fakePlayer) Resume() error { p.resumes++; return nil }
func (p *fakePlayer) Stop() error   { p.stops++; return nil }

func (p *fakePlayer) SetVolume(v float64) error {
	p.volumes = append(p.volumes, v)
	return nil
}

func newTestTransport() (*Transport, *fakePlayer, *events.Bus) {
	player := &fakePlayer{}
	bus := events.NewBus(nil)
	return NewTransport(player, bus, nil), player, bus
}

// drain collects every event currently buffered on the subscription.
func drain(sub <-chan events.Event) []events.Event {
	var got []events.Event
	for {
		select {
		case e := <-sub:
			got = append(got, e)
		default:
			return got
		}
	}
}

func TestTransportPlayBindsTrack(t *testing.T) {
	transport, player, bus := newTestTransport()
	sub, cancel := bus.Subscribe()
	defer cancel()

	track := makeTracks("a")[0]
	require.NoError(t, transport.Play(track))

	status := transport.Status()
	assert.Equal(t, StatePlaying, status.State)
	require.NotNil(t, status.Track)
	assert.Equal(t, "a", status.Track.ID)
	assert.Equal(t, []string{"/music/a.mp3"}, player.loaded)

	got := drain(sub)
	require.Len(t, got, 1)
	assert.Equal(t, events.TypePlaybackState, got[0].Type)
	payload := got[0].Payload.(events.PlaybackState)
	assert.Equal(t, "playing", payload.State)
	assert.Equal(t, "a", payload.TrackID)
}

func TestTransportPlayFailureStops(t *testing.T) {
	transport, player, _ := newTestTransport()
	player.failLoad = true

	err := transport.Play(makeTracks("a")[0])
	require.Error(t, err)

	status := transport.Status()
	assert.Equal(t, StateStopped, status.State)
	assert.Nil(t, status.Track)
}

func TestTransportPauseResumeCycle(t *testing.T) {
	transport, player, _ := newTestTransport()
	require.NoError(t, transport.Play(makeTracks("a")[0]))

	transport.Pause()
	assert.Equal(t, StatePaused, transport.Status().State)

	transport.Resume()
	assert.Equal(t, StatePlaying, transport.Status().State)

	assert.Equal(t, 1, player.pauses)
	assert.Equal(t, 1, player.resumes)
}

func TestTransportRedundantCommandsAreNoOps(t *testing.T) {
	transport, player, bus := newTestTransport()
	require.NoError(t, transport.Play(makeTracks("a")[0]))

	sub, cancel := bus.Subscribe()
	defer cancel()

	// Pausing twice has the same effect as pausing once.
	transport.Pause()
	transport.Pause()
	assert.Equal(t, StatePaused, transport.Status().State)
	assert.Equal(t, 1, player.pauses)
	assert.Len(t, drain(sub), 1, "the redundant pause publishes nothing")

	// Resume while stopped does nothing.
	transport.Stop()
	drain(sub)
	transport.Resume()
	assert.Equal(t, StateStopped, transport.Status().State)
	assert.Equal(t, 0, player.resumes)
	assert.Empty(t, drain(sub))

	// Pause while stopped does nothing.
	transport.Pause()
	assert.Equal(t, StateStopped, transport.Status().State)
	assert.Equal(t, 1, player.pauses)
}

func TestTransportStopWhileStoppedPublishesNothing(t *testing.T) {
	transport, _, bus := newTestTransport()
	sub, cancel := bus.Subscribe()
	defer cancel()

	transport.Stop()
	transport.Stop()
	assert.Empty(t, drain(sub))
}

func TestTransportAdvanceThroughQueue(t *testing.T) {
	transport, player, _ := newTestTransport()
	require.NoError(t, transport.PlayQueue(makeTracks("a", "b", "c"), 0))

	transport.Advance()
	status := transport.Status()
	assert.Equal(t, StatePlaying, status.State)
	assert.Equal(t, "b", status.Track.ID)
	assert.Equal(t, 1, status.QueueIndex)

	transport.Advance()
	assert.Equal(t, "c", transport.Status().Track.ID)

	// repeat none: exhausting the queue stops playback.
	transport.Advance()
	status = transport.Status()
	assert.Equal(t, StateStopped, status.State)
	assert.Nil(t, status.Track)

	assert.Equal(t, []string{"/music/a.mp3", "/music/b.mp3", "/music/c.mp3"}, player.loaded)
}

func TestTransportTrackFinishedAdvances(t *testing.T) {
	transport, _, _ := newTestTransport()
	transport.SetRepeat(RepeatAll)
	require.NoError(t, transport.PlayQueue(makeTracks("a", "b"), 1))

	transport.TrackFinished()
	status := transport.Status()
	assert.Equal(t, StatePlaying, status.State)
	assert.Equal(t, "a", status.Track.ID, "repeat all wraps to the first track")
}

func TestTransportRetreat(t *testing.T) {
	transport, _, _ := newTestTransport()
	require.NoError(t, transport.PlayQueue(makeTracks("a", "b"), 1))

	transport.Retreat()
	assert.Equal(t, "a", transport.Status().Track.ID)

	// repeat none at the front: retreat stops.
	transport.Retreat()
	assert.Equal(t, StateStopped, transport.Status().State)
}

func TestTransportSetVolume(t *testing.T) {
	transport, player, bus := newTestTransport()
	sub, cancel := bus.Subscribe()
	defer cancel()

	transport.SetVolume(1.5)
	assert.Equal(t, 1.0, transport.Status().Volume)

	transport.SetVolume(-0.2)
	assert.Equal(t, 0.0, transport.Status().Volume)

	transport.SetVolume(0.4)
	assert.Equal(t, 0.4, transport.Status().Volume)

	assert.Equal(t, []float64{1.0, 0.0, 0.4}, player.volumes)

	got := drain(sub)
	require.Len(t, got, 3)
	for _, e := range got {
		assert.Equal(t, events.TypeVolumeChanged, e.Type)
	}
	assert.Equal(t, 0.4, got[2].Payload.(events.VolumeChanged).Volume)
}

func TestTransportProgressIgnoredWhileStopped(t *testing.T) {
	transport, _, _ := newTestTransport()

	transport.UpdateProgress(42)
	assert.Equal(t, 0, transport.Status().Progress)

	require.NoError(t, transport.Play(makeTracks("a")[0]))
	transport.UpdateProgress(42)
	assert.Equal(t, 42, transport.Status().Progress)

	transport.Stop()
	assert.Equal(t, 0, transport.Status().Progress)
}

func TestTransportQueueEditing(t *testing.T) {
	transport, _, _ := newTestTransport()
	tracks := makeTracks("a", "b")

	assert.True(t, transport.Enqueue(tracks[0]))
	assert.False(t, transport.Enqueue(tracks[0]))
	assert.True(t, transport.Enqueue(tracks[1]))

	require.NoError(t, transport.PlayQueue(tracks, 0))

	assert.True(t, transport.RemoveFromQueue(1))
	assert.Equal(t, StatePlaying, transport.Status().State)

	// Removing the last remaining track stops playback.
	assert.True(t, transport.RemoveFromQueue(0))
	status := transport.Status()
	assert.Equal(t, StateStopped, status.State)
	assert.Empty(t, status.Queue)
}

func TestTransportClearQueueStops(t *testing.T) {
	transport, _, _ := newTestTransport()
	require.NoError(t, transport.PlayQueue(makeTracks("a", "b"), 0))

	transport.ClearQueue()
	status := transport.Status()
	assert.Equal(t, StateStopped, status.State)
	assert.Empty(t, status.Queue)
	assert.Equal(t, -1, status.QueueIndex)
}

func TestTransportLateSubscriberReconcilesViaStatus(t *testing.T) {
	transport, _, bus := newTestTransport()
	require.NoError(t, transport.Play(makeTracks("a")[0]))

	// A subscriber joining after the transition sees no replay, but the
	// pull-based query reflects the change.
	sub, cancel := bus.Subscribe()
	defer cancel()
	assert.Empty(t, drain(sub))

	status := transport.Status()
	assert.Equal(t, StatePlaying, status.State)
	assert.Equal(t, "a", status.Track.ID)
}
