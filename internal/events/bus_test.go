package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOutInOrder(t *testing.T) {
	bus := NewBus(nil)

	subA, cancelA := bus.Subscribe()
	defer cancelA()
	subB, cancelB := bus.Subscribe()
	defer cancelB()

	bus.Publish(VolumeChanged{Volume: 0.1})
	bus.Publish(VolumeChanged{Volume: 0.2})
	bus.Publish(VolumeChanged{Volume: 0.3})

	for _, sub := range []<-chan Event{subA, subB} {
		for _, want := range []float64{0.1, 0.2, 0.3} {
			event := <-sub
			assert.Equal(t, TypeVolumeChanged, event.Type)
			assert.Equal(t, want, event.Payload.(VolumeChanged).Volume)
		}
	}
}

func TestBusLateSubscriberMissesEarlierEvents(t *testing.T) {
	bus := NewBus(nil)

	bus.Publish(LibraryUpdated{TotalTracks: 10})

	sub, cancel := bus.Subscribe()
	defer cancel()

	select {
	case event := <-sub:
		t.Fatalf("unexpected replayed event: %v", event.Type)
	default:
	}

	bus.Publish(LibraryUpdated{TotalTracks: 11})
	event := <-sub
	assert.Equal(t, 11, event.Payload.(LibraryUpdated).TotalTracks)
}

func TestBusCancelIsIdempotent(t *testing.T) {
	bus := NewBus(nil)

	_, cancel := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())

	cancel()
	cancel()
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBusDisconnectsSlowSubscriber(t *testing.T) {
	bus := NewBus(nil)

	slow, cancelSlow := bus.Subscribe()
	defer cancelSlow()
	fast, cancelFast := bus.Subscribe()
	defer cancelFast()

	// Fill the slow subscriber's buffer without reading, then publish one
	// more. The slow subscriber gets closed; the fast one is unaffected.
	for i := 0; i <= subscriberBuffer; i++ {
		bus.Publish(VolumeChanged{Volume: float64(i)})
		// Keep the fast subscriber drained.
		<-fast
	}

	assert.Equal(t, 1, bus.SubscriberCount())

	var closed bool
	for !closed {
		if _, ok := <-slow; !ok {
			closed = true
		}
	}

	bus.Publish(VolumeChanged{Volume: 1})
	event, ok := <-fast
	require.True(t, ok)
	assert.Equal(t, 1.0, event.Payload.(VolumeChanged).Volume)
}

func TestEventMarshalFlattensPayload(t *testing.T) {
	event := New(PlaybackState{
		State:         "playing",
		TrackID:       "abc",
		TrackPath:     "/music/a.mp3",
		TrackDuration: 180,
		Volume:        0.7,
	})

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.Equal(t, "playback_state", fields["type"])
	assert.Contains(t, fields, "timestamp")
	assert.Equal(t, "playing", fields["state"])
	assert.Equal(t, "abc", fields["track_id"])
	assert.Equal(t, float64(180), fields["track_duration"])
	assert.Equal(t, 0.7, fields["volume"])
}

func TestEventMarshalOmitsEmptyTrackFields(t *testing.T) {
	raw, err := json.Marshal(New(PlaybackState{State: "stopped", Volume: 0.5}))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.NotContains(t, fields, "track_id")
	assert.NotContains(t, fields, "track_path")
	assert.NotContains(t, fields, "track_duration")
}

func TestScanEventTypes(t *testing.T) {
	assert.Equal(t, TypeLibraryScan, New(LibraryScan{Status: ScanStarted}).Type)
	assert.Equal(t, TypeLibraryUpdated, New(LibraryUpdated{}).Type)

	raw, err := json.Marshal(New(LibraryScan{Status: ScanCompleted, Found: 42}))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "library_scan", fields["type"])
	assert.Equal(t, "completed", fields["status"])
	assert.Equal(t, float64(42), fields["found"])
}
