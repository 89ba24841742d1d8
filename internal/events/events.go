package events

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of state change an event describes.
type Type string

const (
	TypePlaybackState  Type = "playback_state"
	TypeVolumeChanged  Type = "volume_changed"
	TypeLibraryScan    Type = "library_scan"
	TypeLibraryUpdated Type = "library_updated"
)

// Scan status values carried by library_scan events.
const (
	ScanStarted   = "started"
	ScanCompleted = "completed"
	ScanFailed    = "failed"
)

// Payload is one of the closed set of event payload variants.
type Payload interface {
	eventType() Type
}

// PlaybackState describes a transport state transition.
type PlaybackState struct {
	State         string  `json:"state"` // "playing" | "paused" | "stopped"
	TrackID       string  `json:"track_id,omitempty"`
	TrackPath     string  `json:"track_path,omitempty"`
	TrackDuration int     `json:"track_duration,omitempty"`
	Volume        float64 `json:"volume"`
}

func (PlaybackState) eventType() Type { return TypePlaybackState }

// VolumeChanged describes a volume adjustment.
type VolumeChanged struct {
	Volume float64 `json:"volume"`
}

func (VolumeChanged) eventType() Type { return TypeVolumeChanged }

// LibraryScan describes scan lifecycle progress.
type LibraryScan struct {
	Status string `json:"status"` // "started" | "completed" | "failed"
	Found  int    `json:"found,omitempty"`
}

func (LibraryScan) eventType() Type { return TypeLibraryScan }

// LibraryUpdated signals that the catalog contents changed.
type LibraryUpdated struct {
	TotalTracks int `json:"total_tracks"`
}

func (LibraryUpdated) eventType() Type { return TypeLibraryUpdated }

// Event is the immutable envelope delivered to subscribers.
type Event struct {
	Type      Type
	Timestamp time.Time
	Payload   Payload
}

// New wraps a payload in a timestamped envelope.
func New(payload Payload) Event {
	return Event{
		Type:      payload.eventType(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// MarshalJSON flattens the payload fields next to the type tag and
// timestamp, e.g. {"type":"volume_changed","timestamp":...,"volume":0.7}.
func (e Event) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	typeTag, err := json.Marshal(e.Type)
	if err != nil {
		return nil, err
	}
	timestamp, err := json.Marshal(e.Timestamp)
	if err != nil {
		return nil, err
	}
	fields["type"] = typeTag
	fields["timestamp"] = timestamp

	return json.Marshal(fields)
}
