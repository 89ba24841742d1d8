package playback

// Player is the opaque playback capability the transport drives. The
// concrete implementation (audio device, MPD, a test fake) lives outside
// the core; completion is signalled back via Transport.TrackFinished.
type Player interface {
	LoadAndPlay(path string) error
	Pause() error
	Resume() error
	Stop() error
	SetVolume(volume float64) error
}

// NullPlayer is a no-op player for headless operation and tests.
type NullPlayer struct{}

func (NullPlayer) LoadAndPlay(string) error { return nil }
func (NullPlayer) Pause() error             { return nil }
func (NullPlayer) Resume() error            { return nil }
func (NullPlayer) Stop() error              { return nil }
func (NullPlayer) SetVolume(float64) error  { return nil }
