package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cadenza/internal/config"
	"cadenza/internal/events"
	"cadenza/internal/library"
	"cadenza/internal/playback"
	"cadenza/internal/playlist"
	"cadenza/pkg/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader satisfies metadata.Reader without touching real audio files.
type fakeReader struct{}

func (fakeReader) Read(filePath string) (models.Track, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return models.Track{}, err
	}
	return models.Track{
		ID:       models.TrackID(filePath),
		Title:    filepath.Base(filePath),
		Artist:   "Unknown Artist",
		Album:    "Unknown Album",
		FileSize: info.Size(),
		ModTime:  info.ModTime().UTC(),
		FilePath: filePath,
	}, nil
}

type testEnv struct {
	server  *Server
	catalog *library.Catalog
	bus     *events.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Music.Directories = []string{t.TempDir()}
	cfg.Music.WatchForChanges = false

	bus := events.NewBus(nil)
	catalog := library.NewCatalog()
	cache := library.NewCacheStore(filepath.Join(t.TempDir(), "cache.json"), nil)
	scanner := library.NewScanner(catalog, cache, fakeReader{}, cfg.Music.SupportedFormats, bus, nil)
	transport := playback.NewTransport(playback.NullPlayer{}, bus, nil)

	store, err := playlist.NewStore(filepath.Join(t.TempDir(), "playlists.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &testEnv{
		server:  New(cfg, catalog, scanner, transport, store, bus, nil),
		catalog: catalog,
		bus:     bus,
	}
}

func (env *testEnv) seedCatalog() []models.Track {
	tracks := []models.Track{
		{ID: models.TrackID("/music/a.mp3"), Title: "Aurora", Artist: "Nova", Album: "Dawn", TrackNumber: 1, Duration: 200, FilePath: "/music/a.mp3"},
		{ID: models.TrackID("/music/b.mp3"), Title: "Borealis", Artist: "Nova", Album: "Dawn", TrackNumber: 2, Duration: 180, FilePath: "/music/b.mp3"},
		{ID: models.TrackID("/music/c.flac"), Title: "Cascade", Artist: "Meridian", Album: "Rivers", TrackNumber: 1, Duration: 320, FilePath: "/music/c.flac"},
	}
	env.catalog.Replace(tracks)
	return tracks
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success, "error: %s", resp.Error)

	var data T
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()

	rec := env.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData[map[string]any](t, rec)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, float64(3), data["tracks"])
}

func TestLibraryEndpoints(t *testing.T) {
	env := newTestEnv(t)
	tracks := env.seedCatalog()

	rec := env.do(t, http.MethodGet, "/api/library/tracks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]models.Track](t, rec), 3)

	rec = env.do(t, http.MethodGet, "/api/library/tracks?artist=Nova", nil)
	assert.Len(t, decodeData[[]models.Track](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/api/library/tracks/"+tracks[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Aurora", decodeData[models.Track](t, rec).Title)

	rec = env.do(t, http.MethodGet, "/api/library/tracks/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/library/search?q=cascade", nil)
	assert.Len(t, decodeData[[]models.Track](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/library/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/library/artists", nil)
	assert.Equal(t, []string{"Meridian", "Nova"}, decodeData[[]string](t, rec))

	rec = env.do(t, http.MethodGet, "/api/library/stats", nil)
	stats := decodeData[map[string]any](t, rec)
	assert.Equal(t, float64(3), stats["total_tracks"])
	assert.Equal(t, float64(2), stats["total_artists"])
	assert.Equal(t, false, stats["scanning"])
}

func TestScanEndpoint(t *testing.T) {
	env := newTestEnv(t)

	dir := t.TempDir()
	for _, name := range []string{"one.mp3", "two.flac", "skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	rec := env.do(t, http.MethodPost, "/api/library/scan", map[string]any{"directories": []string{dir}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeData[int](t, rec))
	assert.Equal(t, 2, env.catalog.Count())
}

func TestPlayerEndpoints(t *testing.T) {
	env := newTestEnv(t)
	tracks := env.seedCatalog()

	rec := env.do(t, http.MethodPost, "/api/player/play", map[string]string{"track_id": tracks[0].ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/player/state", nil)
	state := decodeData[playback.Status](t, rec)
	assert.Equal(t, playback.StatePlaying, state.State)
	require.NotNil(t, state.Track)
	assert.Equal(t, tracks[0].ID, state.Track.ID)

	rec = env.do(t, http.MethodPost, "/api/player/play", map[string]string{"track_id": "unknown"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.do(t, http.MethodPost, "/api/player/pause", nil)
	rec = env.do(t, http.MethodGet, "/api/player/state", nil)
	assert.Equal(t, playback.StatePaused, decodeData[playback.Status](t, rec).State)

	env.do(t, http.MethodPost, "/api/player/resume", nil)
	rec = env.do(t, http.MethodGet, "/api/player/state", nil)
	assert.Equal(t, playback.StatePlaying, decodeData[playback.Status](t, rec).State)

	env.do(t, http.MethodPost, "/api/player/stop", nil)
	rec = env.do(t, http.MethodGet, "/api/player/state", nil)
	state = decodeData[playback.Status](t, rec)
	assert.Equal(t, playback.StateStopped, state.State)
	assert.Nil(t, state.Track)

	rec = env.do(t, http.MethodPost, "/api/player/volume", map[string]float64{"volume": 0.25})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/player/state", nil)
	assert.Equal(t, 0.25, decodeData[playback.Status](t, rec).Volume)
}

func TestQueueEndpoints(t *testing.T) {
	env := newTestEnv(t)
	tracks := env.seedCatalog()

	ids := []string{tracks[0].ID, tracks[1].ID, "unknown", tracks[2].ID}
	rec := env.do(t, http.MethodPost, "/api/queue", map[string]any{"track_ids": ids, "start_index": 0})
	require.Equal(t, http.StatusOK, rec.Code)

	state := decodeData[playback.Status](t, rec)
	assert.Len(t, state.Queue, 3, "unknown IDs are skipped")
	assert.Equal(t, playback.StatePlaying, state.State)
	assert.Equal(t, tracks[0].ID, state.Track.ID)

	rec = env.do(t, http.MethodPost, "/api/player/next", nil)
	assert.Equal(t, tracks[1].ID, decodeData[playback.Status](t, rec).Track.ID)

	rec = env.do(t, http.MethodPost, "/api/player/previous", nil)
	assert.Equal(t, tracks[0].ID, decodeData[playback.Status](t, rec).Track.ID)

	rec = env.do(t, http.MethodPost, "/api/queue/repeat", map[string]string{"mode": "all"})
	assert.Equal(t, playback.RepeatAll, decodeData[playback.Status](t, rec).Repeat)

	rec = env.do(t, http.MethodPost, "/api/queue/shuffle", nil)
	assert.True(t, decodeData[map[string]bool](t, rec)["shuffle"])

	rec = env.do(t, http.MethodPost, "/api/queue/remove", map[string]int{"index": 99})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.do(t, http.MethodPost, "/api/queue/clear", nil)
	rec = env.do(t, http.MethodGet, "/api/player/state", nil)
	state = decodeData[playback.Status](t, rec)
	assert.Empty(t, state.Queue)
	assert.Equal(t, playback.StateStopped, state.State)
}

func TestPlaylistEndpoints(t *testing.T) {
	env := newTestEnv(t)
	tracks := env.seedCatalog()

	rec := env.do(t, http.MethodPost, "/api/playlists", map[string]string{"name": "Mix", "description": "testing"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeData[models.Playlist](t, rec)
	require.NotEmpty(t, created.ID)

	rec = env.do(t, http.MethodPost, "/api/playlists", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/playlists/"+created.ID+"/tracks", map[string]string{"track_id": tracks[0].ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/playlists/"+created.ID+"/tracks", map[string]string{"track_id": "unknown"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/playlists/"+created.ID, nil)
	got := decodeData[models.Playlist](t, rec)
	assert.Equal(t, []string{tracks[0].ID}, got.TrackIDs)

	env.do(t, http.MethodPost, "/api/playlists/"+created.ID+"/tracks", map[string]string{"track_id": tracks[1].ID})
	rec = env.do(t, http.MethodPut, "/api/playlists/"+created.ID+"/tracks/1", map[string]int{"to": 0})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/playlists/"+created.ID, nil)
	assert.Equal(t, []string{tracks[1].ID, tracks[0].ID}, decodeData[models.Playlist](t, rec).TrackIDs)

	rec = env.do(t, http.MethodPut, "/api/playlists/"+created.ID+"/tracks/9", map[string]int{"to": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/playlists/"+created.ID+"/tracks/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/playlists/"+created.ID+"/tracks/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/playlists/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/playlists/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaylistCleanupEndpoint(t *testing.T) {
	env := newTestEnv(t)
	tracks := env.seedCatalog()

	rec := env.do(t, http.MethodPost, "/api/playlists", map[string]string{"name": "Mix"})
	created := decodeData[models.Playlist](t, rec)

	env.do(t, http.MethodPost, "/api/playlists/"+created.ID+"/tracks", map[string]string{"track_id": tracks[0].ID})
	env.do(t, http.MethodPost, "/api/playlists/"+created.ID+"/tracks", map[string]string{"track_id": tracks[1].ID})

	// Track 1 leaves the library; cleanup drops its playlist entry.
	env.catalog.Replace([]models.Track{tracks[0], tracks[2]})

	rec = env.do(t, http.MethodPost, "/api/playlists/cleanup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeData[int](t, rec))

	rec = env.do(t, http.MethodGet, "/api/playlists/"+created.ID, nil)
	assert.Equal(t, []string{tracks[0].ID}, decodeData[models.Playlist](t, rec).TrackIDs)
}

func TestEventsWebSocket(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The snapshot arrives first: playback state, then library size.
	var snapshot map[string]any
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "playback_state", snapshot["type"])
	assert.Equal(t, "stopped", snapshot["state"])

	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "library_updated", snapshot["type"])
	assert.Equal(t, float64(3), snapshot["total_tracks"])

	// Events published after connecting are streamed flattened.
	env.bus.Publish(events.VolumeChanged{Volume: 0.33})

	var event map[string]any
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "volume_changed", event["type"])
	assert.Equal(t, 0.33, event["volume"])
	assert.Contains(t, event, "timestamp")
}
