package spotify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"muze/internal/core"
	"muze/internal/device"
)

const playerStateJSON = `{
	"is_playing": true,
	"progress_ms": 1500,
	"item": {
		"id": "abc",
		"uri": "spotify:track:abc",
		"name": "Test Song",
		"duration_ms": 180000,
		"artists": [{"name": "Artist One"}, {"name": "Artist Two"}],
		"album": {"name": "Test Album", "images": [{"url": "https://i.scdn.co/image/abc"}]}
	}
}`

type fakeAPI struct {
	mu        sync.Mutex
	product   string
	status    int
	devices   string
	transfers int
	played    []string
	authSeen  string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.authSeen = r.Header.Get("Authorization")
		status, product := f.status, f.product
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"status":401,"message":"The access token expired"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"user1","display_name":"Tester","product":"`+product+`"}`)
	})

	mux.HandleFunc("GET /me/player/devices", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_, _ = io.WriteString(w, f.devices)
	})

	mux.HandleFunc("GET /me/player", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, playerStateJSON)
	})

	mux.HandleFunc("PUT /me/player", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.transfers++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("PUT /me/player/play", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URIs []string `json:"uris"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.played = append(f.played, r.URL.Query().Get("device_id")+"|"+body.URIs[0])
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("PUT /me/player/repeat", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("PUT /me/player/shuffle", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func newTestClient(t *testing.T, api *fakeAPI) (*Client, context.Context) {
	t.Helper()

	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	config := core.DefaultConfig().Spotify
	config.APIBaseURL = server.URL
	config.DeviceName = "Muze"

	return NewClient(&config, 10*time.Millisecond, zap.NewNop()), ctx
}

func waitEvent(t *testing.T, client *Client) device.Event {
	t.Helper()
	select {
	case event := <-client.Events():
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SDK event")
		return device.Event{}
	}
}

func TestClient_ReadyThenPolls(t *testing.T) {
	api := &fakeAPI{
		product: PremiumProduct,
		devices: `{"devices":[
			{"id":"other","is_active":true,"name":"Phone","type":"Smartphone"},
			{"id":"d1","is_active":false,"name":"muze","type":"Computer"}
		]}`,
	}
	client, ctx := newTestClient(t, api)

	require.NoError(t, client.Init(ctx, "BQD-test"))

	ready := waitEvent(t, client)
	assert.Equal(t, device.EventReady, ready.Kind)
	assert.Equal(t, "d1", ready.DeviceID)

	changed := waitEvent(t, client)
	require.Equal(t, device.EventPlayerStateChanged, changed.Kind)
	require.NotNil(t, changed.State)
	require.NotNil(t, changed.State.Track)
	assert.Equal(t, "spotify:track:abc", changed.State.Track.URI)
	assert.Equal(t, []string{"Artist One", "Artist Two"}, changed.State.Track.Artists)
	assert.Equal(t, "https://i.scdn.co/image/abc", changed.State.Track.AlbumArtURL)
	assert.Equal(t, 1500*time.Millisecond, changed.State.Position)
	assert.Equal(t, 3*time.Minute, changed.State.Duration)
	assert.False(t, changed.State.Paused)

	api.mu.Lock()
	assert.Equal(t, "Bearer BQD-test", api.authSeen)
	api.mu.Unlock()
}

func TestClient_NotReadyUntilDeviceAppears(t *testing.T) {
	api := &fakeAPI{product: PremiumProduct, devices: `{"devices":[]}`}
	client, ctx := newTestClient(t, api)

	require.NoError(t, client.Init(ctx, "BQD-test"))
	assert.Equal(t, device.EventNotReady, waitEvent(t, client).Kind)

	api.mu.Lock()
	api.devices = `{"devices":[{"id":"d2","is_active":true,"name":"Laptop","type":"Computer"}]}`
	api.mu.Unlock()

	ready := waitEvent(t, client)
	assert.Equal(t, device.EventReady, ready.Kind)
	assert.Equal(t, "d2", ready.DeviceID)
}

func TestClient_AccountErrors(t *testing.T) {
	tests := []struct {
		name     string
		api      *fakeAPI
		expected device.EventKind
	}{
		{
			name:     "free account",
			api:      &fakeAPI{product: "free"},
			expected: device.EventAccountError,
		},
		{
			name:     "expired token",
			api:      &fakeAPI{status: http.StatusUnauthorized},
			expected: device.EventAuthenticationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, ctx := newTestClient(t, tt.api)

			require.NoError(t, client.Init(ctx, "BQD-test"))
			event := waitEvent(t, client)
			assert.Equal(t, tt.expected, event.Kind)
			assert.NotEmpty(t, event.Message)
		})
	}
}

func TestClient_ConnectAndPlay(t *testing.T) {
	api := &fakeAPI{product: PremiumProduct, devices: `{"devices":[]}`}
	client, ctx := newTestClient(t, api)

	_, err := client.Connect(ctx, "d1")
	require.Error(t, err, "Connect before Init must fail")

	require.NoError(t, client.Init(ctx, "BQD-test"))

	ok, err := client.Connect(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, client.Play(ctx, "d1", "spotify:track:abc"))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, 1, api.transfers)
	assert.Equal(t, []string{"d1|spotify:track:abc"}, api.played)
}

func TestClient_InitTwice(t *testing.T) {
	api := &fakeAPI{product: PremiumProduct, devices: `{"devices":[]}`}
	client, ctx := newTestClient(t, api)

	require.NoError(t, client.Init(ctx, "BQD-test"))
	assert.Error(t, client.Init(ctx, "BQD-test"))
}
