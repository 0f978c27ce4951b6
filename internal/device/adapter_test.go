package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"muze/internal/core"
)

type fakeSDK struct {
	mu           sync.Mutex
	events       chan Event
	initErr      error
	connectErr   error
	connectCalls int
	playErr      error
	playBlocks   bool
	played       []string
	state        *PlaybackState
}

func newFakeSDK() *fakeSDK {
	return &fakeSDK{events: make(chan Event, 16)}
}

func (f *fakeSDK) Init(_ context.Context, _ core.BearerToken) error {
	return f.initErr
}

func (f *fakeSDK) Connect(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectErr != nil {
		return false, f.connectErr
	}
	return true, nil
}

func (f *fakeSDK) Play(ctx context.Context, _, trackURI string) error {
	if f.playBlocks {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.played = append(f.played, trackURI)
	return nil
}

func (f *fakeSDK) CurrentState(_ context.Context) (*PlaybackState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeSDK) Events() <-chan Event {
	return f.events
}

func (f *fakeSDK) connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeSDK, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sdk := newFakeSDK()
	return NewAdapter(sdk, 200*time.Millisecond, time.Second, zap.NewNop()), sdk, ctx
}

func connectedAdapter(t *testing.T) (*Adapter, *fakeSDK, context.Context) {
	t.Helper()
	adapter, sdk, ctx := newTestAdapter(t)

	require.NoError(t, adapter.Init(ctx, "BQD-test"))
	sdk.events <- Event{Kind: EventReady, DeviceID: "device1"}

	ok, err := adapter.Connect(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	return adapter, sdk, ctx
}

func nextEvent(t *testing.T, adapter *Adapter) core.DeviceEvent {
	t.Helper()
	select {
	case event := <-adapter.Events():
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for device event")
		return core.DeviceEvent{}
	}
}

func playing(uri string, position time.Duration) *PlaybackState {
	return &PlaybackState{
		Track:    &TrackInfo{ID: uri[len("spotify:track:"):], URI: uri, Name: "Song " + uri, Artists: []string{"A", "B"}},
		Position: position,
		Duration: 3 * time.Minute,
	}
}

func TestAdapter_InitRequiresToken(t *testing.T) {
	adapter, _, ctx := newTestAdapter(t)

	err := adapter.Init(ctx, "")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindPrecondition))
	assert.True(t, errors.Is(err, core.ErrTokenAbsent))
	assert.Equal(t, StateUninitialized, adapter.State())
}

func TestAdapter_ConnectLifecycle(t *testing.T) {
	adapter, sdk, ctx := newTestAdapter(t)

	_, err := adapter.Connect(ctx)
	assert.True(t, errors.Is(err, core.ErrNotInitialized))

	require.NoError(t, adapter.Init(ctx, "BQD-test"))
	assert.Equal(t, StateInitializing, adapter.State())

	sdk.events <- Event{Kind: EventReady, DeviceID: "device1"}

	ok, err := adapter.Connect(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StateConnected, adapter.State())

	// Idempotent once connected
	ok, err = adapter.Connect(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, sdk.connects())
}

func TestAdapter_ConnectFailureStaysReady(t *testing.T) {
	adapter, sdk, ctx := newTestAdapter(t)
	sdk.connectErr = errors.New("transfer refused")

	require.NoError(t, adapter.Init(ctx, "BQD-test"))
	sdk.events <- Event{Kind: EventReady, DeviceID: "device1"}

	ok, err := adapter.Connect(ctx)
	assert.False(t, ok)
	assert.True(t, core.IsKind(err, core.KindDevice))
	assert.Equal(t, StateReady, adapter.State())

	sdk.mu.Lock()
	sdk.connectErr = nil
	sdk.mu.Unlock()

	ok, err = adapter.Connect(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdapter_ConnectTimesOutWithoutReady(t *testing.T) {
	adapter, _, ctx := newTestAdapter(t)
	require.NoError(t, adapter.Init(ctx, "BQD-test"))

	ok, err := adapter.Connect(ctx)
	assert.False(t, ok)
	assert.True(t, core.IsKind(err, core.KindTimedOut))
}

func TestAdapter_PlaySong(t *testing.T) {
	t.Run("missing uri is a precondition error", func(t *testing.T) {
		adapter, _, ctx := connectedAdapter(t)

		err := adapter.PlaySong(ctx, "")
		assert.True(t, core.IsKind(err, core.KindPrecondition))
		assert.False(t, errors.Is(err, core.ErrPlaybackFailed))
	})

	t.Run("not connected", func(t *testing.T) {
		adapter, _, ctx := newTestAdapter(t)

		err := adapter.PlaySong(ctx, "spotify:track:a")
		assert.True(t, errors.Is(err, core.ErrPlaybackFailed))
		assert.True(t, errors.Is(err, core.ErrNotConnected))
	})

	t.Run("sdk rejects", func(t *testing.T) {
		adapter, sdk, ctx := connectedAdapter(t)
		sdk.playErr = errors.New("502 bad gateway")

		err := adapter.PlaySong(ctx, "spotify:track:a")
		assert.True(t, errors.Is(err, core.ErrPlaybackFailed))
		assert.True(t, core.IsKind(err, core.KindDevice))
	})

	t.Run("hung call times out", func(t *testing.T) {
		adapter, sdk, ctx := connectedAdapter(t)
		sdk.playBlocks = true

		err := adapter.PlaySong(ctx, "spotify:track:a")
		assert.True(t, core.IsKind(err, core.KindTimedOut))
	})

	t.Run("success", func(t *testing.T) {
		adapter, sdk, ctx := connectedAdapter(t)

		require.NoError(t, adapter.PlaySong(ctx, "spotify:track:a"))
		assert.Equal(t, []string{"spotify:track:a"}, sdk.played)
	})
}

func TestAdapter_GetCurrentTrack(t *testing.T) {
	adapter, sdk, ctx := connectedAdapter(t)

	_, err := adapter.GetCurrentTrack(ctx)
	assert.True(t, errors.Is(err, core.ErrNoActiveTrack))

	sdk.mu.Lock()
	sdk.state = playing("spotify:track:abc", time.Second)
	sdk.mu.Unlock()

	track, err := adapter.GetCurrentTrack(ctx)
	require.NoError(t, err)
	assert.Equal(t, "spotify:track:abc", track.URI)
	assert.Equal(t, "Song spotify:track:abc", track.DisplayName)
}

func TestAdapter_TrackChangeIsDeduplicated(t *testing.T) {
	adapter, sdk, _ := connectedAdapter(t)

	sdk.events <- Event{Kind: EventPlayerStateChanged, State: playing("spotify:track:abc", time.Second)}
	sdk.events <- Event{Kind: EventPlayerStateChanged, State: playing("spotify:track:abc", 2*time.Second)}
	sdk.events <- Event{Kind: EventPlayerStateChanged, State: playing("spotify:track:def", 0)}

	first := nextEvent(t, adapter)
	assert.Equal(t, core.DeviceEventTrackChanged, first.Kind)
	assert.Equal(t, "Song spotify:track:abc", first.NowPlaying.SongName)
	assert.Equal(t, "A, B", first.NowPlaying.ArtistName)
	assert.Equal(t, "https://open.spotify.com/track/abc", first.NowPlaying.SongLink)

	second := nextEvent(t, adapter)
	assert.Equal(t, core.DeviceEventTrackChanged, second.Kind)
	assert.Equal(t, "spotify:track:def", second.NowPlaying.URI)
}

func TestAdapter_SongEnded(t *testing.T) {
	adapter, sdk, _ := connectedAdapter(t)

	ended := playing("spotify:track:abc", 0)
	ended.Paused = true

	sdk.events <- Event{Kind: EventPlayerStateChanged, State: playing("spotify:track:abc", 2*time.Minute)}
	sdk.events <- Event{Kind: EventPlayerStateChanged, State: ended}
	sdk.events <- Event{Kind: EventPlayerStateChanged, State: ended}

	assert.Equal(t, core.DeviceEventTrackChanged, nextEvent(t, adapter).Kind)
	assert.Equal(t, core.DeviceEventSongEnded, nextEvent(t, adapter).Kind)

	select {
	case event := <-adapter.Events():
		t.Fatalf("Unexpected event %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSongEnded(t *testing.T) {
	paused := func(s *PlaybackState) *PlaybackState {
		s.Paused = true
		return s
	}
	const window = 2 * time.Second
	nearEnd := 3*time.Minute - time.Second

	tests := []struct {
		name      string
		previous  *PlaybackState
		current   *PlaybackState
		commanded string
		expected  bool
	}{
		{"no previous state", nil, playing("spotify:track:a", 0), "", false},
		{"still playing", playing("spotify:track:a", time.Second), playing("spotify:track:a", 2*time.Second), "", false},
		{"paused at start of same track", playing("spotify:track:a", time.Minute), paused(playing("spotify:track:a", 0)), "", true},
		{"user paused mid-track", playing("spotify:track:a", time.Minute), paused(playing("spotify:track:a", time.Minute)), "", false},
		{"track gone", playing("spotify:track:a", time.Minute), nil, "", true},
		{"was already paused", paused(playing("spotify:track:a", time.Minute)), paused(playing("spotify:track:a", 0)), "", false},
		{"autoplay after natural end", playing("spotify:track:a", nearEnd), playing("spotify:track:x", time.Second), "spotify:track:a", true},
		{"autoplay after end paused", playing("spotify:track:a", nearEnd), paused(playing("spotify:track:x", 0)), "spotify:track:a", true},
		{"skipped mid-track", playing("spotify:track:a", time.Minute), playing("spotify:track:x", time.Second), "spotify:track:a", false},
		{"session played next track", playing("spotify:track:a", nearEnd), playing("spotify:track:b", 0), "spotify:track:b", false},
		{"unknown duration", &PlaybackState{Track: &TrackInfo{URI: "spotify:track:a"}, Position: nearEnd}, playing("spotify:track:x", 0), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, songEnded(tt.previous, tt.current, tt.commanded, window))
		})
	}
}

func TestAdapter_AutoplayAfterNaturalEnd(t *testing.T) {
	adapter, sdk, ctx := connectedAdapter(t)

	require.NoError(t, adapter.PlaySong(ctx, "spotify:track:abc"))

	sdk.events <- Event{Kind: EventPlayerStateChanged, State: playing("spotify:track:abc", 3*time.Minute-500*time.Millisecond)}
	assert.Equal(t, core.DeviceEventTrackChanged, nextEvent(t, adapter).Kind)

	sdk.events <- Event{Kind: EventPlayerStateChanged, State: playing("spotify:track:xyz", time.Second)}
	assert.Equal(t, core.DeviceEventSongEnded, nextEvent(t, adapter).Kind)

	changed := nextEvent(t, adapter)
	assert.Equal(t, core.DeviceEventTrackChanged, changed.Kind)
	assert.Equal(t, "spotify:track:xyz", changed.NowPlaying.URI)
}

func TestAdapter_CommandedTrackIsNotAnEnd(t *testing.T) {
	adapter, sdk, ctx := connectedAdapter(t)

	require.NoError(t, adapter.PlaySong(ctx, "spotify:track:abc"))
	sdk.events <- Event{Kind: EventPlayerStateChanged, State: playing("spotify:track:abc", 3*time.Minute-500*time.Millisecond)}
	assert.Equal(t, core.DeviceEventTrackChanged, nextEvent(t, adapter).Kind)

	require.NoError(t, adapter.PlaySong(ctx, "spotify:track:def"))
	sdk.events <- Event{Kind: EventPlayerStateChanged, State: playing("spotify:track:def", 0)}

	changed := nextEvent(t, adapter)
	assert.Equal(t, core.DeviceEventTrackChanged, changed.Kind)
	assert.Equal(t, "spotify:track:def", changed.NowPlaying.URI)
}

func TestAdapter_ErrorEventIsTerminal(t *testing.T) {
	adapter, sdk, ctx := connectedAdapter(t)

	sdk.events <- Event{Kind: EventPlaybackError, Message: "cannot play"}
	sdk.events <- Event{Kind: EventAccountError, Message: "premium required"}

	failed := nextEvent(t, adapter)
	assert.Equal(t, core.DeviceEventFailed, failed.Kind)
	assert.True(t, errors.Is(failed.Err, core.ErrDeviceFailed))

	require.Eventually(t, func() bool {
		return adapter.State() == StateFailed
	}, time.Second, 10*time.Millisecond)

	ok, err := adapter.Connect(ctx)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, core.ErrDeviceFailed))

	select {
	case event := <-adapter.Events():
		t.Fatalf("Only the first error should be forwarded, got %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}
