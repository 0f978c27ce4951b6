package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"muze/internal/core"
)

const (
	eventBufferSize = 16
	trackLinkPrefix = "https://open.spotify.com/track/"
	// trackEndSlack absorbs jitter between player state samples
	trackEndSlack = time.Second
)

type ConnectionState int

const (
	StateUninitialized ConnectionState = iota
	StateInitializing
	StateReady
	StateConnected
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Adapter implements core.PlaybackDevice on top of an SDK.
type Adapter struct {
	sdk       SDK
	logger    *zap.Logger
	timeout   time.Duration
	endWindow time.Duration

	mu        sync.Mutex
	state     ConnectionState
	deviceID  string
	ready     chan struct{}
	readyOnce sync.Once
	lastURI   string
	lastState *PlaybackState
	commanded string

	events chan core.DeviceEvent
}

// NewAdapter creates an adapter. endWindow is the spacing of player state samples; a track
// replaced by one the session did not play counts as ended when it was that close to its end.
func NewAdapter(sdk SDK, timeout, endWindow time.Duration, logger *zap.Logger) *Adapter {
	return &Adapter{
		sdk:       sdk,
		logger:    logger,
		timeout:   timeout,
		endWindow: endWindow,
		ready:     make(chan struct{}),
		events:    make(chan core.DeviceEvent, eventBufferSize),
	}
}

func (a *Adapter) Events() <-chan core.DeviceEvent {
	return a.events
}

func (a *Adapter) State() ConnectionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Init starts the SDK. An absent token is a precondition violation.
func (a *Adapter) Init(ctx context.Context, token core.BearerToken) error {
	const op = "device.Init"

	if token == "" {
		return core.NewError(core.KindPrecondition, op, core.ErrTokenAbsent)
	}

	a.mu.Lock()
	if a.state != StateUninitialized {
		state := a.state
		a.mu.Unlock()
		a.logger.Debug("Device already initialized", zap.Stringer("state", state))
		return nil
	}
	a.state = StateInitializing
	a.mu.Unlock()

	if err := a.sdk.Init(ctx, token); err != nil {
		a.setState(StateFailed)
		return core.NewError(core.KindDevice, op, err)
	}

	go a.consume(ctx)

	a.logger.Info("Device initializing")
	return nil
}

// Connect transfers playback to the device. It is a no-op when already connected
// and leaves the adapter in Ready when the transfer fails.
func (a *Adapter) Connect(ctx context.Context) (bool, error) {
	const op = "device.Connect"

	a.mu.Lock()
	state, ready := a.state, a.ready
	a.mu.Unlock()

	switch state {
	case StateConnected:
		return true, nil
	case StateUninitialized:
		return false, core.NewError(core.KindPrecondition, op, core.ErrNotInitialized)
	case StateFailed:
		return false, core.NewError(core.KindDevice, op, core.ErrDeviceFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	select {
	case <-ready:
	case <-ctx.Done():
		return false, core.NewError(core.KindDevice, op, fmt.Errorf("waiting for device: %w", ctx.Err()))
	}

	a.mu.Lock()
	state, deviceID := a.state, a.deviceID
	a.mu.Unlock()

	switch state {
	case StateConnected:
		return true, nil
	case StateFailed:
		return false, core.NewError(core.KindDevice, op, core.ErrDeviceFailed)
	}

	ok, err := a.sdk.Connect(ctx, deviceID)
	if err == nil && !ok {
		err = core.ErrNotConnected
	}
	if err != nil {
		a.logger.Warn("Failed to connect device", zap.String("deviceID", deviceID), zap.Error(err))
		return false, core.NewError(core.KindDevice, op, err)
	}

	a.mu.Lock()
	if a.state == StateReady {
		a.state = StateConnected
	}
	a.mu.Unlock()

	a.logger.Info("Device connected", zap.String("deviceID", deviceID))
	return true, nil
}

// PlaySong starts trackURI on the connected device.
func (a *Adapter) PlaySong(ctx context.Context, trackURI string) error {
	const op = "device.PlaySong"

	if trackURI == "" {
		return core.NewError(core.KindPrecondition, op, core.ErrMissingTrackURI)
	}

	deviceID, err := a.connectedDevice()
	if err != nil {
		return core.NewError(core.KindDevice, op, fmt.Errorf("%w: %w", core.ErrPlaybackFailed, err))
	}

	a.mu.Lock()
	a.commanded = trackURI
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.sdk.Play(ctx, deviceID, trackURI); err != nil {
		return core.NewError(core.KindDevice, op, fmt.Errorf("%w: %w", core.ErrPlaybackFailed, err))
	}

	a.logger.Debug("Play command sent", zap.String("trackURI", trackURI), zap.String("deviceID", deviceID))
	return nil
}

// GetCurrentTrack reads the track loaded on the device.
func (a *Adapter) GetCurrentTrack(ctx context.Context) (core.TrackRef, error) {
	const op = "device.GetCurrentTrack"

	if _, err := a.connectedDevice(); err != nil {
		return core.TrackRef{}, core.NewError(core.KindDevice, op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	state, err := a.sdk.CurrentState(ctx)
	if err != nil {
		return core.TrackRef{}, core.NewError(core.KindDevice, op, err)
	}
	if state == nil || state.Track == nil || state.Track.URI == "" {
		return core.TrackRef{}, core.NewError(core.KindDevice, op, core.ErrNoActiveTrack)
	}

	return core.TrackRef{URI: state.Track.URI, DisplayName: state.Track.Name}, nil
}

func (a *Adapter) connectedDevice() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateConnected {
		return "", core.ErrNotConnected
	}
	return a.deviceID, nil
}

func (a *Adapter) setState(state ConnectionState) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
}

func (a *Adapter) consume(ctx context.Context) {
	sdkEvents := a.sdk.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sdkEvents:
			if !ok {
				return
			}
			a.handle(ctx, event)
		}
	}
}

func (a *Adapter) handle(ctx context.Context, event Event) {
	switch {
	case event.Kind.IsError():
		a.handleError(ctx, event)
	case event.Kind == EventReady:
		a.mu.Lock()
		if a.state == StateInitializing {
			a.state = StateReady
		}
		a.deviceID = event.DeviceID
		a.mu.Unlock()
		a.readyOnce.Do(func() { close(a.ready) })
		a.logger.Info("Device ready", zap.String("deviceID", event.DeviceID))
	case event.Kind == EventNotReady:
		a.logger.Warn("Device went offline", zap.String("deviceID", event.DeviceID))
	case event.Kind == EventPlayerStateChanged:
		a.observe(ctx, event.State)
	}
}

// handleError moves the adapter to Failed. Only the first error is forwarded.
func (a *Adapter) handleError(ctx context.Context, event Event) {
	a.mu.Lock()
	alreadyFailed := a.state == StateFailed
	a.state = StateFailed
	a.mu.Unlock()

	a.logger.Error("Device reported an error",
		zap.String("event", string(event.Kind)),
		zap.String("message", event.Message))

	if alreadyFailed {
		return
	}

	err := core.NewError(core.KindDevice, "device."+string(event.Kind),
		fmt.Errorf("%w: %s", core.ErrDeviceFailed, event.Message))
	a.emit(ctx, core.DeviceEvent{Kind: core.DeviceEventFailed, Err: err})
}

func (a *Adapter) observe(ctx context.Context, state *PlaybackState) {
	a.mu.Lock()
	previous, commanded := a.lastState, a.commanded
	a.lastState = state

	var changed *core.NowPlaying
	if state != nil && state.Track != nil && state.Track.URI != a.lastURI {
		a.lastURI = state.Track.URI
		np := toNowPlaying(state.Track)
		changed = &np
	}
	a.mu.Unlock()

	if songEnded(previous, state, commanded, a.endWindow+trackEndSlack) {
		a.logger.Debug("Song ended", zap.String("trackURI", previous.Track.URI))
		a.emit(ctx, core.DeviceEvent{Kind: core.DeviceEventSongEnded})
	}

	if changed != nil {
		a.emit(ctx, core.DeviceEvent{Kind: core.DeviceEventTrackChanged, NowPlaying: *changed})
	}
}

// songEnded reports whether the player went from playing a track to having finished it.
// The track is gone, the player is paused at the start of that same track, or the player
// moved on to a track the session did not command while the previous one was within
// window of its end. The last case covers the vendor's autoplay after a natural end.
func songEnded(previous, current *PlaybackState, commanded string, window time.Duration) bool {
	if previous == nil || previous.Track == nil || previous.Paused {
		return false
	}
	if current == nil || current.Track == nil {
		return true
	}
	if current.Track.URI == previous.Track.URI {
		return current.Paused && current.Position == 0
	}
	if current.Track.URI == commanded || previous.Duration <= 0 {
		return false
	}
	return previous.Duration-previous.Position <= window
}

func (a *Adapter) emit(ctx context.Context, event core.DeviceEvent) {
	select {
	case a.events <- event:
	case <-ctx.Done():
	}
}

func toNowPlaying(track *TrackInfo) core.NowPlaying {
	np := core.NowPlaying{
		URI:          track.URI,
		SongName:     track.Name,
		ArtistName:   strings.Join(track.Artists, ", "),
		AlbumName:    track.Album,
		AlbumArtLink: track.AlbumArtURL,
	}
	if track.ID != "" {
		np.SongLink = trackLinkPrefix + track.ID
	}
	return np
}
