package core

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"muze/internal/i18n"
)

const (
	playStatusSuccess = "success"
	playStatusFailed  = "failed"

	requestKindRandom         = "random"
	requestKindRecommendation = "recommendation"
	requestKindAddSong        = "add_song"
)

// Session is the listening session owned by the orchestrator's dispatch loop.
type Session struct {
	ID         string
	Queue      *SongQueue
	streaming  bool
	nowPlaying *NowPlaying
}

func NewSession(id string) *Session {
	return &Session{
		ID:    id,
		Queue: NewSongQueue(),
	}
}

// Orchestrator decides what plays next and turns every failure into a listener message.
// All session state is mutated from the goroutine running Run.
type Orchestrator struct {
	config    *Config
	tokens    TokenStore
	device    PlaybackDevice
	channel   RecommendationChannel
	playlist  PlaylistMutator
	presenter Presenter
	saved     SavedTracks
	metrics   Metrics
	logger    *zap.Logger
	localizer *i18n.Localizer

	session *Session
}

// NewOrchestrator creates an orchestrator for a fresh session.
func NewOrchestrator(
	config *Config,
	session *Session,
	tokens TokenStore,
	device PlaybackDevice,
	channel RecommendationChannel,
	playlist PlaylistMutator,
	presenter Presenter,
	saved SavedTracks,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:    config,
		session:   session,
		tokens:    tokens,
		device:    device,
		channel:   channel,
		playlist:  playlist,
		presenter: presenter,
		saved:     saved,
		metrics:   noopMetrics{},
		logger:    logger,
		localizer: i18n.NewLocalizer(config.App.Language),
	}
}

// SetMetrics attaches a metrics recorder.
func (o *Orchestrator) SetMetrics(metrics Metrics) {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	o.metrics = metrics
}

// State returns a snapshot of the session state.
func (o *Orchestrator) State() SessionState {
	return SessionState{
		Streaming:           o.session.streaming,
		WaitingForFirstSong: o.session.Queue.WaitingForFirstSong(),
	}
}

// Run is the single dispatch loop. It returns when ctx is done.
func (o *Orchestrator) Run(ctx context.Context, intents <-chan Intent) error {
	o.logger.Info("Starting session orchestrator", zap.String("sessionID", o.session.ID))

	tokenReady := o.tokens.Ready()
	if _, ok := o.tokens.GetToken(); ok {
		tokenReady = nil
		o.initDevice(ctx)
	} else {
		o.logger.Info("No bearer token yet, waiting for login",
			zap.String("loginURL", o.tokens.LoginURL()))
	}

	channelEvents := o.channel.Events()
	deviceEvents := o.device.Events()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Session orchestrator stopped", zap.String("sessionID", o.session.ID))
			return nil
		case <-tokenReady:
			tokenReady = nil
			o.initDevice(ctx)
		case intent, ok := <-intents:
			if !ok {
				intents = nil
				continue
			}
			o.HandleIntent(ctx, intent)
		case event, ok := <-channelEvents:
			if !ok {
				channelEvents = nil
				continue
			}
			o.HandleChannelEvent(ctx, event)
		case event, ok := <-deviceEvents:
			if !ok {
				deviceEvents = nil
				continue
			}
			o.HandleDeviceEvent(ctx, event)
		}
	}
}

func (o *Orchestrator) initDevice(ctx context.Context) {
	token, ok := o.tokens.GetToken()
	if !ok {
		o.logger.Error("Token store signalled ready without a token")
		return
	}

	if err := o.device.Init(ctx, token); err != nil {
		o.logger.Error("Failed to initialize playback device", zap.Error(err))
		o.metrics.RecordError("device", KindOf(err).String())
		o.notify("error.device.failed", "device_failed")
		return
	}

	o.logger.Info("Playback device initializing")
}

// HandleIntent routes a user intent.
func (o *Orchestrator) HandleIntent(ctx context.Context, intent Intent) {
	o.logger.Debug("Received intent",
		zap.String("action", string(intent.Action)),
		zap.String("clientID", intent.ClientID))

	switch {
	case intent.Action == ActionPlay || intent.Action == ActionRandom:
		o.PlayRandom(ctx)
	case intent.Action.IsRecommendation():
		o.Recommend(ctx, intent.Action)
	case intent.Action == ActionAddSong:
		o.AddSong(ctx)
	case intent.Action == ActionViewReady:
		o.presentView()
	default:
		o.logger.Debug("Could not map intent to an action", zap.String("text", intent.Text))
		o.notify("error.not_understood", "not_understood")
	}
}

// PlayRandom connects the device if needed and asks the server for a random song.
func (o *Orchestrator) PlayRandom(ctx context.Context) {
	o.presenter.SetState(ViewState{Loading: true})

	if !o.ensureConnected(ctx) {
		return
	}

	o.session.Queue.Reset()
	o.metrics.SetQueueLength(0)
	o.metrics.RecordRequest(requestKindRandom)

	if err := o.channel.RequestRandomSong(ctx); err != nil {
		o.logger.Warn("Failed to request random song", zap.Error(err))
		o.metrics.RecordError("channel", KindOf(err).String())
		o.notify("error.channel.unavailable", "channel_unavailable")
		return
	}

	o.logger.Debug("Requested random song")
}

// Recommend asks the server for a track related to the one playing, steered by action.
// The request is aborted when the current track cannot be read.
func (o *Orchestrator) Recommend(ctx context.Context, action Action) {
	adjective, ok := action.Adjective()
	if !ok {
		o.logger.Warn("Not a recommendation action", zap.String("action", string(action)))
		return
	}

	o.presenter.SetState(ViewState{Loading: true})

	current, err := o.device.GetCurrentTrack(ctx)
	if err != nil {
		o.logger.Info("Cannot recommend without a current track", zap.Error(err))
		o.metrics.RecordError("device", KindOf(err).String())
		o.notify("error.recommendations.no_current_track", "no_current_track")
		return
	}

	o.session.Queue.Reset()
	o.metrics.SetQueueLength(0)
	o.metrics.RecordRequest(requestKindRecommendation)

	req := RecommendationRequest{
		Song:       current.DisplayName,
		SpotifyURI: current.URI,
		Adjective:  adjective,
	}
	if err := o.channel.RequestRecommendation(ctx, req); err != nil {
		o.logger.Warn("Failed to request recommendation", zap.Error(err))
		o.metrics.RecordError("channel", KindOf(err).String())
		o.notify("error.channel.unavailable", "channel_unavailable")
		return
	}

	o.logger.Debug("Requested recommendation",
		zap.String("seedURI", current.URI),
		zap.String("adjective", adjective))
}

// AddSong saves the current track to the configured playlist.
func (o *Orchestrator) AddSong(ctx context.Context) {
	o.presenter.SetState(ViewState{Loading: true})

	current, err := o.device.GetCurrentTrack(ctx)
	if err != nil {
		o.logger.Info("Cannot add to playlist without a current track", zap.Error(err))
		o.notify("error.playlist.current_track", "no_current_track")
		return
	}

	if o.saved != nil && o.saved.Has(current.URI) {
		o.notify("success.duplicate", "duplicate")
		return
	}

	o.metrics.RecordRequest(requestKindAddSong)

	result, err := o.playlist.AddTracks(ctx, o.config.Spotify.PlaylistID, []string{current.URI})
	if err != nil || !result.OK {
		o.logger.Warn("Failed to add track to playlist",
			zap.String("trackURI", current.URI),
			zap.Int("status", result.StatusCode),
			zap.Error(err))
		reason := "add_failed"
		if err != nil {
			reason = KindOf(err).String()
		}
		o.metrics.RecordError("playlist", reason)
		o.notify("error.playlist.add_failed", "add_failed")
		return
	}

	if o.saved != nil {
		o.saved.Add(current.URI)
	}

	name := current.DisplayName
	if name == "" {
		name = current.URI
	}
	o.notify("success.playlist.added", "playlist_added", name)
}

// HandleChannelEvent applies an inbound recommendation channel event.
func (o *Orchestrator) HandleChannelEvent(ctx context.Context, event ChannelEvent) {
	switch event.Kind {
	case ChannelEventSongBatch:
		o.HandleSongBatch(ctx, event.Tracks)
	case ChannelEventMessage:
		o.logger.Info("Server message", zap.String("text", event.Text))
		o.metrics.RecordUserMessage(KindChannel.String())
		o.presenter.PresentMessage(event.Text)
		o.presenter.SetState(ViewState{Loading: false})
	}
}

// HandleSongBatch plays the head of a batch when the session waits for its first song
// and queues everything else.
func (o *Orchestrator) HandleSongBatch(ctx context.Context, tracks []TrackRef) {
	o.metrics.RecordBatch(len(tracks))

	if len(tracks) == 0 {
		o.logger.Info("Received empty song batch")
		o.notify("error.recommendations.empty", KindEmptyResult.String())
		return
	}

	if o.session.Queue.ClaimFirstSong() {
		first := tracks[0]
		o.session.Queue.Enqueue(tracks[1:]...)
		o.metrics.SetQueueLength(o.session.Queue.Len())
		o.play(ctx, first)
		return
	}

	o.session.Queue.Enqueue(tracks...)
	o.metrics.SetQueueLength(o.session.Queue.Len())
	o.logger.Debug("Queued song batch",
		zap.Int("batchSize", len(tracks)),
		zap.Int("queueLength", o.session.Queue.Len()))
}

// HandleSongEnded plays the next queued track. An empty queue leaves the session idle.
func (o *Orchestrator) HandleSongEnded(ctx context.Context) {
	next, ok := o.session.Queue.TryDequeue()
	if !ok {
		o.logger.Debug("Song ended with an empty queue, waiting for the next request")
		return
	}

	o.metrics.SetQueueLength(o.session.Queue.Len())
	o.play(ctx, next)
}

// HandleDeviceEvent applies an event from the playback device.
func (o *Orchestrator) HandleDeviceEvent(ctx context.Context, event DeviceEvent) {
	switch event.Kind {
	case DeviceEventTrackChanged:
		np := event.NowPlaying
		o.session.nowPlaying = &np
		o.presenter.UpdateCurrentlyPlaying(np)
	case DeviceEventSongEnded:
		o.HandleSongEnded(ctx)
	case DeviceEventFailed:
		o.logger.Error("Playback device failed", zap.Error(event.Err))
		o.metrics.RecordError("device", KindDevice.String())
		o.notify("error.device.failed", "device_failed")
	}
}

func (o *Orchestrator) play(ctx context.Context, track TrackRef) {
	if err := o.device.PlaySong(ctx, track.URI); err != nil {
		o.logger.Warn("Failed to play song",
			zap.String("trackURI", track.URI),
			zap.Stringer("kind", KindOf(err)),
			zap.Error(err))
		o.metrics.RecordPlay(playStatusFailed)
		o.metrics.RecordError("device", KindOf(err).String())
		o.notify("error.play_failed", "play_failed")
		return
	}

	o.metrics.RecordPlay(playStatusSuccess)
	o.presenter.SetState(ViewState{Loading: false})
	o.logger.Info("Playing song", zap.String("trackURI", track.URI))

	if !o.session.streaming {
		o.session.streaming = true
		o.logger.Info("Session is streaming", zap.String("sessionID", o.session.ID))
		o.presenter.PresentRecommendationControls(RecommendationActions)
		o.presenter.PresentPlaylistEditorControls()
	}
}

func (o *Orchestrator) ensureConnected(ctx context.Context) bool {
	connected, err := o.device.Connect(ctx)
	if err == nil && connected {
		return true
	}

	o.logger.Warn("Playback device not connected", zap.Error(err))
	o.metrics.RecordError("device", KindOf(err).String())

	if errors.Is(err, ErrNotInitialized) || errors.Is(err, ErrTokenAbsent) {
		o.notify("error.login_required", "login_required")
		return false
	}
	o.notify("error.device.connect_failed", "connect_failed")
	return false
}

// presentView re-renders the current view for a newly attached surface.
func (o *Orchestrator) presentView() {
	if !o.session.streaming {
		o.presenter.PresentSinglePlayButton()
		return
	}

	o.presenter.PresentRecommendationControls(RecommendationActions)
	o.presenter.PresentPlaylistEditorControls()
	if o.session.nowPlaying != nil {
		o.presenter.UpdateCurrentlyPlaying(*o.session.nowPlaying)
	}
}

func (o *Orchestrator) notify(key, kind string, args ...any) {
	o.metrics.RecordUserMessage(kind)
	o.presenter.PresentMessage(o.localizer.T(key, args...))
	o.presenter.SetState(ViewState{Loading: false})
}

type noopMetrics struct{}

func (noopMetrics) RecordPlay(string) {}
func (noopMetrics) RecordRequest(string) {}
func (noopMetrics) RecordBatch(int) {}
func (noopMetrics) RecordUserMessage(string) {}
func (noopMetrics) RecordError(string, string) {}
func (noopMetrics) SetQueueLength(int) {}
