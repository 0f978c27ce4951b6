package core

import (
	"context"
	"time"
)

// BearerToken is an opaque OAuth access token. It must never reach a log line.
type BearerToken string

const redactedToken = "[REDACTED]"

// String keeps the token out of logs and formatted errors.
func (t BearerToken) String() string {
	if t == "" {
		return ""
	}
	return redactedToken
}

// Reveal returns the raw token for the Authorization header.
func (t BearerToken) Reveal() string {
	return string(t)
}

// TrackRef identifies a track by URI. Two refs are the same track iff their URIs match.
type TrackRef struct {
	URI         string
	DisplayName string
}

// NowPlaying is the normalized track-change payload forwarded to the presentation surface.
type NowPlaying struct {
	URI          string
	SongName     string
	ArtistName   string
	AlbumName    string
	AlbumArtLink string
	SongLink     string
}

// SessionState is the orchestrator's view of the listening session.
type SessionState struct {
	Streaming           bool
	WaitingForFirstSong bool
}

// ViewState is pushed to the presentation surface.
type ViewState struct {
	Loading bool
}

// Action enumerates the user intents a presentation surface can emit.
type Action string

const (
	ActionPlay         Action = "play"
	ActionRandom       Action = "random"
	ActionSimilar      Action = "similar"
	ActionMoreElectric Action = "moreElectric"
	ActionMoreAcoustic Action = "moreAcoustic"
	ActionMoreObscure  Action = "moreObscure"
	ActionMorePopular  Action = "morePopular"
	ActionHappier      Action = "happier"
	ActionSadder       Action = "sadder"
	ActionLessDancey   Action = "lessDancey"
	ActionMoreDancey   Action = "moreDancey"
	ActionAddSong      Action = "addSong"
	ActionViewReady    Action = "viewReady"
	ActionUnknown      Action = "unknown"
)

// recommendationAdjectives maps steering actions to the adjective understood by the server.
// ActionSimilar maps to the empty adjective.
var recommendationAdjectives = map[Action]string{
	ActionSimilar:      "",
	ActionMoreElectric: "less acoustic",
	ActionMoreAcoustic: "more acoustic",
	ActionMoreObscure:  "less popular",
	ActionMorePopular:  "more popular",
	ActionHappier:      "more happy",
	ActionSadder:       "less happy",
	ActionLessDancey:   "less dancey",
	ActionMoreDancey:   "more dancey",
}

// RecommendationActions lists the steering controls in display order.
var RecommendationActions = []Action{
	ActionSimilar,
	ActionMoreElectric,
	ActionMoreAcoustic,
	ActionMoreObscure,
	ActionMorePopular,
	ActionHappier,
	ActionSadder,
	ActionLessDancey,
	ActionMoreDancey,
	ActionRandom,
}

// Adjective returns the server adjective for a steering action.
func (a Action) Adjective() (string, bool) {
	adj, ok := recommendationAdjectives[a]
	return adj, ok
}

// IsRecommendation reports whether the action asks for a steered recommendation.
func (a Action) IsRecommendation() bool {
	_, ok := recommendationAdjectives[a]
	return ok
}

// ParseAction converts a wire identifier into an Action.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionPlay, ActionRandom, ActionAddSong, ActionViewReady:
		return a, true
	default:
		if a.IsRecommendation() {
			return a, true
		}
		return ActionUnknown, false
	}
}

// Intent is a user request delivered by the presentation surface.
type Intent struct {
	Action   Action
	ClientID string
	Text     string
	At       time.Time
}

// RecommendationRequest is the payload of a "get recommendation" event.
type RecommendationRequest struct {
	Song       string `json:"song"`
	SpotifyURI string `json:"spotify_uri"`
	Adjective  string `json:"adjective,omitempty"`
}

type ChannelEventKind int

const (
	// ChannelEventSongBatch carries a "new song" batch of track URIs
	ChannelEventSongBatch ChannelEventKind = iota
	// ChannelEventMessage carries a user-facing "msg" text
	ChannelEventMessage
)

// ChannelEvent is an inbound recommendation channel event.
type ChannelEvent struct {
	Kind   ChannelEventKind
	Tracks []TrackRef
	Text   string
}

type DeviceEventKind int

const (
	// DeviceEventTrackChanged fires once per distinct track URI in a row
	DeviceEventTrackChanged DeviceEventKind = iota
	// DeviceEventSongEnded fires when a track plays to completion
	DeviceEventSongEnded
	// DeviceEventFailed fires when the SDK reports an error and the device becomes unusable
	DeviceEventFailed
)

// DeviceEvent is emitted by the playback device adapter.
type DeviceEvent struct {
	Kind       DeviceEventKind
	NowPlaying NowPlaying
	Err        error
}

// MutationResult reports the outcome of a playlist mutation.
type MutationResult struct {
	OK         bool
	StatusCode int
}

type TokenStore interface {
	GetToken() (BearerToken, bool)
	LoginURL() string
	Ready() <-chan struct{}
}

type PlaybackDevice interface {
	Init(ctx context.Context, token BearerToken) error
	Connect(ctx context.Context) (bool, error)
	PlaySong(ctx context.Context, trackURI string) error
	GetCurrentTrack(ctx context.Context) (TrackRef, error)
	Events() <-chan DeviceEvent
}

type RecommendationChannel interface {
	RequestRandomSong(ctx context.Context) error
	RequestRecommendation(ctx context.Context, req RecommendationRequest) error
	Events() <-chan ChannelEvent
}

type PlaylistMutator interface {
	AddTracks(ctx context.Context, playlistID string, trackURIs []string) (MutationResult, error)
}

// Presenter is the presentation surface. It only renders; it never calls back into the session.
type Presenter interface {
	UpdateCurrentlyPlaying(np NowPlaying)
	PresentSinglePlayButton()
	PresentRecommendationControls(actions []Action)
	PresentPlaylistEditorControls()
	PresentMessage(text string)
	SetState(state ViewState)
}

type SavedTracks interface {
	Has(trackURI string) bool
	Add(trackURI string)
}

type Metrics interface {
	RecordPlay(status string)
	RecordRequest(kind string)
	RecordBatch(size int)
	RecordUserMessage(kind string)
	RecordError(component, errorType string)
	SetQueueLength(n int)
}
