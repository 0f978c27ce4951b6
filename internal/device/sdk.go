// Package device adapts a vendor streaming SDK into the session's playback device.
package device

import (
	"context"
	"time"

	"muze/internal/core"
)

// EventKind names the SDK's native events.
type EventKind string

const (
	EventInitializationError EventKind = "initialization_error"
	EventAuthenticationError EventKind = "authentication_error"
	EventAccountError        EventKind = "account_error"
	EventPlaybackError       EventKind = "playback_error"
	EventReady               EventKind = "ready"
	EventNotReady            EventKind = "not_ready"
	EventPlayerStateChanged  EventKind = "player_state_changed"
)

// IsError reports whether the event is one of the SDK's error events.
func (k EventKind) IsError() bool {
	switch k {
	case EventInitializationError, EventAuthenticationError, EventAccountError, EventPlaybackError:
		return true
	default:
		return false
	}
}

// Event is a native SDK event. DeviceID is set on ready and not_ready,
// State on player_state_changed and Message on error events.
type Event struct {
	Kind     EventKind
	DeviceID string
	State    *PlaybackState
	Message  string
}

type TrackInfo struct {
	ID          string
	URI         string
	Name        string
	Artists     []string
	Album       string
	AlbumArtURL string
}

// PlaybackState is a snapshot of the player. Track is nil when nothing is loaded.
type PlaybackState struct {
	Track    *TrackInfo
	Paused   bool
	Position time.Duration
	Duration time.Duration
}

// SDK is the vendor streaming SDK. Init starts the SDK's background work under ctx;
// its outcome is reported on Events.
type SDK interface {
	Init(ctx context.Context, token core.BearerToken) error
	Connect(ctx context.Context, deviceID string) (bool, error)
	Play(ctx context.Context, deviceID, trackURI string) error
	CurrentState(ctx context.Context) (*PlaybackState, error)
	Events() <-chan Event
}
