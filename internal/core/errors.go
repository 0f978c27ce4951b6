package core

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// KindPrecondition is a caller error: missing token, uri or device
	KindPrecondition ErrorKind = iota
	// KindDevice is a connect, play or state failure reported by the playback device
	KindDevice
	// KindChannel is a recommendation channel failure
	KindChannel
	// KindEmptyResult is an empty recommendation batch
	KindEmptyResult
	// KindTimedOut is a device, channel or playlist call that exceeded its deadline
	KindTimedOut
	// KindPlaylist is a transport failure while editing the saved playlist
	KindPlaylist
)

func (k ErrorKind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindDevice:
		return "device"
	case KindChannel:
		return "channel"
	case KindEmptyResult:
		return "empty_result"
	case KindTimedOut:
		return "timed_out"
	case KindPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

var (
	ErrTokenAbsent       = errors.New("bearer token absent")
	ErrNotInitialized    = errors.New("device not initialized")
	ErrNotConnected      = errors.New("device not connected")
	ErrDeviceFailed      = errors.New("device failed")
	ErrPlaybackFailed    = errors.New("playback failed")
	ErrNoActiveTrack     = errors.New("no active track")
	ErrMissingTrackURI   = errors.New("track uri is required")
	ErrChannelClosed     = errors.New("recommendation channel not connected")
	ErrEmptyBatch        = errors.New("empty recommendation batch")
	ErrMissingPlaylist   = errors.New("playlist id is required")
	ErrTokenAlreadySet   = errors.New("bearer token already set")
	ErrInvalidOAuthState = errors.New("invalid oauth state")
)

// Error carries the taxonomy kind of a failure along with the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind. Context deadlines are promoted to KindTimedOut.
func NewError(kind ErrorKind, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimedOut
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or KindDevice when err carries no kind.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimedOut
	}
	return KindDevice
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
