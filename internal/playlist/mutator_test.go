package playlist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"muze/internal/core"
)

const testTimeout = 5 * time.Second

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) {
	return f()
}

func staticToken() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "BQD-test", TokenType: "Bearer"})
}

func TestMutator_AddTracks(t *testing.T) {
	var gotPath, gotURIs, gotAuth, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotURIs = r.URL.Query().Get("uris")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"snapshot_id":"abc"}`))
	}))
	defer server.Close()

	mutator := NewMutator(server.URL+"/", staticToken(), testTimeout, zap.NewNop())

	result, err := mutator.AddTracks(context.Background(), "playlist123",
		[]string{"spotify:track:a", "spotify:track:b"})
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/playlists/playlist123/tracks", gotPath)
	assert.Equal(t, "spotify:track:a,spotify:track:b", gotURIs)
	assert.Equal(t, "Bearer BQD-test", gotAuth)
}

func TestMutator_NotOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	mutator := NewMutator(server.URL, staticToken(), testTimeout, zap.NewNop())

	result, err := mutator.AddTracks(context.Background(), "playlist123", []string{"spotify:track:a"})
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, http.StatusForbidden, result.StatusCode)
}

func TestMutator_Preconditions(t *testing.T) {
	mutator := NewMutator("http://127.0.0.1:0", staticToken(), testTimeout, zap.NewNop())
	ctx := context.Background()

	_, err := mutator.AddTracks(ctx, "", []string{"spotify:track:a"})
	assert.True(t, errors.Is(err, core.ErrMissingPlaylist))
	assert.True(t, core.IsKind(err, core.KindPrecondition))

	_, err = mutator.AddTracks(ctx, "playlist123", nil)
	assert.True(t, errors.Is(err, core.ErrMissingTrackURI))
}

func TestMutator_TokenAbsent(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	absent := tokenSourceFunc(func() (*oauth2.Token, error) {
		return nil, core.ErrTokenAbsent
	})
	mutator := NewMutator(server.URL, absent, testTimeout, zap.NewNop())

	_, err := mutator.AddTracks(context.Background(), "playlist123", []string{"spotify:track:a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTokenAbsent))
	assert.False(t, called)
}

func TestMutator_HangingServerTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	mutator := NewMutator(server.URL, staticToken(), 50*time.Millisecond, zap.NewNop())

	start := time.Now()
	_, err := mutator.AddTracks(context.Background(), "playlist123", []string{"spotify:track:a"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, core.IsKind(err, core.KindTimedOut))
}

func TestMutator_TransportFailureIsPlaylistKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := server.URL
	server.Close()

	mutator := NewMutator(url, staticToken(), testTimeout, zap.NewNop())

	_, err := mutator.AddTracks(context.Background(), "playlist123", []string{"spotify:track:a"})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindPlaylist))
}
