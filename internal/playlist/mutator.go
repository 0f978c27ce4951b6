// Package playlist adds tracks to a saved playlist through the Web API.
package playlist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"muze/internal/core"
)

// Mutator implements core.PlaylistMutator.
type Mutator struct {
	baseURL     string
	tokenSource oauth2.TokenSource
	timeout     time.Duration
	logger      *zap.Logger
}

// NewMutator creates a mutator whose requests are bounded by timeout.
func NewMutator(baseURL string, tokenSource oauth2.TokenSource, timeout time.Duration, logger *zap.Logger) *Mutator {
	return &Mutator{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		tokenSource: tokenSource,
		timeout:     timeout,
		logger:      logger,
	}
}

// AddTracks posts the uris to the playlist. A non-2xx answer is reported in the result, not as an error.
func (m *Mutator) AddTracks(ctx context.Context, playlistID string, trackURIs []string) (core.MutationResult, error) {
	const op = "playlist.AddTracks"

	if playlistID == "" {
		return core.MutationResult{}, core.NewError(core.KindPrecondition, op, core.ErrMissingPlaylist)
	}
	if len(trackURIs) == 0 {
		return core.MutationResult{}, core.NewError(core.KindPrecondition, op, core.ErrMissingTrackURI)
	}

	endpoint := fmt.Sprintf("%s/playlists/%s/tracks?uris=%s",
		m.baseURL, url.PathEscape(playlistID), url.QueryEscape(strings.Join(trackURIs, ",")))

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return core.MutationResult{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := oauth2.NewClient(ctx, m.tokenSource).Do(req)
	if err != nil {
		return core.MutationResult{}, core.NewError(core.KindPlaylist, op, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	result := core.MutationResult{
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
	}

	m.logger.Debug("Playlist mutation finished",
		zap.String("playlistID", playlistID),
		zap.Int("trackCount", len(trackURIs)),
		zap.Int("status", resp.StatusCode))

	return result, nil
}
