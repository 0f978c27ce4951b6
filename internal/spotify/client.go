// Package spotify drives a Spotify Connect device through the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"muze/internal/core"
	"muze/internal/device"
)

const (
	// PremiumProduct is the account product required for playback control
	PremiumProduct = "premium"
	// RepeatStateOff keeps a single-track play from looping so the end can be observed
	RepeatStateOff = "off"

	eventBufferSize = 16
)

// Client implements device.SDK. State is polled and reported as player_state_changed.
type Client struct {
	config       *core.SpotifyConfig
	pollInterval time.Duration
	logger       *zap.Logger
	events       chan device.Event

	mu     sync.RWMutex
	client *spotify.Client
}

func NewClient(config *core.SpotifyConfig, pollInterval time.Duration, logger *zap.Logger) *Client {
	return &Client{
		config:       config,
		pollInterval: pollInterval,
		logger:       logger,
		events:       make(chan device.Event, eventBufferSize),
	}
}

func (c *Client) Events() <-chan device.Event {
	return c.events
}

// Init builds the API client and starts device discovery and state polling under ctx.
func (c *Client) Init(ctx context.Context, token core.BearerToken) error {
	c.mu.Lock()
	if c.client != nil {
		c.mu.Unlock()
		return fmt.Errorf("spotify client already initialized")
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token.Reveal(),
		TokenType:   "Bearer",
	})

	var opts []spotify.ClientOption
	if c.config.APIBaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(strings.TrimSuffix(c.config.APIBaseURL, "/")+"/"))
	}
	c.client = spotify.New(oauth2.NewClient(ctx, tokenSource), opts...)
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

func (c *Client) api() (*spotify.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.client == nil {
		return nil, fmt.Errorf("spotify client not initialized")
	}
	return c.client, nil
}

func (c *Client) run(ctx context.Context) {
	if !c.verifyAccount(ctx) {
		return
	}

	deviceID, ok := c.waitForDevice(ctx)
	if !ok {
		return
	}

	c.emit(ctx, device.Event{Kind: device.EventReady, DeviceID: deviceID})
	c.poll(ctx)
}

func (c *Client) verifyAccount(ctx context.Context) bool {
	client, err := c.api()
	if err != nil {
		c.emit(ctx, device.Event{Kind: device.EventInitializationError, Message: err.Error()})
		return false
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}

		kind := device.EventInitializationError
		var apiErr spotify.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			kind = device.EventAuthenticationError
		}
		c.emit(ctx, device.Event{Kind: kind, Message: err.Error()})
		return false
	}

	if user.Product != "" && user.Product != PremiumProduct {
		c.emit(ctx, device.Event{
			Kind:    device.EventAccountError,
			Message: fmt.Sprintf("playback requires a premium account, got %q", user.Product),
		})
		return false
	}

	c.logger.Info("Authenticated successfully", zap.String("user", user.DisplayName))
	return true
}

// waitForDevice polls the device list until a usable device shows up.
func (c *Client) waitForDevice(ctx context.Context) (string, bool) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	reportedNotReady := false
	for {
		deviceID, err := c.findDevice(ctx)
		switch {
		case err != nil:
			c.logger.Warn("Failed to list player devices", zap.Error(err))
		case deviceID != "":
			return deviceID, true
		case !reportedNotReady:
			reportedNotReady = true
			c.emit(ctx, device.Event{Kind: device.EventNotReady})
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-ticker.C:
		}
	}
}

// findDevice prefers the configured device name, then the active device, then any usable one.
func (c *Client) findDevice(ctx context.Context) (string, error) {
	client, err := c.api()
	if err != nil {
		return "", err
	}

	devices, err := client.PlayerDevices(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get player devices: %w", err)
	}

	var active, fallback string
	for _, d := range devices {
		if d.Restricted {
			continue
		}
		if c.config.DeviceName != "" && strings.EqualFold(d.Name, c.config.DeviceName) {
			c.logger.Debug("Found configured device",
				zap.String("deviceName", d.Name),
				zap.String("deviceID", d.ID.String()))
			return d.ID.String(), nil
		}
		if d.Active && active == "" {
			active = d.ID.String()
		}
		if fallback == "" {
			fallback = d.ID.String()
		}
	}

	if active != "" {
		return active, nil
	}

	c.logger.Debug("No active devices found", zap.Int("totalDevices", len(devices)))
	return fallback, nil
}

func (c *Client) poll(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state, err := c.CurrentState(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("Failed to poll player state", zap.Error(err))
			}
			continue
		}

		c.emit(ctx, device.Event{Kind: device.EventPlayerStateChanged, State: state})
	}
}

// Connect transfers playback to deviceID and turns repeat and shuffle off.
func (c *Client) Connect(ctx context.Context, deviceID string) (bool, error) {
	client, err := c.api()
	if err != nil {
		return false, err
	}

	if err := client.TransferPlayback(ctx, spotify.ID(deviceID), false); err != nil {
		return false, fmt.Errorf("failed to transfer playback: %w", err)
	}

	id := spotify.ID(deviceID)
	opts := &spotify.PlayOptions{DeviceID: &id}
	if err := client.RepeatOpt(ctx, RepeatStateOff, opts); err != nil {
		c.logger.Warn("Failed to turn off repeat", zap.Error(err))
	}
	if err := client.ShuffleOpt(ctx, false, opts); err != nil {
		c.logger.Warn("Failed to turn off shuffle", zap.Error(err))
	}

	return true, nil
}

func (c *Client) Play(ctx context.Context, deviceID, trackURI string) error {
	client, err := c.api()
	if err != nil {
		return err
	}

	id := spotify.ID(deviceID)
	err = client.PlayOpt(ctx, &spotify.PlayOptions{
		DeviceID: &id,
		URIs:     []spotify.URI{spotify.URI(trackURI)},
	})
	if err != nil {
		return fmt.Errorf("failed to play %s: %w", trackURI, err)
	}
	return nil
}

func (c *Client) CurrentState(ctx context.Context) (*device.PlaybackState, error) {
	client, err := c.api()
	if err != nil {
		return nil, err
	}

	state, err := client.PlayerState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get player state: %w", err)
	}
	if state == nil {
		return nil, nil
	}

	playback := &device.PlaybackState{
		Paused:   !state.Playing,
		Position: time.Duration(state.Progress) * time.Millisecond,
	}
	if state.Item != nil {
		playback.Track = convertTrack(state.Item)
		playback.Duration = time.Duration(state.Item.Duration) * time.Millisecond
	}
	return playback, nil
}

func (c *Client) emit(ctx context.Context, event device.Event) {
	select {
	case c.events <- event:
	case <-ctx.Done():
	}
}

func convertTrack(track *spotify.FullTrack) *device.TrackInfo {
	info := &device.TrackInfo{
		ID:    track.ID.String(),
		URI:   string(track.URI),
		Name:  track.Name,
		Album: track.Album.Name,
	}

	for _, artist := range track.Artists {
		info.Artists = append(info.Artists, artist.Name)
	}

	if len(track.Album.Images) > 0 {
		info.AlbumArtURL = track.Album.Images[0].URL
	}

	return info
}
