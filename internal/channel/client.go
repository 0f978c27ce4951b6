// Package channel is the websocket client for the recommendation server.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"muze/internal/core"
)

// Named events on the wire.
const (
	EventStartSession      = "start session"
	EventGetRandomSong     = "get random song"
	EventGetRecommendation = "get recommendation"
	EventNewSong           = "new song"
	EventMsg               = "msg"
)

const (
	// SessionHeader carries the session id on the websocket handshake
	SessionHeader = "X-Muze-Session"

	pongWait        = 60 * time.Second
	pingPeriod      = 30 * time.Second
	maxMessageSize  = 64 * 1024
	eventBufferSize = 32
)

// Envelope is one named event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type newSongPayload struct {
	SpotifyURIs []string `json:"spotify_uris"`
}

type msgPayload struct {
	Text string `json:"text"`
}

// Client implements core.RecommendationChannel. Run owns the connection and reconnects;
// requests fail fast while disconnected.
type Client struct {
	config    *core.ChannelConfig
	sessionID string
	logger    *zap.Logger
	dialer    *websocket.Dialer
	limiter   *rate.Limiter
	events    chan core.ChannelEvent

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewClient(config *core.ChannelConfig, sessionID string, logger *zap.Logger) *Client {
	return &Client{
		config:    config,
		sessionID: sessionID,
		logger:    logger,
		dialer:    websocket.DefaultDialer,
		limiter:   rate.NewLimiter(rate.Every(config.ReconnectDelay), 1),
		events:    make(chan core.ChannelEvent, eventBufferSize),
	}
}

func (c *Client) Events() <-chan core.ChannelEvent {
	return c.events
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Run dials the server and keeps reconnecting until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	header := http.Header{}
	header.Set(SessionHeader, c.sessionID)

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}

		conn, resp, err := c.dialer.DialContext(ctx, c.config.URL, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("Failed to connect to recommendation server",
				zap.String("url", c.config.URL),
				zap.Error(err))
			continue
		}

		c.serve(ctx, conn)

		if ctx.Err() != nil {
			return nil
		}
		c.logger.Info("Recommendation server disconnected, reconnecting",
			zap.Duration("delay", c.config.ReconnectDelay))
	}
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.setConn(conn)
	defer func() {
		c.setConn(nil)
		conn.Close()
	}()

	if err := c.send(ctx, EventStartSession, nil); err != nil {
		c.logger.Warn("Failed to start session", zap.Error(err))
		return
	}
	c.logger.Info("Connected to recommendation server",
		zap.String("url", c.config.URL),
		zap.String("sessionID", c.sessionID))

	done := make(chan struct{})
	defer close(done)
	go c.keepAlive(ctx, conn, done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Recommendation channel read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		c.dispatch(ctx, data)
	}
}

// keepAlive pings the server and closes the connection when ctx ends.
func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout)); err != nil {
				c.logger.Debug("Ping failed", zap.Error(err))
				conn.Close()
				return
			}
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) RequestRandomSong(ctx context.Context) error {
	return c.send(ctx, EventGetRandomSong, nil)
}

func (c *Client) RequestRecommendation(ctx context.Context, req core.RecommendationRequest) error {
	if req.SpotifyURI == "" {
		return core.NewError(core.KindPrecondition, "channel.RequestRecommendation", core.ErrMissingTrackURI)
	}
	return c.send(ctx, EventGetRecommendation, req)
}

func (c *Client) send(ctx context.Context, event string, payload any) error {
	const op = "channel.send"

	envelope := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %q payload: %w", event, err)
		}
		envelope.Data = data
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return core.NewError(core.KindChannel, op, core.ErrChannelClosed)
	}

	deadline := time.Now().Add(c.config.WriteTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(envelope); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return core.NewError(core.KindTimedOut, op, fmt.Errorf("sending %q: %w", event, err))
		}
		return core.NewError(core.KindChannel, op, fmt.Errorf("sending %q: %w", event, err))
	}

	c.logger.Debug("Sent channel event", zap.String("event", event))
	return nil
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logger.Warn("Malformed channel message", zap.Error(err))
		return
	}

	switch envelope.Event {
	case EventNewSong:
		var payload newSongPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			c.logger.Warn("Malformed song batch", zap.Error(err))
			return
		}

		tracks := make([]core.TrackRef, 0, len(payload.SpotifyURIs))
		for _, uri := range payload.SpotifyURIs {
			if uri == "" {
				continue
			}
			tracks = append(tracks, core.TrackRef{URI: uri})
		}
		c.logger.Debug("Received song batch", zap.Int("batchSize", len(tracks)))
		c.emit(ctx, core.ChannelEvent{Kind: core.ChannelEventSongBatch, Tracks: tracks})
	case EventMsg:
		c.emit(ctx, core.ChannelEvent{Kind: core.ChannelEventMessage, Text: decodeText(envelope.Data)})
	default:
		c.logger.Debug("Ignoring channel event", zap.String("event", envelope.Event))
	}
}

// decodeText accepts a bare string or a {"text": ...} object.
func decodeText(data json.RawMessage) string {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return text
	}

	var payload msgPayload
	if err := json.Unmarshal(data, &payload); err == nil {
		return payload.Text
	}

	return string(data)
}

func (c *Client) emit(ctx context.Context, event core.ChannelEvent) {
	select {
	case c.events <- event:
	case <-ctx.Done():
	}
}
