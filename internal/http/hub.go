package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"muze/internal/core"
	"muze/internal/flood"
	"muze/internal/i18n"
	"muze/pkg/text"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	maxInboundSize  = 4096
	sendBufferSize  = 64
	broadcastBuffer = 256
	intentBuffer    = 32
)

// Outbound event types.
const (
	EventNowPlaying             = "now_playing"
	EventPlayButton             = "play_button"
	EventRecommendationControls = "recommendation_controls"
	EventPlaylistControls       = "playlist_controls"
	EventMessage                = "message"
	EventState                  = "state"
)

// Inbound message types.
const (
	MessageIntent = "intent"
	MessageSay    = "say"
)

// Event is one message pushed to presentation clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Control is a button with a stable identifier.
type Control struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type nowPlayingPayload struct {
	Song     string `json:"song"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	AlbumArt string `json:"albumArt,omitempty"`
	Link     string `json:"link,omitempty"`
}

type messagePayload struct {
	Text string `json:"text"`
}

type statePayload struct {
	Loading bool `json:"loading"`
}

type inboundMessage struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Text   string `json:"text,omitempty"`
}

type Client struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// Hub fans session output out to every connected page and turns their input into intents.
// It implements core.Presenter.
type Hub struct {
	sessionID string
	logger    *zap.Logger
	localizer *i18n.Localizer
	parser    *text.Parser
	floodgate *flood.Floodgate
	metrics   *Metrics
	upgrader  websocket.Upgrader

	intents    chan core.Intent
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	clients map[*Client]bool
	mu      sync.RWMutex
	done    chan struct{}
}

func NewHub(sessionID string, localizer *i18n.Localizer, floodgate *flood.Floodgate, metrics *Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		sessionID: sessionID,
		logger:    logger,
		localizer: localizer,
		parser:    text.NewParser(),
		floodgate: floodgate,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		intents:    make(chan core.Intent, intentBuffer),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Intents delivers listener intents to the orchestrator.
func (h *Hub) Intents() <-chan core.Intent {
	return h.intents
}

// Run is the hub's main loop.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetConnectedClients(count)
			h.logger.Info("Presentation client connected",
				zap.String("clientID", client.id),
				zap.String("remoteAddr", client.remoteAddr),
				zap.Int("total", count))
			h.submit(core.Intent{Action: core.ActionViewReady, ClientID: client.id, At: time.Now()})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetConnectedClients(count)
			h.floodgate.Forget(h.sessionID, client.id)
			h.logger.Info("Presentation client disconnected",
				zap.String("clientID", client.id),
				zap.Int("total", count))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to all connected clients. Events are dropped when the hub is backed up.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast buffer full, dropping event", zap.String("type", event.Type))
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) UpdateCurrentlyPlaying(np core.NowPlaying) {
	h.Broadcast(Event{Type: EventNowPlaying, Payload: nowPlayingPayload{
		Song:     np.SongName,
		Artist:   np.ArtistName,
		Album:    np.AlbumName,
		AlbumArt: np.AlbumArtLink,
		Link:     np.SongLink,
	}})
}

func (h *Hub) PresentSinglePlayButton() {
	h.Broadcast(Event{Type: EventPlayButton, Payload: h.control(core.ActionPlay)})
}

func (h *Hub) PresentRecommendationControls(actions []core.Action) {
	controls := make([]Control, 0, len(actions))
	for _, action := range actions {
		controls = append(controls, h.control(action))
	}
	h.Broadcast(Event{Type: EventRecommendationControls, Payload: controls})
}

func (h *Hub) PresentPlaylistEditorControls() {
	h.Broadcast(Event{Type: EventPlaylistControls, Payload: []Control{h.control(core.ActionAddSong)}})
}

func (h *Hub) PresentMessage(text string) {
	h.Broadcast(Event{Type: EventMessage, Payload: messagePayload{Text: text}})
}

func (h *Hub) SetState(state core.ViewState) {
	h.Broadcast(Event{Type: EventState, Payload: statePayload{Loading: state.Loading}})
}

// control falls back to the action id as title when no catalog names it.
func (h *Hub) control(action core.Action) Control {
	key := "button." + string(action)
	if !h.localizer.Has(key) {
		return Control{ID: string(action), Title: string(action)}
	}
	return Control{ID: string(action), Title: h.localizer.T(key)}
}

// ServeWS upgrades a presentation client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("remoteAddr", r.RemoteAddr), zap.Error(err))
		return
	}

	client := &Client{
		id:         uuid.NewString(),
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		remoteAddr: r.RemoteAddr,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// handleInbound converts a client message into an intent.
func (h *Hub) handleInbound(client *Client, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Debug("Malformed client message", zap.String("clientID", client.id), zap.Error(err))
		return
	}

	intent := core.Intent{ClientID: client.id, At: time.Now()}
	switch msg.Type {
	case MessageIntent:
		intent.Action, _ = core.ParseAction(msg.Action)
	case MessageSay:
		intent.Action, _ = h.parser.ParseCommand(msg.Text)
		intent.Text = msg.Text
	default:
		h.logger.Debug("Unknown client message type", zap.String("type", msg.Type))
		return
	}

	if !h.floodgate.Allow(h.sessionID, client.id) {
		h.metrics.RecordIntent(string(intent.Action), "flooded")
		h.logger.Info("Intent blocked by floodgate", zap.String("clientID", client.id))
		client.deliver(Event{Type: EventMessage, Payload: messagePayload{Text: h.localizer.T("error.flood")}})
		return
	}

	h.metrics.RecordIntent(string(intent.Action), "accepted")
	h.submit(intent)
}

func (h *Hub) submit(intent core.Intent) {
	select {
	case h.intents <- intent:
	default:
		h.logger.Warn("Intent buffer full, dropping intent", zap.String("action", string(intent.Action)))
	}
}

// deliver sends an event to this client only.
func (c *Client) deliver(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump sends messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket read failed", zap.String("clientID", c.id), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.handleInbound(c, data)
	}
}
