package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/parkingsim/sim/dispatch"
	"github.com/wricardo/parkingsim/sim/engine"
	"github.com/wricardo/parkingsim/sim/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outbound frames queued per client before it is dropped.
	sendBuffer = 64
)

// Message types
const (
	TypeFrame    = "frame"
	TypeRoute    = "route"
	TypeError    = "error"
	TypeControls = "controls"
	TypeTarget   = "target"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts clients without an Origin header or served from this host
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// Message is sent from the hub to viewers
type Message struct {
	Type  string           `json:"type"`
	State *engine.SimState `json:"state,omitempty"`
	Route *dispatch.Route  `json:"route,omitempty"`
	Error string           `json:"error,omitempty"`
}

// Inbound is sent from viewers to the hub
type Inbound struct {
	Type     string          `json:"type"`
	Controls engine.Controls `json:"controls"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
}

// InputHandler receives viewer input
type InputHandler interface {
	SetControls(ctx context.Context, controls engine.Controls) error
	SelectTarget(ctx context.Context, target engine.Point) (*dispatch.Route, error)
}

type envelope struct {
	client *Client
	data   []byte
}

// Client represents a WebSocket client
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active viewers and broadcasts frames
type Hub struct {
	input  InputHandler
	logger zerolog.Logger

	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Replies addressed to a single client
	direct chan envelope

	done  chan struct{}
	count atomic.Int64
}

// NewHub creates a new WebSocket hub forwarding viewer input to input
func NewHub(input InputHandler, logger zerolog.Logger) *Hub {
	return &Hub{
		input:      input,
		logger:     logger.With().Str("component", "websocket").Logger(),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan envelope),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop and blocks until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case data := <-h.broadcast:
			h.broadcastMessage(data)

		case env := <-h.direct:
			if h.clients[env.client] {
				select {
				case env.client.send <- env.data:
				default:
				}
			}

		case <-ctx.Done():
			for client := range h.clients {
				h.unregisterClient(client)
			}
			return
		}
	}
}

// Clients returns the number of connected viewers
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// ServeWS upgrades the request and attaches a viewer
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// BroadcastFrame sends the simulation state to every viewer
func (h *Hub) BroadcastFrame(state *engine.SimState) {
	h.publish(&Message{Type: TypeFrame, State: state})
}

// BroadcastRoute sends a route change to every viewer
func (h *Hub) BroadcastRoute(route dispatch.Route) {
	h.publish(&Message{Type: TypeRoute, Route: &route})
}

// BroadcastSnapshot sends the frame and the route of snap
func (h *Hub) BroadcastSnapshot(snap *service.Snapshot) {
	h.BroadcastFrame(snap.Sim)
	h.BroadcastRoute(snap.Route)
}

func (h *Hub) publish(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().Err(err).Str("type", message.Type).Msg("failed to marshal message")
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// registerClient adds a client
func (h *Hub) registerClient(client *Client) {
	h.clients[client] = true
	h.count.Store(int64(len(h.clients)))
	h.logger.Info().Int("clients", len(h.clients)).Msg("viewer connected")
}

// unregisterClient removes a client
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.count.Store(int64(len(h.clients)))
		h.logger.Info().Int("clients", len(h.clients)).Msg("viewer disconnected")
	}
}

// broadcastMessage sends data to every client, dropping the slow ones
func (h *Hub) broadcastMessage(data []byte) {
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.unregisterClient(client)
		}
	}
}

// handleInbound applies one viewer message and returns a reply, if any
func (c *Client) handleInbound(raw []byte) *Message {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return &Message{Type: TypeError, Error: "malformed message: " + err.Error()}
	}

	ctx := context.Background()
	switch in.Type {
	case TypeControls:
		if err := c.hub.input.SetControls(ctx, in.Controls); err != nil {
			return &Message{Type: TypeError, Error: err.Error()}
		}
		return nil
	case TypeTarget:
		route, err := c.hub.input.SelectTarget(ctx, engine.Point{X: in.X, Y: in.Y})
		if err != nil {
			return &Message{Type: TypeError, Error: err.Error()}
		}
		return &Message{Type: TypeRoute, Route: route}
	default:
		return &Message{Type: TypeError, Error: "unknown message type: " + in.Type}
	}
}

// reply queues a message for this client only
func (c *Client) reply(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		c.hub.logger.Error().Err(err).Str("type", message.Type).Msg("failed to marshal reply")
		return
	}
	select {
	case c.hub.direct <- envelope{client: c, data: data}:
	case <-c.hub.done:
	}
}

// readPump pumps viewer input from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Err(err).Msg("websocket read failed")
			}
			break
		}
		if reply := c.handleInbound(raw); reply != nil {
			c.reply(reply)
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
