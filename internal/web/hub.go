package web

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storyteller/server/internal/state"
)

// Client represents one WebSocket subscriber of the debug stream.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *DebugHub
}

// DebugHub fans store-action events out to connected debug clients. It
// implements state.EventSink; publishing never blocks a store mutation.
type DebugHub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	events     chan state.ActionEvent
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewDebugHub creates a hub. Run must be started for events to flow.
func NewDebugHub(logger *zap.Logger) *DebugHub {
	return &DebugHub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		events:     make(chan state.ActionEvent, 256),
		logger:     logger,
	}
}

// Publish queues an action event for broadcast. Events are dropped when the
// buffer is full; the debug stream is observability, not a durable feed.
func (h *DebugHub) Publish(event state.ActionEvent) {
	select {
	case h.events <- event:
	default:
	}
}

// Run is the hub's event loop.
func (h *DebugHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.events:
			h.broadcast(event)
		}
	}
}

func (h *DebugHub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.logger.Debug("debug client connected",
		zap.String("client_id", client.ID),
		zap.Int("total", len(h.clients)))

	go client.writePump()
}

func (h *DebugHub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
		h.logger.Debug("debug client disconnected",
			zap.String("client_id", client.ID),
			zap.Int("total", len(h.clients)))
	}
}

func (h *DebugHub) broadcast(event state.ActionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// Slow client, skip this event.
		}
	}
}

// ClientCount reports the number of connected debug clients.
func (h *DebugHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump drains (and discards) client messages until the connection dies,
// then unregisters.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards queued events to the connection.
func (c *Client) writePump() {
	defer c.Conn.Close()

	for data := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
