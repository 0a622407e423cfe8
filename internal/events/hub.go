// Package events broadcasts pipeline and review lifecycle events to
// connected operator tooling over WebSocket.
package events

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType labels a broadcast event.
type EventType string

const (
	EventIncidentCreated EventType = "incident_created"
	EventIncidentRouted  EventType = "incident_routed"
	EventStatusChanged   EventType = "status_changed"
	EventJobDeadLetter   EventType = "job_dead_letter"
)

// Event is one message on the operator stream.
type Event struct {
	Type         EventType              `json:"type"`
	IncidentUUID string                 `json:"incident_uuid,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

const (
	writeWait    = 10 * time.Second
	clientBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans events out to all connected clients. Slow clients are dropped
// rather than allowed to block the pipeline.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Broadcast sends an event to every connected client without blocking.
func (h *Hub) Broadcast(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- evt:
		default:
			// Client is not keeping up; disconnect it.
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams events until the client
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Event stream upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan Event, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	go c.readLoop(h)
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for evt := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(evt); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readLoop drains incoming frames so pings are handled, and unregisters
// the client when the connection drops.
func (c *client) readLoop(h *Hub) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			close(c.send)
			delete(h.clients, c)
		}
		h.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
