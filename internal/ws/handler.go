package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/playpool/tictactoe/internal/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8192
	sendBuffer     = 256
)

// Client represents a connected WebSocket client
type Client struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	ready chan struct{} // closed once the hub can route to this client
}

// Hub maintains the set of active clients, keyed by connection ID
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub. Call Run before accepting connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
}

// Run processes registrations until ctx is done, then closes every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			close(client.ready)
			log.Printf("[WS] Client %s connected (%d online)", client.id, h.Count())

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.id]; ok && current == client {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("[WS] Client %s disconnected", client.id)

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		<-c.ready
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// Send delivers an event to one connection. It never blocks: a full buffer
// drops the message, an unknown connection is ignored.
func (h *Hub) Send(connectionID string, ev game.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[WS] Error marshaling %s event: %v", ev.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[connectionID]
	if !exists {
		return
	}
	select {
	case client.send <- data:
	default:
		log.Printf("[WS] Send dropped %s for client %s (buffer full)", ev.Type, connectionID)
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump writes messages to the WebSocket connection
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
				// hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for client %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] Ping error for client %s: %v", c.id, err)
				return
			}
		}
	}
}
