package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// client wraps a connection with a write mutex. Gorilla connections allow
// only one concurrent writer, and broadcasts, pings and the status ticker
// all run on different goroutines.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// write sends a single message, serialized against other writers.
func (c *client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// Hub manages WebSocket connections for real-time pipeline updates.
type Hub struct {
	clients map[*websocket.Conn]*client
	mu      sync.RWMutex
}

// NewHub creates a new update hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
	}
}

// Register adds a connection and returns its write-serialized wrapper.
func (h *Hub) Register(conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	cl := &client{conn: conn}
	h.clients[conn] = cl
	fmt.Printf("[WS] Client registered (total: %d)\n", len(h.clients))
	return cl
}

// Unregister removes a connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		fmt.Printf("[WS] Client unregistered (total: %d)\n", len(h.clients))
	}
}

// HasClients returns true if any client is connected.
func (h *Hub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to all connected clients. Clients that fail
// the write are dropped.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	for _, cl := range clients {
		if err := cl.write(websocket.TextMessage, message); err != nil {
			fmt.Printf("[WS] Error sending to client: %v\n", err)
			h.Unregister(cl.conn)
			cl.conn.Close()
		}
	}
}

// BroadcastJSON marshals and broadcasts a message when clients exist.
func (h *Hub) BroadcastJSON(msg interface{}) {
	if !h.HasClients() {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		fmt.Printf("[WS] Error marshaling message: %v\n", err)
		return
	}
	h.Broadcast(data)
}
