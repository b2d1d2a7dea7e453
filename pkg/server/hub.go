package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/derive/internal/scenario"
)

// MessageType is the type of a watch message.
type MessageType string

const (
	MessageState     MessageType = "state"
	MessageDestroyed MessageType = "destroyed"
	MessageError     MessageType = "error"
)

// Message is sent to watch clients via WebSocket.
type Message struct {
	Type  MessageType         `json:"type"`
	Node  *scenario.NodeState `json:"node,omitempty"`
	Error string              `json:"error,omitempty"`
}

// watcher is one connected WebSocket client. send is closed exactly once,
// after the watcher has left the hub.
type watcher struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans node states out to WebSocket clients. A client that falls more
// than the configured buffer behind is disconnected.
type Hub struct {
	clients  map[*watcher]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader

	buffer       int
	writeTimeout time.Duration
	logger       *slog.Logger
	stats        *statsCollector
}

// newHub creates a hub using the buffer, origin check and timeouts of config.
func newHub(config *ServerConfig, stats *statsCollector) *Hub {
	config = config.withDefaults()
	if stats == nil {
		stats = &statsCollector{}
	}
	return &Hub{
		clients: make(map[*watcher]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		buffer:       config.WatchBuffer,
		writeTimeout: config.WriteTimeout,
		logger:       config.Logger,
		stats:        stats,
	}
}

// upgrade performs the WebSocket handshake.
func (h *Hub) upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return h.upgrader.Upgrade(w, r, nil)
}

// add registers conn and queues initial for it before any broadcast can
// reach it.
func (h *Hub) add(conn *websocket.Conn, initial []Message) *watcher {
	c := &watcher{
		conn: conn,
		send: make(chan []byte, h.buffer+len(initial)),
	}
	for _, msg := range initial {
		if data, err := json.Marshal(msg); err == nil {
			c.send <- data
		}
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.stats.watchClients.Add(1)

	go h.writeLoop(c)
	return c
}

// serve keeps the connection open until the client disconnects.
func (h *Hub) serve(c *watcher) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) writeLoop(c *watcher) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("watch write failed", "remote", c.conn.RemoteAddr().String(), "error", err)
			h.remove(c)
			return
		}
		h.stats.messagesSent.Add(1)
	}
}

// remove unregisters c and closes its connection. Safe to call repeatedly.
func (h *Hub) remove(c *watcher) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()

	h.stats.watchClients.Add(-1)
	c.conn.Close()
}

// Broadcast queues msg for every client.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	var slow []*watcher
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow watch client", "remote", c.conn.RemoteAddr().String())
		h.stats.clientsDropped.Add(1)
		h.remove(c)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*watcher, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.remove(c)
	}
}
