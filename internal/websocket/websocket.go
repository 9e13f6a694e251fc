package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"fiberqc/internal/logger"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Event is the payload broadcast to all connected WebSocket clients.
type Event struct {
	Type   string `json:"type"`
	ID     any    `json:"id"`
	Action string `json:"action"`
}

// client wraps a WebSocket connection with a mutex for thread-safe writes.
type client struct {
	conn *ws.Conn
	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub maintains connected WebSocket clients and broadcasts change events
// so open station forms can refresh their lists.
type Hub struct {
	log      *logger.Logger
	upgrader ws.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a Hub. allowedOrigin restricts the upgrade to one Origin
// header value; empty or "*" accepts any.
func NewHub(log *logger.Logger, allowedOrigin string) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	h := &Hub{log: log, clients: make(map[*client]struct{})}
	h.upgrader = ws.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
	return h
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Broadcast sends an event to all connected clients. Clients whose write
// fails are dropped. A nil Hub is a no-op.
func (h *Hub) Broadcast(evt Event) {
	if h == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("ws marshal failed", "error", err)
		return
	}
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		writeErr := func() (writeErr error) {
			defer func() {
				if r := recover(); r != nil {
					writeErr = fmt.Errorf("ws: write panic: %v", r)
				}
			}()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			return c.conn.WriteMessage(ws.TextMessage, data)
		}()
		c.mu.Unlock()

		if writeErr != nil {
			h.log.Debug("ws client dropped", "error", writeErr)
			h.unregister(c)
		}
	}
}

// BroadcastChange broadcasts "<resource>_<action in past tense>", e.g.
// cable_created or qc_check_exported.
func (h *Hub) BroadcastChange(resourceType, action string, id any) {
	past := action + "ed"
	if strings.HasSuffix(action, "e") {
		past = action + "d"
	}
	h.Broadcast(Event{
		Type:   resourceType + "_" + past,
		ID:     id,
		Action: action,
	})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

// ServeHTTP upgrades the connection and keeps it alive with pings until the
// peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, done: make(chan struct{})}
	n := h.register(c)
	h.log.Info("ws client connected", "clients", n)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.ping(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
	h.log.Info("ws client disconnected", "clients", h.Count())
}

func (h *Hub) ping(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
