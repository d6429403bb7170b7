// Package websocket streams upload progress to connected dashboard clients.
// A single hub fans broadcast messages out to every client; clients that
// cannot keep up are dropped.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"fleetpulse/internal/infrastructure"
)

// Message type constants.
const (
	TypeConnection = "connection"
	TypeProgress   = "progress"
	TypeStatus     = "status"
	TypeError      = "error"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger

	quit    chan struct{}
	done    chan struct{}
	running bool
}

// NewHub creates a hub. Call Start before registering clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the hub loop. Safe to call more than once.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// run owns the client set: every close(client.send) happens here, so a
// shutdown can never race a broadcast into a closed channel.
func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.greet(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				count := len(h.clients)
				h.mu.Unlock()

				h.logger.Info("client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop it rather than block broadcasts.
					h.mu.Lock()
					if _, ok := h.clients[client]; ok {
						close(client.send)
						delete(h.clients, client)
					}
					h.mu.Unlock()
					h.logger.Warn("client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}
		}
	}
}

func (h *Hub) greet(client *Client) {
	msg := envelope(TypeConnection, map[string]any{
		"status":    "connected",
		"client_id": client.id,
	})
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func envelope(msgType string, data any) map[string]any {
	return map[string]any{
		"type":      msgType,
		"data":      data,
		"timestamp": time.Now().Format(time.RFC3339),
	}
}

func (h *Hub) broadcastJSON(message map[string]any) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("error marshaling message", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.quit:
	}
}

// BroadcastProgress sends a per-file progress update.
func (h *Hub) BroadcastProgress(fileName string, current, total int, message string) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(current) / float64(total) * 100
	}
	h.broadcastJSON(envelope(TypeProgress, map[string]any{
		"file":       fileName,
		"current":    current,
		"total":      total,
		"percentage": percentage,
		"message":    message,
	}))
}

// BroadcastStatus sends an analysis status change.
func (h *Hub) BroadcastStatus(status, message string) {
	h.broadcastJSON(envelope(TypeStatus, map[string]any{
		"status":  status,
		"message": message,
	}))
}

// BroadcastError sends a structured error message.
func (h *Hub) BroadcastError(code, message string) {
	h.broadcastJSON(envelope(TypeError, map[string]any{
		"code":    code,
		"message": message,
	}))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Stop shuts the hub down and waits for the hub loop to disconnect every
// client.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}
