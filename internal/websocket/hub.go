package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/halcyonlabs/murmur/server/internal/audio"
)

// Hub is the broadcast registry and the factory wiring for device
// connections: it tracks active clients, fans outward signals to
// listeners, and carries the collaborator pipeline each client's state
// machine invokes. It is an explicit object handed around, never a
// package global. Registration and removal are safe for concurrent use
// from connection goroutines.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	pipeline     Pipeline
	streamer     *Streamer
	recordingDir string
	wavConfig    audio.WAVConfig

	logger *zap.Logger
}

// NewHub creates the registry. recordingDir is where in-flight
// recordings are staged.
func NewHub(pipeline Pipeline, recordingDir string, logger *zap.Logger) *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		pipeline:     pipeline,
		streamer:     NewStreamer(logger),
		recordingDir: recordingDir,
		wavConfig:    audio.DefaultWAVConfig(),
		logger:       logger,
	}
}

// Run starts the hub's registration loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("deviceID", client.deviceID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
			}
			h.mu.Unlock()
			client.close()
			h.logger.Info("Client unregistered", zap.String("deviceID", client.deviceID))
		}
	}
}

// Broadcast sends a text frame to every registered client.
func (h *Hub) Broadcast(payload []byte) {
	h.BroadcastExcept(payload, nil)
}

// BroadcastExcept sends a text frame to every registered client other
// than the originator. Clients whose send buffer is full are skipped
// rather than blocked on.
func (h *Hub) BroadcastExcept(payload []byte, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client == except {
			continue
		}
		select {
		case client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		case <-client.done:
		default:
			h.logger.Warn("Dropping broadcast for slow client",
				zap.String("deviceID", client.deviceID))
		}
	}
}
