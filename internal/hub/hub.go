// Package hub streams draw operations and notices to attached browsers over
// Server-Sent Events.
//
// The Hub is the drawing host of the dashboard: it implements render.Host,
// keeps the current scene, and replays that scene to every browser that
// connects late so all operators see the same map.
package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"hydrotwin/internal/logging"
	"hydrotwin/internal/metrics"
)

const (
	// broadcastBuffer is the queue between drawing calls and the Run loop
	broadcastBuffer   = 256
	// clientBuffer is the per-browser queue
	clientBuffer      = 256
	// clientSendTimeout is how long a full client queue may block the hub
	// before the client is disconnected
	clientSendTimeout = 5 * time.Second
)

// Event is one message on the stream
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// Client represents a connected SSE client
type Client struct {
	id     string
	events chan []byte
	// replay receives the encoded scene once the client is registered
	replay chan [][]byte
}

// Hub manages SSE client connections. Draw events are never skipped: a
// browser that cannot keep up is disconnected and rebuilds its map from the
// scene replay when it reconnects.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	stopped    chan struct{}
	stopOnce   sync.Once
	logger     *slog.Logger
	metrics    *metrics.Registry

	sendTimeout time.Duration
	scene       *scene
	onReady     func()
}

// New creates a new Hub
func New(logger *slog.Logger, reg *metrics.Registry) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, broadcastBuffer),
		stopped:    make(chan struct{}),
		logger:     logging.OrNop(logger).With("component", "hub"),
		metrics:    reg,

		sendTimeout: clientSendTimeout,
		scene:       newScene(),
	}
}

// OnReady sets a callback run each time the first browser attaches
func (h *Hub) OnReady(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReady = fn
}

// Run starts the hub's event loop. Once it returns, open streams end and
// further broadcasts are discarded.
func (h *Hub) Run(done <-chan struct{}) {
	defer h.stopOnce.Do(func() { close(h.stopped) })

	for {
		select {
		case client := <-h.register:
			// the scene is captured in the same step that adds the client,
			// so every later broadcast reaches it after the replay
			var replay [][]byte
			for _, ev := range h.scene.replay() {
				if msg, err := encode(ev); err == nil {
					replay = append(replay, msg)
				}
			}
			client.replay <- replay

			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			onReady := h.onReady
			h.mu.Unlock()

			h.metrics.SetStreamClients(total)
			h.logger.Info("SSE client connected", "client", client.id, "total", total)
			if total == 1 && onReady != nil {
				go onReady()
			}

		case client := <-h.unregister:
			total := h.drop(client)
			h.logger.Info("SSE client disconnected", "client", client.id, "total", total)

		case event := <-h.broadcast:
			msg, err := encode(event)
			if err != nil {
				h.logger.Error("failed to marshal event", "type", event.Type, "error", err)
				continue
			}

			// only Run mutates the client set, so it reads it without the lock
			var behind []*Client
			for client := range h.clients {
				if !h.send(client, msg) {
					behind = append(behind, client)
				}
			}
			for _, client := range behind {
				total := h.drop(client)
				h.logger.Warn("SSE client fell behind, closing its stream", "client", client.id, "total", total)
			}

		case <-done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

// send queues msg for client, waiting up to sendTimeout when its queue is
// full. It reports false when the client did not make room in time.
func (h *Hub) send(client *Client, msg []byte) bool {
	select {
	case client.events <- msg:
		return true
	default:
	}

	timer := time.NewTimer(h.sendTimeout)
	defer timer.Stop()
	select {
	case client.events <- msg:
		return true
	case <-timer.C:
		return false
	}
}

// drop removes client and closes its queue, ending its stream
func (h *Hub) drop(client *Client) int {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.events)
	}
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetStreamClients(total)
	return total
}

func encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, data)), nil
}

// Broadcast sends an event to all connected clients. It waits while the
// queue is full. With no client attached the event is discarded; the scene
// replay covers the next browser.
func (h *Hub) Broadcast(ev Event) {
	if h.ClientCount() == 0 {
		return
	}
	select {
	case h.broadcast <- ev:
	case <-h.stopped:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles SSE connections
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Check if client supports SSE
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	client := &Client{
		id:     uuid.NewString(),
		events: make(chan []byte, clientBuffer),
		replay: make(chan [][]byte, 1),
	}

	select {
	case h.register <- client:
	case <-r.Context().Done():
		return
	case <-h.stopped:
		return
	}

	// Ensure cleanup on disconnect
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.stopped:
		}
	}()

	// Send initial connection message, then the current scene
	fmt.Fprintf(w, ": connected\n\n")
	for _, msg := range <-client.replay {
		if _, err := w.Write(msg); err != nil {
			return
		}
	}
	flusher.Flush()

	// Keep-alive ticker
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return

		case <-h.stopped:
			return
		}
	}
}
