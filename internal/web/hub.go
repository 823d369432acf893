package web

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/gofiber/websocket/v2"
)

// Event types pushed to websocket clients.
const (
	EventStatus = "status"
	EventIssue  = "issue"
)

// Event is one websocket message
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans status updates and issues out to websocket clients and keeps
// every issue for the REST API. It implements queue.Notifier and
// issues.Sink; neither call blocks. When the broadcast buffer is full,
// events are dropped except terminal status updates, which are held until
// the buffer drains.
type Hub struct {
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan []byte
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger

	pendingMu sync.Mutex
	pending   [][]byte

	mu     sync.RWMutex
	issues []types.Issue
	last   map[string]types.StatusUpdate
	order  []string
}

// NewHub creates a hub and starts its broadcast loop
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		logger:    logger,
		last:      make(map[string]types.StatusUpdate),
	}
	go h.run()
	return h
}

// Notify records and broadcasts a scan status update
func (h *Hub) Notify(update types.StatusUpdate) {
	h.mu.Lock()
	if _, ok := h.last[update.ScanID]; !ok {
		h.order = append(h.order, update.ScanID)
	}
	h.last[update.ScanID] = update
	h.mu.Unlock()

	h.publish(Event{Type: EventStatus, Data: update}, update.Status.Terminal())
}

// Create records and broadcasts an issue
func (h *Hub) Create(issue types.Issue) {
	h.mu.Lock()
	h.issues = append(h.issues, issue)
	h.mu.Unlock()

	h.publish(Event{Type: EventIssue, Data: issue}, false)
}

// Issues returns a copy of every issue received
func (h *Hub) Issues() []types.Issue {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]types.Issue, len(h.issues))
	copy(out, h.issues)
	return out
}

// Statuses returns the latest update of every scan seen, in first-seen order
func (h *Hub) Statuses() []types.StatusUpdate {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]types.StatusUpdate, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.last[id])
	}
	return out
}

// Close stops the broadcast loop and disconnects every client
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.clientsMu.Lock()
		for client := range h.clients {
			client.Close()
			delete(h.clients, client)
		}
		h.clientsMu.Unlock()
	})
}

// publish queues an event. When the channel is full a held event is kept
// for the next drain; any other event is dropped.
func (h *Hub) publish(ev Event, hold bool) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- data:
		return
	default:
	}

	if !hold {
		h.logger.Warn("broadcast channel full, event dropped", slog.String("type", ev.Type))
		return
	}
	h.pendingMu.Lock()
	h.pending = append(h.pending, data)
	h.pendingMu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// run sends queued events to all connected clients
func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.broadcast:
			h.send(msg)
		case <-h.wake:
		}
		if len(h.broadcast) == 0 {
			h.flush()
		}
	}
}

// flush sends held events once everything queued before them is out
func (h *Hub) flush() {
	h.pendingMu.Lock()
	held := h.pending
	h.pending = nil
	h.pendingMu.Unlock()
	for _, msg := range held {
		h.send(msg)
	}
}

func (h *Hub) send(msg []byte) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client := range h.clients {
		if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
			client.Close()
			delete(h.clients, client)
		}
	}
}

// serve registers a websocket client, replays current statuses and keeps
// the connection open until the client goes away
func (h *Hub) serve(c *websocket.Conn) {
	h.clientsMu.Lock()
	h.clients[c] = true
	h.clientsMu.Unlock()

	defer func() {
		h.clientsMu.Lock()
		delete(h.clients, c)
		h.clientsMu.Unlock()
		c.Close()
	}()

	for _, update := range h.Statuses() {
		data, _ := json.Marshal(Event{Type: EventStatus, Data: update})
		h.clientsMu.Lock()
		err := c.WriteMessage(websocket.TextMessage, data)
		h.clientsMu.Unlock()
		if err != nil {
			return
		}
	}

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
