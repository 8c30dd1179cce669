package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Event is one hub message, formatted for SSE delivery.
type Event struct {
	ID   int64                  `json:"id"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type client struct {
	id     string
	events chan Event
	cancel context.CancelFunc
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		c.cancel()
		close(c.events)
	})
}

// Hub fans events out to connected clients and keeps a bounded replay
// buffer so a reconnecting client can resume from Last-Event-ID.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	buffer  []Event
	cap     int
	nextID  int64
	stopped bool
}

// NewHub creates a hub with a replay buffer of bufferSize events.
func NewHub(bufferSize int) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		cap:     bufferSize,
	}
}

// PublishCommand publishes a command lifecycle event. data may be nil.
func (h *Hub) PublishCommand(eventType, commandID string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{}, 2)
	}
	if commandID != "" {
		data["commandId"] = commandID
	}
	data["ts"] = time.Now().UTC().Format(time.RFC3339)

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.nextID++
	ev := Event{ID: h.nextID, Type: eventType, Data: data}

	h.buffer = append(h.buffer, ev)
	if len(h.buffer) > h.cap {
		h.buffer = h.buffer[len(h.buffer)-h.cap:]
	}

	var full []*client
	for _, c := range h.clients {
		select {
		case c.events <- ev:
		default:
			// Slow consumer: drop the connection, the client resumes
			// from Last-Event-ID.
			full = append(full, c)
		}
	}
	for _, c := range full {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()

	for _, c := range full {
		c.close()
	}
}

// Subscribe streams events to an SSE client until the request context ends.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var lastID int64
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			lastID = id
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &client{
		id:     fmt.Sprintf("client_%d", time.Now().UnixNano()),
		events: make(chan Event, 32),
		cancel: cancel,
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		cancel()
		return fmt.Errorf("hub stopped")
	}
	replay := make([]Event, 0)
	for _, ev := range h.buffer {
		if ev.ID > lastID {
			replay = append(replay, ev)
		}
	}
	h.clients[c.id] = c
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		c.close()
	}()

	for _, ev := range replay {
		if err := writeEvent(w, ev); err != nil {
			return err
		}
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.events:
			if !ok {
				return nil
			}
			if err := writeEvent(w, ev); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}

// Stop disconnects every client and rejects further publishes.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// ClientCount reports connected subscribers. Test helper.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func writeEvent(w http.ResponseWriter, ev Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal event %d: %w", ev.ID, err)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, payload)
	return err
}
