package polling

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"campushub/pkg/events"
	"campushub/pkg/interfaces"
)

// EventSink mirrors the hub surface used by the WebSocket transport.
type EventSink interface {
	RegisterConnection(conn interfaces.Connection) error
	UnregisterConnection(connectionID string) error
	SubmitEvent(ev *events.Inbound) error
}

// Handler serves the long-poll fallback transport:
//
//	POST /poll/connect           -> {"connectionId": "..."}
//	GET  /poll/events?connection_id=ID  (blocks up to PollWait)
//	POST /poll/send?connection_id=ID    (body: inbound event envelope)
//	POST /poll/disconnect?connection_id=ID
//
// The same inbound/outbound event contracts apply as over WebSocket.
type Handler struct {
	sink EventSink

	mu    sync.RWMutex
	conns map[string]*Connection

	pollWait    time.Duration
	idleTimeout time.Duration
	bufferSize  int

	stopReaper chan struct{}
	reaperOnce sync.Once
}

// Config holds poll transport timing settings.
type Config struct {
	WaitTimeout time.Duration
	IdleTimeout time.Duration
	BufferSize  int
}

// NewHandler creates a polling handler and starts its idle reaper.
func NewHandler(sink EventSink, cfg Config) *Handler {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 25 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 90 * time.Second
	}
	h := &Handler{
		sink:        sink,
		conns:       make(map[string]*Connection),
		pollWait:    cfg.WaitTimeout,
		idleTimeout: cfg.IdleTimeout,
		bufferSize:  cfg.BufferSize,
		stopReaper:  make(chan struct{}),
	}
	go h.reapIdle()
	return h
}

// Stop terminates the idle reaper.
func (h *Handler) Stop() {
	h.reaperOnce.Do(func() { close(h.stopReaper) })
}

// HandleConnect admits a new poll-backed connection.
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conn := NewConnection(h.bufferSize)
	if err := h.sink.RegisterConnection(conn); err != nil {
		log.Printf("Failed to register poll connection: %v", err)
		http.Error(w, "Server busy", http.StatusServiceUnavailable)
		return
	}

	h.mu.Lock()
	h.conns[conn.ID()] = conn
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"connectionId": conn.ID()})
}

// HandleEvents drains queued outbound events, blocking briefly when none
// are ready.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.lookup(r)
	if !ok {
		http.Error(w, "Unknown connection id", http.StatusNotFound)
		return
	}

	batch, err := conn.Drain(h.pollWait)
	if err != nil {
		http.Error(w, "Connection closed", http.StatusGone)
		return
	}
	if batch == nil {
		batch = []json.RawMessage{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"events": batch})
}

// HandleSend accepts one inbound event envelope.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conn, ok := h.lookup(r)
	if !ok {
		http.Error(w, "Unknown connection id", http.StatusNotFound)
		return
	}

	var ev events.Inbound
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "Malformed event envelope", http.StatusBadRequest)
		return
	}
	ev.OriginConnectionID = conn.ID()

	if err := h.sink.SubmitEvent(&ev); err != nil {
		http.Error(w, "Server busy, event dropped", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleDisconnect tears down a poll connection.
func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conn, ok := h.lookup(r)
	if !ok {
		http.Error(w, "Unknown connection id", http.StatusNotFound)
		return
	}

	h.remove(conn)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(r *http.Request) (*Connection, bool) {
	id := r.URL.Query().Get("connection_id")
	if id == "" {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[id]
	return conn, ok
}

func (h *Handler) remove(conn *Connection) {
	h.mu.Lock()
	delete(h.conns, conn.ID())
	h.mu.Unlock()

	if err := h.sink.UnregisterConnection(conn.ID()); err != nil {
		log.Printf("Failed to unregister poll connection %s: %v", conn.ID(), err)
	}
	_ = conn.Close()
}

// reapIdle removes connections whose client stopped polling, which is the
// poll transport's equivalent of a dropped socket.
func (h *Handler) reapIdle() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-h.idleTimeout)

			h.mu.RLock()
			var stale []*Connection
			for _, conn := range h.conns {
				if conn.LastPoll().Before(cutoff) {
					stale = append(stale, conn)
				}
			}
			h.mu.RUnlock()

			for _, conn := range stale {
				log.Printf("Reaping idle poll connection: conn=%s", conn.ID())
				h.remove(conn)
			}

		case <-h.stopReaper:
			return
		}
	}
}
