package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"campushub/pkg/events"
	"campushub/pkg/interfaces"
)

// EventSink is the hub surface the transport needs: admit, remove, enqueue.
type EventSink interface {
	RegisterConnection(conn interfaces.Connection) error
	UnregisterConnection(connectionID string) error
	SubmitEvent(ev *events.Inbound) error
}

// Config holds transport timing settings.
type Config struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	BufferSize   int
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Dashboards are served from a separate origin in development.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades HTTP requests to WebSocket connections and pumps inbound
// events into the hub. It holds no shared state of its own.
type Handler struct {
	sink EventSink
	cfg  Config
}

// NewHandler creates a WebSocket handler feeding the given sink.
func NewHandler(sink EventSink, cfg Config) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	return &Handler{sink: sink, cfg: cfg}
}

// HandleWebSocket upgrades the request and hands the connection to the hub.
// Identity and room membership arrive later via join events, so the upgrade
// itself carries no parameters.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, h.cfg.BufferSize)

	if err := h.sink.RegisterConnection(wsConn); err != nil {
		log.Printf("Failed to register connection: %v", err)
		_ = wsConn.Close()
		return
	}

	go h.handleConnection(wsConn)
}

// handleConnection runs the read pump with ping/pong heartbeat monitoring.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		if err := h.sink.UnregisterConnection(conn.ID()); err != nil {
			log.Printf("Failed to unregister connection %s: %v", conn.ID(), err)
		}
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: conn=%s err=%v", conn.ID(), err)
			}
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var ev events.Inbound
		if err := json.Unmarshal(data, &ev); err != nil {
			// Reject at the boundary; the payload never reaches the hub.
			_ = conn.Send(events.NewOutbound(events.OutboundError, events.ErrorPayload{
				Message: "malformed event envelope",
			}))
			continue
		}
		ev.OriginConnectionID = conn.ID()

		if err := h.sink.SubmitEvent(&ev); err != nil {
			log.Printf("Failed to submit event: conn=%s type=%s err=%v", conn.ID(), ev.Type, err)
			_ = conn.Send(events.NewOutbound(events.OutboundError, events.ErrorPayload{
				Message: "server busy, event dropped",
			}))
		}
	}
}
