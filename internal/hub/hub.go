package hub

import (
	"context"
	"log"
	"sync"

	"campushub/internal/dispatch"
	"campushub/internal/registry"
	"campushub/pkg/events"
	"campushub/pkg/interfaces"
)

// Hub owns the single event-processing goroutine. Every registry and room
// mutation flows through one select loop, one inbound event at a time, so
// the shared maps never see interleaved partial updates. Transport handlers
// only enqueue; they never touch shared state directly.
type Hub struct {
	eventChannel      chan *events.Inbound       // buffered for announcement and attendance bursts
	registerChannel   chan interfaces.Connection // connection lifecycle events
	unregisterChannel chan string                // connection id
	shutdownChannel   chan struct{}

	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher

	running bool
	mu      sync.RWMutex
}

// NewHub creates a hub wired to a registry and dispatcher.
func NewHub(reg *registry.Registry, dispatcher *dispatch.Dispatcher) *Hub {
	return &Hub{
		eventChannel:      make(chan *events.Inbound, 1000),
		registerChannel:   make(chan interfaces.Connection, 100),
		unregisterChannel: make(chan string, 100),
		shutdownChannel:   make(chan struct{}),
		registry:          reg,
		dispatcher:        dispatcher,
	}
}

// Start begins hub processing.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	log.Println("Starting event hub...")
	go h.run(ctx)
	return nil
}

// Stop gracefully shuts down the hub.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	log.Println("Stopping event hub...")

	select {
	case <-h.shutdownChannel:
	default:
		close(h.shutdownChannel)
	}
	return nil
}

// SubmitEvent queues an inbound event for dispatch. Non-blocking: a full
// queue is reported to the caller rather than stalling the transport reader.
func (h *Hub) SubmitEvent(ev *events.Inbound) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	select {
	case h.eventChannel <- ev:
		return nil
	default:
		return ErrEventChannelFull
	}
}

// RegisterConnection queues a newly established transport for admission.
func (h *Hub) RegisterConnection(conn interfaces.Connection) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	select {
	case h.registerChannel <- conn:
		return nil
	default:
		return ErrRegisterChannelFull
	}
}

// UnregisterConnection queues a connection id for removal. Id-based removal
// works even when the connection object is already closed.
func (h *Hub) UnregisterConnection(connectionID string) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	select {
	case h.unregisterChannel <- connectionID:
		return nil
	default:
		return ErrUnregisterChannelFull
	}
}

// run is the main processing loop.
func (h *Hub) run(ctx context.Context) {
	defer log.Println("Hub processing stopped")

	for {
		select {
		case ev := <-h.eventChannel:
			// Dispatch failures are per-event; processing continues.
			if err := h.dispatcher.HandleEvent(ctx, ev); err != nil {
				log.Printf("Event dispatch failed: type=%s conn=%s err=%v", ev.Type, ev.OriginConnectionID, err)
			}

		case conn := <-h.registerChannel:
			h.handleRegistration(conn)

		case connectionID := <-h.unregisterChannel:
			h.registry.Remove(connectionID)
			log.Printf("Connection removed: conn=%s", connectionID)

		case <-h.shutdownChannel:
			log.Println("Hub shutdown requested")
			return

		case <-ctx.Done():
			log.Println("Hub context cancelled")
			return
		}
	}
}

// handleRegistration admits a connection and greets it. An admission failure
// closes the transport so failed connections never consume resources.
func (h *Hub) handleRegistration(conn interfaces.Connection) {
	if conn == nil {
		log.Printf("Attempted to register nil connection")
		return
	}

	if err := h.registry.Admit(conn); err != nil {
		log.Printf("Connection admission failed: conn=%s err=%v", conn.ID(), err)
		if closeErr := conn.Close(); closeErr != nil {
			log.Printf("Failed to close connection after admission failure: %v", closeErr)
		}
		return
	}

	welcome := events.NewOutbound(events.OutboundWelcome, events.WelcomePayload{
		Message:      "Connected to campus hub",
		ConnectionID: conn.ID(),
	})
	if err := conn.Send(welcome); err != nil {
		log.Printf("Failed to send welcome: conn=%s err=%v", conn.ID(), err)
	}
	log.Printf("Connection admitted: conn=%s", conn.ID())
}
