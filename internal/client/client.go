package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"campushub/pkg/events"
)

// Transport is one live connection to the hub. The production implementation
// wraps a gorilla WebSocket; tests substitute an in-memory pipe.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer establishes a Transport. Called once per connection attempt.
type Dialer func(ctx context.Context) (Transport, error)

// wsTransport adapts a gorilla connection to the Transport interface.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// WebSocketDialer dials the hub's /ws endpoint.
func WebSocketDialer(url string) Dialer {
	return func(ctx context.Context) (Transport, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return &wsTransport{conn: conn}, nil
	}
}

// Options configures a Client.
type Options struct {
	Dialer  Dialer
	Backoff Backoff

	// Store receives notification-bearing events. Nil disables the feed.
	Store *NotificationStore

	// OnEvent observes every decoded outbound event, notification-bearing
	// or not. May be nil.
	OnEvent func(ev *OutboundEvent)

	// OnStateChange observes reconnector transitions. May be nil. Must not
	// call back into the Client.
	OnStateChange func(s State)
}

// OutboundEvent is the wire form of a hub-to-client event.
type OutboundEvent struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client maintains one hub connection across failures. Join events are
// remembered and re-issued after every reconnect, before any queued user
// event goes out, so room membership is restored ahead of new traffic.
type Client struct {
	opts  Options
	recon *Reconnector
	store *NotificationStore

	mu         sync.Mutex
	transport  Transport
	remembered []envelope // join_* events in issue order
	pending    []envelope // user events queued while offline
	connID     string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a client. Connect must be called to start it.
func NewClient(opts Options) (*Client, error) {
	if opts.Dialer == nil {
		return nil, ErrNoDialer
	}
	c := &Client{
		opts:  opts,
		store: opts.Store,
	}
	c.recon = NewReconnector(opts.Backoff, opts.OnStateChange)
	return c, nil
}

// State returns the reconnector state.
func (c *Client) State() State {
	return c.recon.State()
}

// ConnectionID returns the id assigned in the last welcome event.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// Connect starts the connection loop. It returns once the loop is running;
// connection failures surface through OnStateChange, not here.
func (c *Client) Connect(ctx context.Context) error {
	if !c.recon.Connecting() {
		return ErrAlreadyStarted
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run()
	return nil
}

// Disconnect cancels the loop and closes the transport. The reconnector goes
// to disconnected and stays there.
func (c *Client) Disconnect() {
	c.recon.Cancel()
	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	t := c.transport
	c.transport = nil
	c.mu.Unlock()

	if t != nil {
		_ = t.Close()
	}
	c.wg.Wait()
}

// Send submits one event to the hub. Join events are remembered for replay
// on reconnect; a matching leave forgets the remembered join. While offline,
// user events queue until the next successful reconnect.
func (c *Client) Send(eventType string, payload interface{}) error {
	ev := envelope{Type: eventType, Payload: payload}

	c.mu.Lock()
	c.remember(ev)
	t := c.transport
	if t == nil {
		switch c.recon.State() {
		case StateConnecting, StateReconnecting:
			c.pending = append(c.pending, ev)
			c.mu.Unlock()
			return nil
		default:
			c.mu.Unlock()
			return ErrNotConnected
		}
	}
	c.mu.Unlock()

	return writeEnvelope(t, ev)
}

// remember tracks join events for reconnect replay. Caller holds c.mu.
func (c *Client) remember(ev envelope) {
	switch ev.Type {
	case events.InboundJoinChat, events.InboundJoinDashboard, events.InboundJoinLiveClass:
		c.remembered = append(c.remembered, ev)
	case events.InboundLeaveLiveClass:
		// Forget the matching join so a reconnect does not rejoin the class.
		left, ok := ev.Payload.(events.LiveClassPayload)
		if !ok {
			return
		}
		kept := c.remembered[:0]
		for _, r := range c.remembered {
			if r.Type == events.InboundJoinLiveClass {
				if joined, ok := r.Payload.(events.LiveClassPayload); ok && joined.ClassID == left.ClassID {
					continue
				}
			}
			kept = append(kept, r)
		}
		c.remembered = kept
	}
}

func writeEnvelope(t Transport, ev envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return t.WriteMessage(data)
}

// run is the connection loop: dial, replay joins, flush the queue, read until
// failure, back off, repeat.
func (c *Client) run() {
	defer c.wg.Done()

	for {
		t, err := c.opts.Dialer(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				c.recon.Cancel()
				return
			}
			delay, ok := c.recon.Dropped()
			if !ok {
				log.Printf("Connection attempts exhausted: %v", err)
				return
			}
			if !c.sleep(delay) {
				return
			}
			continue
		}

		c.recon.Connected()

		c.mu.Lock()
		c.transport = t
		joins := make([]envelope, len(c.remembered))
		copy(joins, c.remembered)
		queued := c.pending
		c.pending = nil
		c.mu.Unlock()

		// Rooms first: queued user events must land after membership is
		// restored.
		replayErr := c.replay(t, joins, queued)

		var readErr error
		if replayErr != nil {
			readErr = replayErr
		} else {
			readErr = c.readLoop(t)
		}

		c.mu.Lock()
		c.transport = nil
		c.mu.Unlock()
		_ = t.Close()

		if c.ctx.Err() != nil {
			c.recon.Cancel()
			return
		}

		var delay time.Duration
		var ok bool
		if isServerClose(readErr) {
			delay, ok = c.recon.ServerClosed()
		} else {
			delay, ok = c.recon.Dropped()
		}
		if !ok {
			return
		}
		if !c.sleep(delay) {
			return
		}
	}
}

func (c *Client) replay(t Transport, joins, queued []envelope) error {
	for _, ev := range joins {
		if err := writeEnvelope(t, ev); err != nil {
			return err
		}
	}
	for _, ev := range queued {
		if err := writeEnvelope(t, ev); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) readLoop(t Transport) error {
	for {
		data, err := t.ReadMessage()
		if err != nil {
			return err
		}

		var ev OutboundEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("Dropping malformed server event: %v", err)
			continue
		}

		c.handleEvent(&ev)
	}
}

func (c *Client) handleEvent(ev *OutboundEvent) {
	if ev.Type == events.OutboundWelcome {
		var welcome events.WelcomePayload
		if err := json.Unmarshal(ev.Payload, &welcome); err == nil {
			c.mu.Lock()
			c.connID = welcome.ConnectionID
			c.mu.Unlock()
		}
	}

	if c.store != nil {
		if n, ok := toNotification(ev); ok {
			c.store.Append(n)
		}
	}

	if c.opts.OnEvent != nil {
		c.opts.OnEvent(ev)
	}
}

// toNotification maps notification-bearing event types into feed entries.
// Acks, chat traffic and presence events do not enter the feed.
func toNotification(ev *OutboundEvent) (Notification, bool) {
	n := Notification{
		ID:        uuid.New().String(),
		Type:      ev.Type,
		Timestamp: ev.Timestamp,
	}

	switch ev.Type {
	case events.OutboundAnnouncement:
		var p events.AnnouncementPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return Notification{}, false
		}
		n.Title = p.Title
		n.Message = p.Message

	case events.OutboundAssignmentNotice:
		var p events.AssignmentNoticePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return Notification{}, false
		}
		n.Title = "New Assignment"
		n.Message = fmt.Sprintf("%s (due %s)", p.Title, p.DueDate)

	case events.OutboundGradeNotice:
		var p events.GradeNoticePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return Notification{}, false
		}
		n.Title = "Grade Updated"
		n.Message = p.Message

	case events.OutboundPaymentNotice:
		var p events.PaymentNoticePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return Notification{}, false
		}
		n.Title = "Fee Payment"
		n.Message = p.Message

	case events.OutboundPaymentUpdate:
		var p events.PaymentUpdatePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return Notification{}, false
		}
		n.Title = "Payment Update"
		n.Message = fmt.Sprintf("%s paid %.2f (%s)", p.StudentID, p.Amount, p.Status)

	case events.OutboundAttendanceUpdated:
		var p events.AttendanceUpdatedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return Notification{}, false
		}
		n.Title = "Attendance"
		n.Message = p.Message

	default:
		return Notification{}, false
	}

	return n, true
}

// isServerClose reports whether the read failed because the server closed
// the connection on purpose rather than the link dropping.
func isServerClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseServiceRestart,
	)
}

// sleep waits for the backoff delay, aborting early on cancellation.
func (c *Client) sleep(delay time.Duration) bool {
	if delay <= 0 {
		return c.ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		c.recon.Cancel()
		return false
	}
}
