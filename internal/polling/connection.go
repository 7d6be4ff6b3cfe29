package polling

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"campushub/pkg/interfaces"
)

// Connection implements interfaces.Connection for clients that cannot
// upgrade to WebSocket. Outbound events queue in a buffered channel until
// the client's next poll drains them.
type Connection struct {
	id        string
	queue     chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.Mutex
	lastPoll time.Time
}

// NewConnection creates a poll-backed connection.
func NewConnection(bufferSize int) *Connection {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		id:       uuid.New().String(),
		queue:    make(chan []byte, bufferSize),
		ctx:      ctx,
		cancel:   cancel,
		lastPoll: time.Now(),
	}
}

// ID returns the opaque connection id issued at connect time.
func (c *Connection) ID() string {
	return c.id
}

// Send enqueues an outbound event for the next poll. Fire-and-forget: a
// full queue drops the event rather than blocking the dispatcher.
func (c *Connection) Send(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.queue <- data:
		return nil
	default:
		return interfaces.ErrSendBufferFull
	}
}

// Close releases the connection. Idempotent.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
	})
	return nil
}

// Drain blocks until at least one event is queued or the wait elapses, then
// returns everything currently queued. A closed connection returns
// ErrConnectionClosed.
func (c *Connection) Drain(wait time.Duration) ([]json.RawMessage, error) {
	c.mu.Lock()
	c.lastPoll = time.Now()
	c.mu.Unlock()

	var batch []json.RawMessage

	select {
	case <-c.ctx.Done():
		return nil, ErrConnectionClosed
	case data := <-c.queue:
		batch = append(batch, data)
	case <-time.After(wait):
		return batch, nil
	}

	for {
		select {
		case data := <-c.queue:
			batch = append(batch, data)
		default:
			return batch, nil
		}
	}
}

// LastPoll reports when the client last asked for events, for idle reaping.
func (c *Connection) LastPoll() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPoll
}
