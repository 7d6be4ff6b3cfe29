package interfaces

// Connection is one live transport channel between a client and the hub,
// independent of the user's declared identity. Implementations exist for
// WebSocket connections, the long-poll fallback, and test fakes.
type Connection interface {
	// ID returns the opaque connection id, unique per physical channel.
	ID() string

	// Send enqueues an outbound event for delivery. It must never block the
	// caller: implementations drop the event and return ErrSendBufferFull
	// when the per-connection buffer is exhausted. Delivery is fire-and-forget
	// with no acknowledgement and no re-delivery on drop.
	Send(v interface{}) error

	// Close tears down the transport channel and releases resources.
	// Closing an already-closed connection is a no-op.
	Close() error
}
