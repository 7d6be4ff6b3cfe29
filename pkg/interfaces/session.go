package interfaces

import (
	"context"

	"campushub/pkg/types"
)

// SessionStore manages chat session lifecycle for the REST collaborator
// endpoints. The hub itself treats session ids as opaque strings; only the
// HTTP layer consults this store.
type SessionStore interface {
	// CreateSession creates and persists a new chat session.
	CreateSession(ctx context.Context, createdBy, language string) (*types.ChatSession, error)

	// GetSession retrieves a session by id, checking the in-memory cache
	// before the database.
	GetSession(ctx context.Context, sessionID string) (*types.ChatSession, error)

	// ListActiveSessions returns every cached active session.
	ListActiveSessions(ctx context.Context) ([]*types.ChatSession, error)

	// EndSession ends an active session and evicts it from the cache.
	EndSession(ctx context.Context, sessionID string) error
}
