package interfaces

import (
	"context"

	"campushub/pkg/types"
)

// DatabaseManager handles all persistence operations: chat session records
// consumed by the REST collaborator endpoints and the announcement audit
// trail written before announcement fan-out. Chat messages themselves are
// never persisted; the hub offers no replay.
type DatabaseManager interface {
	// CreateChatSession persists a new chat session record.
	CreateChatSession(ctx context.Context, session *types.ChatSession) error

	// GetChatSession retrieves a chat session by id. Returns
	// ErrSessionNotFound when no record exists.
	GetChatSession(ctx context.Context, sessionID string) (*types.ChatSession, error)

	// ListActiveChatSessions returns every session not yet ended.
	ListActiveChatSessions(ctx context.Context) ([]*types.ChatSession, error)

	// EndChatSession marks a session ended. Ending an already-ended session
	// is a no-op.
	EndChatSession(ctx context.Context, sessionID string) error

	// StoreAnnouncement appends one announcement to the audit trail.
	StoreAnnouncement(ctx context.Context, a *types.AnnouncementRecord) error

	// ListAnnouncements returns the most recent audit entries, newest first.
	ListAnnouncements(ctx context.Context, limit int) ([]*types.AnnouncementRecord, error)

	// HealthCheck verifies database connectivity.
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and closes the database.
	Close() error
}
