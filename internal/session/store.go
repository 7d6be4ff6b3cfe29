package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"campushub/pkg/events"
	"campushub/pkg/interfaces"
	"campushub/pkg/types"
)

// Store implements the SessionStore interface with an in-memory cache of
// active sessions backed by the database.
type Store struct {
	dbManager      interfaces.DatabaseManager
	activeSessions map[string]*types.ChatSession // sessionID -> ChatSession
	mu             sync.RWMutex
}

// NewStore creates a new session store.
func NewStore(dbManager interfaces.DatabaseManager) *Store {
	return &Store{
		dbManager:      dbManager,
		activeSessions: make(map[string]*types.ChatSession),
	}
}

// LoadActiveSessions loads all active sessions from the database into memory.
// Called once at startup so sessions survive restarts.
func (s *Store) LoadActiveSessions(ctx context.Context) error {
	sessions, err := s.dbManager.ListActiveChatSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active sessions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range sessions {
		s.activeSessions[session.ID] = session
	}

	log.Printf("Loaded %d active chat sessions", len(sessions))
	return nil
}

// CreateSession creates a new chat session.
func (s *Store) CreateSession(ctx context.Context, createdBy, language string) (*types.ChatSession, error) {
	if createdBy == "" {
		return nil, ErrInvalidCreatedBy
	}
	if language == "" {
		language = events.LanguageEnglish
	}
	if !events.IsValidLanguage(language) {
		return nil, ErrInvalidLanguage
	}

	session := &types.ChatSession{
		ID:        uuid.New().String(),
		CreatedBy: createdBy,
		Language:  language,
		CreatedAt: time.Now(),
		EndedAt:   nil,
		Status:    "active",
	}

	if err := s.dbManager.CreateChatSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.mu.Lock()
	s.activeSessions[session.ID] = session
	s.mu.Unlock()

	log.Printf("Created chat session: id=%s created_by=%s language=%s", session.ID, session.CreatedBy, session.Language)
	return session, nil
}

// GetSession retrieves a session by id, checking the cache first.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*types.ChatSession, error) {
	s.mu.RLock()
	if session, exists := s.activeSessions[sessionID]; exists {
		s.mu.RUnlock()
		return session, nil
	}
	s.mu.RUnlock()

	// Cache miss covers ended sessions and restarts.
	return s.dbManager.GetChatSession(ctx, sessionID)
}

// ListActiveSessions returns every cached active session.
func (s *Store) ListActiveSessions(ctx context.Context) ([]*types.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*types.ChatSession, 0, len(s.activeSessions))
	for _, session := range s.activeSessions {
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// EndSession ends an active session and evicts it from the cache.
func (s *Store) EndSession(ctx context.Context, sessionID string) error {
	s.mu.RLock()
	_, exists := s.activeSessions[sessionID]
	s.mu.RUnlock()

	if !exists {
		// Could be an ended session; confirm before rejecting.
		if _, err := s.dbManager.GetChatSession(ctx, sessionID); err != nil {
			return err
		}
		return ErrSessionAlreadyEnded
	}

	if err := s.dbManager.EndChatSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	s.mu.Lock()
	delete(s.activeSessions, sessionID)
	s.mu.Unlock()

	log.Printf("Ended chat session: id=%s", sessionID)
	return nil
}
