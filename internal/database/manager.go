package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"campushub/pkg/interfaces"
	"campushub/pkg/types"
)

// Config holds database settings.
type Config struct {
	Path            string
	MaxConnections  int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Manager implements interfaces.DatabaseManager over SQLite. All writes are
// funneled through a single goroutine; SQLite tolerates concurrent reads but
// not concurrent writers.
type Manager struct {
	db           *sql.DB
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies the schema, and starts the writer
// goroutine.
func NewManager(cfg *Config) (*Manager, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	m := &Manager{
		db:           db,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	m.wg.Add(1)
	go m.writeLoop()

	return m, nil
}

func applySchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			id         TEXT PRIMARY KEY,
			created_by TEXT NOT NULL,
			language   TEXT NOT NULL DEFAULT 'en',
			created_at DATETIME NOT NULL,
			ended_at   DATETIME,
			status     TEXT NOT NULL DEFAULT 'active'
		);
		CREATE TABLE IF NOT EXISTS announcements (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			content      TEXT NOT NULL,
			priority     TEXT,
			type         TEXT,
			target_roles TEXT NOT NULL,
			department   TEXT,
			created_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_announcements_created_at ON announcements(created_at);
		CREATE INDEX IF NOT EXISTS idx_chat_sessions_status ON chat_sessions(status);
	`
	_, err := db.Exec(schema)
	return err
}

// writeLoop processes all write operations in a single goroutine, retrying
// once after a short delay on failure.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				log.Printf("Database write failed, retrying in 5 seconds: %v", err)
				time.Sleep(5 * time.Second)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			log.Println("Database write loop shutting down")
			return
		}
	}
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// CreateChatSession persists a new chat session record.
func (m *Manager) CreateChatSession(ctx context.Context, session *types.ChatSession) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO chat_sessions (id, created_by, language, created_at, status)
			VALUES (?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			session.ID,
			session.CreatedBy,
			session.Language,
			session.CreatedAt,
			session.Status,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chat session: %w", err)
		}
		return nil
	})
}

// GetChatSession retrieves a chat session by id.
func (m *Manager) GetChatSession(ctx context.Context, sessionID string) (*types.ChatSession, error) {
	query := `
		SELECT id, created_by, language, created_at, ended_at, status
		FROM chat_sessions
		WHERE id = ?
	`
	row := m.db.QueryRowContext(ctx, query, sessionID)

	var session types.ChatSession
	var endedAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.CreatedBy,
		&session.Language,
		&session.CreatedAt,
		&endedAt,
		&session.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to query chat session: %w", err)
	}

	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	return &session, nil
}

// ListActiveChatSessions returns every session not yet ended.
func (m *Manager) ListActiveChatSessions(ctx context.Context) ([]*types.ChatSession, error) {
	query := `
		SELECT id, created_by, language, created_at, ended_at, status
		FROM chat_sessions
		WHERE status = 'active'
		ORDER BY created_at DESC
	`
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active chat sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*types.ChatSession
	for rows.Next() {
		var session types.ChatSession
		var endedAt sql.NullTime
		if err := rows.Scan(
			&session.ID,
			&session.CreatedBy,
			&session.Language,
			&session.CreatedAt,
			&endedAt,
			&session.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chat session: %w", err)
		}
		if endedAt.Valid {
			session.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// EndChatSession marks a session ended. Already-ended sessions are a no-op.
func (m *Manager) EndChatSession(ctx context.Context, sessionID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			UPDATE chat_sessions
			SET status = 'ended', ended_at = ?
			WHERE id = ? AND status = 'active'
		`
		_, err := db.ExecContext(ctx, query, time.Now(), sessionID)
		if err != nil {
			return fmt.Errorf("failed to end chat session: %w", err)
		}
		return nil
	})
}

// StoreAnnouncement appends one announcement to the audit trail.
func (m *Manager) StoreAnnouncement(ctx context.Context, a *types.AnnouncementRecord) error {
	return m.executeWrite(func(db *sql.DB) error {
		rolesJSON, err := json.Marshal(a.TargetRoles)
		if err != nil {
			return fmt.Errorf("failed to marshal target roles: %w", err)
		}

		query := `
			INSERT INTO announcements (id, title, content, priority, type, target_roles, department, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = db.ExecContext(ctx, query,
			a.ID,
			a.Title,
			a.Content,
			a.Priority,
			a.Type,
			string(rolesJSON),
			a.Department,
			a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert announcement: %w", err)
		}
		return nil
	})
}

// ListAnnouncements returns the most recent audit entries, newest first.
func (m *Manager) ListAnnouncements(ctx context.Context, limit int) ([]*types.AnnouncementRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, title, content, priority, type, target_roles, department, created_at
		FROM announcements
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := m.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query announcements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*types.AnnouncementRecord
	for rows.Next() {
		var record types.AnnouncementRecord
		var priority, aType, department sql.NullString
		var rolesJSON string
		if err := rows.Scan(
			&record.ID,
			&record.Title,
			&record.Content,
			&priority,
			&aType,
			&rolesJSON,
			&department,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		record.Priority = priority.String
		record.Type = aType.String
		record.Department = department.String
		if err := json.Unmarshal([]byte(rolesJSON), &record.TargetRoles); err != nil {
			return nil, fmt.Errorf("failed to unmarshal target roles: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// HealthCheck verifies database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Close flushes pending writes and closes the database.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()
	return m.db.Close()
}
