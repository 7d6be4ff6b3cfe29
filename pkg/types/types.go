package types

import "time"

// ChatSession is a chat conversation record. The hub treats the session id
// as an opaque string; these records exist for the REST session endpoints.
// A session is immutable after creation except for EndedAt and Status.
type ChatSession struct {
	ID        string     `json:"id" db:"id"`
	CreatedBy string     `json:"created_by" db:"created_by"`
	Language  string     `json:"language" db:"language"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	Status    string     `json:"status" db:"status"`
}

// AnnouncementRecord is one audited announcement broadcast. Stored before
// fan-out so the principal dashboard can list recent announcements; never
// replayed to reconnecting clients.
type AnnouncementRecord struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Content     string    `json:"content" db:"content"`
	Priority    string    `json:"priority" db:"priority"`
	Type        string    `json:"type" db:"type"`
	TargetRoles []string  `json:"target_roles" db:"target_roles"`
	Department  string    `json:"department,omitempty" db:"department"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
