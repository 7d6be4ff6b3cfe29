package client

import (
	"sync"
	"time"
)

// DefaultNotificationLimit bounds the in-memory feed. There is no server-side
// replay, so anything past the newest 50 is gone.
const DefaultNotificationLimit = 50

// Notification is one entry in the client's feed.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Notifier is an optional hook for surfacing a notification on the host
// platform (desktop toast, mobile banner). It runs on its own goroutine and
// can never block or fail an Append.
type Notifier func(n Notification)

// NotificationStore is a bounded newest-first buffer with read/unread state.
// The unread count is always derived from the buffer, never cached, so it
// stays correct through truncation.
type NotificationStore struct {
	mu       sync.Mutex
	items    []Notification // newest first
	limit    int
	notifier Notifier
}

// NewNotificationStore creates a store holding at most limit entries.
func NewNotificationStore(limit int, notifier Notifier) *NotificationStore {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	return &NotificationStore{
		items:    make([]Notification, 0, limit),
		limit:    limit,
		notifier: notifier,
	}
}

// Append prepends a notification, truncating the oldest entries past the
// limit. New entries are always unread.
func (s *NotificationStore) Append(n Notification) {
	n.Read = false
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.items = append([]Notification{n}, s.items...)
	if len(s.items) > s.limit {
		s.items = s.items[:s.limit]
	}
	notifier := s.notifier
	s.mu.Unlock()

	if notifier != nil {
		go notifier(n)
	}
}

// MarkAsRead marks one notification read. Unknown ids are a no-op.
func (s *NotificationStore) MarkAsRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Read = true
			return
		}
	}
}

// MarkAllAsRead marks every buffered notification read.
func (s *NotificationStore) MarkAllAsRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		s.items[i].Read = true
	}
}

// Clear empties the buffer.
func (s *NotificationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.items[:0]
}

// Notifications returns a newest-first snapshot of the buffer.
func (s *NotificationStore) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}

// UnreadCount recomputes the number of unread entries.
func (s *NotificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for i := range s.items {
		if !s.items[i].Read {
			count++
		}
	}
	return count
}

// Len returns the number of buffered notifications.
func (s *NotificationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
