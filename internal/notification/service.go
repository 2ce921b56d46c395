// Package notification provides a lightweight in-process notification
// store with subscriber broadcast. Fleet alerts land here as bell-style
// notifications; external delivery channels are handled elsewhere.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// maxStored caps the in-memory notification buffer.
	maxStored = 500
	// subscriberBuffer is the per-subscriber channel capacity. Slow
	// subscribers drop notifications rather than blocking the engine.
	subscriberBuffer = 64
)

// Notification is one broadcastable message.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Service stores recent notifications and broadcasts new ones to
// subscribers.
type Service struct {
	mu          sync.RWMutex
	items       []Notification
	subscribers map[uuid.UUID]chan Notification
}

// NewService creates a new notification service.
func NewService() *Service {
	return &Service{
		subscribers: make(map[uuid.UUID]chan Notification),
	}
}

// CreateAndBroadcast stores a notification and pushes it to all
// subscribers.
func (s *Service) CreateAndBroadcast(severity, title, message string) error {
	n := Notification{
		ID:        uuid.New(),
		Severity:  severity,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, n)
	if len(s.items) > maxStored {
		s.items = s.items[len(s.items)-maxStored:]
	}

	// Sends stay under the lock so an unsubscribe cannot close a channel
	// mid-broadcast. Sends never block: a full subscriber drops the message.
	for _, ch := range s.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}

// List returns stored notifications, newest first, up to limit.
// A non-positive limit returns everything.
func (s *Service) List(limit int) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Notification, 0, n)
	for i := len(s.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.items[i])
	}
	return out
}

// MarkRead marks a stored notification as read.
// Returns false when the notification is unknown.
func (s *Service) MarkRead(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Read = true
			return true
		}
	}
	return false
}

// Subscribe registers a new subscriber channel. The returned cancel
// function removes the subscription and closes the channel.
func (s *Service) Subscribe() (<-chan Notification, func()) {
	id := uuid.New()
	ch := make(chan Notification, subscriberBuffer)

	s.mu.Lock()
	s.subscribers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}
