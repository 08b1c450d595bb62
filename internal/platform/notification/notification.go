// Package notification provides the single-slot, auto-dismissing banner used
// to report outcomes of user actions.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a notification stays visible unless dismissed.
const DefaultTTL = 4 * time.Second

// Kind is the visual category of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is the banner currently on screen.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Slot holds at most one notification. Showing a new one replaces the old
// one and cancels its dismiss timer; each timer only clears the
// notification it was started for.
type Slot struct {
	mu      sync.Mutex
	ttl     time.Duration
	current *Notification
	timer   *time.Timer
	closed  bool

	// OnDismiss, if set, is called after a notification leaves the slot
	// through the timer or Dismiss. It is called without the lock held.
	OnDismiss func(n Notification)
}

// NewSlot creates a Slot whose notifications auto-dismiss after ttl. A
// non-positive ttl falls back to DefaultTTL.
func NewSlot(ttl time.Duration) *Slot {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Slot{ttl: ttl}
}

// Show replaces the current notification and schedules its dismissal.
func (s *Slot) Show(message string, kind Kind) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	if s.closed {
		return n
	}
	s.current = &n
	id := n.ID
	s.timer = time.AfterFunc(s.ttl, func() { s.expire(id) })
	return n
}

// Success shows a success notification.
func (s *Slot) Success(message string) Notification { return s.Show(message, KindSuccess) }

// Error shows an error notification.
func (s *Slot) Error(message string) Notification { return s.Show(message, KindError) }

// Current returns the visible notification, if any.
func (s *Slot) Current() (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Notification{}, false
	}
	return *s.current, true
}

// Dismiss clears the current notification and cancels its timer. It
// reports whether anything was cleared.
func (s *Slot) Dismiss() bool {
	s.mu.Lock()
	n := s.current
	s.stopLocked()
	s.current = nil
	cb := s.OnDismiss
	s.mu.Unlock()

	if n != nil && cb != nil {
		cb(*n)
	}
	return n != nil
}

// Close cancels any pending timer and stops accepting notifications.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.current = nil
	s.closed = true
}

func (s *Slot) expire(id string) {
	s.mu.Lock()
	if s.current == nil || s.current.ID != id {
		s.mu.Unlock()
		return
	}
	n := *s.current
	s.current = nil
	s.timer = nil
	cb := s.OnDismiss
	s.mu.Unlock()

	if cb != nil {
		cb(n)
	}
}

func (s *Slot) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
