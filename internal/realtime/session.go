package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Session is one live client connection. It owns a bounded outbound queue
// drained by the connection's write pump.
type Session struct {
	ID     string
	UserID uuid.UUID

	mu     sync.Mutex
	send   chan []byte
	closed bool

	// rooms is guarded by the broker's lock
	rooms map[string]struct{}
}

// NewSession creates a session with an outbound queue of the given size
func NewSession(userID uuid.UUID, buffer int) *Session {
	if buffer <= 0 {
		buffer = 64
	}
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, buffer),
		rooms:  make(map[string]struct{}),
	}
}

// Outbound returns the queue of encoded messages waiting to be written.
// It is closed when the session is unregistered.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Connected reports whether the session still accepts messages
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// enqueue queues data without blocking. ok is false when the session is
// closed; full is true when the queue had no room left.
func (s *Session) enqueue(data []byte) (ok bool, full bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, false
	}

	select {
	case s.send <- data:
		return true, false
	default:
		return false, true
	}
}

func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	close(s.send)
	return true
}
