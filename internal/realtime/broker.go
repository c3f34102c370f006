package realtime

import (
	"encoding/json"
	"sync"

	"github.com/Rrens/projecthub/internal/logging"
	"github.com/rs/zerolog"
)

// Broker tracks which sessions are subscribed to which rooms and fans
// messages out to them. Delivery is best effort: nothing is persisted and a
// session that is not connected at publish time never sees the message.
type Broker struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	rooms    map[string]map[*Session]struct{}

	metrics *Metrics
	logger  zerolog.Logger
}

// NewBroker creates an empty broker
func NewBroker(metrics *Metrics) *Broker {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Broker{
		sessions: make(map[*Session]struct{}),
		rooms:    make(map[string]map[*Session]struct{}),
		metrics:  metrics,
		logger:   logging.WithComponent("broker"),
	}
}

// Register adds a connected session and subscribes it to the default room
func (b *Broker) Register(s *Session) {
	b.mu.Lock()
	b.sessions[s] = struct{}{}
	b.joinLocked(s, DefaultRoom)
	count := len(b.sessions)
	b.mu.Unlock()

	b.metrics.Sessions.Set(float64(count))
	b.logger.Debug().Str("session_id", s.ID).Int("sessions", count).Msg("session registered")
}

// Unregister removes the session from every room and closes its queue.
// Calling it more than once is harmless.
func (b *Broker) Unregister(s *Session) {
	b.mu.Lock()
	if _, ok := b.sessions[s]; !ok {
		b.mu.Unlock()
		s.close()
		return
	}
	for room := range s.rooms {
		b.leaveLocked(s, room)
	}
	delete(b.sessions, s)
	count := len(b.sessions)
	b.mu.Unlock()

	s.close()
	b.metrics.Sessions.Set(float64(count))
	b.logger.Debug().Str("session_id", s.ID).Int("sessions", count).Msg("session unregistered")
}

// Join subscribes the session to room. Rooms are created on first join and
// joining twice has no further effect. It returns false when the session is
// not registered.
func (b *Broker) Join(s *Session, room string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.sessions[s]; !ok {
		return false
	}
	b.joinLocked(s, room)
	return true
}

// Leave unsubscribes the session from room. Leaving a room that was never
// joined is a no-op.
func (b *Broker) Leave(s *Session, room string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.leaveLocked(s, room)
}

func (b *Broker) joinLocked(s *Session, room string) {
	members, ok := b.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		b.rooms[room] = members
	}
	members[s] = struct{}{}
	s.rooms[room] = struct{}{}
	b.metrics.Rooms.Set(float64(len(b.rooms)))
}

func (b *Broker) leaveLocked(s *Session, room string) {
	delete(s.rooms, room)

	members, ok := b.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(b.rooms, room)
	}
	b.metrics.Rooms.Set(float64(len(b.rooms)))
}

// Publish delivers msg to every session currently subscribed to room and
// returns the number of sessions it was queued for
func (b *Broker) Publish(room string, msg Message) int {
	b.mu.RLock()
	targets := make([]*Session, 0, len(b.rooms[room]))
	for s := range b.rooms[room] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	return b.deliver(targets, msg)
}

// PublishGlobal delivers msg to every connected session regardless of rooms
func (b *Broker) PublishGlobal(msg Message) int {
	b.mu.RLock()
	targets := make([]*Session, 0, len(b.sessions))
	for s := range b.sessions {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	return b.deliver(targets, msg)
}

// Send queues msg for a single session
func (b *Broker) Send(s *Session, msg Message) bool {
	return b.deliver([]*Session{s}, msg) == 1
}

func (b *Broker) deliver(targets []*Session, msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().Err(err).Str("type", msg.Type).Msg("failed to marshal message")
		return 0
	}

	b.metrics.Published.WithLabelValues(msg.Type).Inc()

	delivered := 0
	for _, s := range targets {
		ok, full := s.enqueue(data)
		if ok {
			delivered++
			continue
		}
		if full {
			// Slow consumer, disconnect it rather than block the publisher
			b.metrics.Dropped.Inc()
			b.logger.Warn().Str("session_id", s.ID).Str("type", msg.Type).Msg("session queue full, disconnecting")
			b.Unregister(s)
		}
	}

	b.metrics.Delivered.Add(float64(delivered))
	return delivered
}

// Rooms returns the rooms the session is subscribed to
func (b *Broker) Rooms(s *Session) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// IsSubscribed reports whether the session is subscribed to room
func (b *Broker) IsSubscribed(s *Session, room string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.rooms[room][s]
	return ok
}

// SubscriberCount returns the number of sessions subscribed to room
func (b *Broker) SubscriberCount(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}

// SessionCount returns the number of connected sessions
func (b *Broker) SessionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}
