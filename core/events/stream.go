package events

import (
	"sync"
)

const (
	defaultStreamHistory = 256
	streamBuffer         = 32
)

// Stream fans committed events out to live subscribers and keeps a bounded
// backlog so late subscribers can resume from a height cursor. Subscribers
// that fall behind by more than the channel buffer miss events.
type Stream struct {
	mu      sync.Mutex
	subs    map[uint64]chan Committed
	nextID  uint64
	history []Committed
	limit   int
}

// NewStream creates a stream retaining up to limit events of history. A
// non-positive limit selects the default.
func NewStream(limit int) *Stream {
	if limit <= 0 {
		limit = defaultStreamHistory
	}
	return &Stream{subs: make(map[uint64]chan Committed), limit: limit}
}

// Emit implements Emitter. Only committed events are streamed.
func (s *Stream) Emit(evt Event) {
	committed, ok := evt.(Committed)
	if !ok || s == nil {
		return
	}
	committed.Payload = committed.Payload.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, committed)
	if len(s.history) > s.limit {
		s.history = append([]Committed(nil), s.history[len(s.history)-s.limit:]...)
	}
	for _, sub := range s.subs {
		select {
		case sub <- committed:
		default:
		}
	}
}

// Subscribe registers a subscriber and returns the retained events above
// since. The cancel function must be called to release the subscription.
func (s *Stream) Subscribe(since uint64) (<-chan Committed, func(), []Committed) {
	updates := make(chan Committed, streamBuffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]Committed, 0, len(s.history))
	for _, entry := range s.history {
		if entry.Height > since {
			backlog = append(backlog, entry)
		}
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}
	return updates, cancel, backlog
}
