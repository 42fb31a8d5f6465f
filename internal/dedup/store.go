package dedup

import "sync"

// Store tracks mail ids that have already been handled so a notification
// burst does not schedule the same message twice.
type Store interface {
	// Seen reports whether the id has already been handled
	Seen(id string) bool

	// Mark records the id as handled
	Mark(id string)

	// MarkIfUnseen atomically records the id and reports whether it was
	// new. Concurrent notification handlers race between Seen and Mark,
	// so callers on the fetch path use this instead.
	MarkIfUnseen(id string) bool

	// Count returns the number of distinct ids handled this run
	Count() int
}

// MemoryStore is the default process-lifetime store. Nothing is evicted
// and nothing survives a restart: previously handled mail may be
// reprocessed after a crash. Configure a database DSN to avoid that.
type MemoryStore struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]struct{})}
}

func (s *MemoryStore) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *MemoryStore) Mark(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

func (s *MemoryStore) MarkIfUnseen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
