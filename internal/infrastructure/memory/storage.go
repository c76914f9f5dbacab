package memory

import "sync"

// Storage is the in-memory persistence collaborator. Values are copied on
// the way in and out so the store never aliases caller buffers.
type Storage struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewStorage() *Storage {
	return &Storage{values: make(map[string][]byte)}
}

func (s *Storage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return cloneBytes(value), true
}

func (s *Storage) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = cloneBytes(value)
}

func cloneBytes(b []byte) []byte {
	clone := make([]byte, len(b))
	copy(clone, b)
	return clone
}
