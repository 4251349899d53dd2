package proximity

import "sync"

// NotifiedSet records the offers already announced during one monitoring session.
type NotifiedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewNotifiedSet() *NotifiedSet {
	return &NotifiedSet{ids: make(map[string]struct{})}
}

// TryAdd adds id and reports whether it was absent.
func (s *NotifiedSet) TryAdd(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *NotifiedSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Remove undoes a TryAdd whose notification could not be delivered.
func (s *NotifiedSet) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

func (s *NotifiedSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{})
}

func (s *NotifiedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
