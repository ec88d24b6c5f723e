package marketdata

import "sync"

// Store is the long-lived snapshot cache: instrument key -> latest value
// per semantic field. The callback pump writes, the monitoring loop reads;
// both go through the mutex. Entries live until the subscription that
// feeds them is cancelled.
type Store struct {
	mu   sync.Mutex
	data map[string]map[string]float64
}

// NewStore returns an empty snapshot store.
func NewStore() *Store {
	return &Store{data: map[string]map[string]float64{}}
}

// Set writes one field for key.
func (s *Store) Set(key, field string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.data[key]
	if !ok {
		bucket = map[string]float64{}
		s.data[key] = bucket
	}
	bucket[field] = v
}

// Get returns a copy of the snapshot for key; an empty map if none exists.
func (s *Store) Get(key string) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]float64{}
	for field, v := range s.data[key] {
		out[field] = v
	}
	return out
}

// Delete drops the snapshot for key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}
