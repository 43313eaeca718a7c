// Package result holds processed audio between a successful submission and
// the moment the user downloads or dismisses it.
package result

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle is a live reference to one processed payload.
type Handle struct {
	ID        string
	Filename  string
	CreatedAt time.Time

	payload []byte
}

// Payload returns the processed bytes. Callers must not modify the slice.
func (h *Handle) Payload() []byte {
	if h == nil {
		return nil
	}
	return h.payload
}

// Size returns the payload length in bytes.
func (h *Handle) Size() int64 {
	if h == nil {
		return 0
	}
	return int64(len(h.payload))
}

// Store tracks acquired handles. A handle lives from Acquire until Release.
type Store struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{handles: make(map[string]*Handle)}
}

// Acquire registers payload under a fresh ID.
func (s *Store) Acquire(payload []byte, filename string) *Handle {
	h := &Handle{
		ID:        uuid.NewString(),
		Filename:  filename,
		CreatedAt: time.Now(),
		payload:   payload,
	}

	s.mu.Lock()
	s.handles[h.ID] = h
	s.mu.Unlock()
	return h
}

// Get returns the live handle for id.
func (s *Store) Get(id string) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	return h, ok
}

// Release drops the handle for id and reports whether it was live.
// Releasing an unknown or already-released ID is a no-op.
func (s *Store) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handles[id]; !ok {
		return false
	}
	delete(s.handles, id)
	return true
}

// Len returns the number of live handles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Bytes returns the total size of all live payloads.
func (s *Store) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, h := range s.handles {
		total += int64(len(h.payload))
	}
	return total
}
