package queue

import (
	"sync"

	"github.com/google/uuid"
)

// ProviderQueue is the live list for one provider. Its mutex linearizes
// every operation touching that provider; unrelated providers never contend.
// The entry list stays private: stores hand out queue handles, and only the
// Manager mutates what is inside them.
type ProviderQueue struct {
	providerID uuid.UUID

	mu      sync.Mutex
	entries []*Entry
}

// NewProviderQueue creates an empty queue handle for the provider. Store
// implementations call this when a provider checks in for the first time.
func NewProviderQueue(providerID uuid.UUID) *ProviderQueue {
	return &ProviderQueue{providerID: providerID}
}

// ProviderID reports which provider this queue belongs to.
func (q *ProviderQueue) ProviderID() uuid.UUID {
	return q.providerID
}

func (q *ProviderQueue) withLock(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	fn()
}

// Store owns the per-provider queues. The interface exists so a persistent
// or distributed backing store can replace the in-memory one without
// touching the Manager's algorithm.
type Store interface {
	// Get returns the provider's queue, or false if none was ever created.
	Get(providerID uuid.UUID) (*ProviderQueue, bool)
	// GetOrCreate returns the provider's queue, creating an empty one first
	// if needed.
	GetOrCreate(providerID uuid.UUID) *ProviderQueue
	// All returns every active queue, for cross-provider scans.
	All() []*ProviderQueue
}

// MemoryStore keeps all queues in process memory, the reference deployment
// mode.
type MemoryStore struct {
	mu     sync.RWMutex
	queues map[uuid.UUID]*ProviderQueue
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[uuid.UUID]*ProviderQueue)}
}

func (s *MemoryStore) Get(providerID uuid.UUID) (*ProviderQueue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[providerID]
	return q, ok
}

func (s *MemoryStore) GetOrCreate(providerID uuid.UUID) *ProviderQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[providerID]
	if !ok {
		q = NewProviderQueue(providerID)
		s.queues[providerID] = q
	}
	return q
}

func (s *MemoryStore) All() []*ProviderQueue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	queues := make([]*ProviderQueue, 0, len(s.queues))
	for _, q := range s.queues {
		queues = append(queues, q)
	}
	return queues
}
