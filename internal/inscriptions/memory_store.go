package inscriptions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store for demo mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Inscription
}

// NewMemoryStore creates an empty in-memory inscriptions store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add stores a registration record.
func (m *MemoryStore) Add(ins *Inscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, ins)
}

// ListValidated returns validated registrations within the date range,
// inclusive, ordered by merchant ID.
func (m *MemoryStore) ListValidated(ctx context.Context, start, end time.Time) ([]*Inscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Inscription
	for _, ins := range m.records {
		if ins.Status != StatusValidated || ins.RegisteredAt == nil {
			continue
		}
		d := ins.RegisteredAt.Time
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, ins)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MerchantID < out[j].MerchantID })
	return out, nil
}
