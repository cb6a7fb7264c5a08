package audit

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore keeps records in memory. It is used by tests and the CLI.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	// Fail makes Append return an error, simulating a broken sink.
	Fail bool
}

// ErrSinkUnavailable is returned by a MemoryStore configured to fail.
var ErrSinkUnavailable = errors.New("audit sink unavailable")

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return ErrSinkUnavailable
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) Query(_ context.Context, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Record
	for _, r := range m.records {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

// Records returns a copy of every stored record.
func (m *MemoryStore) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Record(nil), m.records...)
}

func (m *MemoryStore) Close() error { return nil }
