package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is a process-local Store. It backs tests and headless runs that do
// not need persistence across processes.
type Memory struct {
	mu      sync.RWMutex
	records map[string]string
	closed  bool
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]string)}
}

func (m *Memory) Put(ctx context.Context, id, data string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("put", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("put", errClosed)
	}
	m.records[id] = data
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("delete", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("delete", errClosed)
	}
	delete(m.records, id)
	return nil
}

// ListAll returns the records sorted by id.
func (m *Memory) ListAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("list", errClosed)
	}
	records := make([]Record, 0, len(m.records))
	for id, data := range m.records {
		records = append(records, Record{ID: id, Data: data})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// Close marks the store closed; later calls fail with ErrStorageUnavailable.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
