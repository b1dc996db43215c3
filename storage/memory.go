// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package storage

import (
	"context"
	"sync"

	"github.com/momentics/hioload-gps/api"
)

// MemoryStore keeps records in process memory. Used for dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records []api.Record
	failErr error
}

var _ api.RecordStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// StoreRecord appends rec, or returns the error set with FailWith.
func (m *MemoryStore) StoreRecord(ctx context.Context, rec api.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.records = append(m.records, rec)
	return nil
}

// FailWith makes every following StoreRecord return err; nil restores normal operation.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

// Records returns a copy of the stored records.
func (m *MemoryStore) Records() []api.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]api.Record, len(m.records))
	copy(out, m.records)
	return out
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
