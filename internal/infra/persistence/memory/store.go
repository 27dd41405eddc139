// Package memory provides a process-local patient backend used by tests and
// ephemeral deployments.
package memory

import (
	"context"
	"sync"

	"medicopro/pkg/domain"
)

var _ domain.Backend = (*Backend)(nil)

// Backend keeps the collection in memory.
type Backend struct {
	mu       sync.RWMutex
	records  []domain.PatientRecord
	persists int
}

// NewBackend returns a backend seeded with records.
func NewBackend(seed ...domain.PatientRecord) *Backend {
	return &Backend{records: domain.CloneRecords(seed)}
}

// Load returns a copy of the collection.
func (b *Backend) Load(_ context.Context) ([]domain.PatientRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := domain.CloneRecords(b.records)
	if out == nil {
		out = []domain.PatientRecord{}
	}
	return out, nil
}

// Persist replaces the collection.
func (b *Backend) Persist(_ context.Context, records []domain.PatientRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = domain.CloneRecords(records)
	b.persists++
	return nil
}

// Persists reports how many times the collection was rewritten.
func (b *Backend) Persists() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.persists
}

// Driver returns domain.DriverMemory.
func (b *Backend) Driver() domain.Driver { return domain.DriverMemory }
