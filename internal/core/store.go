package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"medicopro/pkg/domain"
)

// Store serializes load-mutate-persist cycles against a backend. Every committed
// transaction rewrites the whole collection.
type Store struct {
	mu      sync.Mutex
	backend Backend
	engine  *RulesEngine
	nowFn   func() time.Time
	// last is the most recent registration stamp handed out.
	last time.Time
}

// NewStore wraps backend with the given rules engine. A nil engine evaluates no
// rules.
func NewStore(backend Backend, engine *RulesEngine) *Store {
	if engine == nil {
		engine = NewRulesEngine()
	}
	return &Store{
		backend: backend,
		engine:  engine,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// Backend returns the storage implementation behind the store.
func (s *Store) Backend() Backend {
	return s.backend
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// NowFunc returns the clock used to stamp new records.
func (s *Store) NowFunc() func() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowFn
}

// SetNowFunc swaps the clock. A nil fn is ignored.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.nowFn = fn
	s.mu.Unlock()
}

// Load reads the current collection from the backend.
func (s *Store) Load(ctx context.Context) ([]PatientRecord, error) {
	return s.backend.Load(ctx)
}

// stamp returns a registration time strictly after the previous one.
func (s *Store) stamp() time.Time {
	now := s.nowFn()
	if !s.last.IsZero() && !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	return now
}

type transaction struct {
	records []PatientRecord
	changes []Change
	now     time.Time
}

type transactionView struct {
	records []PatientRecord
}

func newTransactionView(records []PatientRecord) TransactionView {
	return transactionView{records: records}
}

// ListPatients returns a copy of every record in collection order.
func (v transactionView) ListPatients() []PatientRecord {
	return domain.CloneRecords(v.records)
}

// FindPatient returns the first record carrying idNumber.
func (v transactionView) FindPatient(idNumber string) (PatientRecord, bool) {
	if i := indexOf(v.records, idNumber); i >= 0 {
		return v.records[i], true
	}
	return PatientRecord{}, false
}

func (v transactionView) Len() int { return len(v.records) }

func indexOf(records []PatientRecord, idNumber string) int {
	for i := range records {
		if records[i].IDNumber == idNumber {
			return i
		}
	}
	return -1
}

// RunInTransaction loads the collection, applies fn to a private copy, evaluates
// the rules and persists the result. Nothing is written when fn fails, a rule
// blocks or the collection could not be read.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.backend.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load patients: %w", err)
	}
	tx := &transaction{
		records: domain.CloneRecords(current),
		now:     s.stamp(),
	}
	if err := fn(tx); err != nil {
		return Result{}, err
	}
	if len(tx.changes) == 0 {
		return Result{}, nil
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, newTransactionView(tx.records), tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, res.ValidationError()
		}
	}

	if err := s.backend.Persist(ctx, tx.records); err != nil {
		return result, fmt.Errorf("persist patients: %w", err)
	}
	s.last = tx.now
	return result, nil
}

// View executes fn against a read-only snapshot of the stored collection.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	records, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}
	return fn(newTransactionView(records))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(tx.records)
}

// CreatePatient appends a record stamped with the transaction time. A record
// without a first name or id number is rejected whatever rules are configured.
func (tx *transaction) CreatePatient(f Fields) (PatientRecord, error) {
	rec := domain.NewPatientRecord(f, tx.now)
	if err := requireFields(rec); err != nil {
		return PatientRecord{}, err
	}
	tx.records = append(tx.records, rec)
	tx.recordChange(Change{Action: domain.ActionCreate, Index: len(tx.records) - 1, After: rec})
	return rec, nil
}

// UpdatePatient mutates the first record carrying idNumber. The registration
// time is restored after mutator runs.
func (tx *transaction) UpdatePatient(idNumber string, mutator func(*PatientRecord) error) (PatientRecord, error) {
	i := indexOf(tx.records, idNumber)
	if i < 0 {
		return PatientRecord{}, &domain.NotFoundError{IDNumber: idNumber}
	}
	before := tx.records[i]
	current := before
	if err := mutator(&current); err != nil {
		return PatientRecord{}, err
	}
	current.RegisteredAt = before.RegisteredAt
	if current.Sex == "" {
		current.Sex = domain.SexUnspecified
	}
	if err := requireFields(current); err != nil {
		return PatientRecord{}, err
	}
	tx.records[i] = current
	tx.recordChange(Change{Action: domain.ActionUpdate, Index: i, Before: &before, After: current})
	return current, nil
}
