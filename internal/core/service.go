package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"medicopro/internal/infra/persistence/memory"
	"medicopro/pkg/domain"
)

// Service exposes the patient registry operations on top of a Store.
type Service struct {
	store   *Store
	logger  zerolog.Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithMetricsRecorder sets the metrics sink. Nil restores the no-op recorder.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec == nil {
			rec = noopMetrics{}
		}
		s.metrics = rec
	}
}

// WithTracer sets the tracer. Nil restores the no-op tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer == nil {
			tracer = noopTracer{}
		}
		s.tracer = tracer
	}
}

// WithAuditRecorder sets the audit sink. Nil restores the no-op recorder.
func WithAuditRecorder(rec AuditRecorder) ServiceOption {
	return func(s *Service) {
		if rec == nil {
			rec = noopAudit{}
		}
		s.audit = rec
	}
}

// WithClock overrides the clock used to stamp registrations and evaluate
// recent-window queries.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) { s.store.SetNowFunc(fn) }
}

// NewService constructs a service backed by the supplied store.
func NewService(store *Store, opts ...ServiceOption) *Service {
	svc := &Service{
		store:   store,
		logger:  zerolog.Nop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		audit:   noopAudit{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// NewInMemoryService creates a service over a process-local backend.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(NewStore(memory.NewBackend(), engine), opts...)
}

// Store returns the underlying store.
func (s *Service) Store() *Store {
	return s.store
}

// Now reads the service clock.
func (s *Service) Now() time.Time {
	return s.store.NowFunc()()
}

func (s *Service) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, operation)
	started := time.Now()
	err := fn(ctx)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, time.Since(started))
	return err
}

func (s *Service) recordAudit(ctx context.Context, operation, idNumber string, err error) {
	entry := AuditEntry{
		Operation: operation,
		Status:    AuditStatusSuccess,
		IDNumber:  idNumber,
		At:        time.Now().UTC(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func (s *Service) logWarnings(res Result) {
	for _, v := range res.Warnings() {
		s.logger.Warn().
			Str("rule", v.Rule).
			Str("id_number", v.IDNumber).
			Msg(v.Message)
	}
}

// Load returns the full collection. A missing resource yields an empty
// collection. An unreadable resource yields an empty collection together with a
// *domain.DecodeError so callers can warn without failing.
func (s *Service) Load(ctx context.Context) ([]PatientRecord, error) {
	var records []PatientRecord
	err := s.run(ctx, "load_patients", func(ctx context.Context) error {
		var err error
		records, err = s.store.Load(ctx)
		return err
	})
	if err != nil {
		if domain.IsDegraded(err) {
			s.logger.Warn().Err(err).Str("driver", string(s.store.Backend().Driver())).
				Msg("patient collection unreadable, continuing with an empty collection")
			return []PatientRecord{}, err
		}
		return nil, err
	}
	if records == nil {
		records = []PatientRecord{}
	}
	return records, nil
}

// FindByIDNumber returns the first record carrying idNumber.
func (s *Service) FindByIDNumber(ctx context.Context, idNumber string) (PatientRecord, error) {
	idNumber = strings.TrimSpace(idNumber)
	var found PatientRecord
	err := s.run(ctx, "find_patient", func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			rec, ok := view.FindPatient(idNumber)
			if !ok {
				return &domain.NotFoundError{IDNumber: idNumber}
			}
			found = rec
			return nil
		})
	})
	return found, err
}

// Recent loads the collection and keeps records registered within windowDays of
// the service clock.
func (s *Service) Recent(ctx context.Context, windowDays int) ([]PatientRecord, error) {
	records, err := s.Load(ctx)
	if err != nil && !domain.IsDegraded(err) {
		return nil, err
	}
	return QueryRecent(records, s.Now(), windowDays), err
}

// Create validates f, stamps the registration time and persists the collection
// with the new record appended.
func (s *Service) Create(ctx context.Context, f Fields) (PatientRecord, error) {
	f = normalizeFields(f)
	var created PatientRecord
	err := s.run(ctx, "create_patient", func(ctx context.Context) error {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreatePatient(f)
			return err
		})
		s.logWarnings(res)
		return err
	})
	s.recordAudit(ctx, "create_patient", f.IDNumber, err)
	if err != nil {
		return PatientRecord{}, err
	}
	return created, nil
}

// Update overwrites the editable fields of the first record carrying idNumber.
func (s *Service) Update(ctx context.Context, idNumber string, f Fields) (PatientRecord, error) {
	f = normalizeFields(f)
	return s.UpdateWith(ctx, idNumber, func(r *PatientRecord) error {
		r.Apply(f)
		return nil
	})
}

// UpdateWith applies mutator to the first record carrying idNumber. The
// registration time cannot be changed.
func (s *Service) UpdateWith(ctx context.Context, idNumber string, mutator func(*PatientRecord) error) (PatientRecord, error) {
	if mutator == nil {
		return PatientRecord{}, errors.New("update mutator is required")
	}
	idNumber = strings.TrimSpace(idNumber)
	var updated PatientRecord
	err := s.run(ctx, "update_patient", func(ctx context.Context) error {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdatePatient(idNumber, mutator)
			return err
		})
		s.logWarnings(res)
		return err
	})
	s.recordAudit(ctx, "update_patient", idNumber, err)
	if err != nil {
		return PatientRecord{}, err
	}
	return updated, nil
}

// Aggregate loads the collection and groups it by field.
func (s *Service) Aggregate(ctx context.Context, field AggregateField) ([]CategoryCount, error) {
	records, err := s.Load(ctx)
	if err != nil && !domain.IsDegraded(err) {
		return nil, err
	}
	return AggregateBy(records, field), err
}

// normalizeFields trims the lookup key and maps sex aliases onto their
// canonical constants. Unknown sex values are kept so validation can reject
// them.
func normalizeFields(f Fields) Fields {
	f.IDNumber = strings.TrimSpace(f.IDNumber)
	if sex, ok := domain.ParseSex(string(f.Sex)); ok {
		f.Sex = sex
	}
	return f
}
