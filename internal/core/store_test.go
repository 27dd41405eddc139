package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicopro/internal/infra/persistence/csvfile"
	"medicopro/internal/infra/persistence/memory"
	"medicopro/pkg/domain"
)

var baseTime = time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func validFields(id string) Fields {
	return Fields{FirstName: "Ana", LastName: "Pérez", IDNumber: id, Age: 34, Sex: domain.SexFemale, Pathology: "asma"}
}

func TestRunInTransactionPersistsWholeCollection(t *testing.T) {
	backend := memory.NewBackend()
	store := NewStore(backend, NewDefaultRulesEngine())
	store.SetNowFunc(fixedClock(baseTime))

	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreatePatient(validFields("1")); err != nil {
			return err
		}
		_, err := tx.CreatePatient(validFields("2"))
		return err
	})
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
	assert.Equal(t, 1, backend.Persists())

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, baseTime, records[0].RegisteredAt)
	assert.Equal(t, baseTime, records[1].RegisteredAt, "records created in one transaction share its stamp")
}

func TestRunInTransactionWithoutChangesSkipsPersist(t *testing.T) {
	backend := memory.NewBackend()
	store := NewStore(backend, nil)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		assert.Equal(t, 0, tx.Snapshot().Len())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, backend.Persists())
}

func TestRunInTransactionCallbackErrorDiscardsChanges(t *testing.T) {
	backend := memory.NewBackend()
	store := NewStore(backend, nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, _ = tx.CreatePatient(validFields("1"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, backend.Persists())
}

func TestStampsAreStrictlyIncreasing(t *testing.T) {
	store := NewStore(memory.NewBackend(), nil)
	store.SetNowFunc(fixedClock(baseTime))
	var stamps []time.Time
	for _, id := range []string{"1", "2", "3"} {
		_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
			rec, err := tx.CreatePatient(validFields(id))
			stamps = append(stamps, rec.RegisteredAt)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, baseTime, stamps[0])
	assert.True(t, stamps[1].After(stamps[0]))
	assert.True(t, stamps[2].After(stamps[1]))
}

func TestUpdatePatientTargetsFirstMatchAndKeepsRegistration(t *testing.T) {
	first := domain.NewPatientRecord(validFields("7"), baseTime)
	second := domain.NewPatientRecord(validFields("7"), baseTime.Add(time.Hour))
	second.FirstName = "Segunda"
	backend := memory.NewBackend(first, second)
	store := NewStore(backend, NewDefaultRulesEngine())

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdatePatient("7", func(r *PatientRecord) error {
			r.FirstName = "Primera"
			r.RegisteredAt = time.Time{}
			r.Sex = ""
			return nil
		})
		return err
	})
	require.NoError(t, err)

	records, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Primera", records[0].FirstName)
	assert.Equal(t, baseTime, records[0].RegisteredAt)
	assert.Equal(t, domain.SexUnspecified, records[0].Sex)
	assert.Equal(t, "Segunda", records[1].FirstName)
}

func TestUpdatePatientMissingReturnsNotFound(t *testing.T) {
	backend := memory.NewBackend(domain.NewPatientRecord(validFields("1"), baseTime))
	store := NewStore(backend, nil)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdatePatient("404", func(*PatientRecord) error { return nil })
		return err
	})
	var notFound *domain.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "404", notFound.IDNumber)
	assert.Equal(t, 0, backend.Persists())
}

func TestBlockedCreateLeavesFileUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "patients.csv")
	backend := csvfile.New(path, csvfile.WithLocation(time.UTC))
	require.NoError(t, backend.Persist(ctx, []PatientRecord{domain.NewPatientRecord(validFields("1"), baseTime)}))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	store := NewStore(backend, NewDefaultRulesEngine())
	fields := validFields("2")
	fields.Age = 150
	res, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreatePatient(fields)
		return err
	})
	var validationErr *domain.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, domain.ColumnAge, validationErr.Field)
	assert.True(t, res.HasBlocking())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUndecodableCollectionRefusesMutation(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "patients.csv")
	garbage := []byte("first_name,id_number\n\"unterminated,1\n")
	require.NoError(t, os.WriteFile(path, garbage, 0o600))

	store := NewStore(csvfile.New(path), NewDefaultRulesEngine())
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreatePatient(validFields("1"))
		return err
	})
	require.Error(t, err)
	assert.True(t, domain.IsDegraded(err))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, garbage, after, "a collection that failed to decode must not be overwritten")
}

type failingBackend struct {
	*memory.Backend
	persistErr error
}

func (f failingBackend) Persist(context.Context, []PatientRecord) error { return f.persistErr }

func TestPersistFailureIsWrapped(t *testing.T) {
	diskFull := errors.New("disk full")
	store := NewStore(failingBackend{Backend: memory.NewBackend(), persistErr: diskFull}, nil)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreatePatient(validFields("1"))
		return err
	})
	assert.ErrorIs(t, err, diskFull)
	assert.ErrorContains(t, err, "persist patients")
}

func TestViewFindsFirstMatch(t *testing.T) {
	a := domain.NewPatientRecord(validFields("9"), baseTime)
	b := domain.NewPatientRecord(validFields("9"), baseTime.Add(time.Minute))
	b.FirstName = "Later"
	store := NewStore(memory.NewBackend(a, b), nil)
	err := store.View(context.Background(), func(view TransactionView) error {
		rec, ok := view.FindPatient("9")
		assert.True(t, ok)
		assert.Equal(t, "Ana", rec.FirstName)
		assert.Equal(t, 2, view.Len())
		assert.Len(t, view.ListPatients(), 2)
		_, ok = view.FindPatient("missing")
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestRequiredFieldsEnforcedWithoutRulesEngine(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend(domain.NewPatientRecord(validFields("1"), baseTime))
	svc := NewService(NewStore(backend, nil))

	_, err := svc.Create(ctx, Fields{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.ColumnFirstName, verr.Field)
	assert.Len(t, verr.Violations, 2)

	_, err = svc.Update(ctx, "1", Fields{FirstName: "Ana"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.ColumnIDNumber, verr.Field)

	records, err := svc.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].IDNumber)
	assert.Equal(t, 0, backend.Persists())
}

func TestInMemoryServiceWithNilEngineRejectsBlankRecord(t *testing.T) {
	svc := NewInMemoryService(nil)
	_, err := svc.Create(context.Background(), Fields{FirstName: "  ", IDNumber: "9"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.ColumnFirstName, verr.Field)
}
