package csvfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"medicopro/pkg/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "patients.csv"))
	records, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty non-nil collection, got %v", records)
	}
}

func TestPersistThenLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "patients.csv")
	store := New(path, WithLocation(time.UTC))
	records := []domain.PatientRecord{
		{FirstName: "Ana", IDNumber: "1", Age: 30, Sex: domain.SexFemale, Pathology: "asma", RegisteredAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)},
		{FirstName: "Luis", IDNumber: "2", Age: 41, Sex: domain.SexMale, RegisteredAt: time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)},
	}
	if err := store.Persist(ctx, records); err != nil {
		t.Fatalf("persist: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Fatalf("unexpected records %+v", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files must not linger, found %d entries", len(entries))
	}
}

func TestLoadUndecodableDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.csv")
	writeFile(t, path, "first_name,id_number\n\"broken,1\n")

	records, err := New(path).Load(context.Background())
	var decodeErr *domain.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if decodeErr.Source != path {
		t.Fatalf("unexpected source %q", decodeErr.Source)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty non-nil collection, got %v", records)
	}
}

func TestLoadBadTimestampFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.csv")
	writeFile(t, path, "first_name,id_number,registered_at\nAna,1,not-a-date\n")

	records, err := New(path).Load(context.Background())
	var parseErr *domain.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if records != nil {
		t.Fatalf("expected no collection, got %v", records)
	}
}

func TestLoadHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(filepath.Join(t.TempDir(), "p.csv")).Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoadLegacyFileLogsFilledColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.csv")
	writeFile(t, path, "first_name,id_number,age\nAna,1,30\n")
	buf := &bytes.Buffer{}

	records, err := New(path, WithLogger(zerolog.New(buf).Level(zerolog.DebugLevel))).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 || records[0].FirstName != "Ana" {
		t.Fatalf("unexpected records %+v", records)
	}
	out := buf.String()
	if !strings.Contains(out, "migrated legacy patient file on load") || !strings.Contains(out, domain.ColumnRegisteredAt) {
		t.Fatalf("expected migration log, got %s", out)
	}

	buf.Reset()
	writeFile(t, path, "first_name,id_number\n\"broken,1\n")
	records, err = New(path, WithLogger(zerolog.New(buf))).Load(context.Background())
	if !domain.IsDegraded(err) {
		t.Fatalf("expected degraded load, got %v", err)
	}
	if records == nil {
		t.Fatal("expected non-nil collection")
	}
	if buf.Len() != 0 {
		t.Fatalf("a degraded load is not a migration: %s", buf.String())
	}
}
