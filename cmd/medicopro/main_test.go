package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"medicopro/internal/core"
	"medicopro/internal/infra/persistence/csvfile"
	"medicopro/internal/infra/persistence/sqlite"
	"medicopro/pkg/domain"
)

func setupRegistry(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "patients.csv")
	now := time.Now().UTC()
	records := []domain.PatientRecord{
		domain.NewPatientRecord(domain.Fields{FirstName: "Ana", IDNumber: "1", Age: 20, Sex: domain.SexFemale, Pathology: "asma"}, now.Add(-time.Hour)),
		domain.NewPatientRecord(domain.Fields{FirstName: "Luis", IDNumber: "2", Age: 40, Sex: domain.SexMale}, now.Add(-400*24*time.Hour)),
	}
	if err := csvfile.New(path).Persist(context.Background(), records); err != nil {
		t.Fatalf("seed: %v", err)
	}
	t.Setenv("MEDICOPRO_ENV", "test")
	t.Setenv("MEDICOPRO_LOG_LEVEL", "error")
	t.Setenv("MEDICOPRO_STORAGE_DRIVER", "csv")
	t.Setenv("MEDICOPRO_CSV_PATH", path)
	t.Setenv("MEDICOPRO_TIMEZONE", "UTC")
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	setupRegistry(t)
	out, err := runCmd(t, "stats", "--window-days", "30")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var d core.Dashboard
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if d.Total != 2 || d.Recent != 1 || d.WindowDays != 30 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
}

func TestExportCommandWritesFile(t *testing.T) {
	path := setupRegistry(t)
	dest := filepath.Join(t.TempDir(), "backup.csv")
	out, err := runCmd(t, "export", "--out", dest)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "wrote 2 records") {
		t.Fatalf("unexpected output %q", out)
	}
	want, _ := os.ReadFile(path)
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !bytes.Equal(want, got) {
		t.Fatalf("backup differs from stored table")
	}
}

func TestExportCommandStdoutWindow(t *testing.T) {
	setupRegistry(t)
	out, err := runCmd(t, "export", "--out", "-", "--window-days", "30")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "Ana") || strings.Contains(out, "Luis") {
		t.Fatalf("unexpected export %q", out)
	}
}

func TestExportCommandStoreNeedsBlob(t *testing.T) {
	setupRegistry(t)
	if _, err := runCmd(t, "export", "--store"); err == nil {
		t.Fatal("expected error without an export blob store")
	}
}

func TestExportCommandStoresInBlob(t *testing.T) {
	setupRegistry(t)
	root := t.TempDir()
	t.Setenv("MEDICOPRO_EXPORT_BLOB", "true")
	t.Setenv("MEDICOPRO_BLOB_DRIVER", "fs")
	t.Setenv("MEDICOPRO_BLOB_FS_ROOT", root)
	out, err := runCmd(t, "export", "--store", "--requested-by", "ops")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var artifact struct {
		Key string `json:"key"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(out), &artifact); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !strings.HasPrefix(artifact.Key, "exports/") || artifact.URL == "" {
		t.Fatalf("unexpected artifact %+v", artifact)
	}
}

func TestMigrateCommandCopiesIntoSQLite(t *testing.T) {
	setupRegistry(t)
	dbPath := filepath.Join(t.TempDir(), "registry.db")
	out, err := runCmd(t, "migrate", "--to", "sqlite", "--dest", dbPath)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "migrated 2 records to sqlite") {
		t.Fatalf("unexpected output %q", out)
	}
	store, err := sqlite.NewStore(dbPath, time.UTC)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = store.Close() }()
	records, err := store.Load(context.Background())
	if err != nil || len(records) != 2 {
		t.Fatalf("expected 2 records, got %d (%v)", len(records), err)
	}
}

func TestMigrateCommandRefusesUndecodableTable(t *testing.T) {
	path := setupRegistry(t)
	if err := os.WriteFile(path, []byte("a,b\n\"x,1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "migrate"); err == nil {
		t.Fatal("expected migrate to refuse a degraded table")
	}
}

func TestInvalidConfigFails(t *testing.T) {
	setupRegistry(t)
	t.Setenv("MEDICOPRO_STORAGE_DRIVER", "excel")
	if _, err := runCmd(t, "stats"); err == nil {
		t.Fatal("expected config error")
	}
}
