package integration

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"medicopro/internal/adapters/export"
	"medicopro/internal/blob"
	"medicopro/internal/core"
	"medicopro/internal/infra/persistence/blobfile"
	"medicopro/pkg/domain"
)

// TestIntegrationSmoke runs a create, update, read and export cycle against
// every in-process backend, exporting into every in-process blob driver.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()

	backends := []struct {
		name string
		open func(t *testing.T) core.Backend
	}{
		{
			name: "memory",
			open: func(t *testing.T) core.Backend {
				b, err := core.OpenBackend(ctx, core.StorageConfig{Driver: core.StorageMemory})
				if err != nil {
					t.Fatalf("open memory: %v", err)
				}
				return b
			},
		},
		{
			name: "csv",
			open: func(t *testing.T) core.Backend {
				b, err := core.OpenBackend(ctx, core.StorageConfig{
					Driver:   core.StorageCSV,
					CSVPath:  filepath.Join(t.TempDir(), "patients.csv"),
					Location: time.UTC,
				})
				if err != nil {
					t.Fatalf("open csv: %v", err)
				}
				return b
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) core.Backend {
				b, err := core.OpenBackend(ctx, core.StorageConfig{
					Driver:     core.StorageSQLite,
					SQLitePath: filepath.Join(t.TempDir(), "registry.db"),
					Location:   time.UTC,
				})
				if err != nil {
					t.Fatalf("open sqlite: %v", err)
				}
				t.Cleanup(func() { _ = core.CloseBackend(b) })
				return b
			},
		},
		{
			name: "blob-s3",
			open: func(t *testing.T) core.Backend {
				b, err := blobfile.New(blob.NewMockS3ForTests(), "", time.UTC)
				if err != nil {
					t.Fatalf("open blob backend: %v", err)
				}
				return b
			},
		},
	}

	objectStores := []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{name: "memory", open: func(*testing.T) blob.Store { return blob.NewMemory() }},
		{name: "fs", open: func(t *testing.T) blob.Store {
			s, err := blob.NewFilesystem(t.TempDir())
			if err != nil {
				t.Fatalf("open fs blob: %v", err)
			}
			return s
		}},
		{name: "s3", open: func(*testing.T) blob.Store { return blob.NewMockS3ForTests() }},
	}

	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	for _, bv := range backends {
		for _, ov := range objectStores {
			t.Run(bv.name+"/"+ov.name, func(t *testing.T) {
				backend := bv.open(t)
				svc := core.NewService(core.NewStore(backend, core.NewDefaultRulesEngine()),
					core.WithClock(func() time.Time { return now }))

				if _, err := svc.Create(ctx, domain.Fields{FirstName: "Ana", IDNumber: "10", Age: 33, Sex: "femenino", Pathology: "asma"}); err != nil {
					t.Fatalf("create: %v", err)
				}
				if _, err := svc.Create(ctx, domain.Fields{FirstName: "Eva", IDNumber: "11", Age: 70}); err != nil {
					t.Fatalf("create: %v", err)
				}
				if _, err := svc.Update(ctx, "10", domain.Fields{FirstName: "Ana", IDNumber: "10", Age: 34, Sex: domain.SexFemale, Pathology: "Asma"}); err != nil {
					t.Fatalf("update: %v", err)
				}

				rec, err := svc.FindByIDNumber(ctx, "10")
				if err != nil {
					t.Fatalf("find: %v", err)
				}
				if rec.Age != 34 || !rec.RegisteredAt.Equal(now) {
					t.Fatalf("unexpected record %+v", rec)
				}

				d, err := svc.Dashboard(ctx, core.DashboardOptions{})
				if err != nil {
					t.Fatalf("dashboard: %v", err)
				}
				if d.Total != 2 || d.Recent != 2 || len(d.TopPathologies) != 1 {
					t.Fatalf("unexpected dashboard %+v", d)
				}

				objects := ov.open(t)
				artifact, data, err := export.New(svc, export.WithObjectStore(objects)).
					Export(ctx, export.Request{Store: true, RequestedBy: "smoke"})
				if err != nil {
					t.Fatalf("export: %v", err)
				}
				if artifact.Records != 2 {
					t.Fatalf("expected 2 exported records, got %d", artifact.Records)
				}
				_, body, err := objects.Get(ctx, artifact.Key)
				if err != nil {
					t.Fatalf("get export: %v", err)
				}
				defer func() { _ = body.Close() }()
				stored, err := io.ReadAll(body)
				if err != nil {
					t.Fatalf("read export: %v", err)
				}
				if string(stored) != string(data) {
					t.Fatalf("stored export differs from rendered export")
				}
			})
		}
	}
}
