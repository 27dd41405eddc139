package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicopro/internal/blob"
	"medicopro/pkg/domain"
)

func TestOpenBackendDrivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cases := []struct {
		name string
		cfg  StorageConfig
		want domain.Driver
	}{
		{name: "default csv", cfg: StorageConfig{CSVPath: filepath.Join(dir, "p.csv")}, want: domain.DriverCSV},
		{name: "memory", cfg: StorageConfig{Driver: StorageMemory}, want: domain.DriverMemory},
		{name: "sqlite", cfg: StorageConfig{Driver: StorageSQLite, SQLitePath: filepath.Join(dir, "p.db")}, want: domain.DriverSQLite},
		{name: "blob memory", cfg: StorageConfig{Driver: StorageBlob, Blob: blob.Config{Driver: blob.DriverMemory}}, want: domain.DriverBlob},
		{name: "blob fs", cfg: StorageConfig{Driver: StorageBlob, Blob: blob.Config{FSRoot: filepath.Join(dir, "objects")}, BlobKey: "registry/patients.csv"}, want: domain.DriverBlob},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend, err := OpenBackend(ctx, tc.cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = CloseBackend(backend) })
			assert.Equal(t, tc.want, backend.Driver())

			svc := NewService(NewStore(backend, NewDefaultRulesEngine()), WithClock(fixedClock(baseTime)))
			_, err = svc.Create(ctx, validFields("1"))
			require.NoError(t, err)
			records, err := svc.Load(ctx)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.True(t, baseTime.Equal(records[0].RegisteredAt))
		})
	}
}

func TestOpenBackendRejectsUnknownDriver(t *testing.T) {
	_, err := OpenBackend(context.Background(), StorageConfig{Driver: "gibberish"})
	assert.ErrorContains(t, err, "unknown storage driver")

	_, err = OpenBackend(context.Background(), StorageConfig{Driver: StorageBlob, Blob: blob.Config{Driver: "ftp"}})
	assert.ErrorContains(t, err, "open blob store")
}

func TestCloseBackendIgnoresPlainBackends(t *testing.T) {
	backend, err := OpenBackend(context.Background(), StorageConfig{Driver: StorageMemory, Location: time.UTC})
	require.NoError(t, err)
	assert.NoError(t, CloseBackend(backend))
}
