package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"medicopro/internal/blob"
	"medicopro/internal/infra/persistence/blobfile"
	"medicopro/internal/infra/persistence/csvfile"
	"medicopro/internal/infra/persistence/memory"
	"medicopro/internal/infra/persistence/postgres"
	"medicopro/internal/infra/persistence/sqlite"
	"medicopro/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver = domain.Driver

const (
	StorageCSV      = domain.DriverCSV
	StorageMemory   = domain.DriverMemory
	StorageSQLite   = domain.DriverSQLite
	StoragePostgres = domain.DriverPostgres
	StorageBlob     = domain.DriverBlob
)

// StorageConfig selects and configures the backend holding the collection.
type StorageConfig struct {
	// Driver defaults to csv.
	Driver      StorageDriver
	CSVPath     string
	SQLitePath  string
	PostgresDSN string
	Blob        blob.Config
	BlobKey     string
	// Location is the zone naive timestamps are read in. Nil means time.Local.
	Location *time.Location
	Logger   zerolog.Logger
}

// OpenBackend builds the Backend described by cfg. Backends holding resources
// implement io.Closer; see CloseBackend.
func OpenBackend(ctx context.Context, cfg StorageConfig) (Backend, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageCSV
	}
	switch driver {
	case StorageCSV:
		return csvfile.New(cfg.CSVPath, csvfile.WithLocation(cfg.Location), csvfile.WithLogger(cfg.Logger)), nil
	case StorageMemory:
		return memory.NewBackend(), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, cfg.Location)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, cfg.Location)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageBlob:
		objects, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		store, err := blobfile.New(objects, cfg.BlobKey, cfg.Location)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// CloseBackend releases b when it holds resources.
func CloseBackend(b Backend) error {
	if c, ok := b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
