// Package sqlite snapshots the patient collection into an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"medicopro/internal/tabular"
	"medicopro/pkg/domain"
)

// Bucket is the state row holding the encoded collection.
const Bucket = "patients"

var _ domain.Backend = (*Store)(nil)

// Store keeps the CSV encoding of the whole collection in one row of a state
// table, so the same decode and migration path runs as for the flat file.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
	loc  *time.Location
}

// NewStore opens (creating when needed) the database at path.
func NewStore(path string, loc *time.Location) (*Store, error) {
	if path == "" {
		path = "medicopro.db"
	}
	if loc == nil {
		loc = time.Local
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store{db: db, path: path, loc: loc}, nil
}

// Driver returns domain.DriverSQLite.
func (s *Store) Driver() domain.Driver { return domain.DriverSQLite }

// Load decodes the stored snapshot. No row means an empty collection.
func (s *Store) Load(ctx context.Context) ([]domain.PatientRecord, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, Bucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.PatientRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	return tabular.DecodeRecords("sqlite:"+s.path+"#"+Bucket, payload, s.loc)
}

// Persist upserts the encoded collection inside a transaction.
func (s *Store) Persist(ctx context.Context, records []domain.PatientRecord) (retErr error) {
	data, err := tabular.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode patients: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, Bucket, data); err != nil {
		return fmt.Errorf("upsert %s: %w", Bucket, err)
	}
	return tx.Commit()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
