// Package postgres keeps the patient collection in a Postgres state table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"medicopro/internal/tabular"
	"medicopro/pkg/domain"
)

var _ domain.Backend = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/medicopro?sslmode=disable"
	// Bucket is the state row holding the encoded collection.
	Bucket = "patients"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists the encoded collection as one BYTEA row per bucket. Every
// rewrite is an upsert inside a transaction.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	dsn string
	loc *time.Location
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN)
// and ensures the state table exists.
func NewStore(ctx context.Context, dsn string, loc *time.Location) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	if loc == nil {
		loc = time.Local
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db, dsn: dsn, loc: loc}, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BYTEA NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

// Driver returns domain.DriverPostgres.
func (s *Store) Driver() domain.Driver { return domain.DriverPostgres }

// Load reads the patients bucket. A missing row is an empty collection.
func (s *Store) Load(ctx context.Context) ([]domain.PatientRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state WHERE bucket = $1`, Bucket)
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var payload []byte
	found := false
	for rows.Next() {
		var bucket string
		var data []byte
		if err := rows.Scan(&bucket, &data); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		if bucket != Bucket {
			continue
		}
		payload, found = data, true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	if !found {
		return []domain.PatientRecord{}, nil
	}
	return tabular.DecodeRecords("postgres:"+Bucket, payload, s.loc)
}

// Persist rewrites the patients bucket.
func (s *Store) Persist(ctx context.Context, records []domain.PatientRecord) error {
	data, err := tabular.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode patients: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, Bucket, data); err != nil {
		return fmt.Errorf("upsert %s: %w", Bucket, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
