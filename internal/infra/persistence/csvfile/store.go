// Package csvfile persists the patient collection as a single delimited-text
// file on local disk.
package csvfile

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"medicopro/internal/tabular"
	"medicopro/pkg/domain"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "patients.csv"

var _ domain.Backend = (*Store)(nil)

// Store reads and rewrites one CSV file. Rewrites go to a temp file in the same
// directory that is renamed over the target, so a failed write leaves the
// previous content untouched.
type Store struct {
	path   string
	loc    *time.Location
	logger zerolog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithLocation sets the zone naive timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger used to report schema migrations.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New returns a store for path. The file does not need to exist yet.
func New(path string, opts ...Option) *Store {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{path: path, loc: time.Local, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file location.
func (s *Store) Path() string { return s.path }

// Driver returns domain.DriverCSV.
func (s *Store) Driver() domain.Driver { return domain.DriverCSV }

// Load reads the whole file. A missing file is an empty collection.
func (s *Store) Load(ctx context.Context) ([]domain.PatientRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, iofs.ErrNotExist) {
		return []domain.PatientRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	table, err := tabular.Decode(s.path, data, s.loc)
	if err == nil && len(table.Missing) > 0 && len(table.Records) > 0 {
		s.logger.Debug().
			Str("path", s.path).
			Int("schema_version", table.Version).
			Strs("filled", table.Missing).
			Msg("migrated legacy patient file on load")
	}
	return tabular.Records(table, err)
}

// Persist rewrites the file with records.
func (s *Store) Persist(ctx context.Context, records []domain.PatientRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := tabular.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode patients: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o640); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
