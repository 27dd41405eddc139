// Package blobfile keeps the patient collection as a single CSV object in a
// blob store (local directory, S3 bucket or memory).
package blobfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"medicopro/internal/blob"
	"medicopro/internal/tabular"
	"medicopro/pkg/domain"
)

// DefaultKey is the object key used when none is configured.
const DefaultKey = "patients.csv"

var _ domain.Backend = (*Store)(nil)

// Store reads and overwrites one object.
type Store struct {
	objects blob.Store
	key     string
	loc     *time.Location
}

// New wraps objects. An empty key selects DefaultKey and a nil loc time.Local.
func New(objects blob.Store, key string, loc *time.Location) (*Store, error) {
	if objects == nil {
		return nil, errors.New("blobfile: nil blob store")
	}
	if key == "" {
		key = DefaultKey
	}
	if loc == nil {
		loc = time.Local
	}
	return &Store{objects: objects, key: key, loc: loc}, nil
}

// Driver returns domain.DriverBlob.
func (s *Store) Driver() domain.Driver { return domain.DriverBlob }

// Key returns the object key holding the collection.
func (s *Store) Key() string { return s.key }

// Objects returns the underlying blob store.
func (s *Store) Objects() blob.Store { return s.objects }

// Load fetches and decodes the object. A missing object is an empty collection.
func (s *Store) Load(ctx context.Context) ([]domain.PatientRecord, error) {
	_, body, err := s.objects.Get(ctx, s.key)
	if errors.Is(err, blob.ErrNotFound) {
		return []domain.PatientRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}
	defer func() { _ = body.Close() }()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	return tabular.DecodeRecords(string(s.objects.Driver())+":"+s.key, data, s.loc)
}

// Persist overwrites the object with the encoded collection.
func (s *Store) Persist(ctx context.Context, records []domain.PatientRecord) error {
	data, err := tabular.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode patients: %w", err)
	}
	_, err = s.objects.Put(ctx, s.key, bytes.NewReader(data), blob.PutOptions{
		ContentType: tabular.ContentType,
		Overwrite:   true,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", s.key, err)
	}
	return nil
}
