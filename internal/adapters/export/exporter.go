// Package export renders patient backups in the persisted table format and
// optionally stores them as downloadable blob artifacts.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medicopro/internal/blob"
	"medicopro/internal/core"
	"medicopro/internal/tabular"
	"medicopro/pkg/domain"
)

const (
	// KeyPrefix is where stored artifacts live in the blob store.
	KeyPrefix       = "exports/"
	operation       = "export_patients"
	removeOperation = "remove_export"
)

// Source supplies the collection and the clock used to stamp backups.
type Source interface {
	Load(ctx context.Context) ([]domain.PatientRecord, error)
	Now() time.Time
}

// Options narrows what Render writes.
type Options struct {
	// WindowDays keeps only records registered within the window. Zero exports
	// everything.
	WindowDays int
	Now        time.Time
}

// Request describes one export.
type Request struct {
	WindowDays  int
	RequestedBy string
	// Store uploads the rendered file to the blob store and returns a signed
	// download URL.
	Store bool
	// URLExpiry overrides blob.DefaultPresignExpiry.
	URLExpiry time.Duration
}

// Artifact describes a rendered (and possibly stored) backup.
type Artifact struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Records     int       `json:"records"`
	SizeBytes   int64     `json:"size_bytes"`
	Key         string    `json:"key,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrNoObjectStore is returned when a stored export is requested without a
// blob store.
var ErrNoObjectStore = errors.New("export: object store not configured")

// ErrArtifactNotFound is returned for keys that name no stored export.
var ErrArtifactNotFound = errors.New("export: artifact not found")

// Exporter produces backups.
type Exporter struct {
	source  Source
	objects blob.Store
	audit   core.AuditRecorder
	logger  zerolog.Logger
	newID   func() string
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithObjectStore enables stored exports.
func WithObjectStore(objects blob.Store) Option {
	return func(e *Exporter) { e.objects = objects }
}

// WithAuditRecorder records one entry per export.
func WithAuditRecorder(rec core.AuditRecorder) Option {
	return func(e *Exporter) {
		if rec != nil {
			e.audit = rec
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// New builds an exporter reading from source.
func New(source Source, opts ...Option) *Exporter {
	e := &Exporter{
		source: source,
		audit:  core.NewLogAuditRecorder(zerolog.Nop()),
		logger: zerolog.Nop(),
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Filename is the suggested download name for a backup taken at now.
func Filename(now time.Time) string {
	return "patients_backup_" + now.Format("2006-01-02") + ".csv"
}

// Render encodes records exactly as the store persists them.
func Render(records []domain.PatientRecord, opts Options) ([]byte, int, error) {
	if opts.WindowDays > 0 {
		now := opts.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		records = core.QueryRecent(records, now, opts.WindowDays)
	}
	data, err := tabular.Marshal(records)
	if err != nil {
		return nil, 0, err
	}
	return data, len(records), nil
}

// Export loads the collection, renders it and, when requested, stores the
// result. The rendered bytes are always returned. A collection that could not
// be decoded is never exported.
func (e *Exporter) Export(ctx context.Context, req Request) (Artifact, []byte, error) {
	artifact, data, err := e.export(ctx, req)
	entry := core.AuditEntry{
		Operation: operation,
		Status:    core.AuditStatusSuccess,
		Detail:    detail(req, artifact),
		At:        time.Now().UTC(),
	}
	if err != nil {
		entry.Status = core.AuditStatusError
		entry.Error = err.Error()
	}
	e.audit.Record(ctx, entry)
	return artifact, data, err
}

func (e *Exporter) export(ctx context.Context, req Request) (Artifact, []byte, error) {
	if req.Store && e.objects == nil {
		return Artifact{}, nil, ErrNoObjectStore
	}
	records, err := e.source.Load(ctx)
	if err != nil {
		return Artifact{}, nil, fmt.Errorf("load patients: %w", err)
	}
	now := e.source.Now()
	data, count, err := Render(records, Options{WindowDays: req.WindowDays, Now: now})
	if err != nil {
		return Artifact{}, nil, fmt.Errorf("render export: %w", err)
	}
	artifact := Artifact{
		ID:          e.newID(),
		Filename:    Filename(now),
		ContentType: tabular.ContentType,
		Records:     count,
		SizeBytes:   int64(len(data)),
		CreatedAt:   now,
	}
	if !req.Store {
		return artifact, data, nil
	}

	key := KeyPrefix + now.UTC().Format("20060102") + "/" + artifact.ID + ".csv"
	meta := map[string]string{
		"filename": artifact.Filename,
		"records":  strconv.Itoa(count),
	}
	if req.RequestedBy != "" {
		meta["requested_by"] = req.RequestedBy
	}
	if _, err := e.objects.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{ContentType: tabular.ContentType, Metadata: meta}); err != nil {
		return Artifact{}, nil, fmt.Errorf("store export: %w", err)
	}
	artifact.Key = key
	url, err := e.objects.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: req.URLExpiry})
	switch {
	case errors.Is(err, blob.ErrUnsupported):
		e.logger.Debug().Str("key", key).Msg("blob driver cannot sign urls")
	case err != nil:
		if _, delErr := e.objects.Delete(ctx, key); delErr != nil {
			e.logger.Warn().Err(delErr).Str("key", key).Msg("remove unsigned export")
		}
		return Artifact{}, nil, fmt.Errorf("presign export: %w", err)
	default:
		artifact.URL = url
	}
	e.logger.Info().Str("key", key).Int("records", count).Msg("export stored")
	return artifact, data, nil
}

func detail(req Request, a Artifact) string {
	d := a.Filename
	if a.Key != "" {
		d = a.Key
	}
	if req.RequestedBy != "" {
		d += " by " + req.RequestedBy
	}
	return d
}

// List returns stored artifacts ordered by key.
func (e *Exporter) List(ctx context.Context) ([]blob.Info, error) {
	if e.objects == nil {
		return nil, ErrNoObjectStore
	}
	return e.objects.List(ctx, KeyPrefix)
}

// Link signs a fresh download URL for a stored artifact. The object is checked
// first because signing alone does not prove it exists.
func (e *Exporter) Link(ctx context.Context, key string, expiry time.Duration) (blob.Info, string, error) {
	if e.objects == nil {
		return blob.Info{}, "", ErrNoObjectStore
	}
	if !strings.HasPrefix(key, KeyPrefix) {
		return blob.Info{}, "", fmt.Errorf("%s: %w", key, ErrArtifactNotFound)
	}
	info, err := e.objects.Head(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return blob.Info{}, "", fmt.Errorf("%s: %w", key, ErrArtifactNotFound)
	}
	if err != nil {
		return blob.Info{}, "", fmt.Errorf("stat export: %w", err)
	}
	url, err := e.objects.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: expiry})
	if err != nil && !errors.Is(err, blob.ErrUnsupported) {
		return blob.Info{}, "", fmt.Errorf("presign export: %w", err)
	}
	return info, url, nil
}

// Remove deletes a stored artifact and records the deletion in the audit log.
func (e *Exporter) Remove(ctx context.Context, key, requestedBy string) error {
	if e.objects == nil {
		return ErrNoObjectStore
	}
	err := e.remove(ctx, key)
	entry := core.AuditEntry{
		Operation: removeOperation,
		Status:    core.AuditStatusSuccess,
		Detail:    key,
		At:        time.Now().UTC(),
	}
	if requestedBy != "" {
		entry.Detail += " by " + requestedBy
	}
	if err != nil {
		entry.Status = core.AuditStatusError
		entry.Error = err.Error()
	}
	e.audit.Record(ctx, entry)
	return err
}

func (e *Exporter) remove(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, KeyPrefix) {
		return fmt.Errorf("%s: %w", key, ErrArtifactNotFound)
	}
	existed, err := e.objects.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("delete export: %w", err)
	}
	if !existed {
		return fmt.Errorf("%s: %w", key, ErrArtifactNotFound)
	}
	e.logger.Info().Str("key", key).Msg("export removed")
	return nil
}
