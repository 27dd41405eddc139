package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// MetricsRecorder receives the outcome of every service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer opens a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is closed with the operation error, nil on success.
type TraceSpan interface {
	End(err error)
}

// AuditStatus classifies an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes a completed mutation or export.
type AuditEntry struct {
	Operation string
	Status    AuditStatus
	IDNumber  string
	Detail    string
	Error     string
	At        time.Time
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) {}

// LogAuditRecorder writes audit entries to a zerolog logger.
type LogAuditRecorder struct {
	logger zerolog.Logger
}

// NewLogAuditRecorder returns a recorder emitting one structured line per entry.
func NewLogAuditRecorder(logger zerolog.Logger) *LogAuditRecorder {
	return &LogAuditRecorder{logger: logger.With().Str("component", "audit").Logger()}
}

// Record implements AuditRecorder.
func (r *LogAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	event := r.logger.Info()
	if entry.Status == AuditStatusError {
		event = r.logger.Warn()
	}
	event = event.
		Str("operation", entry.Operation).
		Str("status", string(entry.Status)).
		Time("at", entry.At)
	if entry.IDNumber != "" {
		event = event.Str("id_number", entry.IDNumber)
	}
	if entry.Detail != "" {
		event = event.Str("detail", entry.Detail)
	}
	if entry.Error != "" {
		event = event.Str("error", entry.Error)
	}
	event.Msg("audit")
}

// LogTracer emits a debug line when each span ends.
type LogTracer struct {
	logger zerolog.Logger
}

// NewLogTracer builds a tracer writing to logger.
func NewLogTracer(logger zerolog.Logger) *LogTracer {
	return &LogTracer{logger: logger}
}

// Start implements Tracer.
func (t *LogTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &logSpan{logger: t.logger, operation: operation, started: time.Now()}
}

type logSpan struct {
	logger    zerolog.Logger
	operation string
	started   time.Time
}

func (s *logSpan) End(err error) {
	event := s.logger.Debug()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("operation", s.operation).Dur("elapsed", time.Since(s.started)).Msg("span")
}

// PrometheusMetricsRecorder exports operation counters and latency histograms.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers its collectors with reg. A nil reg uses
// the default registerer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rec := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicopro",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Patient store operations by outcome.",
		}, []string{"operation", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medicopro",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Patient store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{rec.operations, rec.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// MultiMetricsRecorder fans observations out to several recorders.
type MultiMetricsRecorder []MetricsRecorder

// Observe implements MetricsRecorder.
func (m MultiMetricsRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, rec := range m {
		if rec != nil {
			rec.Observe(ctx, operation, success, duration)
		}
	}
}
