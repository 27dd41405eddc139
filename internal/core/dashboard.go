package core

import (
	"context"
	"time"

	"medicopro/pkg/domain"
)

// DefaultTopPathologies is how many pathology groups the dashboard lists.
const DefaultTopPathologies = 5

// DashboardOptions tunes the summary. Zero values fall back to the defaults.
type DashboardOptions struct {
	WindowDays int
	Top        int
	Now        time.Time
}

// Dashboard is the summary shown on the registry landing page.
type Dashboard struct {
	Total          int             `json:"total"`
	Recent         int             `json:"recent"`
	WindowDays     int             `json:"window_days"`
	MeanAge        float64         `json:"mean_age"`
	BySex          []CategoryCount `json:"by_sex"`
	TopPathologies []CategoryCount `json:"top_pathologies"`
	GeneratedAt    time.Time       `json:"generated_at"`
	// Degraded is set when the collection could not be decoded and the figures
	// describe an empty collection.
	Degraded bool `json:"degraded"`
}

// BuildDashboard computes the summary over records.
func BuildDashboard(records []PatientRecord, opts DashboardOptions) Dashboard {
	if opts.WindowDays <= 0 {
		opts.WindowDays = DefaultRecentWindowDays
	}
	if opts.Top <= 0 {
		opts.Top = DefaultTopPathologies
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	return Dashboard{
		Total:          len(records),
		Recent:         len(QueryRecent(records, opts.Now, opts.WindowDays)),
		WindowDays:     opts.WindowDays,
		MeanAge:        Mean(records, NumericAge),
		BySex:          AggregateBy(records, AggregateSex),
		TopPathologies: TopN(AggregateBy(records, AggregatePathology), opts.Top),
		GeneratedAt:    opts.Now,
	}
}

// Dashboard loads the collection and summarizes it using the service clock when
// opts.Now is unset. A decode failure still yields a summary, flagged degraded,
// along with the error.
func (s *Service) Dashboard(ctx context.Context, opts DashboardOptions) (Dashboard, error) {
	records, err := s.Load(ctx)
	if err != nil && !domain.IsDegraded(err) {
		return Dashboard{}, err
	}
	if opts.Now.IsZero() {
		opts.Now = s.Now()
	}
	d := BuildDashboard(records, opts)
	d.Degraded = err != nil
	return d, err
}
