package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"medicopro/pkg/domain"
)

// DefaultRecentWindowDays is the window the dashboard counts recent
// registrations over.
const DefaultRecentWindowDays = 90

// QueryRecent returns the records registered at or after now minus windowDays,
// in input order. Negative windows are treated as zero.
func QueryRecent(records []PatientRecord, now time.Time, windowDays int) []PatientRecord {
	if windowDays < 0 {
		windowDays = 0
	}
	cutoff := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	out := make([]PatientRecord, 0, len(records))
	for _, r := range records {
		if !r.RegisteredAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// AggregateField names a categorical field that can be grouped.
type AggregateField string

const (
	AggregateSex         AggregateField = "sex"
	AggregatePathology   AggregateField = "pathology"
	AggregateFamilyGroup AggregateField = "family_group"
)

// ParseAggregateField validates a field name supplied by a caller.
func ParseAggregateField(raw string) (AggregateField, error) {
	switch f := AggregateField(strings.ToLower(strings.TrimSpace(raw))); f {
	case AggregateSex, AggregatePathology, AggregateFamilyGroup:
		return f, nil
	}
	return "", &domain.ValidationError{Field: "field", Reason: fmt.Sprintf("cannot aggregate by %q", raw)}
}

// CategoryCount is one group of an aggregate view.
type CategoryCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// AggregateBy groups records by field and orders groups by descending count.
// Equal counts keep the order in which their label first appeared. Pathology
// labels are normalized before grouping. Empty pathology and family group
// values are skipped. Unknown fields yield nil.
func AggregateBy(records []PatientRecord, field AggregateField) []CategoryCount {
	var label func(PatientRecord) string
	switch field {
	case AggregateSex:
		label = func(r PatientRecord) string {
			if r.Sex == "" {
				return string(domain.SexUnspecified)
			}
			return string(r.Sex)
		}
	case AggregatePathology:
		label = func(r PatientRecord) string { return NormalizePathology(r.Pathology) }
	case AggregateFamilyGroup:
		label = func(r PatientRecord) string { return strings.TrimSpace(r.FamilyGroup) }
	default:
		return nil
	}

	index := make(map[string]int)
	out := make([]CategoryCount, 0)
	for _, r := range records {
		key := label(r)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out[i].Count++
			continue
		}
		index[key] = len(out)
		out = append(out, CategoryCount{Label: key, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// NormalizePathology trims the value, upper-cases its first letter and
// lower-cases the rest.
func NormalizePathology(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToTitle(first)) + strings.ToLower(s[size:])
}

// TopN returns the first n groups. Non-positive n returns every group.
func TopN(counts []CategoryCount, n int) []CategoryCount {
	if n <= 0 || n >= len(counts) {
		return append([]CategoryCount(nil), counts...)
	}
	return append([]CategoryCount(nil), counts[:n]...)
}

// NumericField names a field Mean can average.
type NumericField string

const NumericAge NumericField = "age"

// Mean averages field over records. It is 0 for an empty collection or an
// unknown field.
func Mean(records []PatientRecord, field NumericField) float64 {
	if len(records) == 0 || field != NumericAge {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += float64(r.Age)
	}
	return sum / float64(len(records))
}
