package core

import (
	"context"
	"fmt"

	"medicopro/pkg/domain"
)

// Age bounds accepted at registration.
const (
	MinAge = 0
	MaxAge = 120
)

// NewAgeRangeRule blocks ages outside [MinAge, MaxAge].
func NewAgeRangeRule() domain.Rule {
	return ageRangeRule{}
}

type ageRangeRule struct{}

func (ageRangeRule) Name() string { return "age_range" }

func (r ageRangeRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		age := change.After.Age
		if age < MinAge || age > MaxAge {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("must be between %d and %d, got %d", MinAge, MaxAge, age),
				Field:    domain.ColumnAge,
				IDNumber: change.After.IDNumber,
			})
		}
	}
	return res, nil
}
