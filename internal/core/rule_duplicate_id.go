package core

import (
	"context"
	"fmt"

	"medicopro/pkg/domain"
)

// NewDuplicateIDNumberRule warns when a write leaves more than one record with
// the same id number. Repeat visits are legitimate so the rule never blocks.
func NewDuplicateIDNumberRule() domain.Rule {
	return duplicateIDNumberRule{}
}

type duplicateIDNumberRule struct{}

func (duplicateIDNumberRule) Name() string { return "duplicate_id_number" }

func (r duplicateIDNumberRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	if len(changes) == 0 {
		return res, nil
	}
	counts := make(map[string]int)
	for _, rec := range view.ListPatients() {
		counts[rec.IDNumber]++
	}
	seen := make(map[string]struct{}, len(changes))
	for _, change := range changes {
		id := change.After.IDNumber
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if n := counts[id]; n > 1 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("%d records share id number %s", n, id),
				Field:    domain.ColumnIDNumber,
				IDNumber: id,
			})
		}
	}
	return res, nil
}
