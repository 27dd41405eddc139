package core

import (
	"context"
	"fmt"

	"medicopro/pkg/domain"
)

// NewSexValueRule blocks writes carrying a sex outside the accepted set. Stored
// legacy values are left alone until the record is edited.
func NewSexValueRule() domain.Rule {
	return sexValueRule{}
}

type sexValueRule struct{}

func (sexValueRule) Name() string { return "sex_value" }

func (r sexValueRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.After.Sex.Valid() {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("unsupported value %q", change.After.Sex),
			Field:    domain.ColumnSex,
			IDNumber: change.After.IDNumber,
		})
	}
	return res, nil
}
