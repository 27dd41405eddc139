package core

import (
	"context"
	"strings"

	"medicopro/pkg/domain"
)

const requiredFieldsRuleName = "required_fields"

// NewRequiredFieldsRule rejects records without a first name or id number.
// Transactions enforce the same check on their own, so the rule only matters
// for engines evaluated outside a Store.
func NewRequiredFieldsRule() domain.Rule {
	return requiredFieldsRule{}
}

type requiredFieldsRule struct{}

func (requiredFieldsRule) Name() string { return requiredFieldsRuleName }

func (r requiredFieldsRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		res.Violations = append(res.Violations, missingRequired(change.After)...)
	}
	return res, nil
}

func missingRequired(rec PatientRecord) []domain.Violation {
	var out []domain.Violation
	if strings.TrimSpace(rec.FirstName) == "" {
		out = append(out, domain.Violation{
			Rule:     requiredFieldsRuleName,
			Severity: domain.SeverityBlock,
			Message:  "is required",
			Field:    domain.ColumnFirstName,
			IDNumber: rec.IDNumber,
		})
	}
	if strings.TrimSpace(rec.IDNumber) == "" {
		out = append(out, domain.Violation{
			Rule:     requiredFieldsRuleName,
			Severity: domain.SeverityBlock,
			Message:  "is required",
			Field:    domain.ColumnIDNumber,
		})
	}
	return out
}

// requireFields fails with a *domain.ValidationError when rec lacks a required
// field.
func requireFields(rec PatientRecord) error {
	vs := missingRequired(rec)
	if len(vs) == 0 {
		return nil
	}
	return domain.Result{Violations: vs}.ValidationError()
}
