package domain

import "context"

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Action indicates the type of modification performed.
type Action string

// Change actions captured by a transaction. Records are never deleted.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Change describes one mutation applied inside a transaction.
type Change struct {
	Action Action
	// Index is the record position in the collection.
	Index  int
	Before *PatientRecord
	After  PatientRecord
}

// Violation is a single rule finding.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Field    string
	IDNumber string
}

// Result aggregates the violations reported for a transaction.
type Result struct {
	Violations []Violation
}

// Merge appends violations from other.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking reports whether any violation blocks commit.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v)
		}
	}
	return out
}

// ValidationError converts the first blocking violation into the error returned
// to callers. It returns nil when nothing blocks.
func (r Result) ValidationError() *ValidationError {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return &ValidationError{Field: v.Field, Reason: v.Message, Violations: append([]Violation(nil), r.Violations...)}
		}
	}
	return nil
}

// RuleView provides read-only access to the collection for rule evaluation.
type RuleView interface {
	ListPatients() []PatientRecord
	FindPatient(idNumber string) (PatientRecord, bool)
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
