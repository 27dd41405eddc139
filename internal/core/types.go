package core

import "medicopro/pkg/domain"

type (
	PatientRecord   = domain.PatientRecord
	Fields          = domain.Fields
	Sex             = domain.Sex
	Severity        = domain.Severity
	Change          = domain.Change
	Action          = domain.Action
	Violation       = domain.Violation
	Result          = domain.Result
	Rule            = domain.Rule
	RuleView        = domain.RuleView
	RulesEngine     = domain.RulesEngine
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	Backend         = domain.Backend
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
)
