// Package core implements the agrilog application service: accounts, crop
// types, fields, treatments and cultivations, executed as transactions over a
// domain.PersistentStore with the default rule set enforced before commit.
package core

import "agrilog/pkg/domain"

type (
	// User aliases domain.User.
	User = domain.User
	// CropType aliases domain.CropType.
	CropType = domain.CropType
	// Field aliases domain.Field.
	Field = domain.Field
	// Cultivation aliases domain.Cultivation.
	Cultivation = domain.Cultivation
	// Treatment aliases domain.Treatment.
	Treatment = domain.Treatment
	// Change aliases domain.Change.
	Change = domain.Change
	// Result aliases domain.Result.
	Result = domain.Result
	// Violation aliases domain.Violation.
	Violation = domain.Violation
	// Rule aliases domain.Rule.
	Rule = domain.Rule
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}
