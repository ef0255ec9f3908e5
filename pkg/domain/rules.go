package domain

import (
	"context"
	"time"
)

// RuleView provides read-only access to domain entities for rule evaluation.
type RuleView interface {
	ListUsers() []User
	ListCropTypes() []CropType
	ListFields() []Field
	ListCultivations() []Cultivation
	ListTreatments() []Treatment
	FindUser(id string) (User, bool)
	FindCropType(id string) (CropType, bool)
	FindField(id string) (Field, bool)
	FindCultivation(id string) (Cultivation, bool)
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

type transactionTimeKey struct{}

// WithTransactionTime attaches the time that stamps the records of the
// running transaction, so rules judge changes against the same clock.
func WithTransactionTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, transactionTimeKey{}, t)
}

// TransactionTime returns the time attached by WithTransactionTime.
func TransactionTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(transactionTimeKey{}).(time.Time)
	return t, ok
}
