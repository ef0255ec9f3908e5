package core

import (
	"context"
	"time"

	"agrilog/pkg/domain"
)

// CultivationValidityRule validates every cultivation created or updated in
// the transaction. The transaction time attached to ctx takes precedence over
// now, so the check follows the clock that stamps the records.
func CultivationValidityRule(now func() time.Time) domain.Rule {
	return cultivationValidityRule{now: now}
}

type cultivationValidityRule struct {
	now func() time.Time
}

func (cultivationValidityRule) Name() string { return "cultivation_validity" }

func (r cultivationValidityRule) Evaluate(ctx context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	now, ok := domain.TransactionTime(ctx)
	if !ok {
		now = r.now()
	}
	for _, change := range changes {
		if change.Entity != domain.EntityCultivation || change.Action == domain.ActionDelete {
			continue
		}
		c, ok := change.After.(domain.Cultivation)
		if !ok {
			continue
		}
		if err := c.Validate(now); err != nil {
			res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityCultivation, c.ID, "%s", err.Error()))
		}
	}
	return res, nil
}
