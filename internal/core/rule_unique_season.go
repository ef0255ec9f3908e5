package core

import (
	"context"

	"agrilog/pkg/domain"
)

// UniqueSeasonRule allows at most one cultivation per field, crop type and year.
// Cultivations detached from their field or crop type are not considered.
func UniqueSeasonRule() domain.Rule {
	return uniqueSeasonRule{}
}

type uniqueSeasonRule struct{}

func (uniqueSeasonRule) Name() string { return "unique_season" }

type seasonKey struct {
	field string
	crop  string
	year  int
}

func (r uniqueSeasonRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[seasonKey]string)
	for _, c := range view.ListCultivations() {
		if c.FieldID == nil || c.CropTypeID == nil {
			continue
		}
		key := seasonKey{field: *c.FieldID, crop: *c.CropTypeID, year: c.Year}
		if first, dup := seen[key]; dup {
			res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityCultivation, c.ID,
				"cultivation %s duplicates season %s for %d", c.ID, first, c.Year))
			continue
		}
		seen[key] = c.ID
	}
	return res, nil
}
