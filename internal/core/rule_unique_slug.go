package core

import (
	"context"

	"agrilog/pkg/domain"
)

// UniqueSlugRule blocks two cultivations sharing a slug.
func UniqueSlugRule() domain.Rule {
	return uniqueSlugRule{}
}

type uniqueSlugRule struct{}

func (uniqueSlugRule) Name() string { return "unique_cultivation_slug" }

func (r uniqueSlugRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[string]struct{})
	for _, c := range view.ListCultivations() {
		if c.Slug == "" {
			res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityCultivation, c.ID,
				"cultivation %s has no slug", c.ID))
			continue
		}
		if _, dup := seen[c.Slug]; dup {
			res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityCultivation, c.ID,
				"slug %q is already taken", c.Slug))
			continue
		}
		seen[c.Slug] = struct{}{}
	}
	return res, nil
}
