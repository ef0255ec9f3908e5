package core

import (
	"context"

	"agrilog/pkg/domain"
)

// UniqueFieldNameRule blocks an owner from having two fields with the same name.
func UniqueFieldNameRule() domain.Rule {
	return uniqueFieldNameRule{}
}

type uniqueFieldNameRule struct{}

func (uniqueFieldNameRule) Name() string { return "unique_field_name" }

func (r uniqueFieldNameRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[[2]string]struct{})
	for _, field := range view.ListFields() {
		if field.OwnerID == nil {
			continue
		}
		key := [2]string{*field.OwnerID, field.Name}
		if _, dup := seen[key]; dup {
			res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityField, field.ID,
				"you already have a field named %q", field.Name))
			continue
		}
		seen[key] = struct{}{}
	}
	return res, nil
}
