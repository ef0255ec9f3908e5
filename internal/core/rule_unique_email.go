package core

import (
	"context"
	"strings"

	"agrilog/pkg/domain"
)

// UniqueEmailRule blocks two accounts sharing an email, ignoring case.
func UniqueEmailRule() domain.Rule {
	return uniqueEmailRule{}
}

type uniqueEmailRule struct{}

func (uniqueEmailRule) Name() string { return "unique_email" }

func (r uniqueEmailRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[string]string)
	for _, user := range view.ListUsers() {
		key := strings.ToLower(user.Email)
		if first, dup := seen[key]; dup {
			res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityUser, user.ID,
				"email %s is already used by user %s", user.Email, first))
			continue
		}
		seen[key] = user.ID
	}
	return res, nil
}
