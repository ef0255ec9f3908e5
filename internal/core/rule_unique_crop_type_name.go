package core

import (
	"context"

	"agrilog/pkg/domain"
)

// UniqueCropTypeNameRule blocks duplicate crop type names.
func UniqueCropTypeNameRule() domain.Rule {
	return uniqueCropTypeNameRule{}
}

type uniqueCropTypeNameRule struct{}

func (uniqueCropTypeNameRule) Name() string { return "unique_crop_type_name" }

func (r uniqueCropTypeNameRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[string]struct{})
	for _, crop := range view.ListCropTypes() {
		if _, dup := seen[crop.Name]; dup {
			res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityCropType, crop.ID,
				"crop type %q already exists", crop.Name))
			continue
		}
		seen[crop.Name] = struct{}{}
	}
	return res, nil
}
