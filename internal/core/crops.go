package core

import (
	"context"
	"strings"

	"agrilog/pkg/domain"
)

// CreateCropType adds a crop type to the shared dictionary.
func (s *Service) CreateCropType(ctx context.Context, actorID, name string) (CropType, Result, error) {
	normalized, err := domain.NormalizeCropTypeName(name)
	if err != nil {
		return CropType{}, Result{}, err
	}
	var created CropType
	res, err := s.mutate(ctx, "create_crop_type", actorID, func(tx Transaction) (string, error) {
		var err error
		created, err = tx.CreateCropType(CropType{Name: normalized})
		return created.ID, err
	})
	return created, res, err
}

// ListCropTypes returns crop types ordered by name. A non-empty search keeps
// only names containing it, ignoring case.
func (s *Service) ListCropTypes(ctx context.Context, search string) ([]CropType, error) {
	needle := strings.ToLower(strings.TrimSpace(search))
	var out []CropType
	err := s.read(ctx, "list_crop_types", "", func(view TransactionView) error {
		for _, crop := range view.ListCropTypes() {
			if needle != "" && !strings.Contains(strings.ToLower(crop.Name), needle) {
				continue
			}
			out = append(out, crop)
		}
		return nil
	})
	return out, err
}
