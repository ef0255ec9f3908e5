package core

import (
	"context"
	"strings"

	"agrilog/pkg/domain"
)

// FieldInput carries the editable attributes of a field.
type FieldInput struct {
	Name      string
	AreaSize  float64
	SoilClass domain.SoilClass
	Notes     *string
}

// FieldDetail is a field with its most recent season and its treatments.
type FieldDetail struct {
	Field              Field                `json:"field"`
	CurrentYear        *int                 `json:"current_year,omitempty"`
	LatestCultivations []CultivationSummary `json:"latest_cultivations"`
	Treatments         []Treatment          `json:"treatments"`
}

// ownedField returns the field when it belongs to ownerID. Fields of other
// owners are reported as missing.
func ownedField(view TransactionView, ownerID, fieldID string) (Field, error) {
	field, ok := view.FindField(fieldID)
	if !ok || !field.OwnedBy(ownerID) {
		return Field{}, ErrNotFound{Entity: domain.EntityField, ID: fieldID}
	}
	return field, nil
}

// CreateField registers a parcel owned by ownerID.
func (s *Service) CreateField(ctx context.Context, ownerID string, in FieldInput) (Field, Result, error) {
	field := Field{
		Name:      in.Name,
		AreaSize:  in.AreaSize,
		SoilClass: in.SoilClass,
		Notes:     in.Notes,
		OwnerID:   &ownerID,
	}
	field.Normalize()
	if err := field.Validate(); err != nil {
		return Field{}, Result{}, err
	}
	var created Field
	res, err := s.mutate(ctx, "create_field", ownerID, func(tx Transaction) (string, error) {
		if _, ok := tx.FindUser(ownerID); !ok {
			return "", ErrNotFound{Entity: domain.EntityUser, ID: ownerID}
		}
		var err error
		created, err = tx.CreateField(field)
		return created.ID, err
	})
	return created, res, err
}

// ListFields returns the owner's fields ordered by name.
func (s *Service) ListFields(ctx context.Context, ownerID string) ([]Field, error) {
	var out []Field
	err := s.read(ctx, "list_fields", ownerID, func(view TransactionView) error {
		out = ownedFields(view, ownerID)
		return nil
	})
	return out, err
}

func ownedFields(view TransactionView, ownerID string) []Field {
	var out []Field
	for _, field := range view.ListFields() {
		if field.OwnedBy(ownerID) {
			out = append(out, field)
		}
	}
	return out
}

// GetFieldDetail returns the field with the cultivations of its latest year
// and its treatments, newest first.
func (s *Service) GetFieldDetail(ctx context.Context, ownerID, fieldID string) (FieldDetail, error) {
	var detail FieldDetail
	err := s.read(ctx, "get_field_detail", ownerID, func(view TransactionView) error {
		field, err := ownedField(view, ownerID, fieldID)
		if err != nil {
			return err
		}
		detail.Field = field
		var onField []Cultivation
		for _, c := range view.ListCultivations() {
			if c.FieldID == nil || *c.FieldID != fieldID {
				continue
			}
			onField = append(onField, c)
			if detail.CurrentYear == nil || c.Year > *detail.CurrentYear {
				year := c.Year
				detail.CurrentYear = &year
			}
		}
		detail.LatestCultivations = []CultivationSummary{}
		for _, c := range onField {
			if c.Year == *detail.CurrentYear {
				detail.LatestCultivations = append(detail.LatestCultivations, summarize(view, c, s.now()))
			}
		}
		detail.Treatments = fieldTreatments(view, fieldID)
		return nil
	})
	return detail, err
}

// UpdateField changes the name, area and soil class of a field. Notes are
// edited separately.
func (s *Service) UpdateField(ctx context.Context, ownerID, fieldID string, in FieldInput) (Field, Result, error) {
	var updated Field
	res, err := s.mutate(ctx, "update_field", ownerID, func(tx Transaction) (string, error) {
		if _, err := ownedField(tx.Snapshot(), ownerID, fieldID); err != nil {
			return "", err
		}
		var err error
		updated, err = tx.UpdateField(fieldID, func(f *Field) error {
			f.Name = in.Name
			f.AreaSize = in.AreaSize
			f.SoilClass = in.SoilClass
			f.Normalize()
			return f.Validate()
		})
		return fieldID, err
	})
	return updated, res, err
}

// UpdateFieldNotes replaces the notes of a field. Blank notes clear them.
func (s *Service) UpdateFieldNotes(ctx context.Context, ownerID, fieldID, notes string) (Field, Result, error) {
	var updated Field
	res, err := s.mutate(ctx, "update_field_notes", ownerID, func(tx Transaction) (string, error) {
		if _, err := ownedField(tx.Snapshot(), ownerID, fieldID); err != nil {
			return "", err
		}
		var err error
		updated, err = tx.UpdateField(fieldID, func(f *Field) error {
			if strings.TrimSpace(notes) == "" {
				f.Notes = nil
				return nil
			}
			f.Notes = &notes
			return nil
		})
		return fieldID, err
	})
	return updated, res, err
}

// DeleteField removes a field and its treatments. Its cultivations remain
// with the field reference cleared.
func (s *Service) DeleteField(ctx context.Context, ownerID, fieldID string) (Result, error) {
	return s.mutate(ctx, "delete_field", ownerID, func(tx Transaction) (string, error) {
		if _, err := ownedField(tx.Snapshot(), ownerID, fieldID); err != nil {
			return "", err
		}
		return fieldID, tx.DeleteField(fieldID)
	})
}
