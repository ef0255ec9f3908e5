package core

import (
	"context"
	"time"

	"agrilog/pkg/domain"
)

// TreatmentInput carries a treatment log entry.
type TreatmentInput struct {
	Type        domain.TreatmentType
	Date        time.Time
	CropTypeID  *string
	Description string
}

// RecordTreatment logs a treatment on one of the owner's fields. A sowing
// creates the season for the field, crop type and year of the date, or
// updates the existing one, in the same transaction.
func (s *Service) RecordTreatment(ctx context.Context, ownerID, fieldID string, in TreatmentInput) (Treatment, Result, error) {
	treatment := Treatment{
		FieldID:     fieldID,
		OwnerID:     ownerID,
		Type:        in.Type,
		CropTypeID:  in.CropTypeID,
		Description: in.Description,
	}
	if !in.Date.IsZero() {
		treatment.Date = domain.DateOnly(in.Date)
	}
	if treatment.CropTypeID != nil && *treatment.CropTypeID == "" {
		treatment.CropTypeID = nil
	}
	if err := treatment.Validate(); err != nil {
		return Treatment{}, Result{}, err
	}
	var created Treatment
	res, err := s.mutate(ctx, "record_treatment", ownerID, func(tx Transaction) (string, error) {
		field, err := ownedField(tx.Snapshot(), ownerID, fieldID)
		if err != nil {
			return "", err
		}
		var crop CropType
		if treatment.CropTypeID != nil {
			var ok bool
			crop, ok = tx.FindCropType(*treatment.CropTypeID)
			if !ok {
				return "", domain.NewValidationError("crop_type", "select a valid crop type")
			}
		}
		if treatment.Type == domain.TreatmentSowing {
			season, err := s.upsertSeason(tx, field, crop, treatment.Date)
			if err != nil {
				return "", err
			}
			treatment.CultivationID = &season.ID
		}
		created, err = tx.CreateTreatment(treatment)
		return created.ID, err
	})
	return created, res, err
}

// upsertSeason points the matching season at the sowing date, reviving it if
// cancelled, or creates it with a fresh slug.
func (s *Service) upsertSeason(tx Transaction, field Field, crop CropType, date time.Time) (Cultivation, error) {
	year := date.Year()
	now := s.now()
	if existing, ok := tx.FindSeason(field.ID, crop.ID, year); ok {
		return tx.UpdateCultivation(existing.ID, func(c *Cultivation) error {
			c.SowingDate = date
			if c.Status == domain.CultivationCancelled {
				c.Status = domain.CultivationInProgress
			}
			return c.Validate(now)
		})
	}
	season := Cultivation{
		FieldID:    &field.ID,
		CropTypeID: &crop.ID,
		OwnerID:    field.OwnerID,
		Status:     domain.CultivationInProgress,
		Year:       year,
		SowingDate: date,
	}
	if err := season.Validate(now); err != nil {
		return Cultivation{}, err
	}
	season.Slug = domain.UniqueSlug(domain.CultivationSlugBase(year, field.Name, crop.Name), func(candidate string) bool {
		_, taken := tx.FindCultivationBySlug(candidate)
		return taken
	})
	return tx.CreateCultivation(season)
}

// ListTreatments returns the treatments of one of the owner's fields, newest first.
func (s *Service) ListTreatments(ctx context.Context, ownerID, fieldID string) ([]Treatment, error) {
	var out []Treatment
	err := s.read(ctx, "list_treatments", ownerID, func(view TransactionView) error {
		if _, err := ownedField(view, ownerID, fieldID); err != nil {
			return err
		}
		out = fieldTreatments(view, fieldID)
		return nil
	})
	return out, err
}

func fieldTreatments(view TransactionView, fieldID string) []Treatment {
	out := []Treatment{}
	for _, t := range view.ListTreatments() {
		if t.FieldID == fieldID {
			out = append(out, t)
		}
	}
	return out
}
