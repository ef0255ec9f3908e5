package core

import (
	"context"
	"time"

	"agrilog/pkg/domain"
)

// HistoryPageSize is the number of cultivations per history page.
const HistoryPageSize = 25

// HistoryFilter narrows the cultivation history. Zero values match everything.
type HistoryFilter struct {
	Status     domain.CultivationStatus
	Year       int
	FieldID    string
	CropTypeID string
}

func (f HistoryFilter) matches(c Cultivation) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Year != 0 && c.Year != f.Year {
		return false
	}
	if f.FieldID != "" && (c.FieldID == nil || *c.FieldID != f.FieldID) {
		return false
	}
	if f.CropTypeID != "" && (c.CropTypeID == nil || *c.CropTypeID != f.CropTypeID) {
		return false
	}
	return true
}

// CultivationSummary is a cultivation with its references resolved.
type CultivationSummary struct {
	Cultivation
	FieldName    string `json:"field_name"`
	CropTypeName string `json:"crop_type_name"`
	DisplayName  string `json:"display_name"`
	StatusLabel  string `json:"status_label"`
	IsActiveNow  bool   `json:"is_active_now"`
}

func summarize(view TransactionView, c Cultivation, now time.Time) CultivationSummary {
	out := CultivationSummary{
		Cultivation: c,
		StatusLabel: c.Status.Label(),
		IsActiveNow: c.IsActiveIn(now),
	}
	if c.FieldID != nil {
		if field, ok := view.FindField(*c.FieldID); ok {
			out.FieldName = field.Name
		}
	}
	if c.CropTypeID != nil {
		if crop, ok := view.FindCropType(*c.CropTypeID); ok {
			out.CropTypeName = crop.Name
		}
	}
	out.DisplayName = c.DisplayName(out.FieldName, out.CropTypeName)
	return out
}

// HistoryPage is one page of the owner's cultivation history together with
// the choices for its filters.
type HistoryPage struct {
	Cultivations []CultivationSummary `json:"cultivations"`
	Page         int                  `json:"page"`
	PageCount    int                  `json:"page_count"`
	Total        int                  `json:"total"`
	HasPrevious  bool                 `json:"has_previous"`
	HasNext      bool                 `json:"has_next"`
	Filter       HistoryFilter        `json:"-"`
	CropTypes    []CropType           `json:"crop_types"`
	Fields       []Field              `json:"fields"`
}

func (s *Service) filteredCultivations(view TransactionView, ownerID string, filter HistoryFilter) []CultivationSummary {
	now := s.now()
	out := []CultivationSummary{}
	for _, c := range view.ListCultivations() {
		if !c.OwnedBy(ownerID) || !filter.matches(c) {
			continue
		}
		out = append(out, summarize(view, c, now))
	}
	return out
}

// CultivationHistory returns the owner's cultivations, newest season first,
// HistoryPageSize at a time. Pages outside the range are clamped.
func (s *Service) CultivationHistory(ctx context.Context, ownerID string, page int, filter HistoryFilter) (HistoryPage, error) {
	var out HistoryPage
	err := s.read(ctx, "cultivation_history", ownerID, func(view TransactionView) error {
		all := s.filteredCultivations(view, ownerID, filter)
		out = paginate(all, page)
		out.Filter = filter
		out.CropTypes = view.ListCropTypes()
		out.Fields = ownedFields(view, ownerID)
		return nil
	})
	return out, err
}

func paginate(all []CultivationSummary, page int) HistoryPage {
	pageCount := (len(all) + HistoryPageSize - 1) / HistoryPageSize
	if pageCount == 0 {
		pageCount = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pageCount {
		page = pageCount
	}
	start := (page - 1) * HistoryPageSize
	end := start + HistoryPageSize
	if end > len(all) {
		end = len(all)
	}
	return HistoryPage{
		Cultivations: all[start:end],
		Page:         page,
		PageCount:    pageCount,
		Total:        len(all),
		HasPrevious:  page > 1,
		HasNext:      page < pageCount,
	}
}

// ExportCultivations returns the whole filtered history of the owner.
func (s *Service) ExportCultivations(ctx context.Context, ownerID string, filter HistoryFilter) ([]CultivationSummary, error) {
	var out []CultivationSummary
	err := s.read(ctx, "export_cultivations", ownerID, func(view TransactionView) error {
		if _, ok := view.FindUser(ownerID); !ok {
			return ErrNotFound{Entity: domain.EntityUser, ID: ownerID}
		}
		out = s.filteredCultivations(view, ownerID, filter)
		return nil
	})
	return out, err
}

func ownedCultivation(view TransactionView, ownerID, id string) (Cultivation, error) {
	c, ok := view.FindCultivation(id)
	if !ok || !c.OwnedBy(ownerID) {
		return Cultivation{}, ErrNotFound{Entity: domain.EntityCultivation, ID: id}
	}
	return c, nil
}

// GetCultivation returns one of the owner's cultivations.
func (s *Service) GetCultivation(ctx context.Context, ownerID, id string) (CultivationSummary, error) {
	var out CultivationSummary
	err := s.read(ctx, "get_cultivation", ownerID, func(view TransactionView) error {
		c, err := ownedCultivation(view, ownerID, id)
		if err != nil {
			return err
		}
		out = summarize(view, c, s.now())
		return nil
	})
	return out, err
}

// GetCultivationBySlug returns one of the owner's cultivations by slug.
func (s *Service) GetCultivationBySlug(ctx context.Context, ownerID, slug string) (CultivationSummary, error) {
	var out CultivationSummary
	err := s.read(ctx, "get_cultivation_by_slug", ownerID, func(view TransactionView) error {
		c, ok := view.FindCultivationBySlug(slug)
		if !ok || !c.OwnedBy(ownerID) {
			return ErrNotFound{Entity: domain.EntityCultivation, ID: slug}
		}
		out = summarize(view, c, s.now())
		return nil
	})
	return out, err
}

// CultivationUpdate carries the editable attributes of a cultivation. An
// empty status, a zero sowing date or a nil yield keeps the current value.
type CultivationUpdate struct {
	Status      domain.CultivationStatus
	SowingDate  time.Time
	YieldAmount *float64
}

// UpdateCultivation changes status, sowing date and yield. The slug is kept.
func (s *Service) UpdateCultivation(ctx context.Context, ownerID, id string, in CultivationUpdate) (Cultivation, Result, error) {
	var updated Cultivation
	res, err := s.mutate(ctx, "update_cultivation", ownerID, func(tx Transaction) (string, error) {
		if _, err := ownedCultivation(tx.Snapshot(), ownerID, id); err != nil {
			return "", err
		}
		now := s.now()
		var err error
		updated, err = tx.UpdateCultivation(id, func(c *Cultivation) error {
			if in.Status != "" {
				c.Status = in.Status
			}
			if !in.SowingDate.IsZero() {
				c.SowingDate = domain.DateOnly(in.SowingDate)
			}
			if in.YieldAmount != nil {
				c.YieldAmount = domain.RoundDecimal(*in.YieldAmount, 2)
			}
			return c.Validate(now)
		})
		return id, err
	})
	return updated, res, err
}

// UpdateCultivationNotes replaces the notes of a cultivation.
func (s *Service) UpdateCultivationNotes(ctx context.Context, ownerID, id, notes string) (Cultivation, Result, error) {
	var updated Cultivation
	res, err := s.mutate(ctx, "update_cultivation_notes", ownerID, func(tx Transaction) (string, error) {
		if _, err := ownedCultivation(tx.Snapshot(), ownerID, id); err != nil {
			return "", err
		}
		var err error
		updated, err = tx.UpdateCultivation(id, func(c *Cultivation) error {
			c.Notes = notes
			return nil
		})
		return id, err
	})
	return updated, res, err
}
