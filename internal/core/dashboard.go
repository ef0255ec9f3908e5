package core

import "context"

// DashboardRecentTreatments bounds the treatments shown on the dashboard.
const DashboardRecentTreatments = 5

// Dashboard is the landing summary of an account.
type Dashboard struct {
	FieldCount          int                  `json:"field_count"`
	TotalArea           float64              `json:"total_area"`
	CurrentYear         int                  `json:"current_year"`
	CurrentCultivations []CultivationSummary `json:"current_cultivations"`
	RecentTreatments    []Treatment          `json:"recent_treatments"`
}

// Dashboard summarises the owner's land, this year's seasons and the latest treatments.
func (s *Service) Dashboard(ctx context.Context, ownerID string) (Dashboard, error) {
	now := s.now()
	out := Dashboard{
		CurrentYear:         now.Year(),
		CurrentCultivations: []CultivationSummary{},
		RecentTreatments:    []Treatment{},
	}
	err := s.read(ctx, "dashboard", ownerID, func(view TransactionView) error {
		out.FieldCount, out.TotalArea = ownedArea(view, ownerID)
		for _, c := range view.ListCultivations() {
			if c.OwnedBy(ownerID) && c.IsActiveIn(now) {
				out.CurrentCultivations = append(out.CurrentCultivations, summarize(view, c, now))
			}
		}
		for _, t := range view.ListTreatments() {
			if t.OwnerID != ownerID {
				continue
			}
			out.RecentTreatments = append(out.RecentTreatments, t)
			if len(out.RecentTreatments) == DashboardRecentTreatments {
				break
			}
		}
		return nil
	})
	return out, err
}
