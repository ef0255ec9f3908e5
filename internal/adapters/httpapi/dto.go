package httpapi

import (
	"strconv"
	"strings"
	"time"

	"agrilog/internal/core"
	"agrilog/pkg/domain"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u core.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

type profileResponse struct {
	User       userResponse `json:"user"`
	FieldCount int          `json:"field_count"`
	TotalArea  float64      `json:"total_area"`
}

type cropTypeRequest struct {
	Name string `json:"name"`
}

type fieldRequest struct {
	Name      string           `json:"name"`
	AreaSize  float64          `json:"area_size"`
	SoilClass domain.SoilClass `json:"soil_class"`
	Notes     *string          `json:"notes"`
}

func (r fieldRequest) input() core.FieldInput {
	return core.FieldInput{Name: r.Name, AreaSize: r.AreaSize, SoilClass: r.SoilClass, Notes: r.Notes}
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type treatmentRequest struct {
	TreatmentType domain.TreatmentType `json:"treatment_type"`
	Date          string               `json:"date"`
	CropTypeID    *string              `json:"crop_type_id"`
	Description   string               `json:"description"`
}

type cultivationRequest struct {
	Status      domain.CultivationStatus `json:"status"`
	SowingDate  string                   `json:"sowing_date"`
	YieldAmount *float64                 `json:"yield_amount"`
}

type exportRequest struct {
	Formats    []string `json:"formats"`
	Status     string   `json:"status"`
	Year       int      `json:"year"`
	FieldID    string   `json:"field"`
	CropTypeID string   `json:"crop_type"`
}

type warning struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// mutationResponse wraps the record changed by a request together with the
// non-blocking rule violations of its transaction.
type mutationResponse struct {
	Message  string    `json:"message,omitempty"`
	Data     any       `json:"data,omitempty"`
	Warnings []warning `json:"warnings,omitempty"`
}

func mutated(message string, data any, res core.Result) mutationResponse {
	out := mutationResponse{Message: message, Data: data}
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityBlock {
			continue
		}
		out.Warnings = append(out.Warnings, warning{Rule: v.Rule, Message: v.Message})
	}
	return out
}

// parseDate reads an optional calendar date. A blank value is the zero time.
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "enter a valid date (YYYY-MM-DD)")
	}
	return t, nil
}

// parseHistoryFilter reads the history filters. Unknown statuses and
// non-numeric years are rejected.
func parseHistoryFilter(status, year, fieldID, cropTypeID string) (core.HistoryFilter, error) {
	filter := core.HistoryFilter{
		Status:     domain.CultivationStatus(strings.ToUpper(strings.TrimSpace(status))),
		FieldID:    strings.TrimSpace(fieldID),
		CropTypeID: strings.TrimSpace(cropTypeID),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return core.HistoryFilter{}, domain.NewValidationError("status", "select a valid status")
	}
	if year = strings.TrimSpace(year); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			return core.HistoryFilter{}, domain.NewValidationError("year", "enter a whole number")
		}
		filter.Year = y
	}
	return filter, nil
}

// parsePage follows the paginator convention: anything unparsable is page 1
// and out of range pages are clamped by the service.
func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	return page
}
