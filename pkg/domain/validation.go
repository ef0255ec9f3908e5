package domain

import (
	"fmt"
	"math"
	"net/mail"
	"sort"
	"strings"
	"time"
)

// Limits mirrored by every persistence backend.
const (
	MaxCropTypeNameLength = 50
	MaxFieldNameLength    = 100
	MaxSlugLength         = 100
	// MaxAreaSize is the largest value a decimal(5,2) hectare column holds.
	MaxAreaSize = 999.99
	// MaxYieldAmount is the largest value a decimal(10,2) kilogram column holds.
	MaxYieldAmount = 99999999.99
	// MinCultivationYear is the earliest season that may be recorded.
	MinCultivationYear = 1970
	// CultivationYearHorizon bounds how far ahead a season may be planned.
	CultivationYearHorizon = 10
)

// ValidationError reports invalid input keyed by attribute name.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds an error for a single attribute.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Fields: map[string]string{field: message}}
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, format string, args ...any) {
	if _, exists := f[field]; exists {
		return
	}
	f[field] = fmt.Sprintf(format, args...)
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return ValidationError{Fields: map[string]string(f)}
}

// RoundDecimal rounds v half away from zero to the given number of places.
func RoundDecimal(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

// NormalizeEmail trims and lower-cases an address after checking it parses.
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", NewValidationError("email", "email is required")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", NewValidationError("email", "enter a valid email address")
	}
	return strings.ToLower(addr.Address), nil
}

// NormalizeCropTypeName trims the name and enforces length limits.
func NormalizeCropTypeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	switch {
	case name == "":
		return "", NewValidationError("name", "name is required")
	case len([]rune(name)) > MaxCropTypeNameLength:
		return "", NewValidationError("name", fmt.Sprintf("name must be at most %d characters", MaxCropTypeNameLength))
	}
	return name, nil
}

// Normalize trims the name, rounds the area and applies the default soil class.
func (f *Field) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.AreaSize = RoundDecimal(f.AreaSize, 2)
	if f.SoilClass == "" {
		f.SoilClass = DefaultSoilClass
	}
	if f.Notes != nil && strings.TrimSpace(*f.Notes) == "" {
		f.Notes = nil
	}
}

// Validate checks the attribute constraints of a field.
func (f Field) Validate() error {
	errs := fieldErrors{}
	switch {
	case strings.TrimSpace(f.Name) == "":
		errs.add("name", "name is required")
	case len([]rune(f.Name)) > MaxFieldNameLength:
		errs.add("name", "name must be at most %d characters", MaxFieldNameLength)
	}
	if f.AreaSize < 0 {
		errs.add("area_size", "area cannot be negative (got %.2f)", f.AreaSize)
	} else if f.AreaSize > MaxAreaSize {
		errs.add("area_size", "area must be at most %.2f ha", MaxAreaSize)
	}
	if !f.SoilClass.Valid() {
		errs.add("soil_class", "unknown soil class %q", f.SoilClass)
	}
	return errs.err()
}

// Validate checks a cultivation against the calendar at now.
func (c Cultivation) Validate(now time.Time) error {
	errs := fieldErrors{}
	if c.Year < MinCultivationYear {
		errs.add("year", "year %d is too far in the past", c.Year)
	} else if limit := now.Year() + CultivationYearHorizon; c.Year > limit {
		errs.add("year", "year %d is too far in the future", c.Year)
	}
	if c.YieldAmount < 0 {
		errs.add("yield_amount", "yield cannot be negative (got %.2f)", c.YieldAmount)
	} else if c.YieldAmount > MaxYieldAmount {
		errs.add("yield_amount", "yield must be at most %.2f kg", MaxYieldAmount)
	}
	if !c.Status.Valid() {
		errs.add("status", "unknown status %q", c.Status)
	}
	if len(c.Slug) > MaxSlugLength {
		errs.add("slug", "slug must be at most %d characters", MaxSlugLength)
	}
	return errs.err()
}

// Validate checks the attribute constraints of a treatment.
func (t Treatment) Validate() error {
	errs := fieldErrors{}
	if !t.Type.Valid() {
		errs.add("treatment_type", "unknown treatment type %q", t.Type)
	}
	if t.Date.IsZero() {
		errs.add("date", "date is required")
	}
	if t.Type == TreatmentSowing && (t.CropTypeID == nil || *t.CropTypeID == "") {
		errs.add("crop_type", "crop type is required for sowing")
	}
	if strings.TrimSpace(t.FieldID) == "" {
		errs.add("field", "field is required")
	}
	return errs.err()
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
