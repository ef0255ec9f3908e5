// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by agrilog.
package domain

import (
	"fmt"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityUser identifies a registered account.
	EntityUser EntityType = "user"
	// EntityCropType identifies a crop type dictionary record.
	EntityCropType EntityType = "crop_type"
	// EntityField identifies a land parcel record.
	EntityField EntityType = "field"
	// EntityCultivation identifies a growing season record.
	EntityCultivation EntityType = "cultivation"
	// EntityTreatment identifies an agronomic action logged against a field.
	EntityTreatment EntityType = "treatment"
)

// Severity represents rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an account holder. The email doubles as the login name.
type User struct {
	Base
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

// CropType names a kind of crop, e.g. wheat or potato.
type CropType struct {
	Base
	Name string `json:"name"`
}

// SoilClass enumerates the Polish soil quality classes, I being the best.
type SoilClass string

// Supported soil classes.
const (
	SoilClassI   SoilClass = "I"
	SoilClassII  SoilClass = "II"
	SoilClassIII SoilClass = "III"
	SoilClassIV  SoilClass = "IV"
	SoilClassV   SoilClass = "V"
	SoilClassVI  SoilClass = "VI"
)

// DefaultSoilClass is assigned when a field is created without a class.
const DefaultSoilClass = SoilClassV

// SoilClasses lists every supported class in order.
func SoilClasses() []SoilClass {
	return []SoilClass{SoilClassI, SoilClassII, SoilClassIII, SoilClassIV, SoilClassV, SoilClassVI}
}

// Valid reports whether the class is one of the supported values.
func (c SoilClass) Valid() bool {
	for _, known := range SoilClasses() {
		if c == known {
			return true
		}
	}
	return false
}

// Field is a named parcel of farmland.
type Field struct {
	Base
	Name      string    `json:"name"`
	AreaSize  float64   `json:"area_size"`
	Notes     *string   `json:"notes,omitempty"`
	OwnerID   *string   `json:"owner_id,omitempty"`
	SoilClass SoilClass `json:"soil_class"`
}

// OwnedBy reports whether the field belongs to the given user.
func (f Field) OwnedBy(userID string) bool {
	return f.OwnerID != nil && *f.OwnerID == userID
}

// CultivationStatus enumerates the lifecycle of a growing season.
type CultivationStatus string

// Cultivation statuses.
const (
	// CultivationInProgress is the default status of a new season.
	CultivationInProgress CultivationStatus = "PG"
	// CultivationCompleted marks a harvested season.
	CultivationCompleted CultivationStatus = "CP"
	// CultivationCancelled marks an abandoned season.
	CultivationCancelled CultivationStatus = "CL"
)

// Valid reports whether the status is known.
func (s CultivationStatus) Valid() bool {
	switch s {
	case CultivationInProgress, CultivationCompleted, CultivationCancelled:
		return true
	}
	return false
}

// Label returns a human readable description of the status.
func (s CultivationStatus) Label() string {
	switch s {
	case CultivationInProgress:
		return "in progress"
	case CultivationCompleted:
		return "completed (harvested)"
	case CultivationCancelled:
		return "cancelled"
	}
	return string(s)
}

// Cultivation is one growing season of a crop type on a field in a year.
// Field, crop type and owner references are cleared rather than cascaded
// when the referenced record goes away.
type Cultivation struct {
	Base
	FieldID     *string           `json:"field_id,omitempty"`
	CropTypeID  *string           `json:"crop_type_id,omitempty"`
	OwnerID     *string           `json:"owner_id,omitempty"`
	Slug        string            `json:"slug"`
	Notes       string            `json:"notes"`
	Status      CultivationStatus `json:"status"`
	Year        int               `json:"year"`
	YieldAmount float64           `json:"yield_amount"`
	SowingDate  time.Time         `json:"sowing_date"`
}

// OwnedBy reports whether the cultivation belongs to the given user.
func (c Cultivation) OwnedBy(userID string) bool {
	return c.OwnerID != nil && *c.OwnerID == userID
}

// IsActiveIn reports whether the cultivation belongs to the given calendar year.
func (c Cultivation) IsActiveIn(now time.Time) bool {
	return c.Year == now.Year()
}

// DisplayName renders "{field} - {crop} ({year})" given resolved names.
func (c Cultivation) DisplayName(fieldName, cropName string) string {
	return fmt.Sprintf("%s - %s (%d)", fieldName, cropName, c.Year)
}

// TreatmentType enumerates agronomic actions.
type TreatmentType string

// Supported treatment types.
const (
	TreatmentSowing      TreatmentType = "sowing"
	TreatmentFertilizing TreatmentType = "fertilizing"
	TreatmentLiming      TreatmentType = "liming"
	TreatmentPlowing     TreatmentType = "plowing"
	TreatmentSpraying    TreatmentType = "spraying"
	TreatmentHarvest     TreatmentType = "harvest"
	TreatmentOther       TreatmentType = "other"
)

// TreatmentTypes lists every supported treatment type.
func TreatmentTypes() []TreatmentType {
	return []TreatmentType{
		TreatmentSowing,
		TreatmentFertilizing,
		TreatmentLiming,
		TreatmentPlowing,
		TreatmentSpraying,
		TreatmentHarvest,
		TreatmentOther,
	}
}

// Valid reports whether the type is known.
func (t TreatmentType) Valid() bool {
	for _, known := range TreatmentTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Treatment is a dated agronomic action performed on a field.
type Treatment struct {
	Base
	FieldID       string        `json:"field_id"`
	OwnerID       string        `json:"owner_id"`
	Type          TreatmentType `json:"treatment_type"`
	Date          time.Time     `json:"date"`
	CropTypeID    *string       `json:"crop_type_id,omitempty"`
	Description   string        `json:"description"`
	CultivationID *string       `json:"cultivation_id,omitempty"`
}

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action enumerates change actions.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	// ActionDelete indicates an entity was deleted.
	ActionDelete Action = "delete"
)

// Violation captures a rule violation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from rule evaluation.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if any violation blocks the transaction.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Blocking returns only the violations that block a commit.
func (r Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	if blocking := e.Result.Blocking(); len(blocking) == 1 {
		return "transaction blocked by rules: " + blocking[0].Message
	}
	return "transaction blocked by rules"
}
