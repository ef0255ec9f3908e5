package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateUser(User) (User, error)
	UpdateUser(id string, mutator func(*User) error) (User, error)
	CreateCropType(CropType) (CropType, error)
	UpdateCropType(id string, mutator func(*CropType) error) (CropType, error)
	CreateField(Field) (Field, error)
	UpdateField(id string, mutator func(*Field) error) (Field, error)
	// DeleteField removes the field and its treatments. Cultivations that
	// referenced the field keep existing with the reference cleared.
	DeleteField(id string) error
	CreateCultivation(Cultivation) (Cultivation, error)
	UpdateCultivation(id string, mutator func(*Cultivation) error) (Cultivation, error)
	CreateTreatment(Treatment) (Treatment, error)
	UpdateTreatment(id string, mutator func(*Treatment) error) (Treatment, error)
	FindUser(id string) (User, bool)
	FindUserByEmail(email string) (User, bool)
	FindCropType(id string) (CropType, bool)
	FindField(id string) (Field, bool)
	FindCultivation(id string) (Cultivation, bool)
	FindCultivationBySlug(slug string) (Cultivation, bool)
	// FindSeason returns the cultivation of a crop type on a field in a year.
	FindSeason(fieldID, cropTypeID string, year int) (Cultivation, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
	FindUserByEmail(email string) (User, bool)
	FindCultivationBySlug(slug string) (Cultivation, bool)
	FindSeason(fieldID, cropTypeID string, year int) (Cultivation, bool)
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
