package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"agrilog/pkg/domain"
)

func strPtr(s string) *string { return &s }

type blockingRule struct{}

func (blockingRule) Name() string { return "blocking" }

func (blockingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{Rule: "blocking", Severity: domain.SeverityBlock}}}, nil
}

type failingRule struct{}

func (failingRule) Name() string { return "failing" }

func (failingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{}, errors.New("rule exploded")
}

func seedOwnerAndField(t *testing.T, store *Store) (User, Field, CropType) {
	t.Helper()
	var (
		user  User
		field Field
		crop  CropType
	)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		if user, err = tx.CreateUser(User{Email: "farmer@example.com"}); err != nil {
			return err
		}
		if field, err = tx.CreateField(Field{Name: "North", AreaSize: 2.5, OwnerID: strPtr(user.ID), SoilClass: domain.SoilClassIII}); err != nil {
			return err
		}
		crop, err = tx.CreateCropType(CropType{Name: "Wheat"})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return user, field, crop
}

func TestStoreRunInTransactionCommitsAndStamps(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	user, field, crop := seedOwnerAndField(t, store)

	if user.ID == "" || field.ID == "" || crop.ID == "" {
		t.Fatalf("expected generated ids")
	}
	if !field.CreatedAt.Equal(fixed) || !field.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected timestamps from clock, got %v/%v", field.CreatedAt, field.UpdatedAt)
	}
	err := store.View(context.Background(), func(view TransactionView) error {
		if len(view.ListFields()) != 1 || len(view.ListUsers()) != 1 || len(view.ListCropTypes()) != 1 {
			t.Fatalf("expected committed records")
		}
		if got, ok := view.FindUserByEmail("FARMER@example.com"); !ok || got.ID != user.ID {
			t.Fatalf("expected case-insensitive email lookup")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected engine and clock")
	}
}

func TestStoreRollsBackOnError(t *testing.T) {
	store := NewStore(nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateCropType(CropType{Name: "Rye"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	_ = store.View(context.Background(), func(view TransactionView) error {
		if len(view.ListCropTypes()) != 0 {
			t.Fatalf("expected rollback")
		}
		return nil
	})
}

func TestStoreRuleViolationBlocksCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockingRule{})
	store := NewStore(engine)
	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, e := tx.CreateCropType(CropType{Name: "Oats"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if len(store.ExportState().CropTypes) != 0 {
		t.Fatalf("expected nothing committed")
	}
}

func TestStoreRuleErrorAborts(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(failingRule{})
	store := NewStore(engine)
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, e := tx.CreateCropType(CropType{Name: "Oats"})
		return e
	}); err == nil || err.Error() != "rule exploded" {
		t.Fatalf("expected rule error, got %v", err)
	}
}

func TestDeleteFieldCascadesTreatmentsAndDetachesCultivations(t *testing.T) {
	store := NewStore(nil)
	user, field, crop := seedOwnerAndField(t, store)
	var cultivation Cultivation
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		cultivation, err = tx.CreateCultivation(Cultivation{
			FieldID: strPtr(field.ID), CropTypeID: strPtr(crop.ID), OwnerID: strPtr(user.ID),
			Slug: "2024-north-wheat", Year: 2024,
		})
		if err != nil {
			return err
		}
		_, err = tx.CreateTreatment(Treatment{FieldID: field.ID, OwnerID: user.ID, Type: domain.TreatmentPlowing, Date: time.Now()})
		return err
	})
	if err != nil {
		t.Fatalf("seed cultivation: %v", err)
	}
	if cultivation.Status != domain.CultivationInProgress {
		t.Fatalf("expected default status, got %q", cultivation.Status)
	}

	var changes int
	engine := store.RulesEngine()
	engine.Register(countingRule{count: &changes})
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		return tx.DeleteField(field.ID)
	}); err != nil {
		t.Fatalf("delete field: %v", err)
	}
	if changes != 3 {
		t.Fatalf("expected treatment delete, cultivation update and field delete changes, got %d", changes)
	}
	snapshot := store.ExportState()
	if len(snapshot.Fields) != 0 || len(snapshot.Treatments) != 0 {
		t.Fatalf("expected field and treatments removed")
	}
	got := snapshot.Cultivations[cultivation.ID]
	if got.FieldID != nil {
		t.Fatalf("expected cultivation detached from field")
	}
	if got.CropTypeID == nil || *got.CropTypeID != crop.ID {
		t.Fatalf("expected crop type reference kept")
	}
}

type countingRule struct{ count *int }

func (countingRule) Name() string { return "counting" }

func (r countingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	*r.count = len(changes)
	return domain.Result{}, nil
}

func TestUpdateCultivationKeepsSlugAndCreatedAt(t *testing.T) {
	store := NewStore(nil)
	_, field, crop := seedOwnerAndField(t, store)
	var created Cultivation
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		created, err = tx.CreateCultivation(Cultivation{FieldID: strPtr(field.ID), CropTypeID: strPtr(crop.ID), Slug: "fixed", Year: 2024})
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateCultivation(created.ID, func(c *Cultivation) error {
			c.Slug = "changed"
			c.YieldAmount = 1200
			c.Status = domain.CultivationCompleted
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	_ = store.View(context.Background(), func(view TransactionView) error {
		got, ok := view.FindCultivationBySlug("fixed")
		if !ok || got.YieldAmount != 1200 || got.Status != domain.CultivationCompleted {
			t.Fatalf("unexpected cultivation %+v", got)
		}
		if season, ok := view.FindSeason(field.ID, crop.ID, 2024); !ok || season.ID != created.ID {
			t.Fatalf("expected season lookup to match")
		}
		if _, ok := view.FindSeason(field.ID, crop.ID, 2023); ok {
			t.Fatalf("expected no season for another year")
		}
		return nil
	})
}

func TestCreateRejectsUnknownReferences(t *testing.T) {
	store := NewStore(nil)
	cases := map[string]func(tx Transaction) error{
		"field owner": func(tx Transaction) error {
			_, err := tx.CreateField(Field{Name: "x", OwnerID: strPtr("ghost")})
			return err
		},
		"cultivation field": func(tx Transaction) error {
			_, err := tx.CreateCultivation(Cultivation{FieldID: strPtr("ghost"), Year: 2024})
			return err
		},
		"cultivation crop": func(tx Transaction) error {
			_, err := tx.CreateCultivation(Cultivation{CropTypeID: strPtr("ghost"), Year: 2024})
			return err
		},
		"treatment field": func(tx Transaction) error {
			_, err := tx.CreateTreatment(Treatment{FieldID: "ghost"})
			return err
		},
		"update missing": func(tx Transaction) error {
			_, err := tx.UpdateField("ghost", func(*Field) error { return nil })
			return err
		},
		"delete missing": func(tx Transaction) error {
			return tx.DeleteField("ghost")
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := store.RunInTransaction(context.Background(), fn); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestListOrdering(t *testing.T) {
	store := NewStore(nil)
	_, field, crop := seedOwnerAndField(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateCropType(CropType{Name: "Barley"}); err != nil {
			return err
		}
		for i, year := range []int{2022, 2024, 2023} {
			if _, err := tx.CreateCultivation(Cultivation{FieldID: strPtr(field.ID), CropTypeID: strPtr(crop.ID), Slug: string(rune('a' + i)), Year: year}); err != nil {
				return err
			}
		}
		for _, day := range []int{3, 9, 1} {
			if _, err := tx.CreateTreatment(Treatment{FieldID: field.ID, Type: domain.TreatmentLiming, Date: time.Date(2024, 4, day, 0, 0, 0, 0, time.UTC)}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = store.View(context.Background(), func(view TransactionView) error {
		crops := view.ListCropTypes()
		if crops[0].Name != "Barley" || crops[1].Name != "Wheat" {
			t.Fatalf("expected crop types by name, got %+v", crops)
		}
		cultivations := view.ListCultivations()
		if cultivations[0].Year != 2024 || cultivations[2].Year != 2022 {
			t.Fatalf("expected newest season first")
		}
		treatments := view.ListTreatments()
		if treatments[0].Date.Day() != 9 || treatments[2].Date.Day() != 1 {
			t.Fatalf("expected most recent treatment first")
		}
		return nil
	})
}

type clockRule struct{ seen *time.Time }

func (clockRule) Name() string { return "clock" }

func (r clockRule) Evaluate(ctx context.Context, _ domain.RuleView, _ []domain.Change) (domain.Result, error) {
	*r.seen, _ = domain.TransactionTime(ctx)
	return domain.Result{}, nil
}

func TestRulesSeeTransactionTime(t *testing.T) {
	var seen time.Time
	engine := domain.NewRulesEngine()
	engine.Register(clockRule{seen: &seen})
	store := NewStore(engine)
	fixed := time.Date(2033, 2, 1, 8, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateCropType(CropType{Name: "Rye"})
		return err
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !seen.Equal(fixed) {
		t.Fatalf("expected rules to see %v, got %v", fixed, seen)
	}
}
