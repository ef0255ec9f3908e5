package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrilog/pkg/domain"
)

func TestCropTypes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	wheat := createCrop(t, svc, "  Winter Wheat ")
	assert.Equal(t, "Winter Wheat", wheat.Name)
	createCrop(t, svc, "Potato")
	createCrop(t, svc, "Buckwheat")

	_, _, err := svc.CreateCropType(ctx, "", "Potato")
	var rv domain.RuleViolationError
	require.True(t, errors.As(err, &rv), "expected rule violation, got %v", err)
	assert.Equal(t, "unique_crop_type_name", rv.Result.Blocking()[0].Rule)

	_, _, err = svc.CreateCropType(ctx, "", "   ")
	var verr domain.ValidationError
	require.True(t, errors.As(err, &verr))

	all, err := svc.ListCropTypes(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Buckwheat", "Potato", "Winter Wheat"}, []string{all[0].Name, all[1].Name, all[2].Name})

	found, err := svc.ListCropTypes(ctx, "WHEAT")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Buckwheat", found[0].Name)
}

func TestCreateFieldDefaultsAndValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := registerUser(t, svc, "owner@example.com")

	field := createField(t, svc, owner.ID, " North ", 12.346)
	assert.Equal(t, "North", field.Name)
	assert.InDelta(t, 12.35, field.AreaSize, 1e-9)
	assert.Equal(t, domain.DefaultSoilClass, field.SoilClass)
	assert.True(t, field.OwnedBy(owner.ID))

	cases := map[string]struct {
		in    FieldInput
		field string
	}{
		"empty name":    {in: FieldInput{Name: " ", AreaSize: 1}, field: "name"},
		"negative area": {in: FieldInput{Name: "A", AreaSize: -1}, field: "area_size"},
		"too large":     {in: FieldInput{Name: "A", AreaSize: 1000}, field: "area_size"},
		"bad soil":      {in: FieldInput{Name: "A", AreaSize: 1, SoilClass: "VII"}, field: "soil_class"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.CreateField(ctx, owner.ID, tc.in)
			var verr domain.ValidationError
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}

	_, _, err := svc.CreateField(ctx, "ghost", FieldInput{Name: "A", AreaSize: 1})
	assert.True(t, IsNotFound(err))
}

func TestFieldNamesUniquePerOwner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := registerUser(t, svc, "owner@example.com")
	other := registerUser(t, svc, "other@example.com")

	createField(t, svc, owner.ID, "North", 1)
	createField(t, svc, other.ID, "North", 1)

	_, _, err := svc.CreateField(ctx, owner.ID, FieldInput{Name: "North", AreaSize: 2})
	var rv domain.RuleViolationError
	require.True(t, errors.As(err, &rv), "expected rule violation, got %v", err)

	fields, err := svc.ListFields(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, fields, 1)
}

func TestFieldsOfOtherOwnersAreNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := registerUser(t, svc, "owner@example.com")
	intruder := registerUser(t, svc, "intruder@example.com")
	field := createField(t, svc, owner.ID, "North", 1)

	_, err := svc.GetFieldDetail(ctx, intruder.ID, field.ID)
	assert.True(t, IsNotFound(err))
	_, _, err = svc.UpdateField(ctx, intruder.ID, field.ID, FieldInput{Name: "Mine", AreaSize: 1})
	assert.True(t, IsNotFound(err))
	_, _, err = svc.UpdateFieldNotes(ctx, intruder.ID, field.ID, "hello")
	assert.True(t, IsNotFound(err))
	_, err = svc.DeleteField(ctx, intruder.ID, field.ID)
	assert.True(t, IsNotFound(err))
	_, err = svc.ListTreatments(ctx, intruder.ID, field.ID)
	assert.True(t, IsNotFound(err))
}

func TestUpdateFieldAndNotes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := registerUser(t, svc, "owner@example.com")
	notes := "clay patch near the road"
	field, _, err := svc.CreateField(ctx, owner.ID, FieldInput{Name: "North", AreaSize: 1, Notes: &notes})
	require.NoError(t, err)

	updated, _, err := svc.UpdateField(ctx, owner.ID, field.ID, FieldInput{Name: "North Meadow", AreaSize: 3.5, SoilClass: domain.SoilClassII})
	require.NoError(t, err)
	assert.Equal(t, "North Meadow", updated.Name)
	assert.Equal(t, domain.SoilClassII, updated.SoilClass)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)

	_, _, err = svc.UpdateField(ctx, owner.ID, field.ID, FieldInput{Name: "North", AreaSize: -2})
	var verr domain.ValidationError
	require.True(t, errors.As(err, &verr))

	withNotes, _, err := svc.UpdateFieldNotes(ctx, owner.ID, field.ID, "drained in 2023")
	require.NoError(t, err)
	require.NotNil(t, withNotes.Notes)
	assert.Equal(t, "drained in 2023", *withNotes.Notes)

	cleared, _, err := svc.UpdateFieldNotes(ctx, owner.ID, field.ID, "  ")
	require.NoError(t, err)
	assert.Nil(t, cleared.Notes)
}

func TestGetFieldDetailShowsLatestYear(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := registerUser(t, svc, "owner@example.com")
	field := createField(t, svc, owner.ID, "North", 5)
	wheat := createCrop(t, svc, "Wheat")
	rye := createCrop(t, svc, "Rye")

	empty, err := svc.GetFieldDetail(ctx, owner.ID, field.ID)
	require.NoError(t, err)
	assert.Nil(t, empty.CurrentYear)
	assert.Empty(t, empty.LatestCultivations)
	assert.Empty(t, empty.Treatments)

	sow(t, svc, owner.ID, field.ID, wheat.ID, day(2022, 9, 20))
	sow(t, svc, owner.ID, field.ID, wheat.ID, day(2023, 9, 20))
	sow(t, svc, owner.ID, field.ID, rye.ID, day(2023, 10, 2))

	detail, err := svc.GetFieldDetail(ctx, owner.ID, field.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.CurrentYear)
	assert.Equal(t, 2023, *detail.CurrentYear)
	assert.Len(t, detail.LatestCultivations, 2)
	require.Len(t, detail.Treatments, 3)
	assert.Equal(t, day(2023, 10, 2), detail.Treatments[0].Date)
}

func TestDeleteFieldKeepsCultivations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := registerUser(t, svc, "owner@example.com")
	field := createField(t, svc, owner.ID, "North", 5)
	wheat := createCrop(t, svc, "Wheat")
	treatment := sow(t, svc, owner.ID, field.ID, wheat.ID, day(2024, 4, 1))

	_, err := svc.DeleteField(ctx, owner.ID, field.ID)
	require.NoError(t, err)

	_, err = svc.GetFieldDetail(ctx, owner.ID, field.ID)
	assert.True(t, IsNotFound(err))

	cultivation, err := svc.GetCultivation(ctx, owner.ID, *treatment.CultivationID)
	require.NoError(t, err)
	assert.Nil(t, cultivation.FieldID)
	assert.Equal(t, "", cultivation.FieldName)
	assert.Equal(t, "2024-north-wheat", cultivation.Slug)

	dash, err := svc.Dashboard(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, dash.RecentTreatments)
}
