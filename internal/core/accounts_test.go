package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrilog/pkg/domain"
)

func TestRegisterNormalizesEmailAndHashesPassword(t *testing.T) {
	svc := newTestService(t)
	user := registerUser(t, svc, "  Farmer@Example.COM ")

	assert.Equal(t, "farmer@example.com", user.Email)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, testPassword, user.PasswordHash)
	assert.Equal(t, fixedNow, user.CreatedAt)

	got, err := svc.Authenticate(context.Background(), "FARMER@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestAuthenticateHidesWhichPartFailed(t *testing.T) {
	svc := newTestService(t)
	registerUser(t, svc, "farmer@example.com")

	cases := map[string]struct {
		email    string
		password string
	}{
		"wrong password": {email: "farmer@example.com", password: "not-the-password"},
		"unknown email":  {email: "nobody@example.com", password: testPassword},
		"malformed":      {email: "not an email", password: testPassword},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tc.email, tc.password)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	registerUser(t, svc, "farmer@example.com")

	_, _, err := svc.Register(context.Background(), Registration{
		Email:           "Farmer@Example.com",
		Password:        testPassword,
		PasswordConfirm: testPassword,
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	cases := map[string]struct {
		reg   Registration
		field string
	}{
		"bad email":    {reg: Registration{Email: "nope", Password: testPassword, PasswordConfirm: testPassword}, field: "email"},
		"mismatch":     {reg: Registration{Email: "a@example.com", Password: testPassword, PasswordConfirm: "other-pass"}, field: "password_confirm"},
		"short":        {reg: Registration{Email: "a@example.com", Password: "short", PasswordConfirm: "short"}, field: "password"},
		"numeric only": {reg: Registration{Email: "a@example.com", Password: "12345678901", PasswordConfirm: "12345678901"}, field: "password"},
		"too long":     {reg: Registration{Email: "a@example.com", Password: strings.Repeat("harrowing", 10), PasswordConfirm: strings.Repeat("harrowing", 10)}, field: "password"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), tc.reg)
			var verr domain.ValidationError
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}
}

func TestProfileReportsTotalArea(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := registerUser(t, svc, "owner@example.com")
	other := registerUser(t, svc, "other@example.com")

	profile, err := svc.Profile(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, profile.FieldCount)
	assert.Zero(t, profile.TotalArea)

	createField(t, svc, owner.ID, "North", 1.5)
	createField(t, svc, owner.ID, "South", 2.25)
	createField(t, svc, other.ID, "Elsewhere", 40)

	profile, err = svc.Profile(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.Email, profile.User.Email)
	assert.Equal(t, 2, profile.FieldCount)
	assert.InDelta(t, 3.75, profile.TotalArea, 1e-9)

	_, err = svc.Profile(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestGetUserLookups(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user := registerUser(t, svc, "farmer@example.com")

	byID, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)

	byEmail, err := svc.GetUserByEmail(ctx, "FARMER@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = svc.GetUserByEmail(ctx, "ghost@example.com")
	assert.True(t, IsNotFound(err))
}
