package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"agrilog/pkg/domain"
)

func TestHasherRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.ErrorIs(t, h.Compare(hash, "wrong horse"), ErrPasswordMismatch)
	assert.Error(t, h.Compare("not-a-hash", "x"))
	assert.ErrorIs(t, h.Compare(hash, strings.Repeat("correct horse ", 6)), ErrPasswordMismatch)
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}

func TestValidatePassword(t *testing.T) {
	cases := map[string]struct {
		password string
		confirm  string
		field    string
		message  string
	}{
		"ok":         {password: "wheat-field-2024", confirm: "wheat-field-2024"},
		"empty":      {password: "", confirm: "", field: "password", message: "password is required"},
		"short":      {password: "abc12", confirm: "abc12", field: "password", message: "password must contain at least 8 characters"},
		"too long":   {password: strings.Repeat("ploughed-", 10), confirm: strings.Repeat("ploughed-", 10), field: "password", message: "password must be at most 72 bytes"},
		"at limit":   {password: strings.Repeat("barley-", 10) + "oa", confirm: strings.Repeat("barley-", 10) + "oa"},
		"numeric":    {password: "1234567890", confirm: "1234567890", field: "password", message: "password cannot be entirely numeric"},
		"email":      {password: "Jan.Kowal@example.com", confirm: "Jan.Kowal@example.com", field: "password", message: "password is too similar to the email address"},
		"local part": {password: "jan.kowal", confirm: "jan.kowal", field: "password", message: "password is too similar to the email address"},
		"common":     {password: "Password1", confirm: "Password1", field: "password", message: "password is too common"},
		"mismatch":   {password: "wheat-field-2024", confirm: "wheat-field-2025", field: "password_confirm", message: "passwords do not match"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidatePassword("jan.kowal@example.com", tc.password, tc.confirm)
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.message, verr.Fields[tc.field])
		})
	}
}

func TestTokenIssueAndVerify(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return fixed }

	token, exp, err := issuer.Issue("user-1")
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Hour), exp)
	assert.Equal(t, time.Hour, issuer.TTL())

	subject, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)

	issuer.now = func() time.Time { return fixed.Add(2 * time.Hour) }
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenVerifyRejects(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)
	other, err := NewTokenIssuer("other-secret", time.Hour)
	require.NoError(t, err)
	foreign, _, err := other.Issue("user-1")
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  Issuer,
		Subject: "user-1",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"malformed":    "not.a.token",
		"signature":    foreign,
		"no subject":   noSubject,
		"wrong issuer": wrongIssuer,
		"missing exp":  noExpiry,
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Verify(token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestNewTokenIssuerValidates(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour)
	assert.Error(t, err)
	_, err = NewTokenIssuer("s", 0)
	assert.Error(t, err)
}
