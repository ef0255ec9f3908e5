// Package auth hashes passwords and issues the bearer tokens that
// authenticate API requests.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"agrilog/pkg/domain"
)

const (
	// MinPasswordLength is the shortest accepted password, in characters.
	MinPasswordLength = 8
	// MaxPasswordBytes is the longest password bcrypt will hash.
	MaxPasswordBytes = 72
)

// ErrPasswordMismatch is returned by Compare when the password is wrong.
var ErrPasswordMismatch = errors.New("password mismatch")

var commonPasswords = map[string]struct{}{
	"password":  {},
	"password1": {},
	"qwertyui":  {},
	"qwerty123": {},
	"iloveyou":  {},
	"letmein1":  {},
	"abcdefgh":  {},
	"farmer123": {},
}

// Hasher wraps bcrypt with a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher. Costs outside bcrypt's range fall back to the default.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h Hasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(out), nil
}

// Compare checks password against hash. Passwords bcrypt cannot hash never match.
func (h Hasher) Compare(hash, password string) error {
	if len(password) > MaxPasswordBytes {
		return ErrPasswordMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// ValidatePassword applies the registration password policy. email must be
// normalised already.
func ValidatePassword(email, password, confirm string) error {
	errs := map[string]string{}
	switch {
	case password == "":
		errs["password"] = "password is required"
	case len([]rune(password)) < MinPasswordLength:
		errs["password"] = fmt.Sprintf("password must contain at least %d characters", MinPasswordLength)
	case len(password) > MaxPasswordBytes:
		errs["password"] = fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes)
	case isNumeric(password):
		errs["password"] = "password cannot be entirely numeric"
	case similarToEmail(email, password):
		errs["password"] = "password is too similar to the email address"
	case isCommon(password):
		errs["password"] = "password is too common"
	}
	if password != confirm {
		errs["password_confirm"] = "passwords do not match"
	}
	if len(errs) > 0 {
		return domain.ValidationError{Fields: errs}
	}
	return nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func similarToEmail(email, password string) bool {
	p := strings.ToLower(password)
	if email == "" {
		return false
	}
	local, _, _ := strings.Cut(email, "@")
	return p == email || p == local
}

func isCommon(password string) bool {
	_, ok := commonPasswords[strings.ToLower(password)]
	return ok
}
