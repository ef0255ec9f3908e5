package core

import (
	"errors"
	"fmt"

	"agrilog/pkg/domain"
)

// ErrNotFound is returned when a record does not exist or belongs to another owner.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when a request carries no usable identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrEmailTaken is returned when registering an address that already has an account.
	ErrEmailTaken = errors.New("a user with that email already exists")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// isClientError reports whether err was caused by the caller's input rather
// than by the service or its store.
func isClientError(err error) bool {
	var (
		verr domain.ValidationError
		rerr domain.RuleViolationError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &rerr), IsNotFound(err):
		return true
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrEmailTaken):
		return true
	}
	return false
}
