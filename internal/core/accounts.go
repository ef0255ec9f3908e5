package core

import (
	"context"
	"errors"

	"agrilog/internal/auth"
	"agrilog/pkg/domain"
)

// Registration carries the sign-up form.
type Registration struct {
	Email           string
	Password        string
	PasswordConfirm string
}

// Profile summarises an account and the land it owns.
type Profile struct {
	User       User    `json:"user"`
	FieldCount int     `json:"field_count"`
	TotalArea  float64 `json:"total_area"`
}

// Register creates an account. The email is stored trimmed and lower-cased
// and the password only as a bcrypt hash.
func (s *Service) Register(ctx context.Context, reg Registration) (User, Result, error) {
	email, err := domain.NormalizeEmail(reg.Email)
	if err != nil {
		return User{}, Result{}, err
	}
	if err := auth.ValidatePassword(email, reg.Password, reg.PasswordConfirm); err != nil {
		return User{}, Result{}, err
	}
	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return User{}, Result{}, err
	}
	var created User
	res, err := s.mutate(ctx, "register", "", func(tx Transaction) (string, error) {
		if _, exists := tx.FindUserByEmail(email); exists {
			return "", ErrEmailTaken
		}
		var err error
		created, err = tx.CreateUser(User{Email: email, PasswordHash: hash})
		return created.ID, err
	})
	return created, res, err
}

// Authenticate returns the account matching email and password. Unknown
// addresses and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	var user User
	err := s.run(ctx, "authenticate", "", func(ctx context.Context) (string, error) {
		normalized, err := domain.NormalizeEmail(email)
		if err != nil {
			return "", ErrInvalidCredentials
		}
		var found bool
		if err := s.store.View(ctx, func(view TransactionView) error {
			user, found = view.FindUserByEmail(normalized)
			return nil
		}); err != nil {
			return "", err
		}
		if !found {
			return "", ErrInvalidCredentials
		}
		if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				return "", ErrInvalidCredentials
			}
			return "", err
		}
		return user.ID, nil
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUser returns the account with the given id.
func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.read(ctx, "get_user", userID, func(view TransactionView) error {
		var ok bool
		user, ok = view.FindUser(userID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityUser, ID: userID}
		}
		return nil
	})
	return user, err
}

// GetUserByEmail returns the account registered under email.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (User, error) {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	var user User
	err = s.read(ctx, "get_user_by_email", "", func(view TransactionView) error {
		var ok bool
		user, ok = view.FindUserByEmail(normalized)
		if !ok {
			return ErrNotFound{Entity: domain.EntityUser, ID: normalized}
		}
		return nil
	})
	return user, err
}

// Profile reports the account with the number and total area of its fields.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	var profile Profile
	err := s.read(ctx, "profile", userID, func(view TransactionView) error {
		user, ok := view.FindUser(userID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityUser, ID: userID}
		}
		profile.User = user
		profile.FieldCount, profile.TotalArea = ownedArea(view, userID)
		return nil
	})
	return profile, err
}

func ownedArea(view TransactionView, ownerID string) (int, float64) {
	var count int
	var total float64
	for _, field := range view.ListFields() {
		if !field.OwnedBy(ownerID) {
			continue
		}
		count++
		total += field.AreaSize
	}
	return count, domain.RoundDecimal(total, 2)
}
