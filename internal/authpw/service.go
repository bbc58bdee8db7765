// Package authpw verifies account credentials for the bearer-token login
// endpoint and handles password changes.
package authpw

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"nodetree/api/internal/store"
)

// ErrInvalidCredentials is the only failure login reports for bad
// passwords, unknown identifiers, and unconfirmed, inactive or deleted
// accounts alike, so callers cannot probe which accounts exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

const minPasswordLength = 8

type UserStore interface {
	GetUserByLogin(ctx context.Context, identifier string) (store.User, error)
	GetUserByID(ctx context.Context, id int64) (store.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
}

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// SignIn authenticates a username-or-email identifier against its
// password and the account's state flags.
func (s *Service) SignIn(ctx context.Context, identifier, password string) (store.User, error) {
	if identifier == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByLogin(ctx, identifier)
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}

	if user.IsDeleted || !user.IsActive || !user.IsEmailConfirmed {
		return store.User{}, ErrInvalidCredentials
	}

	return user, nil
}

type ChangePasswordRequest struct {
	UserID          int64
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if req.OldPassword == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return errors.New("all password fields are required")
	}
	if req.NewPassword != req.ConfirmPassword {
		return errors.New("passwords do not match")
	}
	if len(req.NewPassword) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	user, err := s.store.GetUserByID(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user.IsDeleted {
		return errors.New("account is deleted")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return errors.New("current password is incorrect")
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, req.UserID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
