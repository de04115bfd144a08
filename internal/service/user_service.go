package service

import (
	"context"
	"errors"
	"fmt"

	"kitstore/internal/models"
	"kitstore/internal/store"
	"kitstore/internal/util"

	"go.uber.org/zap"
)

// Identity is what the bearer token says about the caller
type Identity struct {
	ExternalID string
	Email      string
	Name       string
}

// UserService mirrors identity provider users into the database
type UserService struct {
	users  UserRepository
	logger *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(users UserRepository) *UserService {
	return &UserService{users: users, logger: util.GetLogger()}
}

// GetCurrentUser returns the stored profile for externalID
func (s *UserService) GetCurrentUser(ctx context.Context, externalID string) (*models.User, error) {
	user, err := s.users.GetUserByExternalID(ctx, externalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, "User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate returns the existing profile or creates it. created reports which happened.
func (s *UserService) GetOrCreate(ctx context.Context, id Identity) (user *models.User, created bool, err error) {
	if id.ExternalID == "" {
		return nil, false, newError(ErrUnauthenticated, "Unauthorized")
	}

	user, err = s.users.GetUserByExternalID(ctx, id.ExternalID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}

	if id.Email == "" {
		return nil, false, newError(ErrValidation, "email is required")
	}

	user = &models.User{ExternalID: id.ExternalID, Email: id.Email, Name: id.Name}
	err = s.users.CreateUser(ctx, user)
	if errors.Is(err, store.ErrDuplicate) {
		// Lost a race with a concurrent first request for the same subject.
		user, err = s.users.GetUserByExternalID(ctx, id.ExternalID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to reload user: %w", err)
		}
		return user, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User created", zap.String("user_id", user.ID.String()), zap.String("external_id", user.ExternalID))
	return user, true, nil
}

// Resolve maps a verified identity to a stored user, creating it on first sight
// when the token carries an email. Without one the caller is unauthenticated.
func (s *UserService) Resolve(ctx context.Context, id Identity) (*models.User, error) {
	user, err := s.users.GetUserByExternalID(ctx, id.ExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if id.Email == "" {
		return nil, newError(ErrUnauthenticated, "User not registered")
	}

	user, _, err = s.GetOrCreate(ctx, id)
	return user, err
}
