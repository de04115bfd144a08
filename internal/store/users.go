package store

import (
	"context"
	"fmt"

	"kitstore/internal/models"

	"github.com/google/uuid"
)

// CreateUser inserts a user; ErrDuplicate when the external id is already taken
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, external_id, email, name, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := s.db.GetContext(ctx, &user.CreatedAt, query,
		user.ID, user.ExternalID, user.Email, user.Name, user.IsAdmin)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", user.ExternalID, ErrDuplicate)
	}
	return err
}

// GetUserByExternalID retrieves a user by identity provider subject
func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE external_id = $1", externalID)
	if err != nil {
		return nil, notFound(err, "user", externalID)
	}
	return &user, nil
}
