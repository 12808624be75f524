package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shoply/fulfillment-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

// The user directory is read-only from the core: role/status checks and
// email lookup, nothing else.

func (r *postgresRepo) GetUserByID(ctx context.Context, userID string) (entities.User, error) {
	query, args := r.qb.Select("id", "name", "email", "role", "status").
		From("users").
		Where(sq.Eq{"id": userID}).
		MustSql()

	var u User
	err := r.getContext(ctx, &u, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.User{}, entities.ErrUserNotFound
	}
	if err != nil {
		return entities.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return UserToEntity(u), nil
}

func (r *postgresRepo) GetUserByEmail(ctx context.Context, email string) (entities.User, error) {
	query, args := r.qb.Select("id", "name", "email", "role", "status").
		From("users").
		Where(sq.Eq{"email": email}).
		MustSql()

	var u User
	err := r.getContext(ctx, &u, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.User{}, entities.ErrUserNotFound
	}
	if err != nil {
		return entities.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return UserToEntity(u), nil
}
