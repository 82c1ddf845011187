package org

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundline/fundline/internal/shared"
)

// PGRepository provides PostgreSQL backed read access to users.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetUser fetches one user row.
func (r *PGRepository) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, name, role, parent_id FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Role, &u.ParentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("org: user %d: %w", id, shared.ErrNotFound)
		}
		return User{}, err
	}
	return u, nil
}
