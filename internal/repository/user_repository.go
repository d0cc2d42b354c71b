package repository

import (
	"context"
	"fmt"

	"github.com/Oliversrensen/TCG-TBD/internal/user"
)

// UserRepository is the postgres-backed user store. User ids come from the
// external identity provider, so rows are keyed by that id directly.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a user repository over the given DB.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate upserts the user and returns the stored row. An existing row
// keeps its username; the incoming name only applies on first insert.
func (r *UserRepository) GetOrCreate(ctx context.Context, id, username string) (*user.Record, error) {
	const q = `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET id = excluded.id
		RETURNING id, username`

	var rec user.Record
	if err := r.db.pool.QueryRow(ctx, q, id, username).Scan(&rec.ID, &rec.Username); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &rec, nil
}
