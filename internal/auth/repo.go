package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/articlegen/articlegen/internal/platform/db"
	"github.com/articlegen/articlegen/internal/shared"
)

const userColumns = `id::text, email, COALESCE(name, ''), COALESCE(password_hash, ''), created_at, updated_at`

// PGRepository implements Repository using PostgreSQL. Email uniqueness is
// guaranteed by the users_email_key unique index.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, shared.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, id)
	return scanUser(row)
}

// Create inserts a new user.
func (r *PGRepository) Create(ctx context.Context, in NewUser) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, NULLIF($3::text, ''))
		RETURNING `+userColumns, in.Email, in.PasswordHash, in.Name)
	user, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", shared.ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile updates name and/or email and bumps updated_at.
func (r *PGRepository) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, shared.ErrNotFound
	}
	var name string
	if upd.Name != nil {
		name = *upd.Name
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET name = CASE WHEN $2::boolean THEN NULLIF($3::text, '') ELSE name END,
		    email = COALESCE($4::text, email),
		    updated_at = now()
		WHERE id = $1::uuid
		RETURNING `+userColumns, id, upd.Name != nil, name, upd.Email)
	user, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("update user: %w", shared.ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
