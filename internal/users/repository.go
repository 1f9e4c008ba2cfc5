package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/station2100/station/internal/rbac"
)

const userColumns = `id, email, name, is_active, is_admin, created_at, updated_at`

// Repository provides persistence for users.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindActor loads the authorization view of a user.
func (r *Repository) FindActor(ctx context.Context, id uuid.UUID) (rbac.Actor, error) {
	user, err := r.GetUser(ctx, id)
	if err != nil {
		return rbac.Actor{}, err
	}
	return user.Actor(), nil
}

// GetUser fetches a user by ID.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByEmail fetches a user by case-insensitive email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// ListUsers returns all users ordered by email.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: iterate: %w", err)
	}
	return users, nil
}

// SetActive toggles the user's active flag.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, active))
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsActive, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("users: scan: %w", err)
	}
	return u, nil
}
