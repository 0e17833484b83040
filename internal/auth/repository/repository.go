package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User represents the user database model.
type User struct {
	ID           uuid.UUID `db:"id"`
	TenantID     uuid.UUID `db:"tenant_id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Name         string    `db:"name"`
	Phone        *string   `db:"phone"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
}

// Repository provides database operations for users and roles.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new auth repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByEmail retrieves an active user by email address.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	query := `SELECT id, tenant_id, email, password_hash, name, phone, is_active, created_at
		FROM users WHERE lower(email) = lower($1) AND is_active = true`

	err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// GetUserRoles retrieves the role names assigned to a user.
func (r *Repository) GetUserRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	defer rows.Close()

	roles := make([]string, 0)
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}

// ListByRole retrieves the active users of a tenant holding a role.
func (r *Repository) ListByRole(ctx context.Context, tenantID uuid.UUID, role string) ([]User, error) {
	query := `SELECT u.id, u.tenant_id, u.email, u.password_hash, u.name, u.phone, u.is_active, u.created_at
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		WHERE u.tenant_id = $1 AND ur.role = $2 AND u.is_active = true
		ORDER BY u.name ASC`

	rows, err := r.pool.Query(ctx, query, tenantID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.IsActive, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// GetContact retrieves the name, email and phone of a user for notifications.
func (r *Repository) GetContact(ctx context.Context, userID uuid.UUID) (name, email string, phone *string, err error) {
	query := `SELECT name, email, phone FROM users WHERE id = $1`

	err = r.pool.QueryRow(ctx, query, userID).Scan(&name, &email, &phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", nil, apperr.NotFound("user not found")
		}
		return "", "", nil, fmt.Errorf("failed to get user contact: %w", err)
	}

	return name, email, phone, nil
}
