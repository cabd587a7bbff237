// Package repository adapts the Credential Store port to Postgres via pgx.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wrenhollow/aegis/internal/identity/core/domain"
)

type sqlUser struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: pool}
}

func (r *PostgresRepo) Insert(ctx context.Context, user *domain.User) error {
	q := `
		INSERT INTO users (id, email, first_name, last_name, password_hash, is_verified, created_at, updated_at)
		VALUES (@id, @email, @first_name, @last_name, @password_hash, @is_verified, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":            user.ID,
		"email":         user.Email,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"password_hash": user.PasswordHash,
		"is_verified":   user.IsVerified,
		"created_at":    user.CreatedAt,
		"updated_at":    user.UpdatedAt,
	}

	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return r.handleError(err)
	}
	return nil
}

func (r *PostgresRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := `SELECT id, email, first_name, last_name, password_hash, is_verified, created_at, updated_at FROM users WHERE email = $1`

	var u sqlUser
	err := r.db.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("db: find by email: %w", err)
	}

	return r.toDomain(&u), nil
}

func (r *PostgresRepo) UpdateVerified(ctx context.Context, userID string, verified bool) error {
	q := `UPDATE users SET is_verified = @is_verified, updated_at = @updated_at WHERE id = @id`
	args := pgx.NamedArgs{
		"id":          userID,
		"is_verified": verified,
		"updated_at":  time.Now().UTC(),
	}

	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return r.handleError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepo) toDomain(u *sqlUser) *domain.User {
	return &domain.User{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		IsVerified:   u.IsVerified,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// handleError translates Postgres error codes into domain sentinels; 23505
// is the unique-violation code, hit only on the email column here.
func (r *PostgresRepo) handleError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrEmailAlreadyExists
	}
	return err
}
