package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/prakulphogat2922-ctrl/AleartECO/pkg/errors"

	"github.com/prakulphogat2922-ctrl/AleartECO/internal/domain"
)

// DB is the subset of pgxpool.Pool used by the store. pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store using PostgreSQL.
type Store struct {
	db DB
}

// NewStore creates a new PostgreSQL-backed user store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const userColumns = `id, email, name, password_hash, is_verified, login_provider, profile, created_at, updated_at, last_login`

// Insert adds a new user to the database.
func (s *Store) Insert(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, is_verified, login_provider, profile, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.Exec(ctx, query,
		u.ID,
		strings.ToLower(u.Email),
		u.Name,
		u.PasswordHash,
		u.IsVerified,
		u.LoginProvider,
		u.Profile,
		u.CreatedAt,
		u.UpdatedAt,
		u.LastLogin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID retrieves a user by their ID.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(ctx, query, id)
}

// FindByEmail retrieves a user by email. The comparison is case-insensitive;
// emails are stored lower-cased but older rows may predate that rule.
func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return s.scanUser(ctx, query, email)
}

// Update modifies an existing user, keyed by immutable ID.
func (s *Store) Update(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users
		SET email = $1, name = $2, password_hash = $3, is_verified = $4,
		    login_provider = $5, profile = $6, updated_at = $7, last_login = $8
		WHERE id = $9`

	ct, err := s.db.Exec(ctx, query,
		strings.ToLower(u.Email),
		u.Name,
		u.PasswordHash,
		u.IsVerified,
		u.LoginProvider,
		u.Profile,
		u.UpdatedAt,
		u.LastLogin,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}

	return nil
}

// Delete removes a user from the database by their ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}

	return nil
}

// ListAll returns every user, most recently created first.
func (s *Store) ListAll(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := scanInto(rows, &u); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}

	if users == nil {
		users = []domain.User{}
	}

	return users, nil
}

// scanUser executes a query expected to return a single user row.
func (s *Store) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User
	if err := scanInto(s.db.QueryRow(ctx, query, args...), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// scanInto reads one user row in the userColumns order.
func scanInto(row pgx.Row, u *domain.User) error {
	return row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.IsVerified,
		&u.LoginProvider,
		&u.Profile,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastLogin,
	)
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
