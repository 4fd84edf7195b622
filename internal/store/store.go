// Package store defines the credential-store capability contract.
//
// Two variants implement it: a PostgreSQL-backed store used when a managed
// database is configured, and a flat-file store holding all users in one
// JSON document. The variant is chosen once at process start and injected;
// nothing in the repository layer branches on storage mode per call.
package store

import (
	"context"

	"github.com/prakulphogat2922-ctrl/AleartECO/internal/domain"
)

// Store is the persistence contract for user records.
//
// Lookups that miss return apperrors.ErrNotFound so callers can distinguish
// an absent record from a storage failure. Email comparisons are
// case-insensitive in every implementation.
type Store interface {
	// Insert adds a new user. Fails with an already-exists error when a
	// record with the same email (any case) is present.
	Insert(ctx context.Context, user *domain.User) error

	// FindByID retrieves a user by their unique identifier.
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// FindByEmail retrieves a user by email, compared case-insensitively.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update modifies an existing user, keyed by ID.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user by ID.
	Delete(ctx context.Context, id string) error

	// ListAll returns every user, most recently created first.
	ListAll(ctx context.Context) ([]domain.User, error)
}
