// Package file implements the credential store on a single JSON document.
//
// It is the fallback used when no managed database is configured. Every
// write loads the whole document, mutates it in memory, and writes it back.
// A process-local mutex serializes access; concurrent processes sharing the
// same file can still lose updates, which limits this mode to
// single-instance deployments.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/prakulphogat2922-ctrl/AleartECO/pkg/errors"

	"github.com/prakulphogat2922-ctrl/AleartECO/internal/domain"
)

// record is the on-disk shape of a user. Field names use the client-facing
// camelCase convention; translation to domain.User happens on every
// load/save. Unlike the API wire format, the stored record carries the
// password hash.
type record struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	Name          string         `json:"name"`
	Password      string         `json:"password,omitempty"`
	IsVerified    bool           `json:"isVerified"`
	LoginProvider string         `json:"loginProvider"`
	Profile       map[string]any `json:"profile,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	LastLogin     *time.Time     `json:"lastLogin,omitempty"`
}

func toRecord(u *domain.User) record {
	return record{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Password:      u.PasswordHash,
		IsVerified:    u.IsVerified,
		LoginProvider: u.LoginProvider,
		Profile:       u.Profile,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
		LastLogin:     u.LastLogin,
	}
}

func (r record) toDomain() domain.User {
	return domain.User{
		ID:            r.ID,
		Email:         r.Email,
		Name:          r.Name,
		PasswordHash:  r.Password,
		IsVerified:    r.IsVerified,
		LoginProvider: r.LoginProvider,
		Profile:       r.Profile,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		LastLogin:     r.LastLogin,
	}
}

// Store implements store.Store on a flat JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a file-backed store persisting to the given path.
// The parent directory is created on first write if missing.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Insert adds a new user after checking email uniqueness case-insensitively.
func (s *Store) Insert(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	for _, r := range records {
		if strings.EqualFold(r.Email, u.Email) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
	}

	records = append(records, toRecord(u))
	return s.save(records)
}

// FindByID retrieves a user by their ID.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		if r.ID == id {
			u := r.toDomain()
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// FindByEmail retrieves a user by email, compared case-insensitively.
func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		if strings.EqualFold(r.Email, email) {
			u := r.toDomain()
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// Update replaces the stored record with the same ID. Email uniqueness is
// enforced here too so an update cannot claim another record's address.
func (s *Store) Update(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	for _, r := range records {
		if r.ID != u.ID && strings.EqualFold(r.Email, u.Email) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
	}

	for i, r := range records {
		if r.ID == u.ID {
			records[i] = toRecord(u)
			return s.save(records)
		}
	}
	return apperrors.NotFound("user", u.ID)
}

// Delete removes the record with the given ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	for i, r := range records {
		if r.ID == id {
			records = append(records[:i], records[i+1:]...)
			return s.save(records)
		}
	}
	return apperrors.NotFound("user", id)
}

// ListAll returns every user, most recently created first.
func (s *Store) ListAll(ctx context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(records))
	for _, r := range records {
		users = append(users, r.toDomain())
	}

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})

	return users, nil
}

// Init creates the data directory and verifies the document parses. Called
// once at startup so a corrupt file fails the boot, not the first request.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	_, err := s.load()
	return err
}

// Ping reports whether the store document is readable.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.load()
	return err
}

// load reads the whole document. A missing file is an empty store.
func (s *Store) load() ([]record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read user file: %w", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode user file: %w", err)
	}
	return records, nil
}

// save writes the whole document back. There is no atomic rename; a crash
// mid-write can truncate the file. Acceptable for the dev/single-instance
// deployments this mode targets.
func (s *Store) save(records []record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user file: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write user file: %w", err)
	}
	return nil
}
