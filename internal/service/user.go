package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/prakulphogat2922-ctrl/AleartECO/pkg/errors"

	"github.com/prakulphogat2922-ctrl/AleartECO/internal/auth"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/domain"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/event"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/store"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// dummyHash is compared against when a user has no stored password so the
// reject path does comparable work to a real mismatch.
var dummyHash = []byte("$2a$12$K8H0knMp8nbcYCcMkXUq7uPZtQmOBeQsJtgJHZQQ3AC6VhrUFudji")

// EventPublisher emits user lifecycle events. *event.Producer implements it;
// a nil publisher disables event emission.
type EventPublisher interface {
	PublishUser(ctx context.Context, eventType string, u *domain.User) error
}

// UserService implements user persistence and authentication operations on
// top of a credential store chosen at startup.
type UserService struct {
	store    store.Store
	tokens   *auth.TokenManager
	producer EventPublisher
	logger   *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(st store.Store, tokens *auth.TokenManager, producer EventPublisher, logger *slog.Logger) *UserService {
	return &UserService{
		store:    st,
		tokens:   tokens,
		producer: producer,
		logger:   logger,
	}
}

// --- Input types ---

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
}

// GoogleProfile carries the identity fields decoded from a Google identity
// assertion by the client.
type GoogleProfile struct {
	Subject       string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

// UpdateProfileInput holds the parameters for updating a user's profile.
type UpdateProfileInput struct {
	Name    *string
	Profile map[string]any
}

// --- Repository operations ---

// FindByEmail looks a user up case-insensitively. An absent record is
// (nil, nil), not an error; only unexpected storage failures error.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		s.logger.ErrorContext(ctx, "user lookup by email failed", slog.String("error", err.Error()))
		return nil, apperrors.Internal("database query failed", err)
	}
	return u, nil
}

// FindByID looks a user up by ID with the same absent-is-not-an-error contract.
func (s *UserService) FindByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		s.logger.ErrorContext(ctx, "user lookup by id failed", slog.String("error", err.Error()))
		return nil, apperrors.Internal("database query failed", err)
	}
	return u, nil
}

// Create validates uniqueness, generates the immutable ID, hashes a
// plaintext password if one was supplied, stamps timestamps, and persists.
// No partial record survives a storage failure.
func (s *UserService) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	existing, err := s.FindByEmail(ctx, u.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.AlreadyExists("user", "email", u.Email)
	}

	now := time.Now().UTC()
	u.ID = uuid.New().String()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = now
	u.UpdatedAt = now
	u.LastLogin = &now
	if u.LoginProvider == "" {
		u.LoginProvider = domain.ProviderManual
	}

	if err := s.hashPassword(u); err != nil {
		return nil, err
	}

	if err := s.store.Insert(ctx, u); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "user creation failed", slog.String("error", err.Error()))
		return nil, apperrors.Internal("failed to create user", err)
	}

	return u, nil
}

// Save updates the mutable fields of a previously loaded record,
// re-stamping updated_at. ID and created_at are preserved.
func (s *UserService) Save(ctx context.Context, u *domain.User) (*domain.User, error) {
	u.UpdatedAt = time.Now().UTC()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	if err := s.hashPassword(u); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, u); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "user update failed", slog.String("error", err.Error()))
		return nil, apperrors.Internal("failed to update user", err)
	}

	return u, nil
}

// UpdateLastLogin stamps the user's last-login time on the record in hand
// and persists it. Best-effort: persistence failures are logged and never
// propagated, so a slow or broken store cannot block a login that already
// authenticated. The in-memory stamp stays either way, so callers hand back
// a record carrying the login they just performed.
func (s *UserService) UpdateLastLogin(ctx context.Context, u *domain.User) {
	now := time.Now().UTC()
	u.LastLogin = &now
	if err := s.store.Update(ctx, u); err != nil {
		s.logger.WarnContext(ctx, "last-login update failed",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}
}

// ListUsers returns all users, most recently created first.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// DeleteByID removes a user record. Returns false when no record existed.
func (s *UserService) DeleteByID(ctx context.Context, id string) (bool, error) {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, nil
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete user: %w", err)
	}

	s.publish(ctx, event.UserDeleted, u)
	return true, nil
}

// ComparePassword checks a plaintext candidate against the stored hash.
// A user without a stored hash (provider-created account) always fails,
// after burning comparable work to a real mismatch.
func (s *UserService) ComparePassword(u *domain.User, candidate string) bool {
	if !u.HasPassword() {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(candidate))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(candidate)) == nil
}

// --- Auth operations ---

// Register creates a manual account and returns it with a signed token.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, string, error) {
	if err := validateName(input.Name); err != nil {
		return nil, "", err
	}
	if input.Email == "" {
		return nil, "", apperrors.InvalidInput("email is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, "", err
	}

	u := &domain.User{
		Name:          strings.TrimSpace(input.Name),
		Email:         input.Email,
		PasswordHash:  input.Password,
		LoginProvider: domain.ProviderManual,
	}

	created, err := s.Create(ctx, u)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(created.ID, created.Email)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	s.publish(ctx, event.UserRegistered, created)

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", created.ID),
		slog.String("email", created.Email),
	)

	return created, token, nil
}

// Login authenticates a manual account by email and password.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*domain.User, string, error) {
	if input.Email == "" {
		return nil, "", apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, "", apperrors.InvalidInput("password is required")
	}

	u, err := s.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, "", err
	}
	if u == nil || !s.ComparePassword(u, input.Password) {
		return nil, "", apperrors.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	s.UpdateLastLogin(ctx, u)

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", u.ID),
	)

	return u, token, nil
}

// GoogleAuth resolves a Google identity assertion to a local user record,
// creating one on first sight of the provider identity. Accounts created
// this way carry no password hash and never authenticate via the manual
// path.
func (s *UserService) GoogleAuth(ctx context.Context, profile GoogleProfile) (*domain.User, string, error) {
	if profile.Email == "" {
		return nil, "", apperrors.InvalidInput("provider profile is missing an email")
	}

	u, err := s.FindByEmail(ctx, profile.Email)
	if err != nil {
		return nil, "", err
	}

	if u == nil {
		u = &domain.User{
			Name:          profile.Name,
			Email:         profile.Email,
			IsVerified:    profile.EmailVerified,
			LoginProvider: domain.ProviderGoogle,
			Profile:       map[string]any{"picture": profile.Picture, "googleId": profile.Subject},
		}
		if u.Name == "" {
			u.Name = profile.Email
		}
		u, err = s.Create(ctx, u)
		if err != nil {
			return nil, "", err
		}
		s.publish(ctx, event.UserRegistered, u)
	} else {
		// Refresh verification state and picture on every provider login.
		u.IsVerified = u.IsVerified || profile.EmailVerified
		if profile.Picture != "" {
			if u.Profile == nil {
				u.Profile = map[string]any{}
			}
			u.Profile["picture"] = profile.Picture
		}
		if u, err = s.Save(ctx, u); err != nil {
			return nil, "", err
		}
	}

	token, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	s.UpdateLastLogin(ctx, u)

	s.logger.InfoContext(ctx, "google sign-in",
		slog.String("user_id", u.ID),
	)

	return u, token, nil
}

// UpdateProfile updates a user's mutable profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, u *domain.User, input UpdateProfileInput) (*domain.User, error) {
	if input.Name != nil {
		if err := validateName(*input.Name); err != nil {
			return nil, err
		}
		u.Name = strings.TrimSpace(*input.Name)
	}
	if input.Profile != nil {
		if u.Profile == nil {
			u.Profile = map[string]any{}
		}
		for k, v := range input.Profile {
			u.Profile[k] = v
		}
	}

	updated, err := s.Save(ctx, u)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.UserUpdated, updated)

	s.logger.InfoContext(ctx, "profile updated",
		slog.String("user_id", updated.ID),
	)

	return updated, nil
}

// Stats returns account and community statistics for the given user.
func (s *UserService) Stats(ctx context.Context, u *domain.User) (*domain.Stats, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.Stats{
		MemberSince: u.CreatedAt,
		LastLogin:   u.LastLogin,
		IsVerified:  u.IsVerified,
		Provider:    u.LoginProvider,
		TotalUsers:  len(users),
	}, nil
}

// --- Helpers ---

// hashPassword applies bcrypt to a plaintext password. Values already
// bearing a bcrypt prefix are left untouched so repeated saves never
// re-hash a hash.
func (s *UserService) hashPassword(u *domain.User) error {
	if u.PasswordHash == "" || looksHashed(u.PasswordHash) {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(u.PasswordHash), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hashed)
	return nil
}

// looksHashed reports whether the value already carries a bcrypt prefix.
func looksHashed(v string) bool {
	return strings.HasPrefix(v, "$2a$") || strings.HasPrefix(v, "$2b$") || strings.HasPrefix(v, "$2y$")
}

// publish emits a user event, logging instead of failing the caller.
func (s *UserService) publish(ctx context.Context, eventType string, u *domain.User) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishUser(ctx, eventType, u); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user event",
			slog.String("event_type", eventType),
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}
}

// validateName requires a human-looking display name: at least two
// characters, letters and spaces only.
func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.InvalidInput("name is required")
	}
	if len([]rune(name)) < 2 {
		return apperrors.InvalidInput("name must be at least 2 characters")
	}
	for _, ch := range name {
		if !unicode.IsLetter(ch) && !unicode.IsSpace(ch) {
			return apperrors.InvalidInput("name can only contain letters and spaces")
		}
	}
	return nil
}

// validatePassword checks that the password meets minimum complexity requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
