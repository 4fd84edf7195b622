package service

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/prakulphogat2922-ctrl/AleartECO/pkg/errors"

	"github.com/prakulphogat2922-ctrl/AleartECO/internal/auth"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/domain"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/event"
)

// --- Mock Store ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Insert(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) ListAll(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

// --- Mock Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishUser(ctx context.Context, eventType string, u *domain.User) error {
	args := m.Called(ctx, eventType, u)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(st *mockStore) *UserService {
	tokens := auth.NewTokenManager("test-secret-key-for-testing", time.Hour)
	return NewUserService(st, tokens, nil, newTestLogger())
}

// hashForTest creates a bcrypt hash with cost 4 for fast tests.
func hashForTest(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), 4)
	if err != nil {
		panic(err)
	}
	return string(h)
}

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	st.On("FindByEmail", ctx, "Ada@Example.com").Return(nil, apperrors.ErrNotFound)
	st.On("Insert", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	user, token, err := svc.Register(ctx, RegisterInput{
		Name:     "Ada",
		Email:    "Ada@Example.com",
		Password: "Secret123",
	})

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, domain.ProviderManual, user.LoginProvider)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2a$"))
	assert.NotEqual(t, "Secret123", user.PasswordHash)
	assert.NotEmpty(t, token)
	assert.NotZero(t, user.CreatedAt)
	assert.NotNil(t, user.LastLogin)

	st.AssertExpectations(t)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	existing := &domain.User{ID: "u1", Email: "ada@example.com"}
	st.On("FindByEmail", ctx, "ADA@EXAMPLE.COM").Return(existing, nil)

	_, _, err := svc.Register(ctx, RegisterInput{
		Name:     "Ada",
		Email:    "ADA@EXAMPLE.COM",
		Password: "Secret123",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	st.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestRegister_WeakPassword(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)

	cases := []string{"short1A", "alllowercase1", "ALLUPPERCASE1", "NoDigitsHere"}
	for _, password := range cases {
		_, _, err := svc.Register(context.Background(), RegisterInput{
			Name:     "Ada",
			Email:    "ada@example.com",
			Password: password,
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "password %q should be rejected", password)
	}

	st.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestRegister_InvalidName(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)

	for _, name := range []string{"", "A", "R2-D2", "Bob99"} {
		_, _, err := svc.Register(context.Background(), RegisterInput{
			Name:     name,
			Email:    "ada@example.com",
			Password: "Secret123",
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "name %q should be rejected", name)
	}
}

// --- Login Tests ---

func TestLogin_Success(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	existing := &domain.User{
		ID:           "u1",
		Email:        "ada@example.com",
		PasswordHash: hashForTest("Secret123"),
	}
	st.On("FindByEmail", ctx, "ada@example.com").Return(existing, nil)
	st.On("Update", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	user, token, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "Secret123"})

	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.NotEmpty(t, token)

	// The returned record carries the login that just happened, not a
	// stale pre-login stamp.
	require.NotNil(t, user.LastLogin)
	assert.WithinDuration(t, time.Now().UTC(), *user.LastLogin, 5*time.Second)
}

func TestLogin_WrongPassword(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	existing := &domain.User{
		ID:           "u1",
		Email:        "ada@example.com",
		PasswordHash: hashForTest("Secret123"),
	}
	st.On("FindByEmail", ctx, "ada@example.com").Return(existing, nil)

	_, _, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "WrongPass1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_UnknownEmail(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	st.On("FindByEmail", ctx, "nobody@example.com").Return(nil, apperrors.ErrNotFound)

	_, _, err := svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "Secret123"})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_UpdateLastLoginFailureDoesNotBlock(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	existing := &domain.User{
		ID:           "u1",
		Email:        "ada@example.com",
		PasswordHash: hashForTest("Secret123"),
	}
	st.On("FindByEmail", ctx, "ada@example.com").Return(existing, nil)
	st.On("Update", ctx, mock.AnythingOfType("*domain.User")).Return(assert.AnError)

	user, token, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "Secret123"})

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	// The in-memory stamp survives the failed persist.
	assert.NotNil(t, user.LastLogin)
}

// --- Password handling ---

func TestComparePassword_NoStoredHash(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)

	u := &domain.User{ID: "u1", LoginProvider: domain.ProviderGoogle}
	assert.False(t, svc.ComparePassword(u, ""))
	assert.False(t, svc.ComparePassword(u, "anything"))
	assert.False(t, svc.ComparePassword(u, "Secret123"))
}

func TestSave_DoesNotRehashExistingHash(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	original := hashForTest("Secret123")
	u := &domain.User{ID: "u1", Email: "ada@example.com", PasswordHash: original}

	st.On("Update", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	saved, err := svc.Save(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, original, saved.PasswordHash)

	saved, err = svc.Save(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, original, saved.PasswordHash)
}

func TestSave_HashesPlaintextPassword(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	u := &domain.User{ID: "u1", Email: "ada@example.com", PasswordHash: "NewSecret123"}
	st.On("Update", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	saved, err := svc.Save(ctx, u)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(saved.PasswordHash, "$2a$"))
	assert.True(t, svc.ComparePassword(saved, "NewSecret123"))
}

// --- Google bridge ---

func TestGoogleAuth_CreatesUserOnFirstSight(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	st.On("FindByEmail", ctx, "ada@gmail.com").Return(nil, apperrors.ErrNotFound)
	st.On("Insert", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
	st.On("Update", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	user, token, err := svc.GoogleAuth(ctx, GoogleProfile{
		Subject:       "google-sub-1",
		Email:         "ada@gmail.com",
		Name:          "Ada Lovelace",
		EmailVerified: true,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGoogle, user.LoginProvider)
	assert.True(t, user.IsVerified)
	assert.False(t, user.HasPassword())
	assert.NotEmpty(t, token)

	// Provider-created accounts never authenticate via password.
	assert.False(t, svc.ComparePassword(user, "anything"))
}

func TestGoogleAuth_ExistingUser(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	existing := &domain.User{
		ID:            "u1",
		Email:         "ada@gmail.com",
		Name:          "Ada",
		LoginProvider: domain.ProviderGoogle,
	}
	st.On("FindByEmail", ctx, "ada@gmail.com").Return(existing, nil)
	st.On("Update", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	user, _, err := svc.GoogleAuth(ctx, GoogleProfile{
		Subject:       "google-sub-1",
		Email:         "ada@gmail.com",
		Name:          "Ada",
		Picture:       "https://example.com/pic.png",
		EmailVerified: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, user.IsVerified)
	assert.Equal(t, "https://example.com/pic.png", user.Profile["picture"])
	st.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

// --- Repository contract ---

func TestFindByEmail_AbsentIsNotAnError(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	st.On("FindByEmail", ctx, "nobody@example.com").Return(nil, apperrors.ErrNotFound)

	u, err := svc.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestFindByEmail_StorageFailureIsAnError(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	st.On("FindByEmail", ctx, "ada@example.com").Return(nil, assert.AnError)

	_, err := svc.FindByEmail(ctx, "ada@example.com")
	require.Error(t, err)
	assert.NotContains(t, apperrors.UserMessage(err, false), assert.AnError.Error())
}

func TestDeleteByID(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	st.On("FindByID", ctx, "u1").Return(&domain.User{ID: "u1", Email: "ada@example.com"}, nil)
	st.On("Delete", ctx, "u1").Return(nil)
	st.On("FindByID", ctx, "missing").Return(nil, apperrors.ErrNotFound)

	ok, err := svc.DeleteByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.DeleteByID(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	st.AssertNotCalled(t, "Delete", ctx, "missing")
}

func TestDeleteByID_PublishesDeletedEvent(t *testing.T) {
	st := new(mockStore)
	pub := new(mockPublisher)
	tokens := auth.NewTokenManager("test-secret-key-for-testing", time.Hour)
	svc := NewUserService(st, tokens, pub, newTestLogger())
	ctx := context.Background()

	st.On("FindByID", ctx, "u1").Return(&domain.User{ID: "u1", Email: "ada@example.com"}, nil)
	st.On("Delete", ctx, "u1").Return(nil)
	pub.On("PublishUser", ctx, event.UserDeleted, mock.AnythingOfType("*domain.User")).Return(nil)

	ok, err := svc.DeleteByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	pub.AssertExpectations(t)
}

func TestStats(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	now := time.Now().UTC()
	u := &domain.User{
		ID:            "u1",
		CreatedAt:     now.Add(-24 * time.Hour),
		LastLogin:     &now,
		IsVerified:    true,
		LoginProvider: domain.ProviderManual,
	}
	st.On("ListAll", ctx).Return([]domain.User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}, nil)

	stats, err := svc.Stats(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, u.CreatedAt, stats.MemberSince)
	assert.True(t, stats.IsVerified)
}
