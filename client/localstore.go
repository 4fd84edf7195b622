package client

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Well-known keys inside the local storage document. They are not
// namespaced per backend; switching deployments without clearing the store
// is unsupported.
const (
	keyUser            = "alearteco_user"
	keyToken           = "alearteco_token"
	keyOfflineAccounts = "alearteco_offline_accounts"
)

// OfflineAccount is a browser-local shadow of a user record. It never syncs
// with the backend; the password is kept as a SHA-256 verifier, which is
// deliberately weaker protection than the backend's hashing.
type OfflineAccount struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordVerifier string     `json:"passwordVerifier"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
	IsOffline        bool       `json:"isOffline"`
}

// LocalStore is the client's persistent key-value storage, one JSON
// document on disk. All access goes through a mutex; every mutation is a
// load-mutate-save of the whole document.
type LocalStore struct {
	mu   sync.Mutex
	path string
}

// NewLocalStore creates a store backed by the given file path.
func NewLocalStore(path string) *LocalStore {
	return &LocalStore{path: path}
}

type document map[string]json.RawMessage

func (s *LocalStore) load() (document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return document{}, nil
		}
		return nil, fmt.Errorf("read local store: %w", err)
	}
	if len(data) == 0 {
		return document{}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode local store: %w", err)
	}
	return doc, nil
}

func (s *LocalStore) save(doc document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write local store: %w", err)
	}
	return nil
}

// LoadSession returns the cached user and token, either of which may be
// absent. A corrupt document reads as an empty session.
func (s *LocalStore) LoadSession() (*User, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, ""
	}

	var u *User
	if raw, ok := doc[keyUser]; ok {
		u = &User{}
		if err := json.Unmarshal(raw, u); err != nil {
			u = nil
		}
	}

	var token string
	if raw, ok := doc[keyToken]; ok {
		_ = json.Unmarshal(raw, &token)
	}

	return u, token
}

// SaveSession caches the user and token.
func (s *LocalStore) SaveSession(u *User, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		doc = document{}
	}

	userRaw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode cached user: %w", err)
	}
	tokenRaw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode cached token: %w", err)
	}

	doc[keyUser] = userRaw
	doc[keyToken] = tokenRaw
	return s.save(doc)
}

// ClearSession removes the cached user and token, leaving offline accounts
// intact.
func (s *LocalStore) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		doc = document{}
	}
	delete(doc, keyUser)
	delete(doc, keyToken)
	return s.save(doc)
}

// offlineAccounts reads the offline account list from a loaded document.
func offlineAccounts(doc document) []OfflineAccount {
	raw, ok := doc[keyOfflineAccounts]
	if !ok {
		return nil
	}
	var accounts []OfflineAccount
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil
	}
	return accounts
}

// FindOfflineAccount looks an offline account up by email, case-insensitively.
func (s *LocalStore) FindOfflineAccount(email string) *OfflineAccount {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil
	}
	for _, acc := range offlineAccounts(doc) {
		if strings.EqualFold(acc.Email, email) {
			a := acc
			return &a
		}
	}
	return nil
}

// AddOfflineAccount appends a new offline account, rejecting duplicates by
// email.
func (s *LocalStore) AddOfflineAccount(acc OfflineAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		doc = document{}
	}

	accounts := offlineAccounts(doc)
	for _, existing := range accounts {
		if strings.EqualFold(existing.Email, acc.Email) {
			return fmt.Errorf("offline account already registered for %s", strings.ToLower(acc.Email))
		}
	}

	accounts = append(accounts, acc)
	raw, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("encode offline accounts: %w", err)
	}
	doc[keyOfflineAccounts] = raw
	return s.save(doc)
}

// TouchOfflineAccount stamps the account's last login. Best-effort.
func (s *LocalStore) TouchOfflineAccount(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return
	}
	accounts := offlineAccounts(doc)
	now := time.Now().UTC()
	for i := range accounts {
		if strings.EqualFold(accounts[i].Email, email) {
			accounts[i].LastLogin = &now
		}
	}
	if raw, err := json.Marshal(accounts); err == nil {
		doc[keyOfflineAccounts] = raw
		_ = s.save(doc)
	}
}

// PasswordVerifier derives the stored verifier for an offline password.
func PasswordVerifier(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyOfflinePassword compares a candidate against an account's stored
// verifier in constant time.
func VerifyOfflinePassword(acc *OfflineAccount, candidate string) bool {
	got := PasswordVerifier(candidate)
	return subtle.ConstantTimeCompare([]byte(got), []byte(acc.PasswordVerifier)) == 1
}
