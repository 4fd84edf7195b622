package domain

import (
	"time"
)

// Login providers recognized by the platform.
const (
	ProviderManual = "manual"
	ProviderGoogle = "google"
)

// User represents a registered AleartECO user.
//
// JSON field names follow the client-facing camelCase convention; the
// PostgreSQL store maps them to snake_case columns on every load/save.
// PasswordHash is never serialized. A user created through the Google
// sign-in bridge has no password hash and can only authenticate via the
// provider path.
type User struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	Name          string         `json:"name"`
	PasswordHash  string         `json:"-"`
	IsVerified    bool           `json:"isVerified"`
	LoginProvider string         `json:"loginProvider"`
	Profile       map[string]any `json:"profile,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	LastLogin     *time.Time     `json:"lastLogin,omitempty"`
}

// HasPassword reports whether the user has a stored password hash.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Stats summarizes account and community information for the stats endpoint.
type Stats struct {
	MemberSince time.Time  `json:"memberSince"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	IsVerified  bool       `json:"isVerified"`
	Provider    string     `json:"loginProvider"`
	TotalUsers  int        `json:"totalUsers"`
}
