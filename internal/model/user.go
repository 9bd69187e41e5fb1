// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the authorization level of a user account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Login methods recorded on the user row.
const (
	LoginGitHub = "github"
	LoginLocal  = "local"
)

// User represents a registered user account.
//
// OpenID is the stable external identity handed to us by the identity
// provider, namespaced by provider: "github:1234567" or "local:ada@example.com".
// The UNIQUE constraint on open_id means one external identity maps to
// exactly one account. ID is our own internal xid; every owned row points at it.
//
// WHY PasswordHash HAS json:"-"?
// The struct is returned verbatim from /api/auth/me. The tag guarantees the
// bcrypt hash never leaves the server, even if a handler forgets to scrub it.
type User struct {
	ID           string    `json:"id"           db:"id"`
	OpenID       string    `json:"openId"       db:"open_id"`
	Name         string    `json:"name"         db:"name"`
	Email        string    `json:"email"        db:"email"` // may be empty (hidden GitHub email)
	LoginMethod  string    `json:"loginMethod"  db:"login_method"`
	Role         Role      `json:"role"         db:"role"`
	PasswordHash string    `json:"-"            db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt"    db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"    db:"updated_at"`
	LastSignedIn time.Time `json:"lastSignedIn" db:"last_signed_in"`
}

// IsAdmin reports whether the account carries the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
