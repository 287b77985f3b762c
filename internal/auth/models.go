package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is an authenticatable account.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Token is an issued session token, kept for revocation.
type Token struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey is a scoped credential. Scopes restrict what the owning user may
// execute, never expand it; the permission gate checks them before the
// user's own level.
type APIKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"user_id"`
	KeyPrefix string    `json:"key_prefix"`
	KeyHash   string    `json:"-"`
	Scopes    []string  `json:"scopes"`
	IsActive  bool      `json:"is_active"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	LastUsed  time.Time `json:"last_used,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Claims are the JWT claims carried by session tokens.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// LoginResponse is returned on successful authentication.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	User      User   `json:"user"`
}

// CreateAPIKeyRequest describes a new scoped credential.
type CreateAPIKeyRequest struct {
	Name      string   `json:"name"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int64    `json:"expires_in,omitempty"` // seconds; 0 means no expiry
}

// CreateAPIKeyResponse carries the key material exactly once.
type CreateAPIKeyResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Key       string     `json:"key"` // Only returned once!
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Identity is the resolved caller of an API request. Scopes is nil for
// session-authenticated callers and non-nil (possibly empty) for API-key
// callers.
type Identity struct {
	UserID   string
	Username string
	Role     string
	Scopes   []string
}
