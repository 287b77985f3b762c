package auth

import (
	"crypto/rand"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// keyPrefixLen is the number of leading key characters stored in clear for
// candidate lookup; the full key is only kept as a bcrypt hash.
const keyPrefixLen = 8

// Manager handles authentication: passwords, session tokens and scoped API
// keys. Authorization of individual operations lives in the permission gate,
// not here.
type Manager struct {
	jwtSecret string
	users     map[string]*User   // userID -> User
	tokens    map[string]*Token  // tokenID -> Token
	apiKeys   map[string]*APIKey // keyID -> APIKey
	passwords map[string]string  // userID -> password hash
	tokenTTL  time.Duration
	mu        sync.RWMutex
}

// NewManager creates a new auth manager
func NewManager(jwtSecret string) *Manager {
	if jwtSecret == "" {
		// Generate a random JWT secret if not provided
		jwtSecret = generateRandomSecret(32)
		log.Printf("Generated random JWT secret for session (not persistent)")
	}

	m := &Manager{
		jwtSecret: jwtSecret,
		users:     make(map[string]*User),
		tokens:    make(map[string]*Token),
		apiKeys:   make(map[string]*APIKey),
		passwords: make(map[string]string),
		tokenTTL:  24 * time.Hour,
	}

	// Create default admin user (password: admin) so a fresh daemon can be
	// bootstrapped; change the password immediately in any real deployment
	adminUser := &User{
		ID:        "user-admin",
		Username:  "admin",
		Email:     "admin@agency.local",
		Role:      "admin",
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.users[adminUser.ID] = adminUser

	passwordHash, _ := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	m.passwords[adminUser.ID] = string(passwordHash)
	log.Printf("Seeded default admin user (username: admin); change its password before exposing the API")

	return m
}

// CreateUser creates a new user
func (m *Manager) CreateUser(username, email, role, password string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username {
			return nil, fmt.Errorf("username already exists")
		}
	}

	userID := generateRandomID()
	user := &User{
		ID:        userID,
		Username:  username,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	m.passwords[userID] = string(passwordHash)
	m.users[userID] = user

	log.Printf("Created user %s with role %s", username, role)
	return user, nil
}

// Login authenticates a user and returns a token
func (m *Manager) Login(username, password string) (*LoginResponse, error) {
	m.mu.RLock()
	var user *User
	for _, u := range m.users {
		if u.Username == username && u.IsActive {
			user = u
			break
		}
	}
	var passwordHash string
	if user != nil {
		passwordHash = m.passwords[user.ID]
	}
	m.mu.RUnlock()

	if user == nil || passwordHash == "" {
		return nil, fmt.Errorf("invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid username or password")
	}

	token, err := m.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Token:     token,
		ExpiresIn: int64(m.tokenTTL.Seconds()),
		User:      *user,
	}, nil
}

// GenerateToken creates a JWT token for a user
func (m *Manager) GenerateToken(user *User) (string, error) {
	now := time.Now()
	expiresAt := now.Add(m.tokenTTL)

	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "agencyd",
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.jwtSecret))
	if err != nil {
		return "", err
	}

	// Store token for revocation
	tokenID := generateRandomID()
	m.mu.Lock()
	m.tokens[tokenID] = &Token{
		ID:        tokenID,
		UserID:    user.ID,
		Token:     tokenString,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	m.mu.Unlock()

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns claims
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("token expired")
	}

	return claims, nil
}

// CreateAPIKey creates a new scoped API key for a user
func (m *Manager) CreateAPIKey(userID string, req CreateAPIKeyRequest) (*CreateAPIKeyResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[userID]
	if !exists {
		return nil, fmt.Errorf("user not found")
	}

	keyID := generateRandomID()
	keyValue := generateRandomSecret(32)
	keyPrefix := keyValue[:keyPrefixLen]
	keyHash, err := bcrypt.GenerateFromPassword([]byte(keyValue), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash key: %w", err)
	}

	var expiresAt *time.Time
	var expiresAtValue time.Time
	if req.ExpiresIn > 0 {
		exp := time.Now().Add(time.Duration(req.ExpiresIn) * time.Second)
		expiresAt = &exp
		expiresAtValue = exp
	}

	scopes := req.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	apiKey := &APIKey{
		ID:        keyID,
		Name:      req.Name,
		UserID:    userID,
		KeyPrefix: keyPrefix,
		KeyHash:   string(keyHash),
		Scopes:    scopes,
		IsActive:  true,
		ExpiresAt: expiresAtValue,
		CreatedAt: time.Now(),
	}

	m.apiKeys[keyID] = apiKey

	log.Printf("Created API key %s for user %s", keyPrefix, user.Username)

	return &CreateAPIKeyResponse{
		ID:        keyID,
		Name:      req.Name,
		Key:       keyValue, // Only returned once!
		ExpiresAt: expiresAt,
	}, nil
}

// ListAPIKeys returns all active API keys for a user (hashes never included)
func (m *Manager) ListAPIKeys(userID string) []*APIKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []*APIKey
	for _, k := range m.apiKeys {
		if k.UserID == userID && k.IsActive {
			keys = append(keys, k)
		}
	}
	return keys
}

// RevokeAPIKey marks an API key as inactive
func (m *Manager) RevokeAPIKey(keyID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, exists := m.apiKeys[keyID]
	if !exists || k.UserID != userID {
		return fmt.Errorf("API key not found")
	}
	k.IsActive = false
	return nil
}

// ValidateAPIKey validates an API key and returns the caller's identity with
// the key's scope set attached. The stored key prefix narrows the candidate
// set so at most one bcrypt comparison runs per prefix match.
func (m *Manager) ValidateAPIKey(keyValue string) (*Identity, error) {
	if len(keyValue) < keyPrefixLen {
		return nil, fmt.Errorf("invalid API key")
	}
	prefix := keyValue[:keyPrefixLen]

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, apiKey := range m.apiKeys {
		if apiKey.KeyPrefix != prefix || !apiKey.IsActive {
			continue
		}

		if !apiKey.ExpiresAt.IsZero() && time.Now().After(apiKey.ExpiresAt) {
			continue
		}

		if err := bcrypt.CompareHashAndPassword([]byte(apiKey.KeyHash), []byte(keyValue)); err != nil {
			continue
		}

		apiKey.LastUsed = time.Now()

		user, exists := m.users[apiKey.UserID]
		if !exists || !user.IsActive {
			return nil, fmt.Errorf("invalid API key")
		}

		scopes := apiKey.Scopes
		if scopes == nil {
			scopes = []string{}
		}
		return &Identity{
			UserID:   user.ID,
			Username: user.Username,
			Role:     user.Role,
			Scopes:   scopes,
		}, nil
	}

	return nil, fmt.Errorf("invalid API key")
}

// ChangePassword changes a user's password
func (m *Manager) ChangePassword(userID, oldPassword, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[userID]
	if !exists {
		return fmt.Errorf("user not found")
	}

	passwordHash, exists := m.passwords[userID]
	if !exists {
		return fmt.Errorf("password not set")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("incorrect password")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	m.passwords[userID] = string(newHash)
	user.UpdatedAt = time.Now()

	log.Printf("Password changed for user %s", user.Username)
	return nil
}

// GetUser retrieves a user by ID
func (m *Manager) GetUser(userID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[userID]
	if !exists {
		return nil, fmt.Errorf("user not found")
	}
	return user, nil
}

// ListUsers lists all users
func (m *Manager) ListUsers() []*User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []*User
	for _, u := range m.users {
		users = append(users, u)
	}
	return users
}

// generateRandomID generates a random ID
func generateRandomID() string {
	return fmt.Sprintf("id-%s", generateRandomSecret(12))
}

// generateRandomSecret generates a random secret string
func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	// Convert to hex string
	return fmt.Sprintf("%x", bytes)
}
