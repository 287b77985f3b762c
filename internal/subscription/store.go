package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// FeatureAdvancedExecution gates advanced agent execution on mid tiers.
const FeatureAdvancedExecution = "advancedAgentExecution"

// Tier slugs, from entry to top.
const (
	TierStarter = "starter"
	TierGrowth  = "growth"
	TierScale   = "scale"
	TierAgency  = "agency"
)

// Roles known to the permission gate.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

var (
	// ErrUserNotFound is returned for unknown user ids. The permission gate
	// fails closed on it.
	ErrUserNotFound = errors.New("user not found")

	// ErrTierNotFound is returned for unknown tier slugs.
	ErrTierNotFound = errors.New("subscription tier not found")
)

// User is a read-only identity record.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// Tier describes a subscription plan's execution entitlements.
type Tier struct {
	Slug                  string          `json:"slug"`
	Name                  string          `json:"name"`
	MaxConcurrentAgents   int             `json:"max_concurrent_agents"`
	MonthlyExecutionLimit int             `json:"monthly_execution_limit"`
	Features              map[string]bool `json:"features,omitempty"`
}

// HasFeature reports whether the tier carries a feature flag.
func (t *Tier) HasFeature(name string) bool {
	return t != nil && t.Features[name]
}

// Subscription links a user to their active tier.
type Subscription struct {
	UserID   string `json:"user_id"`
	TierSlug string `json:"tier_slug"`
	Active   bool   `json:"active"`
}

// Store provides read-only identity and subscription lookups keyed by user
// id. The scheduler never mutates billing state.
type Store interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	// GetSubscription returns (nil, nil) when the user has no active
	// subscription.
	GetSubscription(ctx context.Context, userID string) (*Subscription, error)
	GetTier(ctx context.Context, slug string) (*Tier, error)
}

// DefaultTiers returns the built-in plan catalog.
func DefaultTiers() map[string]*Tier {
	return map[string]*Tier{
		TierStarter: {
			Slug:                  TierStarter,
			Name:                  "Starter",
			MaxConcurrentAgents:   1,
			MonthlyExecutionLimit: 100,
		},
		TierGrowth: {
			Slug:                  TierGrowth,
			Name:                  "Growth",
			MaxConcurrentAgents:   3,
			MonthlyExecutionLimit: 1000,
			Features:              map[string]bool{FeatureAdvancedExecution: true},
		},
		TierScale: {
			Slug:                  TierScale,
			Name:                  "Scale",
			MaxConcurrentAgents:   10,
			MonthlyExecutionLimit: 5000,
			Features:              map[string]bool{FeatureAdvancedExecution: true},
		},
		TierAgency: {
			Slug:                  TierAgency,
			Name:                  "Agency",
			MaxConcurrentAgents:   25,
			MonthlyExecutionLimit: 50000,
			Features:              map[string]bool{FeatureAdvancedExecution: true},
		},
	}
}

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	users         map[string]*User
	subscriptions map[string]*Subscription
	tiers         map[string]*Tier
	mu            sync.RWMutex
}

// NewMemoryStore creates a MemoryStore seeded with the default tier catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*User),
		subscriptions: make(map[string]*Subscription),
		tiers:         DefaultTiers(),
	}
}

// PutUser seeds a user record.
func (s *MemoryStore) PutUser(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// PutSubscription seeds a subscription record.
func (s *MemoryStore) PutSubscription(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.UserID] = sub
}

// GetUser implements Store.
func (s *MemoryStore) GetUser(ctx context.Context, userID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}
	return user, nil
}

// GetSubscription implements Store.
func (s *MemoryStore) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.subscriptions[userID]
	if !exists || !sub.Active {
		return nil, nil
	}
	return sub, nil
}

// GetTier implements Store.
func (s *MemoryStore) GetTier(ctx context.Context, slug string) (*Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tier, exists := s.tiers[slug]
	if !exists {
		return nil, fmt.Errorf("tier %s: %w", slug, ErrTierNotFound)
	}
	return tier, nil
}
