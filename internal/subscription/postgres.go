package subscription

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL.
func rebind(query string) string {
	n := 1
	out := strings.Builder{}
	for _, ch := range query {
		if ch == '?' {
			out.WriteString(fmt.Sprintf("$%d", n))
			n++
		} else {
			out.WriteRune(ch)
		}
	}
	return out.String()
}

// PostgresStore reads identity and subscription state from the platform's
// PostgreSQL database. All access is read-only; billing mutation lives in
// the subscription service, not here.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a read-only view onto the identity database.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close releases the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// GetUser implements Store.
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*User, error) {
	user := &User{}
	query := rebind(`SELECT id, email, role FROM users WHERE id = ?`)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&user.ID, &user.Email, &user.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// GetSubscription implements Store.
func (s *PostgresStore) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	sub := &Subscription{Active: true}
	query := rebind(`SELECT user_id, tier_slug FROM subscriptions WHERE user_id = ? AND status = 'active'`)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&sub.UserID, &sub.TierSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}
	return sub, nil
}

// GetTier implements Store.
func (s *PostgresStore) GetTier(ctx context.Context, slug string) (*Tier, error) {
	tier := &Tier{}
	var featuresJSON []byte
	query := rebind(`SELECT slug, name, max_concurrent_agents, monthly_execution_limit, features FROM subscription_tiers WHERE slug = ?`)
	err := s.db.QueryRowContext(ctx, query, slug).Scan(
		&tier.Slug, &tier.Name, &tier.MaxConcurrentAgents, &tier.MonthlyExecutionLimit, &featuresJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tier %s: %w", slug, ErrTierNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tier: %w", err)
	}

	if len(featuresJSON) > 0 {
		if err := json.Unmarshal(featuresJSON, &tier.Features); err != nil {
			return nil, fmt.Errorf("failed to decode tier features: %w", err)
		}
	}
	return tier, nil
}

// Compile-time interface checks.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
