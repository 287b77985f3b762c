package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout under the agency:usage: prefix. Monthly keys carry a TTL a bit
// past the month boundary so stale periods expire on their own.
const (
	activeKeyFormat  = "agency:usage:active:%s"
	monthlyKeyFormat = "agency:usage:monthly:%s:%s"
	monthlyKeyTTL    = 40 * 24 * time.Hour
)

// RedisTracker is a Tracker backed by Redis, shared across scheduler
// restarts and across the other platform services that report execution
// starts.
type RedisTracker struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisTracker connects to Redis and verifies the connection.
func NewRedisTracker(ctx context.Context, addr, password string, db int) (*RedisTracker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisTracker{client: client, now: time.Now}, nil
}

// Close releases the Redis connection.
func (t *RedisTracker) Close() error {
	return t.client.Close()
}

// ActiveExecutions implements Tracker.
func (t *RedisTracker) ActiveExecutions(ctx context.Context, userID string) (int, error) {
	count, err := t.client.Get(ctx, fmt.Sprintf(activeKeyFormat, userID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read active executions: %w", err)
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}

// MonthlyExecutions implements Tracker.
func (t *RedisTracker) MonthlyExecutions(ctx context.Context, userID string) (int, error) {
	key := fmt.Sprintf(monthlyKeyFormat, userID, monthKey(t.now()))
	count, err := t.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read monthly executions: %w", err)
	}
	return count, nil
}

// StartExecution implements Tracker.
func (t *RedisTracker) StartExecution(ctx context.Context, userID string) error {
	monthly := fmt.Sprintf(monthlyKeyFormat, userID, monthKey(t.now()))

	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, fmt.Sprintf(activeKeyFormat, userID))
	pipe.Incr(ctx, monthly)
	pipe.Expire(ctx, monthly, monthlyKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record execution start: %w", err)
	}
	return nil
}

// FinishExecution implements Tracker.
func (t *RedisTracker) FinishExecution(ctx context.Context, userID string) error {
	key := fmt.Sprintf(activeKeyFormat, userID)
	count, err := t.client.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to record execution end: %w", err)
	}
	// Guard against unmatched finish reports driving the count negative.
	if count < 0 {
		t.client.Set(ctx, key, 0, 0)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ Tracker = (*MemoryTracker)(nil)
	_ Tracker = (*RedisTracker)(nil)
)
