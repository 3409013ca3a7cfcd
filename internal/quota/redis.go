package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTracker keeps the daily counters in Redis so the quota survives
// restarts and is shared when the API and the dispatcher run as separate
// processes.
type RedisTracker struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisTracker connects to Redis and verifies the connection.
func NewRedisTracker(host string, port int, password string, db int) (*RedisTracker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTracker{client: client, now: time.Now}, nil
}

// NewRedisTrackerFromClient wraps an existing client, used by tests.
func NewRedisTrackerFromClient(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client, now: time.Now}
}

// Close closes the Redis connection.
func (t *RedisTracker) Close() error {
	return t.client.Close()
}

func counterKey(account string, day time.Time) string {
	return fmt.Sprintf("publishes:%s:%s", account, day.Format(dayFormat))
}

func (t *RedisTracker) CountToday(ctx context.Context, account string) (int, error) {
	count, err := t.client.Get(ctx, counterKey(account, t.now())).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quota counter: %w", err)
	}
	return count, nil
}

func (t *RedisTracker) Record(ctx context.Context, account string, at time.Time) error {
	key := counterKey(account, at)

	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment quota counter: %w", err)
	}

	// Counters are only read on their own day; 48h covers timezone skew.
	if count == 1 {
		if err := t.client.Expire(ctx, key, 48*time.Hour).Err(); err != nil {
			return fmt.Errorf("failed to set quota counter expiry: %w", err)
		}
	}
	return nil
}
