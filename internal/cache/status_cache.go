package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"localmart/api/internal/models"
)

const statusTTL = 5 * time.Minute

// StatusCache keeps a short-lived copy of each account's subscription state
// for the visibility gate's hot path. Every state transition (trial start,
// payment, cancellation) must invalidate the owner's entry; the TTL bounds
// staleness if one is missed.
type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

func statusKey(userID string) string {
	return "subscription:status:" + userID
}

func (c *StatusCache) Get(ctx context.Context, userID string) (models.SubscriptionState, bool, error) {
	raw, err := c.client.Get(ctx, statusKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.SubscriptionState{}, false, nil
		}
		return models.SubscriptionState{}, false, fmt.Errorf("status cache get: %w", err)
	}

	var state models.SubscriptionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return models.SubscriptionState{}, false, fmt.Errorf("status cache decode: %w", err)
	}
	return state, true, nil
}

func (c *StatusCache) Set(ctx context.Context, userID string, state models.SubscriptionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("status cache encode: %w", err)
	}
	return c.client.Set(ctx, statusKey(userID), raw, statusTTL).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, statusKey(userID)).Err()
}

// AcquireLock takes a best-effort distributed lock so a job runs on at most
// one replica per interval.
func AcquireLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (bool, error) {
	return client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
