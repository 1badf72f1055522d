package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"localmart/api/internal/cache"
	"localmart/api/internal/models"
)

const sweepLockKey = "jobs:subscription-expiry:lock"

// ListingDeactivator is the sweep's view of the listing store.
type ListingDeactivator interface {
	DeactivateExpiredByKind(ctx context.Context, kind models.ListingKind, now time.Time) (int64, error)
}

// LockFunc takes a best-effort cross-replica lock; nil means always run.
type LockFunc func(ctx context.Context, key string, ttl time.Duration) (bool, error)

func RedisLock(client *redis.Client) LockFunc {
	return func(ctx context.Context, key string, ttl time.Duration) (bool, error) {
		return cache.AcquireLock(ctx, client, key, ttl)
	}
}

// ExpirySweep re-materializes derived visibility onto listings once per
// schedule tick: every listing still shown for an owner whose trial and paid
// subscription have both lapsed gets subscription_active flipped off. Each
// variant is an independent best-effort bulk update; a failed variant is
// logged and the others proceed, and the next run self-heals whatever was
// missed. Account state is never touched here.
type ExpirySweep struct {
	listings ListingDeactivator
	lock     LockFunc
	lockTTL  time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewExpirySweep(listings ListingDeactivator, lock LockFunc, lockTTL time.Duration, log zerolog.Logger) *ExpirySweep {
	return &ExpirySweep{
		listings: listings,
		lock:     lock,
		lockTTL:  lockTTL,
		log:      log,
		now:      time.Now,
	}
}

// Run never returns an error: per-variant failures are contained so the
// scheduler always completes the tick and reschedules.
func (s *ExpirySweep) Run(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock(ctx, sweepLockKey, s.lockTTL)
		if err != nil {
			s.log.Warn().Err(err).Msg("sweep lock unavailable, running anyway")
		} else if !acquired {
			s.log.Info().Msg("sweep already running on another replica")
			return
		}
	}

	now := s.now()
	s.log.Info().Time("as_of", now).Msg("subscription expiry sweep started")

	var total int64
	for _, kind := range models.ListingKinds {
		hidden, err := s.listings.DeactivateExpiredByKind(ctx, kind, now)
		if err != nil {
			s.log.Error().Err(err).
				Str("kind", string(kind)).
				Msg("expiry sweep failed for variant")
			continue
		}
		if hidden > 0 {
			s.log.Info().
				Str("kind", string(kind)).
				Int64("hidden", hidden).
				Msg("expired listings hidden")
		}
		total += hidden
	}

	s.log.Info().Int64("total_hidden", total).Msg("subscription expiry sweep finished")
}
