package plans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"engagement-platform/pkg/logger"
	"engagement-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Service enforces per-client monthly message allotments.
//
// Counter strategy:
// - The hot path is an atomic redis increment-and-check keyed by client and
//   calendar month, safe under concurrent dispatcher instances.
// - A durable month-keyed usage row is upserted in Postgres for billing
//   reporting; it is best-effort on the send path.
// - Because both counter key and usage row embed the YYYY-MM month, usage
//   rolls over naturally; the monthly reset cron only persists a reset marker
//   (idempotent under double-fire) and emits bookkeeping.
type Service struct {
	repo    Repository
	counter Counter
	clock   func() time.Time
}

var ErrInvalidArgument = errors.New("plans: invalid argument")

// Counter is the atomic increment-and-check primitive.
type Counter interface {
	IncrWithinLimit(ctx context.Context, key string, limit int, ttl time.Duration) (bool, error)
}

func NewService(repo Repository, counter Counter) *Service {
	return &Service{repo: repo, counter: counter, clock: time.Now}
}

// AllowMessage consumes one unit of the client's monthly allotment, returning
// false when the plan limit is reached. The counter is rolled back inside the
// atomic script on rejection, so a blocked message never consumes quota.
func (s *Service) AllowMessage(ctx context.Context, clientID string, limit int) (bool, error) {
	if clientID == "" || limit <= 0 {
		return false, ErrInvalidArgument
	}

	now := s.clock().UTC()
	month := now.Format("2006-01")
	key := usageKey(clientID, month)

	ok, err := s.counter.IncrWithinLimit(ctx, key, limit, ttlThroughMonth(now))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := s.repo.RecordUsage(ctx, clientID, month, 1); err != nil {
		// Durable usage is reporting data; never block the send on it.
		logger.From(ctx).Error("plan usage record failed", "client_id", clientID, "err", err)
	}
	return true, nil
}

// usageReader is optionally implemented by counters that can report the live
// month counter (the redis fast path).
type usageReader interface {
	Usage(ctx context.Context, key string) (int64, error)
}

// CurrentUsage reports the messages consumed in the month containing now. The
// live counter is authoritative when readable; the durable row is the fallback.
func (s *Service) CurrentUsage(ctx context.Context, clientID string) (int, error) {
	if clientID == "" {
		return 0, ErrInvalidArgument
	}

	month := s.clock().UTC().Format("2006-01")
	if ur, ok := s.counter.(usageReader); ok {
		n, err := ur.Usage(ctx, usageKey(clientID, month))
		if err == nil {
			return int(n), nil
		}
		logger.From(ctx).Warn("live usage read failed", "client_id", clientID, "err", err)
	}
	return s.repo.Usage(ctx, clientID, month)
}

// ResetMonthly persists the reset marker for the month containing now. It
// returns true only for the first invocation in that month, so an accidental
// double-fire of the cron is a no-op.
func (s *Service) ResetMonthly(ctx context.Context, now time.Time) (bool, error) {
	month := now.UTC().Format("2006-01")
	return s.repo.MarkReset(ctx, month, now.UTC())
}

func usageKey(clientID, month string) string {
	return fmt.Sprintf("plan:msgs:%s:%s", clientID, month)
}

// ttlThroughMonth bounds the counter key to the remainder of the month plus
// slack, so stale keys expire even if the key is never touched again.
func ttlThroughMonth(now time.Time) time.Duration {
	firstOfNext := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.Sub(now) + 72*time.Hour
}

// RedisCounter implements Counter on go-redis.
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter { return &RedisCounter{rdb: rdb} }

func (c *RedisCounter) IncrWithinLimit(ctx context.Context, key string, limit int, ttl time.Duration) (bool, error) {
	return utils.IncrWithinQuota(ctx, c.rdb, key, limit, ttl)
}

func (c *RedisCounter) Usage(ctx context.Context, key string) (int64, error) {
	return utils.QuotaUsage(ctx, c.rdb, key)
}
