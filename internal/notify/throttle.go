// AngelaMos | 2026
// throttle.go

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const throttleKeyPrefix = "notify:chat:"

// Throttle limits deliveries per chat. Redis holds the shared GCRA state;
// when Redis is unreachable a process-local token bucket takes over.
type Throttle struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	limit    redis_rate.Limit
	failOpen bool
	logger   *slog.Logger
}

func NewThrottle(
	rdb redis.UniversalClient,
	limit redis_rate.Limit,
	failOpen bool,
	logger *slog.Logger,
) *Throttle {
	if logger == nil {
		logger = slog.Default()
	}

	return &Throttle{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(),
		limit:    limit,
		failOpen: failOpen,
		logger:   logger,
	}
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return redis_rate.Limit{
		Rate:   rate,
		Burst:  burst,
		Period: time.Minute,
	}
}

func (t *Throttle) Allow(ctx context.Context, chatID int64) (bool, error) {
	key := throttleKeyPrefix + strconv.FormatInt(chatID, 10)

	res, err := t.limiter.Allow(ctx, key, t.limit)
	if err != nil {
		t.logger.Warn("chat throttle unavailable, using local limiter",
			"chat_id", chatID,
			"error", err,
		)
		res, err = t.fallback.allow(key, t.limit)
	}
	if err != nil {
		if t.failOpen {
			return true, nil
		}
		return false, fmt.Errorf("throttle chat %d: %w", chatID, err)
	}

	return res.Allowed > 0, nil
}

func (t *Throttle) Close() {
	t.fallback.stop()
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess int64
}

type localLimiter struct {
	limiters sync.Map
	done     chan struct{}
	once     sync.Once
}

const (
	cleanupInterval = 5 * time.Minute
	entryTTL        = 10 * time.Minute
)

func newLocalLimiter() *localLimiter {
	l := &localLimiter{done: make(chan struct{})}
	go l.cleanup()
	return l
}

func (l *localLimiter) stop() {
	l.once.Do(func() { close(l.done) })
}

func (l *localLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-entryTTL).Unix()
			l.limiters.Range(func(key, value any) bool {
				entry, ok := value.(*limiterEntry)
				if ok && entry.lastAccess < cutoff {
					l.limiters.Delete(key)
				}
				return true
			})
		}
	}
}

func (l *localLimiter) allow(
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	ratePerSec := float64(limit.Rate) / limit.Period.Seconds()
	now := time.Now().Unix()

	entryI, loaded := l.limiters.Load(key)
	if !loaded {
		newEntry := &limiterEntry{
			limiter:    rate.NewLimiter(rate.Limit(ratePerSec), limit.Burst),
			lastAccess: now,
		}
		entryI, _ = l.limiters.LoadOrStore(key, newEntry)
	}

	entry, ok := entryI.(*limiterEntry)
	if !ok {
		return nil, fmt.Errorf("invalid limiter entry type")
	}
	entry.lastAccess = now

	allowed := 0
	if entry.limiter.Allow() {
		allowed = 1
	}

	remaining := int(entry.limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}

	return &redis_rate.Result{
		Limit:     limit,
		Allowed:   allowed,
		Remaining: remaining,
	}, nil
}
