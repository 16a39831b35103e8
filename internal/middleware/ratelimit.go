package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"yatube/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// ErrNoRateLimitStore is returned when quotas are enforced without Redis.
var ErrNoRateLimitStore = errors.New("rate limit store unavailable")

// FailPolicy decides what a guarded route does when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// Quota caps how many times one visitor may perform an action per window.
type Quota struct {
	Action string
	Max    int
	Window time.Duration
	Policy FailPolicy
}

// Quotas guarding the write endpoints.
var (
	SignupQuota  = Quota{Action: "signup", Max: 5, Window: 10 * time.Minute, Policy: FailClosed}
	LoginQuota   = Quota{Action: "login", Max: 10, Window: 5 * time.Minute, Policy: FailClosed}
	PostQuota    = Quota{Action: "post", Max: 10, Window: time.Minute}
	CommentQuota = Quota{Action: "comment", Max: 10, Window: time.Minute}
)

// Verdict is the outcome of counting one hit.
type Verdict struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Throttler counts hits in fixed Redis windows. A throttler that does not
// enforce lets everything through without touching Redis.
type Throttler struct {
	rdb     *redis.Client
	enforce bool
}

// NewThrottler returns a throttler backed by rdb, which may be nil.
func NewThrottler(rdb *redis.Client, enforce bool) *Throttler {
	return &Throttler{rdb: rdb, enforce: enforce}
}

// EnforceQuotas reports whether quotas apply in env. Local development and
// the test suite run without them.
func EnforceQuotas(env string) bool {
	switch env {
	case "", "test", "development":
		return false
	}
	return true
}

func quotaKey(action, visitor string) string {
	return fmt.Sprintf("quota:%s:%s", action, visitor)
}

// Hit counts one attempt of visitor against q.
func (t *Throttler) Hit(ctx context.Context, q Quota, visitor string) (Verdict, error) {
	if !t.enforce {
		return Verdict{Allowed: true, Remaining: q.Max}, nil
	}
	if t.rdb == nil {
		return Verdict{}, ErrNoRateLimitStore
	}

	key := quotaKey(q.Action, visitor)
	pipe := t.rdb.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, q.Window)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Verdict{}, err
	}

	used := int(count.Val())
	v := Verdict{Allowed: used <= q.Max, Remaining: max(q.Max-used, 0)}
	if !v.Allowed {
		v.RetryAfter = max(ttl.Val(), time.Second)
	}
	return v, nil
}

// visitorID keys signed-in users by id and everyone else by address.
func visitorID(c *fiber.Ctx) string {
	if uid, ok := UserID(c); ok {
		return fmt.Sprintf("user:%d", uid)
	}
	return "ip:" + c.IP()
}

// Guard returns a handler that charges q for every request it sees.
func (t *Throttler) Guard(q Quota) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := t.Hit(c.UserContext(), q, visitorID(c))
		if err != nil {
			if q.Policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "quota store unavailable, rejecting",
				slog.String("action", q.Action),
				slog.String("error", err.Error()),
			)
			return models.RespondWithError(c, fiber.StatusServiceUnavailable,
				models.NewUnavailableError("Service temporarily unavailable", err))
		}

		if t.enforce {
			c.Set("X-RateLimit-Limit", strconv.Itoa(q.Max))
			c.Set("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
		}
		if !v.Allowed {
			RateLimitRejections.WithLabelValues(q.Action).Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int((v.RetryAfter+time.Second-1)/time.Second)))
			return models.RespondWithError(c, fiber.StatusTooManyRequests, models.NewRateLimitedError(q.Action))
		}
		return c.Next()
	}
}
