package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestEnforceQuotas(t *testing.T) {
	t.Parallel()
	for _, env := range []string{"", "test", "development"} {
		assert.False(t, EnforceQuotas(env), env)
	}
	for _, env := range []string{"production", "staging"} {
		assert.True(t, EnforceQuotas(env), env)
	}
}

func TestThrottlerHit_NotEnforced(t *testing.T) {
	t.Parallel()
	th := NewThrottler(nil, false)
	v, err := th.Hit(context.Background(), PostQuota, "ip:1")
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.Equal(t, PostQuota.Max, v.Remaining)
}

func TestThrottlerHit_NoStore(t *testing.T) {
	t.Parallel()
	_, err := NewThrottler(nil, true).Hit(context.Background(), PostQuota, "ip:1")
	assert.ErrorIs(t, err, ErrNoRateLimitStore)
}

func TestThrottlerHit_FixedWindow(t *testing.T) {
	t.Parallel()
	mr, rdb := newMiniRedis(t)
	th := NewThrottler(rdb, true)
	q := Quota{Action: "login", Max: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := th.Hit(ctx, q, "ip:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, v.Allowed, "hit %d", i+1)
		assert.Equal(t, 2-i, v.Remaining)
	}

	v, err := th.Hit(ctx, q, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, v.Allowed)
	assert.Greater(t, v.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, v.RetryAfter, time.Minute)

	// Another visitor has its own counter.
	v, err = th.Hit(ctx, q, "user:7")
	require.NoError(t, err)
	assert.True(t, v.Allowed)

	mr.FastForward(time.Minute + time.Second)
	v, err = th.Hit(ctx, q, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, v.Allowed)
}

func TestThrottlerGuard(t *testing.T) {
	t.Parallel()
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	t.Run("not enforced", func(t *testing.T) {
		app := fiber.New()
		app.Post("/create/", NewThrottler(nil, false).Guard(PostQuota), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/create/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-RateLimit-Remaining"))
	})

	t.Run("fail open without store", func(t *testing.T) {
		app := fiber.New()
		app.Post("/posts/1/comment/", NewThrottler(nil, true).Guard(CommentQuota), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts/1/comment/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("fail closed without store", func(t *testing.T) {
		app := fiber.New()
		app.Post("/auth/login/", NewThrottler(nil, true).Guard(LoginQuota), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/auth/login/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("rejects over quota", func(t *testing.T) {
		_, rdb := newMiniRedis(t)
		app := fiber.New()
		q := Quota{Action: "comment", Max: 2, Window: time.Minute}
		app.Post("/posts/1/comment/", NewThrottler(rdb, true).Guard(q), ok)

		var last *http.Response
		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts/1/comment/", nil))
			require.NoError(t, err)
			codes = append(codes, resp.StatusCode)
			last = resp
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
		assert.Equal(t, "0", last.Header.Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, last.Header.Get(fiber.HeaderRetryAfter))
	})
}
