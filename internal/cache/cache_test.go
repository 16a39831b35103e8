package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Number int      `json:"number"`
	Items  []string `json:"items"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr())
	require.NoError(t, err)
	prev := client
	SetClient(c)
	t.Cleanup(func() {
		SetClient(prev)
		_ = c.Close()
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()
	key := IndexPageKey(10, 1)

	calls := 0
	fetch := func(dst *page) func() error {
		return func() error {
			calls++
			*dst = page{Number: 1, Items: []string{"a", "b"}}
			return nil
		}
	}

	var first page
	require.NoError(t, Aside(ctx, key, &first, 20*time.Second, fetch(&first)))
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 20*time.Second, mr.TTL(key))

	var second page
	require.NoError(t, Aside(ctx, key, &second, 20*time.Second, fetch(&second)))
	assert.Equal(t, 1, calls, "second lookup should be served from cache")
	assert.Equal(t, first, second)

	mr.FastForward(21 * time.Second)
	var third page
	require.NoError(t, Aside(ctx, key, &third, 20*time.Second, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()
	boom := errors.New("db down")

	var dst page
	err := Aside(ctx, GroupKey("cats"), &dst, GroupTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(GroupKey("cats")))
}

func TestAside_CorruptEntryRefetches(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()
	require.NoError(t, mr.Set(GroupKey("cats"), "{not json"))

	var dst page
	require.NoError(t, Aside(ctx, GroupKey("cats"), &dst, GroupTTL, func() error {
		dst = page{Number: 7}
		return nil
	}))
	assert.Equal(t, 7, dst.Number)
}

func TestAside_BypassWithoutClientOrTTL(t *testing.T) {
	prev := client
	SetClient(nil)
	t.Cleanup(func() { SetClient(prev) })

	calls := 0
	var dst page
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), IndexPageKey(10, 1), &dst, time.Minute, func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 2, calls)

	mr := withMiniredis(t)
	require.NoError(t, Aside(context.Background(), IndexPageKey(10, 2), &dst, 0, func() error { return nil }))
	assert.False(t, mr.Exists(IndexPageKey(10, 2)))
}

func TestInvalidate(t *testing.T) {
	mr := withMiniredis(t)
	require.NoError(t, mr.Set(GroupKey("dogs"), "{}"))

	Invalidate(context.Background(), GroupKey("dogs"))
	assert.False(t, mr.Exists(GroupKey("dogs")))
}

func TestInitRedis_Unreachable(t *testing.T) {
	prev := client
	t.Cleanup(func() { SetClient(prev) })

	InitRedis("127.0.0.1:1")
	assert.Nil(t, GetClient())

	InitRedis("redis://%%bad")
	assert.Nil(t, GetClient())
}

func TestNewClient_Addresses(t *testing.T) {
	c, err := NewClient("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", c.Options().Addr)

	c, err = NewClient("redis://cache.internal:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)

	_, err = NewClient("redis://%%bad")
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	assert.NoError(t, c.Set(context.Background(), "k", "v", 0).Err())

	_, err = Connect(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "index_page:10:3", IndexPageKey(10, 3))
	assert.Equal(t, "group:cats", GroupKey("cats"))
	assert.Equal(t, "index_page", keyFamily(IndexPageKey(10, 3)))
}
