package service

import (
	"context"
	"testing"

	"yatube/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFollowService() (*FollowService, *followRepoStub) {
	users := &userRepoStub{users: []*models.User{{ID: 1, Username: "leo"}, {ID: 2, Username: "kim"}}}
	follows := newFollowRepoStub()
	return NewFollowService(users, follows), follows
}

func TestFollowService_FollowUnfollowRoundTrip(t *testing.T) {
	t.Parallel()
	svc, follows := newFollowService()
	ctx := context.Background()

	before, _ := follows.CountFollowers(ctx, 1)

	require.NoError(t, svc.Follow(ctx, 2, "leo"))
	require.NoError(t, svc.Follow(ctx, 2, "leo"), "second follow is a no-op")
	n, _ := follows.CountFollowers(ctx, 1)
	assert.Equal(t, before+1, n)

	following, err := svc.IsFollowing(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, following)

	require.NoError(t, svc.Unfollow(ctx, 2, "leo"))
	n, _ = follows.CountFollowers(ctx, 1)
	assert.Equal(t, before, n)

	require.NoError(t, svc.Unfollow(ctx, 2, "leo"), "unfollowing twice is not an error")
}

func TestFollowService_SelfFollowIgnored(t *testing.T) {
	t.Parallel()
	svc, follows := newFollowService()
	ctx := context.Background()

	require.NoError(t, svc.Follow(ctx, 1, "leo"))
	assert.Empty(t, follows.edges)

	following, err := svc.IsFollowing(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, following)
}

func TestFollowService_Errors(t *testing.T) {
	t.Parallel()
	svc, _ := newFollowService()
	ctx := context.Background()

	assertCode(t, svc.Follow(ctx, 2, "ghost"), models.CodeNotFound)
	assertCode(t, svc.Unfollow(ctx, 2, "ghost"), models.CodeNotFound)
	assertCode(t, svc.Follow(ctx, 0, "leo"), models.CodeUnauthorized)
}
