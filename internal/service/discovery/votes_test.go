package discovery_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-discovery/internal/db"
	svcErr "github.com/oggyb/muzz-discovery/internal/errors"
	"github.com/oggyb/muzz-discovery/internal/service/discovery"
)

func TestCastVote_OverwritesPriorVote(t *testing.T) {
	ctx := context.Background()
	e := setupService(t, seeded())
	e.saveProfile(t, 1, 2)

	res, err := e.svc.CastVote(ctx, 1, 2, db.VoteLike)
	require.NoError(t, err)
	require.NotNil(t, res.Target)
	assert.Equal(t, int64(1), res.Target.Counts.Likes)

	res, err = e.svc.CastVote(ctx, 1, 2, db.VoteDislike)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Target.Counts.Likes)
	assert.Equal(t, int64(1), res.Target.Counts.Dislikes)

	counts, err := e.svc.CountVotes(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.Likes)
	assert.Equal(t, int64(1), counts.Dislikes)
}

func TestCastVote_DoesNotTouchQueues(t *testing.T) {
	ctx := context.Background()
	e := setupService(t, seeded())
	e.saveProfile(t, 1, 2, 3)
	e.next(t, 1)

	before, _, err := e.store.Queues.Find(ctx, 1)
	require.NoError(t, err)

	_, err = e.svc.CastVote(ctx, 1, 2, db.VoteLike)
	require.NoError(t, err)

	after, _, err := e.store.Queues.Find(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before.Items(), after.Items())
	assert.Equal(t, before.Cursor(), after.Cursor())
}

func TestCastVote_SelfVoteRejected(t *testing.T) {
	ctx := context.Background()
	e := setupService(t, seeded())
	e.saveProfile(t, 5)

	_, err := e.svc.CastVote(ctx, 5, 5, db.VoteLike)
	assert.ErrorIs(t, err, svcErr.ErrSelfVote)

	voted, err := e.svc.HasVoted(ctx, 5, 5)
	require.NoError(t, err)
	assert.False(t, voted)

	var n int64
	require.NoError(t, e.gdb.Model(&db.Vote{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCastVote_InvalidInput(t *testing.T) {
	ctx := context.Background()
	e := setupService(t, seeded())
	e.saveProfile(t, 1, 2)

	_, err := e.svc.CastVote(ctx, 1, 2, "superlike")
	assert.ErrorIs(t, err, svcErr.ErrValidation)

	_, err = e.svc.CastVote(ctx, 0, 2, db.VoteLike)
	assert.ErrorIs(t, err, svcErr.ErrValidation)
}

func TestCastVote_MissingTargetIgnored(t *testing.T) {
	ctx := context.Background()
	e := setupService(t, seeded())
	e.saveProfile(t, 1)

	res, err := e.svc.CastVote(ctx, 1, 9, db.VoteLike)
	require.NoError(t, err)
	assert.Nil(t, res.Target)
	assert.False(t, res.Mutual)

	voted, err := e.svc.HasVoted(ctx, 1, 9)
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestMutualMatches_Symmetric(t *testing.T) {
	ctx := context.Background()
	e := setupService(t, seeded())
	e.saveProfile(t, 1, 2, 3)

	res, err := e.svc.CastVote(ctx, 1, 2, db.VoteLike)
	require.NoError(t, err)
	assert.False(t, res.Mutual)

	matches, err := e.svc.MutualMatches(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, matches)

	res, err = e.svc.CastVote(ctx, 2, 1, db.VoteLike)
	require.NoError(t, err)
	assert.True(t, res.Mutual)

	matches, err = e.svc.MutualMatches(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []discovery.Match{{UserID: 2, Username: "user2"}}, matches)

	matches, err = e.svc.MutualMatches(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []discovery.Match{{UserID: 1, Username: "user1"}}, matches)

	// a dislike breaks it for both sides
	_, err = e.svc.CastVote(ctx, 1, 2, db.VoteDislike)
	require.NoError(t, err)
	for _, user := range []uint64{1, 2} {
		matches, err = e.svc.MutualMatches(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, matches)
	}
}

func TestMutualMatches_SkipsCounterpartWithoutProfile(t *testing.T) {
	ctx := context.Background()
	e := setupService(t, seeded())
	e.saveProfile(t, 1, 2, 3)

	for _, pair := range [][2]uint64{{1, 2}, {2, 1}, {1, 3}, {3, 1}} {
		_, err := e.svc.CastVote(ctx, pair[0], pair[1], db.VoteLike)
		require.NoError(t, err)
	}

	// vote rows stay, profile row goes
	_, err := e.store.Profiles.Delete(ctx, 3)
	require.NoError(t, err)

	matches, err := e.svc.MutualMatches(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []discovery.Match{{UserID: 2, Username: "user2"}}, matches)
}

func TestCountVotes_CachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	e := setupService(t, seeded())
	e.saveProfile(t, 1, 2, 3)

	_, err := e.svc.CastVote(ctx, 1, 3, db.VoteLike)
	require.NoError(t, err)

	counts, err := e.svc.CountVotes(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Likes)
	assert.True(t, e.mr.Exists("votes:count:3:like"))
	assert.True(t, e.mr.Exists("votes:count:3:dislike"))

	// stale value planted behind the service's back is dropped by the next write
	require.NoError(t, e.mr.Set("votes:count:3:like", "40"))
	_, err = e.svc.CastVote(ctx, 2, 3, db.VoteLike)
	require.NoError(t, err)

	counts, err = e.svc.CountVotes(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Likes)
	cached, err := e.mr.Get("votes:count:3:like")
	require.NoError(t, err)
	assert.Equal(t, "2", cached)
}

func TestCountVotes_FallsBackToDBWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	e := setupService(t, seeded())
	e.saveProfile(t, 1, 2)

	_, err := e.svc.CastVote(ctx, 1, 2, db.VoteLike)
	require.NoError(t, err)

	e.mr.SetError("LOADING redis is down")

	counts, err := e.svc.CountVotes(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Likes)
}
