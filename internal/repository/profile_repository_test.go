package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-discovery/internal/db"
	svcErr "github.com/oggyb/muzz-discovery/internal/errors"
	"github.com/oggyb/muzz-discovery/internal/repository"
)

func TestProfileSave_KeepsOnlyFirstPhoto(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProfileRepository(setupTestDB(t))

	err := repo.Save(ctx, &db.Profile{
		UserID:   1,
		Username: "alice",
		Name:     "Alice",
		Bio:      "hello",
		Photos:   []db.Photo{{FileID: "a"}, {FileID: "b"}},
	})
	require.NoError(t, err)

	p, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "hello", p.Bio)
	require.Len(t, p.Photos, 1)
	assert.Equal(t, "a", p.PhotoRef())
}

func TestProfileSave_ReplaceIsFullOverwrite(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProfileRepository(setupTestDB(t))

	require.NoError(t, repo.Save(ctx, &db.Profile{
		UserID: 1, Username: "alice", Name: "Alice", Bio: "old bio",
		Photos: []db.Photo{{FileID: "old"}},
	}))
	require.NoError(t, repo.Save(ctx, &db.Profile{
		UserID: 1, Username: "alice2", Name: "", Bio: "",
	}))

	p, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice2", p.Username)
	assert.Empty(t, p.Name)
	assert.Empty(t, p.Bio)
	assert.Empty(t, p.Photos, "old photo dropped even though the new save had none")
	assert.Empty(t, p.PhotoRef())
}

func TestProfileSave_UsernameConflict(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProfileRepository(setupTestDB(t))

	require.NoError(t, repo.Save(ctx, &db.Profile{UserID: 1, Username: "alice"}))

	err := repo.Save(ctx, &db.Profile{UserID: 2, Username: "alice"})
	assert.ErrorIs(t, err, svcErr.ErrConflict)

	// the owner may re-save with the same handle
	assert.NoError(t, repo.Save(ctx, &db.Profile{UserID: 1, Username: "alice", Bio: "again"}))
}

func TestProfileGet_NotFound(t *testing.T) {
	repo := repository.NewProfileRepository(setupTestDB(t))

	_, err := repo.Get(context.Background(), 404)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestProfileListUserIDsAndUsernames(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t))
	for _, id := range []uint64{3, 1, 2} {
		saveProfile(t, store, id)
	}

	all, err := store.Profiles.ListUserIDs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, all)

	others, err := store.Profiles.ListUserIDs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, others)

	names, err := store.Profiles.Usernames(ctx, []uint64{1, 3, 99})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]string{1: "user1", 3: "user3"}, names)
}

func TestProfileDelete(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	repo := repository.NewProfileRepository(database)

	require.NoError(t, repo.Save(ctx, &db.Profile{
		UserID: 1, Username: "alice", Photos: []db.Photo{{FileID: "a"}},
	}))

	deleted, err := repo.Delete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, deleted)

	var photos int64
	require.NoError(t, database.Model(&db.Photo{}).Count(&photos).Error)
	assert.Zero(t, photos)

	exists, err := repo.Exists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)

	deleted, err = repo.Delete(ctx, 1)
	require.NoError(t, err)
	assert.False(t, deleted)
}
