package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-discovery/internal/db"
	"github.com/oggyb/muzz-discovery/internal/repository"
)

// setupTestDB opens an isolated in-memory SQLite DB with the discovery schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func saveProfile(t *testing.T, store *repository.Store, id uint64) {
	t.Helper()
	require.NoError(t, store.Profiles.Save(context.Background(), &db.Profile{
		UserID:   id,
		Username: fmt.Sprintf("user%d", id),
		Name:     fmt.Sprintf("User %d", id),
	}))
}

func TestStoreTransaction_RollsBack(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t))

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(tx *repository.Store) error {
		require.NoError(t, tx.Profiles.Save(ctx, &db.Profile{UserID: 1, Username: "one"}))
		require.NoError(t, tx.Subscriptions.Set(ctx, 1, true))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := store.Profiles.Exists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)

	subs, err := store.Subscriptions.Subscribers(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestStoreTransaction_Commits(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t))

	err := store.Transaction(ctx, func(tx *repository.Store) error {
		return tx.Profiles.Save(ctx, &db.Profile{UserID: 1, Username: "one"})
	})
	require.NoError(t, err)

	exists, err := store.Profiles.Exists(ctx, 1)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t))

	require.NoError(t, store.Subscriptions.Set(ctx, 3, true))
	require.NoError(t, store.Subscriptions.Set(ctx, 1, true))
	require.NoError(t, store.Subscriptions.Set(ctx, 1, true)) // idempotent

	subs, err := store.Subscriptions.Subscribers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, subs)

	require.NoError(t, store.Subscriptions.Set(ctx, 1, false))
	require.NoError(t, store.Subscriptions.Set(ctx, 9, false)) // idempotent

	subs, err = store.Subscriptions.Subscribers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, subs)
}
