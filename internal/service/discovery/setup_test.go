package discovery_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-discovery/internal/app"
	"github.com/oggyb/muzz-discovery/internal/cache"
	"github.com/oggyb/muzz-discovery/internal/config"
	"github.com/oggyb/muzz-discovery/internal/db"
	"github.com/oggyb/muzz-discovery/internal/delivery"
	"github.com/oggyb/muzz-discovery/internal/repository"
	"github.com/oggyb/muzz-discovery/internal/service/discovery"
)

const adminID = 99

//
// Test helpers
//

type sent struct {
	To   uint64
	Text string
	Card delivery.Card
	Opts delivery.Options
}

// fakeDelivery records every call and fails for the users listed in failFor.
type fakeDelivery struct {
	mu       sync.Mutex
	notices  []sent
	profiles []sent
	failFor  map[uint64]bool
}

func newFakeDelivery(failFor ...uint64) *fakeDelivery {
	f := &fakeDelivery{failFor: map[uint64]bool{}}
	for _, id := range failFor {
		f.failFor[id] = true
	}
	return f
}

func (f *fakeDelivery) DeliverProfile(_ context.Context, to uint64, card delivery.Card, opts delivery.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[to] {
		return errors.New("chat unreachable")
	}
	f.profiles = append(f.profiles, sent{To: to, Card: card, Opts: opts})
	return nil
}

func (f *fakeDelivery) DeliverNotice(_ context.Context, to uint64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[to] {
		return errors.New("chat unreachable")
	}
	f.notices = append(f.notices, sent{To: to, Text: text})
	return nil
}

func (f *fakeDelivery) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices, f.profiles = nil, nil
}

func recipients(msgs []sent) []uint64 {
	out := make([]uint64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.To)
	}
	return out
}

type env struct {
	svc   *discovery.Service
	store *repository.Store
	gdb   *gorm.DB
	mr    *miniredis.Miniredis
	out   *fakeDelivery
}

// setupService spins up an in-memory SQLite DB, a miniredis and a recording
// delivery edge, and wires them into a discovery Service.
func setupService(t *testing.T, opts ...discovery.Option) *env {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := &cache.RedisCache{
		Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		TTL:    time.Hour,
	}
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{}
	cfg.App.ENV = "test"
	cfg.App.AdminID = adminID

	out := newFakeDelivery()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(cfg, gdb, rdb, out, logger)

	return &env{
		svc:   discovery.NewDiscoveryService(appCtx, opts...),
		store: repository.NewStore(gdb),
		gdb:   gdb,
		mr:    mr,
		out:   out,
	}
}

// seeded returns a deterministic shuffler for single-goroutine tests.
func seeded() discovery.Option {
	return discovery.WithShuffler(rand.New(rand.NewPCG(1, 2)))
}

func (e *env) saveProfile(t *testing.T, ids ...uint64) {
	t.Helper()
	for _, id := range ids {
		_, err := e.svc.SaveProfile(context.Background(), discovery.ProfileInput{
			UserID:   id,
			Username: fmt.Sprintf("user%d", id),
			Name:     fmt.Sprintf("User %d", id),
			Bio:      "bio",
		})
		require.NoError(t, err)
	}
}

// next consumes one candidate for userID and returns its id, or 0 for none.
func (e *env) next(t *testing.T, userID uint64) uint64 {
	t.Helper()
	c, err := e.svc.NextProfile(context.Background(), userID)
	require.NoError(t, err)
	if c == nil {
		return 0
	}
	return c.Profile.UserID
}
