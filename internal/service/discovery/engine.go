package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oggyb/muzz-discovery/internal/metrics"
	"github.com/oggyb/muzz-discovery/internal/queue"
	"github.com/oggyb/muzz-discovery/internal/repository"
)

// Engine builds, advances, repairs and rebalances the per-user queues.
//
// Locking:
//   - a rebalance (profile created/deleted) holds the fanout lock exclusively
//     for the whole pass, so no queue is read or written mid-iteration;
//   - single-queue operations hold the fanout lock shared plus the owner's
//     mutex, so different users proceed in parallel.
//
// Locks are always taken before a DB transaction is opened.
type Engine struct {
	store    *repository.Store
	shuffler queue.Shuffler
	log      *slog.Logger

	fanout sync.RWMutex
	users  keyedMutex
}

// NewEngine creates an Engine over store. A nil shuffler uses math/rand/v2.
func NewEngine(store *repository.Store, shuffler queue.Shuffler, log *slog.Logger) *Engine {
	if shuffler == nil {
		shuffler = queue.DefaultShuffler
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, shuffler: shuffler, log: log}
}

// NextCandidate consumes the next candidate for userID and hands its id to
// load while the queue locks are still held, so no rebalance can delete the
// candidate before load sees it. ok is false when no other live profile
// exists; load is not called then.
func (e *Engine) NextCandidate(ctx context.Context, userID uint64, load func(id uint64) error) (ok bool, err error) {
	defer e.lockUser(userID)()

	var id uint64
	err = e.store.Transaction(ctx, func(tx *repository.Store) error {
		id, ok, err = e.nextCandidate(ctx, tx, userID)
		return err
	})
	if err != nil || !ok {
		return false, err
	}
	return true, load(id)
}

// Rebalance runs fn in one transaction while holding the fanout lock exclusively.
// At most one rebalance is in flight; others wait for it to finish.
func (e *Engine) Rebalance(ctx context.Context, fn func(tx *repository.Store) error) error {
	e.fanout.Lock()
	defer e.fanout.Unlock()
	return e.store.Transaction(ctx, fn)
}

// shared holds the fanout lock in read mode so no rebalance interleaves.
func (e *Engine) shared() (unlock func()) {
	e.fanout.RLock()
	return e.fanout.RUnlock
}

func (e *Engine) lockUser(userID uint64) (unlock func()) {
	e.fanout.RLock()
	release := e.users.Lock(userID)
	return func() {
		release()
		e.fanout.RUnlock()
	}
}

func (e *Engine) ensureQueue(ctx context.Context, st *repository.Store, userID uint64) error {
	_, ok, err := st.Queues.Find(ctx, userID)
	if err != nil || ok {
		return err
	}
	others, err := st.Profiles.ListUserIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	return st.Queues.Save(ctx, queue.Build(userID, others, e.shuffler))
}

func (e *Engine) nextCandidate(ctx context.Context, st *repository.Store, userID uint64) (uint64, bool, error) {
	if err := e.ensureQueue(ctx, st, userID); err != nil {
		return 0, false, err
	}
	q, _, err := st.Queues.Find(ctx, userID)
	if err != nil {
		return 0, false, err
	}

	if q.Exhausted() {
		others, err := st.Profiles.ListUserIDs(ctx, userID)
		if err != nil {
			return 0, false, fmt.Errorf("list users: %w", err)
		}
		q.Reset(others, e.shuffler)
		metrics.QueueRegenerations.Inc()
		e.log.Debug("queue regenerated", "user", userID, "size", q.Len())
		if q.Len() == 0 {
			return 0, false, st.Queues.Save(ctx, q)
		}
	}

	id, ok, err := q.Next(func(candidate uint64) (bool, error) {
		return st.Profiles.Exists(ctx, candidate)
	})
	if err != nil {
		return 0, false, err
	}
	if err := st.Queues.Save(ctx, q); err != nil {
		return 0, false, err
	}
	return id, ok, nil
}

func (e *Engine) injectEverywhere(ctx context.Context, st *repository.Store, userID uint64) error {
	touched := 0
	err := st.Queues.ForEach(ctx, func(q *queue.Queue) bool {
		if q.Owner() == userID {
			return false
		}
		touched++
		return q.Inject(userID, e.shuffler)
	})
	if err != nil {
		return fmt.Errorf("inject %d into queues: %w", userID, err)
	}
	e.log.Debug("profile injected into queues", "user", userID, "queues", touched)
	return nil
}

func (e *Engine) removeEverywhere(ctx context.Context, st *repository.Store, userID uint64) error {
	touched := 0
	err := st.Queues.ForEach(ctx, func(q *queue.Queue) bool {
		if !q.Remove(userID) {
			return false
		}
		touched++
		return true
	})
	if err != nil {
		return fmt.Errorf("remove %d from queues: %w", userID, err)
	}
	e.log.Debug("profile removed from queues", "user", userID, "queues", touched)
	return nil
}

// keyedMutex hands out one mutex per user id and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uint64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(id uint64) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uint64]*refMutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
