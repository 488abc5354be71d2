// Package queue holds the per-user discovery queue: an ordered list of
// candidate user ids and a cursor separating already offered entries
// (before the cursor) from the ones not yet offered.
//
// Invariants kept by every operation:
//   - 0 <= cursor <= len(items)
//   - no duplicate ids
//   - the owner never appears in its own queue
package queue

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
)

// ErrInvalid is returned when stored queue state breaks an invariant.
var ErrInvalid = errors.New("invalid queue")

// Shuffler permutes n elements uniformly. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultShuffler uses the concurrency-safe top-level math/rand/v2 source.
var DefaultShuffler Shuffler = globalShuffler{}

// LiveFunc reports whether a candidate still has a profile.
type LiveFunc func(id uint64) (bool, error)

type Queue struct {
	owner  uint64
	items  []uint64
	cursor int
}

// New restores a queue from stored state and validates it.
func New(owner uint64, items []uint64, cursor int) (*Queue, error) {
	q := &Queue{owner: owner, items: slices.Clone(items), cursor: cursor}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// Restore rebuilds a queue from possibly inconsistent stored state: the owner
// and repeated ids are dropped (keeping the first occurrence) and the cursor
// is recomputed over what remains.
func Restore(owner uint64, items []uint64, cursor int) *Queue {
	cursor = max(0, min(cursor, len(items)))
	q := &Queue{owner: owner, items: make([]uint64, 0, len(items))}
	seen := make(map[uint64]struct{}, len(items))
	for i, id := range items {
		_, dup := seen[id]
		if id == owner || dup {
			continue
		}
		seen[id] = struct{}{}
		q.items = append(q.items, id)
		if i < cursor {
			q.cursor++
		}
	}
	return q
}

// Build creates a fresh queue over candidates: the owner and duplicates are
// dropped, the rest shuffled, cursor at 0.
func Build(owner uint64, candidates []uint64, s Shuffler) *Queue {
	q := &Queue{owner: owner}
	q.Reset(candidates, s)
	return q
}

func (q *Queue) Owner() uint64 { return q.owner }
func (q *Queue) Cursor() int   { return q.cursor }
func (q *Queue) Len() int      { return len(q.items) }

// Items returns a copy of the full ordered sequence.
func (q *Queue) Items() []uint64 { return slices.Clone(q.items) }

// Unseen returns the entries not yet offered, in order.
func (q *Queue) Unseen() []uint64 { return slices.Clone(q.items[q.cursor:]) }

// Exhausted reports whether nothing is left to offer (true for an empty queue).
func (q *Queue) Exhausted() bool { return q.cursor >= len(q.items) }

// Validate checks the queue invariants.
func (q *Queue) Validate() error {
	if q.cursor < 0 || q.cursor > len(q.items) {
		return fmt.Errorf("%w: cursor %d outside [0, %d]", ErrInvalid, q.cursor, len(q.items))
	}
	seen := make(map[uint64]struct{}, len(q.items))
	for _, id := range q.items {
		if id == q.owner {
			return fmt.Errorf("%w: owner %d listed in own queue", ErrInvalid, q.owner)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate candidate %d", ErrInvalid, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Reset replaces the whole queue with a shuffled copy of candidates and
// rewinds the cursor. Already voted users may come back this way.
func (q *Queue) Reset(candidates []uint64, s Shuffler) {
	items := make([]uint64, 0, len(candidates))
	seen := make(map[uint64]struct{}, len(candidates))
	for _, id := range candidates {
		if id == q.owner {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		items = append(items, id)
	}
	shuffle(items, s)
	q.items = items
	q.cursor = 0
}

// Remove drops id from the queue. Entries removed before the cursor pull the
// cursor back so the not-yet-offered remainder keeps its position.
func (q *Queue) Remove(id uint64) bool {
	kept := q.items[:0]
	before := 0
	for i, v := range q.items {
		if v == id {
			if i < q.cursor {
				before++
			}
			continue
		}
		kept = append(kept, v)
	}
	if len(kept) == len(q.items) {
		return false
	}
	clear(q.items[len(kept):])
	q.items = kept
	q.cursor = min(q.cursor-before, len(q.items))
	return true
}

// Inject places id at a uniformly random position of the unseen tail.
// The seen prefix is left untouched. Injecting the owner is a no-op.
func (q *Queue) Inject(id uint64, s Shuffler) bool {
	if id == q.owner {
		return false
	}
	q.Remove(id)

	unseen := append(q.Unseen(), id)
	shuffle(unseen, s)
	q.items = append(q.items[:q.cursor], unseen...)
	return true
}

// Next scans forward from the cursor. Candidates without a live profile are
// removed permanently; the first live one is returned and the cursor moves
// past it. ok is false when the tail holds no live candidate.
func (q *Queue) Next(live LiveFunc) (id uint64, ok bool, err error) {
	for q.cursor < len(q.items) {
		candidate := q.items[q.cursor]
		alive, err := live(candidate)
		if err != nil {
			return 0, false, err
		}
		if alive {
			q.cursor++
			return candidate, true, nil
		}
		q.items = slices.Delete(q.items, q.cursor, q.cursor+1)
	}
	return 0, false, nil
}

func shuffle(items []uint64, s Shuffler) {
	if s == nil {
		s = DefaultShuffler
	}
	s.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
}
