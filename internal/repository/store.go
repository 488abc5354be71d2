package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the repositories that share one connection (or transaction).
type Store struct {
	db *gorm.DB

	Profiles      *ProfileRepository
	Votes         *VoteRepository
	Queues        *QueueRepository
	Subscriptions *SubscriptionRepository
}

// NewStore binds every repository to the given DB handle.
func NewStore(database *gorm.DB) *Store {
	return &Store{
		db:            database,
		Profiles:      NewProfileRepository(database),
		Votes:         NewVoteRepository(database),
		Queues:        NewQueueRepository(database),
		Subscriptions: NewSubscriptionRepository(database),
	}
}

// Transaction runs fn against a Store bound to a single DB transaction.
// Any error returned by fn rolls every write back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
