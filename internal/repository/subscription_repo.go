package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-discovery/internal/db"
)

// SubscriptionRepository stores the set of users opted in to new-profile alerts.
type SubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new repository bound to the given DB connection.
func NewSubscriptionRepository(database *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: database}
}

// Set adds or removes userID from the subscriber set. Both directions are idempotent.
func (r *SubscriptionRepository) Set(ctx context.Context, userID uint64, enabled bool) error {
	if !enabled {
		return r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Delete(&db.NotificationSubscription{}).Error
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.NotificationSubscription{UserID: userID}).Error
}

// Subscribers lists every subscribed user in id order.
func (r *SubscriptionRepository) Subscribers(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.NotificationSubscription{}).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}
