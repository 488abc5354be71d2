package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-discovery/internal/db"
	"github.com/oggyb/muzz-discovery/internal/logger"
	"github.com/oggyb/muzz-discovery/internal/queue"
)

// fanoutBatchSize bounds how many stored queues are loaded at once during a scan.
const fanoutBatchSize = 200

// QueueRepository persists per-user discovery queues.
type QueueRepository struct {
	db *gorm.DB
}

// NewQueueRepository creates a new repository bound to the given DB connection.
func NewQueueRepository(database *gorm.DB) *QueueRepository {
	return &QueueRepository{db: database}
}

// Find loads the queue owned by userID. ok is false when none is stored.
// Stored state that breaks a queue invariant is repaired on load.
func (r *QueueRepository) Find(ctx context.Context, userID uint64) (q *queue.Queue, ok bool, err error) {
	var row db.Queue
	err = r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	q, err = queue.New(row.UserID, row.Candidates, row.Idx)
	if err != nil {
		logger.From(ctx).Warn("repairing stored queue", "user", userID, "err", err)
		q = queue.Restore(row.UserID, row.Candidates, row.Idx)
	}
	return q, true, nil
}

// Save validates q and upserts it.
func (r *QueueRepository) Save(ctx context.Context, q *queue.Queue) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("save queue of user %d: %w", q.Owner(), err)
	}
	row := db.Queue{
		UserID:     q.Owner(),
		Candidates: q.Items(),
		Idx:        q.Cursor(),
	}
	if row.Candidates == nil {
		row.Candidates = []uint64{}
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"candidates", "idx", "updated_at"}),
		}).
		Create(&row).Error
}

// Delete drops the queue owned by userID, if any.
func (r *QueueRepository) Delete(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&db.Queue{}).Error
}

// ForEach walks every stored queue in primary-key batches and calls fn with it.
// fn reports whether it changed the queue; changed queues are saved back.
func (r *QueueRepository) ForEach(ctx context.Context, fn func(q *queue.Queue) (changed bool)) error {
	var rows []db.Queue
	res := r.db.WithContext(ctx).
		FindInBatches(&rows, fanoutBatchSize, func(tx *gorm.DB, _ int) error {
			for _, row := range rows {
				q := queue.Restore(row.UserID, row.Candidates, row.Idx)
				if !fn(q) {
					continue
				}
				if err := r.Save(ctx, q); err != nil {
					return err
				}
			}
			return nil
		})
	return res.Error
}
