package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-discovery/internal/db"
)

// VoteRepository provides data access methods for the Vote model.
// It encapsulates all queries related to likes/dislikes between users.
type VoteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new repository bound to the given DB connection.
func NewVoteRepository(database *gorm.DB) *VoteRepository {
	return &VoteRepository{db: database}
}

// Upsert inserts or overwrites the vote cast by viewer on target.
//
// Behavior:
//   - If (viewer_id, target_id) exists → the row's type is replaced.
//   - If it doesn't exist → a new row is inserted.
//   - Self-votes are not rejected here; callers check before writing.
//
// Example:
//
//	repo.Upsert(ctx, 1, 2, db.VoteLike) // user 1 liked user 2
func (r *VoteRepository) Upsert(ctx context.Context, viewerID, targetID uint64, t db.VoteType) error {
	vote := db.Vote{
		ViewerID: viewerID,
		TargetID: targetID,
		Type:     t,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "viewer_id"}, {Name: "target_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
		}).
		Create(&vote).Error
}

// Count returns how many votes of type t the target has received.
func (r *VoteRepository) Count(ctx context.Context, targetID uint64, t db.VoteType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Vote{}).
		Where("target_id = ? AND type = ?", targetID, t).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// HasVoted checks whether viewer has any vote stored on target.
func (r *VoteRepository) HasVoted(ctx context.Context, viewerID, targetID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Vote{}).
		Where("viewer_id = ? AND target_id = ?", viewerID, targetID).
		Count(&count).Error
	return count > 0, err
}

// Get returns the stored vote for the pair, or gorm.ErrRecordNotFound.
func (r *VoteRepository) Get(ctx context.Context, viewerID, targetID uint64) (*db.Vote, error) {
	var v db.Vote
	err := r.db.WithContext(ctx).
		Where("viewer_id = ? AND target_id = ?", viewerID, targetID).
		Take(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// MutualLikers returns the users that liked userID and were liked back by userID.
//
// Behavior:
//   - A counterpart c qualifies iff c → user = like AND user → c = like.
//   - Ordered by counterpart id for stable output.
//   - Counterparts are not checked against profiles here.
func (r *VoteRepository) MutualLikers(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Table("votes v").
		Where("v.target_id = ? AND v.type = ?", userID, db.VoteLike).
		Where(`
			EXISTS (
				SELECT 1 FROM votes v2
				WHERE v2.viewer_id = ?
				  AND v2.target_id = v.viewer_id
				  AND v2.type = ?
			)`, userID, db.VoteLike).
		Order("v.viewer_id").
		Pluck("v.viewer_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// TargetsOf lists every user that viewerID has voted on.
func (r *VoteRepository) TargetsOf(ctx context.Context, viewerID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Vote{}).
		Where("viewer_id = ?", viewerID).
		Pluck("target_id", &ids).Error
	return ids, err
}

// DeleteInvolving removes every vote where userID is viewer or target.
func (r *VoteRepository) DeleteInvolving(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).
		Where("viewer_id = ? OR target_id = ?", userID, userID).
		Delete(&db.Vote{}).Error
}
