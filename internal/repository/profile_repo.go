package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-discovery/internal/db"
	svcErr "github.com/oggyb/muzz-discovery/internal/errors"
)

// ProfileRepository provides data access methods for profiles and their photo.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// Save creates or fully replaces the profile of p.UserID.
//
// Behavior:
//   - The username must not belong to another user (ErrConflict otherwise).
//   - Name, bio and photo are overwritten, never merged; a save without a
//     photo removes the previous one.
//   - Only the first photo reference is retained.
func (r *ProfileRepository) Save(ctx context.Context, p *db.Profile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owners int64
		err := tx.Model(&db.Profile{}).
			Where("username = ? AND user_id <> ?", p.Username, p.UserID).
			Count(&owners).Error
		if err != nil {
			return err
		}
		if owners > 0 {
			return fmt.Errorf("username %q: %w", p.Username, svcErr.ErrConflict)
		}

		photos := p.Photos
		if len(photos) > 1 {
			photos = photos[:1]
		}

		row := db.Profile{UserID: p.UserID, Username: p.Username, Name: p.Name, Bio: p.Bio}
		err = tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"username", "name", "bio", "updated_at"}),
			}).
			Create(&row).Error
		if err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", p.UserID).Delete(&db.Photo{}).Error; err != nil {
			return err
		}
		for i := range photos {
			photos[i] = db.Photo{UserID: p.UserID, FileID: photos[i].FileID}
			if err := tx.Create(&photos[i]).Error; err != nil {
				return err
			}
		}
		p.Photos = photos
		return nil
	})
}

// Get returns the profile with its photo, or ErrNotFound.
func (r *ProfileRepository) Get(ctx context.Context, userID uint64) (*db.Profile, error) {
	var p db.Profile
	err := r.db.WithContext(ctx).
		Preload("Photos", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		Where("user_id = ?", userID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile %d: %w", userID, svcErr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Exists reports whether userID has a profile.
func (r *ProfileRepository) Exists(ctx context.Context, userID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count > 0, err
}

// ListUserIDs returns every user with a profile except exclude (0 excludes nobody).
// It always reads through to storage so callers never see a stale user set.
func (r *ProfileRepository) ListUserIDs(ctx context.Context, exclude uint64) ([]uint64, error) {
	var ids []uint64
	query := r.db.WithContext(ctx).Model(&db.Profile{}).Order("user_id")
	if exclude != 0 {
		query = query.Where("user_id <> ?", exclude)
	}
	if err := query.Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Usernames resolves handles for the given ids. Ids without a profile are absent from the map.
func (r *ProfileRepository) Usernames(ctx context.Context, ids []uint64) (map[uint64]string, error) {
	out := make(map[uint64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []db.Profile
	err := r.db.WithContext(ctx).
		Select("user_id", "username").
		Where("user_id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.UserID] = p.Username
	}
	return out, nil
}

// Delete removes the profile and its photos. Returns false when there was no profile.
func (r *ProfileRepository) Delete(ctx context.Context, userID uint64) (bool, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&db.Photo{}).Error; err != nil {
			return err
		}
		res := tx.Where("user_id = ?", userID).Delete(&db.Profile{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted > 0, err
}
