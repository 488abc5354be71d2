package db

import (
	"time"
)

// VoteType is the kind of vote a viewer casts on a target.
type VoteType string

const (
	VoteLike    VoteType = "like"
	VoteDislike VoteType = "dislike"
)

// Valid reports whether t is one of the known vote types.
func (t VoteType) Valid() bool {
	return t == VoteLike || t == VoteDislike
}

// Profile is owned by exactly one user; UserID is the opaque external identifier.
//
// A save overwrites the row wholesale, photos included.
type Profile struct {
	UserID    uint64    `gorm:"primaryKey;autoIncrement:false"`
	Username  string    `gorm:"uniqueIndex;size:64;not null"`
	Name      string    `gorm:"size:128"`
	Bio       string    `gorm:"type:text"`
	Photos    []Photo   `gorm:"foreignKey:UserID;references:UserID"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// PhotoRef returns the retained photo reference, or "" when the profile has none.
func (p *Profile) PhotoRef() string {
	if len(p.Photos) == 0 {
		return ""
	}
	return p.Photos[0].FileID
}

// Photo is an opaque media reference. At most one is kept per profile.
type Photo struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID uint64 `gorm:"index;not null"`
	FileID string `gorm:"size:255;not null"`
}

// Vote represents a viewer's like/dislike on a target.
//
// Composite PK: (ViewerID, TargetID)
//   - Ensures a single row per ordered pair (re-voting overwrites).
//
// Indexes:
//   - idx_target_type(target_id, type)
//     Serves per-target counts and "who liked me" lookups.
type Vote struct {
	ViewerID  uint64    `gorm:"primaryKey;autoIncrement:false"`
	TargetID  uint64    `gorm:"primaryKey;autoIncrement:false;index:idx_target_type,priority:1"`
	Type      VoteType  `gorm:"size:16;not null;index:idx_target_type,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Queue is the stored form of a user's browsing queue.
// Candidates is kept as a JSON list; Idx is the consumption cursor.
type Queue struct {
	UserID     uint64    `gorm:"primaryKey;autoIncrement:false"`
	Candidates []uint64  `gorm:"serializer:json;type:text"`
	Idx        int       `gorm:"not null;default:0"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// NotificationSubscription marks a user as opted in to new-profile alerts.
type NotificationSubscription struct {
	UserID    uint64    `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// AllModels lists every table owned by the discovery core, in migration order.
func AllModels() []any {
	return []any{&Profile{}, &Photo{}, &Vote{}, &Queue{}, &NotificationSubscription{}}
}
