package db

import (
	"fmt"
	"log"
	"math/rand/v2"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedTestData resets the database and populates it with demo profiles and votes.
//
// Behavior:
//  1. Clears every discovery table (queues are rebuilt lazily on first request).
//  2. Creates 20 profiles, every other one with a photo.
//  3. Generates ~150 votes with ~70% likes, and every 3rd ensures a mutual like.
//  4. Subscribes every 4th user to new-profile alerts.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	// --- Fresh start ---
	if err := ClearAll(db); err != nil {
		return err
	}
	log.Println("Cleared existing data")

	// --- Seed Profiles ---
	for i := uint64(1); i <= 20; i++ {
		p := Profile{
			UserID:   i,
			Username: fmt.Sprintf("user%d", i),
			Name:     fmt.Sprintf("User %d", i),
			Bio:      fmt.Sprintf("Hi, I am demo user number %d.", i),
		}
		if i%2 == 0 {
			p.Photos = []Photo{{UserID: i, FileID: fmt.Sprintf("photo-%d", i)}}
		}
		if err := db.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
		if i%4 == 0 {
			if err := db.Create(&NotificationSubscription{UserID: i}).Error; err != nil {
				return fmt.Errorf("failed to seed subscription: %w", err)
			}
		}
	}
	log.Println("Seeded 20 profiles.")

	// --- Seed Votes ---
	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "viewer_id"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
	}
	counter := 0
	for viewerID := uint64(1); viewerID <= 20; viewerID++ {
		for j := 0; j < 8; j++ {
			targetID := r.Uint64N(20) + 1
			if viewerID == targetID {
				continue
			}

			vote := Vote{ViewerID: viewerID, TargetID: targetID, Type: VoteDislike}
			if r.IntN(100) < 70 {
				vote.Type = VoteLike
			}

			// guarantee mutual likes every 3rd pair
			if counter%3 == 0 {
				vote.Type = VoteLike
				back := Vote{ViewerID: targetID, TargetID: viewerID, Type: VoteLike}
				if err := db.Clauses(upsert).Create(&back).Error; err != nil {
					return fmt.Errorf("failed to seed vote: %w", err)
				}
			}

			if err := db.Clauses(upsert).Create(&vote).Error; err != nil {
				return fmt.Errorf("failed to seed vote: %w", err)
			}
			counter++
		}
	}
	log.Printf("Seeded %d vote pairs.", counter)

	return nil
}

// ClearAll wipes every discovery table.
func ClearAll(db *gorm.DB) error {
	for _, table := range []string{"votes", "queues", "notification_subscriptions", "photos", "profiles"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
