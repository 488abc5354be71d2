package discovery

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-discovery/internal/db"
	"github.com/oggyb/muzz-discovery/internal/delivery"
	svcErr "github.com/oggyb/muzz-discovery/internal/errors"
	"github.com/oggyb/muzz-discovery/internal/metrics"
)

var voteTypes = []string{string(db.VoteLike), string(db.VoteDislike)}

// VoteResult is the outcome of a cast vote.
type VoteResult struct {
	// Target is the refreshed view of the voted profile; nil if it no longer exists.
	Target *Candidate
	// Mutual is true when a like completed a mutual match.
	Mutual bool
}

// Match is a mutual-like counterpart resolved to its display handle.
type Match struct {
	UserID   uint64
	Username string
}

// CastVote records viewer's vote on target, overwriting any earlier vote.
//
// Behavior:
//   - Self-votes fail with ErrSelfVote and nothing is written.
//   - Unknown vote types fail with ErrValidation.
//   - A target without a profile is skipped: nothing is written and the
//     result carries no target.
//   - Cached totals of the target are dropped so the next read is exact.
//   - Queues are not touched.
//
// Example:
//
//	svc.CastVote(ctx, 1, 2, db.VoteLike) // user 1 liked user 2
func (s *Service) CastVote(ctx context.Context, viewerID, targetID uint64, t db.VoteType) (*VoteResult, error) {
	log := s.log(ctx)
	log.Debug("CastVote called", "viewer", viewerID, "target", targetID, "type", t)

	if viewerID == 0 || targetID == 0 {
		return nil, svcErr.Validation("viewer and target ids are required")
	}
	if viewerID == targetID {
		return nil, svcErr.ErrSelfVote
	}
	if !t.Valid() {
		return nil, svcErr.Validation("unknown vote type %q", t)
	}

	stored, err := s.storeVote(ctx, viewerID, targetID, t)
	if err != nil {
		return nil, err
	}
	if !stored {
		log.Debug("vote on missing profile ignored", "viewer", viewerID, "target", targetID)
		return &VoteResult{}, nil
	}
	s.invalidateCounts(ctx, targetID)
	metrics.VotesCast.WithLabelValues(string(t)).Inc()

	res := &VoteResult{}
	if t == db.VoteLike {
		back, err := s.store.Votes.Get(ctx, targetID, viewerID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return nil, fmt.Errorf("check mutual like: %w", err)
		default:
			res.Mutual = back.Type == db.VoteLike
		}
		if res.Mutual {
			metrics.MutualMatches.Inc()
		}
	}

	target, err := s.candidate(ctx, targetID)
	switch {
	case errors.Is(err, svcErr.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		res.Target = target
	}

	log.Info("vote cast", "viewer", viewerID, "target", targetID, "type", t, "mutual", res.Mutual)
	return res, nil
}

// storeVote writes the vote unless the target has no profile. Deletion cannot
// run between the check and the write.
func (s *Service) storeVote(ctx context.Context, viewerID, targetID uint64, t db.VoteType) (bool, error) {
	defer s.engine.shared()()

	exists, err := s.store.Profiles.Exists(ctx, targetID)
	if err != nil || !exists {
		return false, err
	}
	if err := s.store.Votes.Upsert(ctx, viewerID, targetID, t); err != nil {
		return false, fmt.Errorf("store vote: %w", err)
	}
	return true, nil
}

// HasVoted reports whether viewer has any vote stored on target.
func (s *Service) HasVoted(ctx context.Context, viewerID, targetID uint64) (bool, error) {
	return s.store.Votes.HasVoted(ctx, viewerID, targetID)
}

// CountVotes returns the like/dislike totals of target.
// Cache-first strategy:
//  1. Reads votes:count:<target>:<type> from Redis when configured.
//  2. On a miss or cache error, falls back to the DB.
//  3. Values loaded from the DB are written back with the configured TTL,
//     unless a vote on target invalidated the cache in the meantime.
func (s *Service) CountVotes(ctx context.Context, targetID uint64) (delivery.Counts, error) {
	likes, err := s.countVotes(ctx, targetID, db.VoteLike)
	if err != nil {
		return delivery.Counts{}, err
	}
	dislikes, err := s.countVotes(ctx, targetID, db.VoteDislike)
	if err != nil {
		return delivery.Counts{}, err
	}
	return delivery.Counts{Likes: likes, Dislikes: dislikes}, nil
}

func (s *Service) countVotes(ctx context.Context, targetID uint64, t db.VoteType) (int64, error) {
	var (
		gen  int64
		fill bool
	)
	if s.counts != nil {
		n, ok, err := s.counts.GetVoteCount(ctx, targetID, string(t))
		switch {
		case err != nil:
			s.log(ctx).Warn("vote count cache read failed", "target", targetID, "err", err)
		case ok:
			return n, nil
		default:
			// must be read before the DB count
			gen, err = s.counts.VoteCountGeneration(ctx, targetID)
			fill = err == nil
		}
	}

	n, err := s.store.Votes.Count(ctx, targetID, t)
	if err != nil {
		return 0, err
	}

	if fill {
		if err := s.counts.SetVoteCount(ctx, targetID, string(t), n, gen); err != nil {
			s.log(ctx).Warn("vote count cache write failed", "target", targetID, "err", err)
		}
	}
	return n, nil
}

func (s *Service) invalidateCounts(ctx context.Context, targetIDs ...uint64) {
	if s.counts == nil {
		return
	}
	if err := s.counts.InvalidateVoteCounts(ctx, voteTypes, targetIDs...); err != nil {
		s.log(ctx).Warn("vote count cache invalidation failed", "targets", targetIDs, "err", err)
	}
}

// MutualMatches returns every user that userID liked and that liked userID
// back, resolved to handles. Counterparts whose profile is gone are left out.
func (s *Service) MutualMatches(ctx context.Context, userID uint64) ([]Match, error) {
	s.log(ctx).Debug("MutualMatches called", "user", userID)

	ids, err := s.store.Votes.MutualLikers(ctx, userID)
	if err != nil {
		return nil, err
	}
	names, err := s.store.Profiles.Usernames(ctx, ids)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(ids))
	for _, id := range ids {
		name, ok := names[id]
		if !ok {
			continue
		}
		matches = append(matches, Match{UserID: id, Username: name})
	}
	return matches, nil
}
