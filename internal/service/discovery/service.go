package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oggyb/muzz-discovery/internal/app"
	"github.com/oggyb/muzz-discovery/internal/db"
	"github.com/oggyb/muzz-discovery/internal/delivery"
	svcErr "github.com/oggyb/muzz-discovery/internal/errors"
	"github.com/oggyb/muzz-discovery/internal/logger"
	"github.com/oggyb/muzz-discovery/internal/metrics"
	"github.com/oggyb/muzz-discovery/internal/queue"
	"github.com/oggyb/muzz-discovery/internal/repository"
)

// CountCache is the optional read-through cache for vote totals.
type CountCache interface {
	GetVoteCount(ctx context.Context, targetID uint64, voteType string) (int64, bool, error)
	VoteCountGeneration(ctx context.Context, targetID uint64) (int64, error)
	// SetVoteCount writes n back unless targetID was invalidated after gen was read.
	SetVoteCount(ctx context.Context, targetID uint64, voteType string, n, gen int64) error
	InvalidateVoteCounts(ctx context.Context, voteTypes []string, targetIDs ...uint64) error
}

// Service is the discovery core: it serves the command-level triggers on top
// of the queue engine, the vote store and the notification fanout.
type Service struct {
	appCtx *app.AppContext
	store  *repository.Store
	engine *Engine
	counts CountCache
	fanout *Fanout
}

// Option tweaks a Service at construction time.
type Option func(*options)

type options struct {
	shuffler queue.Shuffler
}

// WithShuffler replaces the random source used for queue shuffles.
// Queues of different users shuffle in parallel, so s must be safe for
// concurrent use unless calls are serialized by the caller.
func WithShuffler(s queue.Shuffler) Option {
	return func(o *options) { o.shuffler = s }
}

// NewDiscoveryService creates a new discovery service with dependencies from AppContext.
// Dependencies include:
//   - DB connection (via repository.Store)
//   - RedisCache for vote counters, when configured
//   - Delivery edge for new-profile alerts and broadcasts
func NewDiscoveryService(appCtx *app.AppContext, opts ...Option) *Service {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := repository.NewStore(appCtx.DB)
	s := &Service{
		appCtx: appCtx,
		store:  store,
		engine: NewEngine(store, o.shuffler, appCtx.Logger),
		fanout: NewFanout(appCtx.Delivery, appCtx.Logger),
	}
	if appCtx.RedisCache != nil {
		s.counts = appCtx.RedisCache
	}
	return s
}

// Candidate is a profile ready to be rendered together with its vote totals.
type Candidate struct {
	Profile *db.Profile
	Counts  delivery.Counts
}

// Card converts the candidate into its delivery form.
func (c *Candidate) Card() delivery.Card {
	return delivery.Card{
		UserID:   c.Profile.UserID,
		Username: c.Profile.Username,
		Name:     c.Profile.Name,
		Bio:      c.Profile.Bio,
		PhotoRef: c.Profile.PhotoRef(),
	}
}

// ProfileInput is the data submitted on profile save.
type ProfileInput struct {
	UserID   uint64
	Username string
	Name     string
	Bio      string
	// Photos are opaque media references; only the first is kept.
	Photos []string
}

// SaveResult reports a profile save and the best-effort alert fanout.
type SaveResult struct {
	Profile       *db.Profile
	Notifications Report
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.From(ctx, s.appCtx.Logger)
}

// NextProfile returns the next candidate from userID's private queue, or nil
// when there is nobody else to show.
//
// Behavior:
//   - Creates the queue on first use, regenerates it once exhausted.
//   - Candidates whose profile vanished are pruned on the way, and the next
//     one is offered instead.
//   - Already voted users may come back after a regeneration.
func (s *Service) NextProfile(ctx context.Context, userID uint64) (*Candidate, error) {
	s.log(ctx).Debug("NextProfile called", "user", userID)

	if userID == 0 {
		return nil, svcErr.Validation("user id is required")
	}

	for {
		var c *Candidate
		ok, err := s.engine.NextCandidate(ctx, userID, func(id uint64) (err error) {
			c, err = s.candidate(ctx, id)
			return err
		})
		switch {
		case errors.Is(err, svcErr.ErrNotFound):
			// row removed outside a rebalance; the next pass prunes it
			continue
		case err != nil:
			return nil, fmt.Errorf("next candidate for %d: %w", userID, err)
		case !ok:
			return nil, nil
		}
		return c, nil
	}
}

// GetProfile returns userID's own profile with its vote totals.
func (s *Service) GetProfile(ctx context.Context, userID uint64) (*Candidate, error) {
	return s.candidate(ctx, userID)
}

// SaveProfile creates or fully replaces a profile, injects it into every
// other queue and then alerts subscribers.
//
// Behavior:
//   - A missing username is rejected before any write (ErrValidation).
//   - Profile write, queue injection and the saver's own queue creation
//     commit together or not at all.
//   - Subscriber alerts run after the commit and are best effort: a failed
//     delivery is logged and never undoes the save.
func (s *Service) SaveProfile(ctx context.Context, in ProfileInput) (*SaveResult, error) {
	log := s.log(ctx)
	log.Debug("SaveProfile called", "user", in.UserID)

	if in.UserID == 0 {
		return nil, svcErr.Validation("user id is required")
	}
	username := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(in.Username), "@"))
	if username == "" {
		return nil, svcErr.Validation("username is required to create a profile")
	}

	p := &db.Profile{
		UserID:   in.UserID,
		Username: username,
		Name:     in.Name,
		Bio:      in.Bio,
	}
	for _, ref := range in.Photos {
		if ref = strings.TrimSpace(ref); ref != "" {
			p.Photos = append(p.Photos, db.Photo{FileID: ref})
			break
		}
	}

	metrics.Rebalances.WithLabelValues("saved").Inc()
	err := s.engine.Rebalance(ctx, func(tx *repository.Store) error {
		if err := tx.Profiles.Save(ctx, p); err != nil {
			return err
		}
		if err := s.engine.injectEverywhere(ctx, tx, p.UserID); err != nil {
			return err
		}
		return s.engine.ensureQueue(ctx, tx, p.UserID)
	})
	if err != nil {
		log.Error("SaveProfile failed", "user", in.UserID, "err", err)
		return nil, err
	}

	saved, err := s.store.Profiles.Get(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	report := s.fanout.NotifyNewProfile(ctx, s.store.Subscriptions, saved)

	log.Info("profile saved", "user", saved.UserID, "notified", report.Delivered, "failed", len(report.Failed))
	return &SaveResult{Profile: saved, Notifications: report}, nil
}

// DeleteProfile removes userID's profile and everything hanging off it: the
// photo, the queue, the alert subscription, every vote cast by or on the user,
// and every occurrence of the user in other queues.
func (s *Service) DeleteProfile(ctx context.Context, userID uint64) error {
	log := s.log(ctx)
	log.Debug("DeleteProfile called", "user", userID)

	var targets []uint64
	metrics.Rebalances.WithLabelValues("deleted").Inc()
	err := s.engine.Rebalance(ctx, func(tx *repository.Store) error {
		exists, err := tx.Profiles.Exists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("profile %d: %w", userID, svcErr.ErrNotFound)
		}

		if targets, err = tx.Votes.TargetsOf(ctx, userID); err != nil {
			return err
		}
		if err := tx.Votes.DeleteInvolving(ctx, userID); err != nil {
			return err
		}
		if err := tx.Queues.Delete(ctx, userID); err != nil {
			return err
		}
		if err := tx.Subscriptions.Set(ctx, userID, false); err != nil {
			return err
		}
		if _, err := tx.Profiles.Delete(ctx, userID); err != nil {
			return err
		}
		return s.engine.removeEverywhere(ctx, tx, userID)
	})
	if err != nil {
		return err
	}

	s.invalidateCounts(ctx, append(targets, userID)...)
	log.Info("profile deleted", "user", userID)
	return nil
}

// SetNotificationSubscription opts userID in or out of new-profile alerts.
func (s *Service) SetNotificationSubscription(ctx context.Context, userID uint64, enabled bool) error {
	s.log(ctx).Debug("SetNotificationSubscription called", "user", userID, "enabled", enabled)
	if userID == 0 {
		return svcErr.Validation("user id is required")
	}
	return s.store.Subscriptions.Set(ctx, userID, enabled)
}

// Broadcast sends a plain notice to every user with a profile. Only the
// configured admin may call it.
func (s *Service) Broadcast(ctx context.Context, requester uint64, text string) (Report, error) {
	admin := uint64(0)
	if s.appCtx.Config != nil {
		admin = s.appCtx.Config.App.AdminID
	}
	if admin == 0 || requester != admin {
		return Report{}, svcErr.ErrPermissionDenied
	}
	if strings.TrimSpace(text) == "" {
		return Report{}, svcErr.Validation("broadcast text is empty")
	}

	recipients, err := s.store.Profiles.ListUserIDs(ctx, 0)
	if err != nil {
		return Report{}, err
	}
	report := s.fanout.Broadcast(ctx, recipients, text)
	s.log(ctx).Info("broadcast sent", "delivered", report.Delivered, "failed", len(report.Failed))
	return report, nil
}

func (s *Service) candidate(ctx context.Context, userID uint64) (*Candidate, error) {
	p, err := s.store.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.CountVotes(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Candidate{Profile: p, Counts: counts}, nil
}
