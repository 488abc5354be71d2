package discovery

import (
	"context"
	"strconv"

	"github.com/oggyb/muzz-discovery/internal/db"
	svcErr "github.com/oggyb/muzz-discovery/internal/errors"
)

// Handler exposes Service over gRPC. It parses ids, calls the service and
// maps domain errors to status codes.
type Handler struct {
	svc *Service
}

var _ DiscoveryServer = (*Handler)(nil)

// NewHandler wraps svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func parseID(field, v string) (uint64, error) {
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, svcErr.InvalidArgument(field + " must be a valid uint64")
	}
	return id, nil
}

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }

func toView(c *Candidate) *ProfileView {
	if c == nil {
		return nil
	}
	return &ProfileView{
		UserID:   formatID(c.Profile.UserID),
		Username: c.Profile.Username,
		Name:     c.Profile.Name,
		Bio:      c.Profile.Bio,
		PhotoRef: c.Profile.PhotoRef(),
		Likes:    c.Counts.Likes,
		Dislikes: c.Counts.Dislikes,
	}
}

func (h *Handler) NextProfile(ctx context.Context, req *UserRequest) (*NextProfileResponse, error) {
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		return nil, err
	}
	c, err := h.svc.NextProfile(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &NextProfileResponse{Profile: toView(c)}, nil
}

func (h *Handler) GetProfile(ctx context.Context, req *UserRequest) (*ProfileView, error) {
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		return nil, err
	}
	c, err := h.svc.GetProfile(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return toView(c), nil
}

func (h *Handler) SaveProfile(ctx context.Context, req *SaveProfileRequest) (*SaveProfileResponse, error) {
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		return nil, err
	}
	res, err := h.svc.SaveProfile(ctx, ProfileInput{
		UserID:   userID,
		Username: req.Username,
		Name:     req.Name,
		Bio:      req.Bio,
		Photos:   req.Photos,
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &SaveProfileResponse{
		Profile:          toView(&Candidate{Profile: res.Profile}),
		Notified:         res.Notifications.Delivered,
		FailedDeliveries: len(res.Notifications.Failed),
	}, nil
}

func (h *Handler) DeleteProfile(ctx context.Context, req *UserRequest) (*Empty, error) {
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		return nil, err
	}
	if err := h.svc.DeleteProfile(ctx, userID); err != nil {
		return nil, svcErr.Map(err)
	}
	return &Empty{}, nil
}

func (h *Handler) CastVote(ctx context.Context, req *CastVoteRequest) (*CastVoteResponse, error) {
	viewerID, err := parseID("viewer_id", req.ViewerID)
	if err != nil {
		return nil, err
	}
	targetID, err := parseID("target_id", req.TargetID)
	if err != nil {
		return nil, err
	}
	res, err := h.svc.CastVote(ctx, viewerID, targetID, db.VoteType(req.Type))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &CastVoteResponse{Mutual: res.Mutual, Target: toView(res.Target)}, nil
}

func (h *Handler) HasVoted(ctx context.Context, req *HasVotedRequest) (*HasVotedResponse, error) {
	viewerID, err := parseID("viewer_id", req.ViewerID)
	if err != nil {
		return nil, err
	}
	targetID, err := parseID("target_id", req.TargetID)
	if err != nil {
		return nil, err
	}
	voted, err := h.svc.HasVoted(ctx, viewerID, targetID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &HasVotedResponse{Voted: voted}, nil
}

func (h *Handler) ListMatches(ctx context.Context, req *UserRequest) (*ListMatchesResponse, error) {
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		return nil, err
	}
	matches, err := h.svc.MutualMatches(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	resp := &ListMatchesResponse{Matches: make([]MatchView, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, MatchView{UserID: formatID(m.UserID), Username: m.Username})
	}
	return resp, nil
}

func (h *Handler) CountVotes(ctx context.Context, req *UserRequest) (*CountVotesResponse, error) {
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		return nil, err
	}
	counts, err := h.svc.CountVotes(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &CountVotesResponse{Likes: counts.Likes, Dislikes: counts.Dislikes}, nil
}

func (h *Handler) SetNotifications(ctx context.Context, req *SetNotificationsRequest) (*Empty, error) {
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		return nil, err
	}
	if err := h.svc.SetNotificationSubscription(ctx, userID, req.Enabled); err != nil {
		return nil, svcErr.Map(err)
	}
	return &Empty{}, nil
}

func (h *Handler) Broadcast(ctx context.Context, req *BroadcastRequest) (*BroadcastResponse, error) {
	requester, err := parseID("requester_id", req.RequesterID)
	if err != nil {
		return nil, err
	}
	report, err := h.svc.Broadcast(ctx, requester, req.Text)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	resp := &BroadcastResponse{Delivered: report.Delivered}
	for _, id := range report.Failed {
		resp.Failed = append(resp.Failed, formatID(id))
	}
	return resp, nil
}
