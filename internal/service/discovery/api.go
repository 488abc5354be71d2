package discovery

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/muzz-discovery/internal/server"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "discovery.DiscoveryService"

// Messages travel as JSON (see server.JSONCodec). User ids are decimal strings.

type Empty struct{}

type UserRequest struct {
	UserID string `json:"user_id"`
}

type ProfileView struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	PhotoRef string `json:"photo_ref,omitempty"`
	Likes    int64  `json:"likes"`
	Dislikes int64  `json:"dislikes"`
}

type NextProfileResponse struct {
	// Profile is nil when nobody else is available.
	Profile *ProfileView `json:"profile,omitempty"`
}

type SaveProfileRequest struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Bio      string   `json:"bio"`
	Photos   []string `json:"photos,omitempty"`
}

type SaveProfileResponse struct {
	Profile          *ProfileView `json:"profile"`
	Notified         int          `json:"notified"`
	FailedDeliveries int          `json:"failed_deliveries"`
}

type CastVoteRequest struct {
	ViewerID string `json:"viewer_id"`
	TargetID string `json:"target_id"`
	// Type is "like" or "dislike".
	Type string `json:"type"`
}

type CastVoteResponse struct {
	Mutual bool         `json:"mutual"`
	Target *ProfileView `json:"target,omitempty"`
}

type HasVotedRequest struct {
	ViewerID string `json:"viewer_id"`
	TargetID string `json:"target_id"`
}

type HasVotedResponse struct {
	Voted bool `json:"voted"`
}

type MatchView struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type ListMatchesResponse struct {
	Matches []MatchView `json:"matches"`
}

type CountVotesResponse struct {
	Likes    int64 `json:"likes"`
	Dislikes int64 `json:"dislikes"`
}

type SetNotificationsRequest struct {
	UserID  string `json:"user_id"`
	Enabled bool   `json:"enabled"`
}

type BroadcastRequest struct {
	RequesterID string `json:"requester_id"`
	Text        string `json:"text"`
}

type BroadcastResponse struct {
	Delivered int      `json:"delivered"`
	Failed    []string `json:"failed,omitempty"`
}

// DiscoveryServer is the server API of ServiceName.
type DiscoveryServer interface {
	NextProfile(context.Context, *UserRequest) (*NextProfileResponse, error)
	GetProfile(context.Context, *UserRequest) (*ProfileView, error)
	SaveProfile(context.Context, *SaveProfileRequest) (*SaveProfileResponse, error)
	DeleteProfile(context.Context, *UserRequest) (*Empty, error)
	CastVote(context.Context, *CastVoteRequest) (*CastVoteResponse, error)
	HasVoted(context.Context, *HasVotedRequest) (*HasVotedResponse, error)
	ListMatches(context.Context, *UserRequest) (*ListMatchesResponse, error)
	CountVotes(context.Context, *UserRequest) (*CountVotesResponse, error)
	SetNotifications(context.Context, *SetNotificationsRequest) (*Empty, error)
	Broadcast(context.Context, *BroadcastRequest) (*BroadcastResponse, error)
}

// ServiceDesc describes ServiceName for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DiscoveryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("NextProfile", DiscoveryServer.NextProfile),
		unary("GetProfile", DiscoveryServer.GetProfile),
		unary("SaveProfile", DiscoveryServer.SaveProfile),
		unary("DeleteProfile", DiscoveryServer.DeleteProfile),
		unary("CastVote", DiscoveryServer.CastVote),
		unary("HasVoted", DiscoveryServer.HasVoted),
		unary("ListMatches", DiscoveryServer.ListMatches),
		unary("CountVotes", DiscoveryServer.CountVotes),
		unary("SetNotifications", DiscoveryServer.SetNotifications),
		unary("Broadcast", DiscoveryServer.Broadcast),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterDiscoveryServer attaches srv to s.
func RegisterDiscoveryServer(s grpc.ServiceRegistrar, srv DiscoveryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req, Resp any](name string, call func(DiscoveryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DiscoveryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(DiscoveryServer), ctx, req.(*Req))
			})
		},
	}
}

// DiscoveryClient calls ServiceName over a client connection using the JSON codec.
type DiscoveryClient struct {
	cc grpc.ClientConnInterface
}

func NewDiscoveryClient(cc grpc.ClientConnInterface) *DiscoveryClient {
	return &DiscoveryClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(server.JSONCodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DiscoveryClient) NextProfile(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*NextProfileResponse, error) {
	return invoke[NextProfileResponse](ctx, c.cc, "NextProfile", in, opts)
}

func (c *DiscoveryClient) GetProfile(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*ProfileView, error) {
	return invoke[ProfileView](ctx, c.cc, "GetProfile", in, opts)
}

func (c *DiscoveryClient) SaveProfile(ctx context.Context, in *SaveProfileRequest, opts ...grpc.CallOption) (*SaveProfileResponse, error) {
	return invoke[SaveProfileResponse](ctx, c.cc, "SaveProfile", in, opts)
}

func (c *DiscoveryClient) DeleteProfile(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "DeleteProfile", in, opts)
}

func (c *DiscoveryClient) CastVote(ctx context.Context, in *CastVoteRequest, opts ...grpc.CallOption) (*CastVoteResponse, error) {
	return invoke[CastVoteResponse](ctx, c.cc, "CastVote", in, opts)
}

func (c *DiscoveryClient) HasVoted(ctx context.Context, in *HasVotedRequest, opts ...grpc.CallOption) (*HasVotedResponse, error) {
	return invoke[HasVotedResponse](ctx, c.cc, "HasVoted", in, opts)
}

func (c *DiscoveryClient) ListMatches(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*ListMatchesResponse, error) {
	return invoke[ListMatchesResponse](ctx, c.cc, "ListMatches", in, opts)
}

func (c *DiscoveryClient) CountVotes(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*CountVotesResponse, error) {
	return invoke[CountVotesResponse](ctx, c.cc, "CountVotes", in, opts)
}

func (c *DiscoveryClient) SetNotifications(ctx context.Context, in *SetNotificationsRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "SetNotifications", in, opts)
}

func (c *DiscoveryClient) Broadcast(ctx context.Context, in *BroadcastRequest, opts ...grpc.CallOption) (*BroadcastResponse, error) {
	return invoke[BroadcastResponse](ctx, c.cc, "Broadcast", in, opts)
}
