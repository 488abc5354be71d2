package delivery

import "context"

// Deliverer is the outbound edge towards users. Calls are fire-and-forget
// from the caller's point of view: an error is reported, never retried here.
type Deliverer interface {
	DeliverProfile(ctx context.Context, toUser uint64, card Card, opts Options) error
	DeliverNotice(ctx context.Context, toUser uint64, text string) error
}

var _ Deliverer = (*RedisPublisher)(nil)
