// Package delivery hands rendered profiles and notices to the chat transport.
// The transport lives outside this service and consumes a Redis stream.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	KindProfile = "profile"
	KindNotice  = "notice"

	// streamMaxLen caps the stream; consumers that lag further lose old entries.
	streamMaxLen = 100_000
)

// Card is the renderable part of a profile.
type Card struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	PhotoRef string `json:"photo_ref,omitempty"`
}

// Counts are the vote totals shown next to a candidate.
type Counts struct {
	Likes    int64 `json:"likes"`
	Dislikes int64 `json:"dislikes"`
}

// Options control how a profile card is rendered.
type Options struct {
	// ContactLink adds a link to the profile owner's handle.
	ContactLink bool `json:"contact_link"`
	// Counts, when set, renders like/dislike controls with totals.
	Counts *Counts `json:"counts,omitempty"`
}

// Envelope is one stream entry.
type Envelope struct {
	Kind    string   `json:"kind"`
	To      uint64   `json:"to"`
	Text    string   `json:"text,omitempty"`
	Card    *Card    `json:"card,omitempty"`
	Options *Options `json:"options,omitempty"`
}

// RedisPublisher appends envelopes to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisPublisher creates a publisher writing to the given stream.
func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream}
}

// DeliverProfile queues a profile card for toUser.
func (p *RedisPublisher) DeliverProfile(ctx context.Context, toUser uint64, card Card, opts Options) error {
	return p.publish(ctx, Envelope{Kind: KindProfile, To: toUser, Card: &card, Options: &opts})
}

// DeliverNotice queues a plain text notice for toUser.
func (p *RedisPublisher) DeliverNotice(ctx context.Context, toUser uint64, text string) error {
	return p.publish(ctx, Envelope{Kind: KindNotice, To: toUser, Text: text})
}

func (p *RedisPublisher) publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"to":      strconv.FormatUint(env.To, 10),
			"kind":    env.Kind,
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s to %d: %w", env.Kind, env.To, err)
	}
	return nil
}
