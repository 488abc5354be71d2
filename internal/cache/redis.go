package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/muzz-discovery/internal/config"
)

type RedisCache struct {
	Client *redis.Client
	// TTL applies to cached vote counters and is refreshed on access.
	TTL time.Duration
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	ttl := cfg.Votes.CountTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{Client: redis.NewClient(opts), TTL: ttl}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForVoteCount generates Redis key for a target's vote counter of one type.
func (c *RedisCache) KeyForVoteCount(targetID uint64, voteType string) string {
	return fmt.Sprintf("votes:count:%d:%s", targetID, voteType)
}

// GetVoteCount returns the cached counter. ok is false on a cache miss.
func (c *RedisCache) GetVoteCount(ctx context.Context, targetID uint64, voteType string) (n int64, ok bool, err error) {
	key := c.KeyForVoteCount(targetID, voteType)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt counter %s: %w", key, err)
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, c.TTL).Err()
	return n, true, nil
}

// KeyForVoteGeneration generates Redis key for a target's counter generation.
// The generation is bumped on every invalidation.
func (c *RedisCache) KeyForVoteGeneration(targetID uint64) string {
	return fmt.Sprintf("votes:gen:%d", targetID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, g getter, key string) (int64, error) {
	val, err := g.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// VoteCountGeneration returns the current counter generation of targetID.
// Read it before loading a count from the database and hand it to SetVoteCount.
func (c *RedisCache) VoteCountGeneration(ctx context.Context, targetID uint64) (int64, error) {
	return readGeneration(ctx, c.Client, c.KeyForVoteGeneration(targetID))
}

// SetVoteCount stores a counter loaded from the database, unless the target
// was invalidated after gen was read. A skipped write is not an error.
func (c *RedisCache) SetVoteCount(ctx context.Context, targetID uint64, voteType string, n, gen int64) error {
	genKey := c.KeyForVoteGeneration(targetID)
	key := c.KeyForVoteCount(targetID, voteType)

	err := c.Client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readGeneration(ctx, tx, genKey)
		if err != nil {
			return err
		}
		if cur != gen {
			return nil // invalidated meanwhile
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, n, c.TTL)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// InvalidateVoteCounts drops every counter of the given targets and bumps
// their generation in one MULTI block. Counters are rebuilt from the database
// on the next read.
func (c *RedisCache) InvalidateVoteCounts(ctx context.Context, voteTypes []string, targetIDs ...uint64) error {
	if len(targetIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(targetIDs)*len(voteTypes))
	for _, id := range targetIDs {
		for _, t := range voteTypes {
			keys = append(keys, c.KeyForVoteCount(id, t))
		}
	}
	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range targetIDs {
			pipe.Incr(ctx, c.KeyForVoteGeneration(id))
		}
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		return nil
	})
	return err
}
