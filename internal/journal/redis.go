package journal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "auction:run:"

// Redis stores a run's entries in one sorted set scored by version.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis scopes the journal to runID. A ttl of zero keeps the key until it
// is deleted by hand.
func NewRedis(client *redis.Client, runID string, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		key:    keyPrefix + runID + ":events",
		ttl:    ttl,
	}
}

func (r *Redis) Key() string { return r.key }

func (r *Redis) Record(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(entries))
	for _, e := range entries {
		data, err := encodeEntry(e)
		if err != nil {
			return err
		}
		members = append(members, redis.Z{Score: float64(e.Version), Member: data})
	}

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, r.key, members...)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record %d entries: %w", len(entries), err)
	}
	return nil
}

func (r *Redis) Replay(ctx context.Context, since int64) ([]Entry, error) {
	raw, err := r.client.ZRangeByScore(ctx, r.key, &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(since, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("replay since %d: %w", since, err)
	}

	out := make([]Entry, 0, len(raw))
	for _, member := range raw {
		e, err := decodeEntry([]byte(member))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return contiguous(out, since), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
