package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freeeve/minimalists/api/internal/repository"
	"github.com/freeeve/minimalists/api/pkg/conquest"
)

const liveKey = "matches:live"

func snapshotKey(matchID string) string { return "match:" + matchID + ":snapshot" }

// SetSnapshot stores the latest compressed snapshot for a live match. A
// zero ttl keeps it until deleted.
func (c *Client) SetSnapshot(ctx context.Context, matchID string, snap *conquest.Snapshot, ttl time.Duration) error {
	data, err := repository.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, snapshotKey(matchID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the cached snapshot, or nil if none is stored.
func (c *Client) GetSnapshot(ctx context.Context, matchID string) (*conquest.Snapshot, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(matchID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return repository.DecodeSnapshot(data)
}

// AddLive marks a match as running.
func (c *Client) AddLive(ctx context.Context, matchID string) error {
	return c.rdb.SAdd(ctx, liveKey, matchID).Err()
}

// RemoveLive clears a match from the running set.
func (c *Client) RemoveLive(ctx context.Context, matchID string) error {
	return c.rdb.SRem(ctx, liveKey, matchID).Err()
}

// ListLive returns the IDs of all running matches.
func (c *Client) ListLive(ctx context.Context) ([]string, error) {
	return c.rdb.SMembers(ctx, liveKey).Result()
}

// DeleteMatchData removes all Redis data for a match (on match end).
func (c *Client) DeleteMatchData(ctx context.Context, matchID string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, snapshotKey(matchID))
	pipe.SRem(ctx, liveKey, matchID)
	_, err := pipe.Exec(ctx)
	return err
}

var _ repository.MatchCache = (*Client)(nil)
