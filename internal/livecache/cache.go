package livecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"basileus/internal/army"
	"basileus/internal/campaign"
	"basileus/internal/combat"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SnapshotEvery is how many ticks pass between stored snapshots of a
// running battle. The final state is always stored.
const SnapshotEvery = 10

const writeTimeout = 500 * time.Millisecond

// Key patterns for live battle state.
func snapshotKey(battleID string) string { return "battle:" + battleID + ":snapshot" }
func resultKey(battleID string) string   { return "battle:" + battleID + ":result" }

// Cache keeps the latest snapshot and the final outcome of each battle in
// Redis, so any server instance can answer "how is battle X going".
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache connects to Redis from a connection URL.
func NewCache(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewCacheFromClient(rdb, ttl), nil
}

// NewCacheFromClient wraps an existing client.
func NewCacheFromClient(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

func (c *Cache) SetSnapshot(ctx context.Context, battleID string, st combat.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, snapshotKey(battleID), raw, c.ttl).Err()
}

func (c *Cache) SetResult(ctx context.Context, out campaign.Outcome) error {
	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, resultKey(out.BattleID), raw, c.ttl).Err()
}

// Battle is what the cache knows about one battle. Result is nil while it
// is still running.
type Battle struct {
	ID       string          `json:"id"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
}

// GetBattle returns ok=false when nothing is cached for battleID.
func (c *Cache) GetBattle(ctx context.Context, battleID string) (Battle, bool, error) {
	vals, err := c.rdb.MGet(ctx, snapshotKey(battleID), resultKey(battleID)).Result()
	if err != nil {
		return Battle{}, false, fmt.Errorf("get battle: %w", err)
	}
	b := Battle{ID: battleID}
	if s, ok := vals[0].(string); ok {
		b.Snapshot = json.RawMessage(s)
	}
	if s, ok := vals[1].(string); ok {
		b.Result = json.RawMessage(s)
	}
	if b.Snapshot == nil && b.Result == nil {
		return Battle{}, false, nil
	}
	return b, true, nil
}

func shouldSnapshot(st combat.State) bool {
	return st.Phase == combat.Ended || st.Tick%SnapshotEvery == 0
}

// Tick stores every SnapshotEvery-th snapshot. It runs on the battle
// goroutine, so failures are logged and dropped.
func (c *Cache) Tick(battleID string, st combat.State) {
	if !shouldSnapshot(st) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.SetSnapshot(ctx, battleID, st); err != nil {
		log.Warn().Err(err).Str("battle", battleID).Msg("Failed to cache battle snapshot")
	}
}

func (c *Cache) GridChanged(string, army.Event) {}

func (c *Cache) BattleStarted(string, string) {}

func (c *Cache) BattleFinished(_ string, out campaign.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.SetResult(ctx, out); err != nil {
		log.Warn().Err(err).Str("battle", out.BattleID).Msg("Failed to cache battle result")
	}
}
