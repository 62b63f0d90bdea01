package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docuchat/internal/model"
)

// maxCachedTurns bounds the history slice kept per user. Reads wider than
// this go straight to the durable store and never touch redis.
const maxCachedTurns = 50

// HistoryCache is a redis read-through cache in front of the durable history
// table. Invalidation pairs a delete with a short-lived dirty marker so a
// racing read cannot re-cache a stale window while an insert is in flight.
type HistoryCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, userID int64) ([]model.Message, bool, error) {
	raw, err := c.client.Get(ctx, c.historyKey(userID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return messages, true, nil
}

// SetHistory caches a chronological window, keeping only the newest
// maxCachedTurns entries.
func (c *HistoryCache) SetHistory(ctx context.Context, userID int64, messages []model.Message) error {
	if len(messages) > maxCachedTurns {
		messages = messages[len(messages)-maxCachedTurns:]
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.historyKey(userID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached window and sets the dirty marker in one
// round trip. Called before every durable append.
func (c *HistoryCache) Invalidate(ctx context.Context, userID int64) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.dirtyKey(userID), "1", c.dirtyMarkerTTL)
	pipe.Del(ctx, c.historyKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, userID int64) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *HistoryCache) historyKey(userID int64) string {
	return fmt.Sprintf("chat:history:%d", userID)
}

func (c *HistoryCache) dirtyKey(userID int64) string {
	return fmt.Sprintf("chat:history:dirty:%d", userID)
}
