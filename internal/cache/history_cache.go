package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"gopherai-chat/internal/model"
)

// fillIfVersion writes the history only when the session's write version
// still matches the one the reader saw before loading from the store.
var fillIfVersion = redisv9.NewScript(`
local current = redis.call('GET', KEYS[2])
if not current then current = '0' end
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// HistoryCache keeps the message list of a session in Redis as one JSON value.
// Every write to a session bumps its version; a fill computed from an older
// version is discarded.
type HistoryCache struct {
	client     *redisv9.Client
	historyTTL time.Duration
	versionTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	return &HistoryCache{
		client:     client,
		historyTTL: historyTTL,
		// must outlive any in-flight read of the store
		versionTTL: 10 * historyTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, sessionID string) ([]model.Message, bool, error) {
	raw, err := c.client.Get(ctx, historyKey(sessionID)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return messages, true, nil
}

// HistoryVersion returns the session's current write version; 0 when it has never been written.
func (c *HistoryCache) HistoryVersion(ctx context.Context, sessionID string) (int64, error) {
	raw, err := c.client.Get(ctx, versionKey(sessionID)).Result()
	if errors.Is(err, redisv9.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get history version failed: %w", err)
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse history version failed: %w", err)
	}
	return version, nil
}

// SetHistoryIfVersion stores messages unless the session was written after
// version was read. It reports whether the value was stored.
func (c *HistoryCache) SetHistoryIfVersion(ctx context.Context, sessionID string, version int64, messages []model.Message) (bool, error) {
	payload, err := json.Marshal(messages)
	if err != nil {
		return false, fmt.Errorf("marshal history cache failed: %w", err)
	}
	stored, err := fillIfVersion.Run(ctx, c.client,
		[]string{historyKey(sessionID), versionKey(sessionID)},
		strconv.FormatInt(version, 10),
		payload,
		c.historyTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set history failed: %w", err)
	}
	return stored == 1, nil
}

// MarkDirty bumps the session's version and drops its cached history in one transaction.
func (c *HistoryCache) MarkDirty(ctx context.Context, sessionID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Incr(ctx, versionKey(sessionID))
		pipe.Expire(ctx, versionKey(sessionID), c.versionTTL)
		pipe.Del(ctx, historyKey(sessionID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis mark history dirty failed: %w", err)
	}
	return nil
}

func historyKey(sessionID string) string {
	return "chat:history:" + sessionID
}

func versionKey(sessionID string) string {
	return "chat:history:version:" + sessionID
}
