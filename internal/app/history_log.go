package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"docuchat/internal/model"
)

// cacheWindow is the history slice kept in redis; per-call limits trim it.
const cacheWindow = 50

type HistoryRecords interface {
	Append(message *model.Message) error
	ListRecentByUserID(userID int64, limit int) ([]model.Message, error)
}

type HistoryCache interface {
	GetHistory(ctx context.Context, userID int64) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, userID int64, messages []model.Message) error
	Invalidate(ctx context.Context, userID int64) error
	IsDirty(ctx context.Context, userID int64) (bool, error)
}

// HistoryLog is the append-only conversation record: durable writes to MySQL
// with a redis read-through cache in front. Appends invalidate the cache and
// set a dirty marker so a concurrent read cannot re-cache a stale window.
type HistoryLog struct {
	records HistoryRecords
	cache   HistoryCache
}

func NewHistoryLog(records HistoryRecords, cache HistoryCache) *HistoryLog {
	return &HistoryLog{records: records, cache: cache}
}

func (l *HistoryLog) Append(ctx context.Context, userID int64, role, content string) error {
	if l.cache != nil {
		if err := l.cache.Invalidate(ctx, userID); err != nil {
			logrus.WithField("user_id", userID).WithError(err).Warn("invalidate history cache failed")
		}
	}
	return l.records.Append(&model.Message{
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
}

// Recent returns at most `limit` of the user's latest turns in chronological
// order, oldest first. The caller gets min(limit, stored) entries: windows
// wider than the cached slice skip the cache and read the table directly.
func (l *HistoryLog) Recent(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = cacheWindow
	}

	if l.cache == nil || limit > cacheWindow {
		return l.records.ListRecentByUserID(userID, limit)
	}

	if dirty, err := l.cache.IsDirty(ctx, userID); err == nil && !dirty {
		if cached, hit, cacheErr := l.cache.GetHistory(ctx, userID); cacheErr == nil && hit {
			return trimMessages(cached, limit), nil
		}
	}

	messages, err := l.records.ListRecentByUserID(userID, cacheWindow)
	if err != nil {
		return nil, err
	}
	if dirty, err := l.cache.IsDirty(ctx, userID); err == nil && !dirty {
		if err := l.cache.SetHistory(ctx, userID, messages); err != nil {
			logrus.WithField("user_id", userID).WithError(err).Warn("fill history cache failed")
		}
	}
	return trimMessages(messages, limit), nil
}

// trimMessages keeps the last `limit` entries of a chronological slice.
func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
