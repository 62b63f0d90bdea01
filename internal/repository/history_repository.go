package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docuchat/internal/model"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Append(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("append history failed: %w", err)
	}
	return nil
}

// ListRecentByUserID returns the last `limit` turns for a user in
// chronological order. The query walks the index most-recent-first, so the
// slice is reversed before returning; callers always see oldest-first.
func (r *HistoryRepository) ListRecentByUserID(userID int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	var messages []model.Message
	if err := r.db.Where("user_id = ?", userID).Order("id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list recent history failed: %w", err)
	}
	ReverseMessages(messages)
	return messages, nil
}

// ReverseMessages flips a most-recent-first slice into chronological order
// in place.
func ReverseMessages(messages []model.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
