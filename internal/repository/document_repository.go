package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docuchat/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// GetByHash returns the document for a content hash, or nil when no upload
// has been recorded for those bytes yet.
func (r *DocumentRepository) GetByHash(contentHash string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("content_hash = ?", contentHash).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// Create persists a document record. The content_hash primary key makes a
// second insert for the same bytes fail instead of duplicating the row.
func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}
