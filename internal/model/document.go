package model

import "time"

// Document is a content-addressed record of a file already uploaded to the
// remote Gemini file store. ContentHash is the SHA-256 of the raw bytes;
// two byte-identical uploads always map to one row and one remote resource.
type Document struct {
	ContentHash string    `gorm:"primaryKey;size:64" json:"content_hash"`
	SourceRef   string    `gorm:"size:256" json:"source_ref"`
	RemoteID    string    `gorm:"size:128;not null" json:"remote_id"`
	DisplayName string    `gorm:"size:256;not null" json:"display_name"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func (Document) TableName() string {
	return "documents"
}

// FileRef is a resolved remote file handle, valid for the current request
// only. Remote handles have a bounded lifetime, so a FileRef is never stored.
type FileRef struct {
	URI      string
	MIMEType string
}
