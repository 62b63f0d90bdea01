package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"docuchat/internal/gemini"
	"docuchat/internal/model"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotPDF           = errors.New("only PDF documents are accepted")
	ErrIngestionFailed  = errors.New("remote service failed to process the document")
	ErrIngestionTimeout = errors.New("document processing did not finish in time")
)

var pdfMagic = []byte("%PDF-")

type FileIngester interface {
	Upload(ctx context.Context, r io.Reader, displayName string) (remoteID string, state gemini.IngestState, err error)
	Status(ctx context.Context, remoteID string) (gemini.IngestState, error)
}

type DocumentRecords interface {
	GetByHash(contentHash string) (*model.Document, error)
	Create(doc *model.Document) error
}

type DeskRegistry interface {
	Attach(userID int64, doc model.Document) int
	ActiveDocuments(userID int64) []model.Document
	Clear(userID int64) bool
}

// DocumentService deduplicates inbound documents against the remote file
// store. For any two calls with byte-identical content at most one remote
// upload happens process-wide; every caller observes the same remote_id.
type DocumentService struct {
	records      DocumentRecords
	ingester     FileIngester
	registry     DeskRegistry
	pollInterval time.Duration
	maxPolls     int
	stagingDir   string

	mu       sync.Mutex
	inflight map[string]*hashLock
}

// hashLock serializes uploads of one content hash. The ref count lets the
// last holder remove the entry so the map does not grow with every distinct
// document ever seen.
type hashLock struct {
	mu   sync.Mutex
	refs int
}

func NewDocumentService(
	records DocumentRecords,
	ingester FileIngester,
	registry DeskRegistry,
	pollInterval time.Duration,
	maxPolls int,
) *DocumentService {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if maxPolls <= 0 {
		maxPolls = 30
	}
	return &DocumentService{
		records:      records,
		ingester:     ingester,
		registry:     registry,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		stagingDir:   os.TempDir(),
		inflight:     make(map[string]*hashLock),
	}
}

type ReceiveInput struct {
	UserID      int64
	Content     []byte
	DisplayName string
	SourceRef   string
}

type ReceiveResult struct {
	Document     model.Document `json:"document"`
	DeskSize     int            `json:"desk_size"`
	Deduplicated bool           `json:"deduplicated"`
}

// Receive runs the full inbound-document path: resolve-or-upload, then
// attach to the user's desk. Attach is idempotent by content hash, so
// re-sending a known document leaves the desk size unchanged.
func (s *DocumentService) Receive(ctx context.Context, input ReceiveInput) (*ReceiveResult, error) {
	if input.UserID == 0 || len(input.Content) == 0 || input.DisplayName == "" {
		return nil, ErrInvalidInput
	}
	if !bytes.HasPrefix(input.Content, pdfMagic) {
		return nil, ErrNotPDF
	}

	doc, existed, err := s.resolveOrUpload(ctx, input)
	if err != nil {
		return nil, err
	}

	deskSize := s.registry.Attach(input.UserID, *doc)
	return &ReceiveResult{
		Document:     *doc,
		DeskSize:     deskSize,
		Deduplicated: existed,
	}, nil
}

func (s *DocumentService) resolveOrUpload(ctx context.Context, input ReceiveInput) (*model.Document, bool, error) {
	sum := sha256.Sum256(input.Content)
	contentHash := hex.EncodeToString(sum[:])

	if doc, err := s.records.GetByHash(contentHash); err != nil {
		return nil, false, err
	} else if doc != nil {
		return doc, true, nil
	}

	unlock := s.lockHash(contentHash)
	defer unlock()

	// another request may have finished the upload while we waited
	if doc, err := s.records.GetByHash(contentHash); err != nil {
		return nil, false, err
	} else if doc != nil {
		return doc, true, nil
	}

	remoteID, err := s.upload(ctx, input)
	if err != nil {
		return nil, false, err
	}

	doc := &model.Document{
		ContentHash: contentHash,
		SourceRef:   input.SourceRef,
		RemoteID:    remoteID,
		DisplayName: input.DisplayName,
		UploadedAt:  time.Now(),
	}
	if err := s.records.Create(doc); err != nil {
		return nil, false, err
	}

	logrus.WithFields(logrus.Fields{
		"content_hash": contentHash,
		"remote_id":    remoteID,
		"display_name": input.DisplayName,
	}).Info("document uploaded")
	return doc, false, nil
}

// upload stages the bytes to a temp file, submits them to the remote store
// and polls until the file leaves the processing state. The staging file is
// removed on every exit path.
func (s *DocumentService) upload(ctx context.Context, input ReceiveInput) (string, error) {
	staged, err := os.CreateTemp(s.stagingDir, "docuchat-upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("stage upload failed: %w", err)
	}
	defer func() {
		staged.Close()
		os.Remove(staged.Name())
	}()

	if _, err := staged.Write(input.Content); err != nil {
		return "", fmt.Errorf("stage upload failed: %w", err)
	}
	if _, err := staged.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("stage upload failed: %w", err)
	}

	remoteID, state, err := s.ingester.Upload(ctx, staged, input.DisplayName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}

	for attempt := 0; state == gemini.StateProcessing; attempt++ {
		if attempt >= s.maxPolls {
			return "", fmt.Errorf("%w: %s still processing after %d polls", ErrIngestionTimeout, remoteID, s.maxPolls)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.pollInterval):
		}
		state, err = s.ingester.Status(ctx, remoteID)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrIngestionFailed, err)
		}
	}

	if state != gemini.StateReady {
		return "", fmt.Errorf("%w: %s", ErrIngestionFailed, remoteID)
	}
	return remoteID, nil
}

func (s *DocumentService) lockHash(contentHash string) func() {
	s.mu.Lock()
	l, ok := s.inflight[contentHash]
	if !ok {
		l = &hashLock{}
		s.inflight[contentHash] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.inflight, contentHash)
		}
		s.mu.Unlock()
	}
}
