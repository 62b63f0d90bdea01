package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"docuchat/internal/gemini"
	"docuchat/internal/model"
	"docuchat/internal/session"
)

type memRecords struct {
	mu   sync.Mutex
	docs map[string]*model.Document
}

func newMemRecords() *memRecords {
	return &memRecords{docs: make(map[string]*model.Document)}
}

func (r *memRecords) GetByHash(contentHash string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[contentHash]; ok {
		copied := *doc
		return &copied, nil
	}
	return nil, nil
}

func (r *memRecords) Create(doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *doc
	r.docs[doc.ContentHash] = &copied
	return nil
}

func (r *memRecords) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

type fakeIngester struct {
	mu       sync.Mutex
	uploads  int
	polls    int
	uploadFn func(displayName string) (string, gemini.IngestState, error)
	statusFn func(remoteID string) (gemini.IngestState, error)
}

func (f *fakeIngester) Upload(_ context.Context, _ io.Reader, displayName string) (string, gemini.IngestState, error) {
	f.mu.Lock()
	f.uploads++
	f.mu.Unlock()
	if f.uploadFn != nil {
		return f.uploadFn(displayName)
	}
	return "files/generated", gemini.StateReady, nil
}

func (f *fakeIngester) Status(_ context.Context, remoteID string) (gemini.IngestState, error) {
	f.mu.Lock()
	f.polls++
	f.mu.Unlock()
	if f.statusFn != nil {
		return f.statusFn(remoteID)
	}
	return gemini.StateReady, nil
}

func (f *fakeIngester) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

func pdfBytes(payload string) []byte {
	return []byte("%PDF-1.4\n" + payload)
}

func newDocumentService(records *memRecords, ingester *fakeIngester) (*DocumentService, *session.Registry) {
	registry := session.NewRegistry()
	svc := NewDocumentService(records, ingester, registry, time.Millisecond, 5)
	return svc, registry
}

func TestReceiveDedupByContent(t *testing.T) {
	records := newMemRecords()
	ingester := &fakeIngester{}
	svc, _ := newDocumentService(records, ingester)

	first, err := svc.Receive(context.Background(), ReceiveInput{
		UserID:      1,
		Content:     pdfBytes("decree"),
		DisplayName: "Decree-14.pdf",
		SourceRef:   "tg-file-1",
	})
	if err != nil {
		t.Fatalf("first Receive error: %v", err)
	}
	if first.Deduplicated {
		t.Error("first upload flagged as deduplicated")
	}
	if first.DeskSize != 1 {
		t.Errorf("desk size = %d, want 1", first.DeskSize)
	}

	// same bytes, different filename and source: no second remote upload
	second, err := svc.Receive(context.Background(), ReceiveInput{
		UserID:      1,
		Content:     pdfBytes("decree"),
		DisplayName: "decree-copy.pdf",
		SourceRef:   "tg-file-2",
	})
	if err != nil {
		t.Fatalf("second Receive error: %v", err)
	}
	if !second.Deduplicated {
		t.Error("second upload of identical bytes not deduplicated")
	}
	if second.Document.RemoteID != first.Document.RemoteID {
		t.Errorf("remote ids differ: %s vs %s", second.Document.RemoteID, first.Document.RemoteID)
	}
	if second.DeskSize != 1 {
		t.Errorf("desk size after duplicate attach = %d, want 1", second.DeskSize)
	}

	if n := ingester.uploadCount(); n != 1 {
		t.Errorf("remote uploads = %d, want exactly 1", n)
	}
	if n := records.count(); n != 1 {
		t.Errorf("document records = %d, want exactly 1", n)
	}
}

func TestReceivePollsUntilReady(t *testing.T) {
	var remaining = 3
	ingester := &fakeIngester{
		uploadFn: func(string) (string, gemini.IngestState, error) {
			return "files/slow", gemini.StateProcessing, nil
		},
		statusFn: func(string) (gemini.IngestState, error) {
			remaining--
			if remaining > 0 {
				return gemini.StateProcessing, nil
			}
			return gemini.StateReady, nil
		},
	}
	svc, _ := newDocumentService(newMemRecords(), ingester)

	result, err := svc.Receive(context.Background(), ReceiveInput{
		UserID:      1,
		Content:     pdfBytes("slow"),
		DisplayName: "slow.pdf",
	})
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if result.Document.RemoteID != "files/slow" {
		t.Errorf("remote id = %s, want files/slow", result.Document.RemoteID)
	}
}

func TestReceiveIngestionTimeout(t *testing.T) {
	records := newMemRecords()
	ingester := &fakeIngester{
		uploadFn: func(string) (string, gemini.IngestState, error) {
			return "files/stuck", gemini.StateProcessing, nil
		},
		statusFn: func(string) (gemini.IngestState, error) {
			return gemini.StateProcessing, nil
		},
	}
	svc, _ := newDocumentService(records, ingester)

	_, err := svc.Receive(context.Background(), ReceiveInput{
		UserID:      1,
		Content:     pdfBytes("stuck"),
		DisplayName: "stuck.pdf",
	})
	if !errors.Is(err, ErrIngestionTimeout) {
		t.Fatalf("err = %v, want ErrIngestionTimeout", err)
	}
	if records.count() != 0 {
		t.Error("record persisted despite timeout")
	}
}

func TestReceiveIngestionFailed(t *testing.T) {
	records := newMemRecords()
	ingester := &fakeIngester{
		uploadFn: func(string) (string, gemini.IngestState, error) {
			return "files/bad", gemini.StateFailed, nil
		},
	}
	svc, registry := newDocumentService(records, ingester)

	_, err := svc.Receive(context.Background(), ReceiveInput{
		UserID:      1,
		Content:     pdfBytes("bad"),
		DisplayName: "bad.pdf",
	})
	if !errors.Is(err, ErrIngestionFailed) {
		t.Fatalf("err = %v, want ErrIngestionFailed", err)
	}
	if records.count() != 0 {
		t.Error("record persisted despite remote failure")
	}
	if len(registry.ActiveDocuments(1)) != 0 {
		t.Error("failed document attached to desk")
	}
}

func TestReceiveRejectsNonPDF(t *testing.T) {
	ingester := &fakeIngester{}
	svc, _ := newDocumentService(newMemRecords(), ingester)

	_, err := svc.Receive(context.Background(), ReceiveInput{
		UserID:      1,
		Content:     []byte("plain text, not a pdf"),
		DisplayName: "notes.txt",
	})
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("err = %v, want ErrNotPDF", err)
	}
	if ingester.uploadCount() != 0 {
		t.Error("non-PDF content reached the remote store")
	}
}

func TestReceiveConcurrentIdenticalUploads(t *testing.T) {
	records := newMemRecords()
	ingester := &fakeIngester{
		uploadFn: func(string) (string, gemini.IngestState, error) {
			time.Sleep(5 * time.Millisecond)
			return "files/shared", gemini.StateReady, nil
		},
	}
	svc, _ := newDocumentService(records, ingester)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := svc.Receive(context.Background(), ReceiveInput{
				UserID:      userID,
				Content:     pdfBytes("shared"),
				DisplayName: "shared.pdf",
			})
			if err != nil {
				t.Errorf("concurrent Receive error: %v", err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	if n := ingester.uploadCount(); n != 1 {
		t.Errorf("remote uploads = %d, want exactly 1 for identical bytes", n)
	}
	if n := records.count(); n != 1 {
		t.Errorf("document records = %d, want exactly 1", n)
	}
	if n := len(svc.inflight); n != 0 {
		t.Errorf("inflight locks after all uploads finished = %d, want 0", n)
	}
}

// Every distinct document takes a lock during its first upload; once no
// uploader holds it the entry must be gone again.
func TestReceiveReleasesHashLocks(t *testing.T) {
	records := newMemRecords()
	svc, _ := newDocumentService(records, &fakeIngester{})

	for i := 0; i < 3; i++ {
		_, err := svc.Receive(context.Background(), ReceiveInput{
			UserID:      1,
			Content:     pdfBytes("doc-" + string(rune('a'+i))),
			DisplayName: "doc.pdf",
		})
		if err != nil {
			t.Fatalf("Receive error: %v", err)
		}
	}

	if n := len(svc.inflight); n != 0 {
		t.Errorf("inflight locks after sequential uploads = %d, want 0", n)
	}
	if n := records.count(); n != 3 {
		t.Errorf("document records = %d, want 3", n)
	}
}
