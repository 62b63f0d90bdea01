package app

import (
	"context"
	"sync"
	"testing"

	"docuchat/internal/model"
)

type memHistoryRecords struct {
	mu       sync.Mutex
	messages []model.Message
}

func (r *memHistoryRecords) Append(message *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	message.ID = uint(len(r.messages) + 1)
	r.messages = append(r.messages, *message)
	return nil
}

func (r *memHistoryRecords) ListRecentByUserID(userID int64, limit int) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Message
	for _, m := range r.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeCache struct {
	stored        map[int64][]model.Message
	dirty         map[int64]bool
	setCalls      int
	getHits       int
	invalidations int
}

func newFakeCache() *fakeCache {
	return &fakeCache{stored: make(map[int64][]model.Message), dirty: make(map[int64]bool)}
}

func (c *fakeCache) GetHistory(_ context.Context, userID int64) ([]model.Message, bool, error) {
	msgs, ok := c.stored[userID]
	if ok {
		c.getHits++
	}
	return msgs, ok, nil
}

func (c *fakeCache) SetHistory(_ context.Context, userID int64, messages []model.Message) error {
	c.setCalls++
	c.stored[userID] = messages
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, userID int64) error {
	c.invalidations++
	delete(c.stored, userID)
	c.dirty[userID] = true
	return nil
}

func (c *fakeCache) IsDirty(_ context.Context, userID int64) (bool, error) {
	return c.dirty[userID], nil
}

func TestHistoryOrdering(t *testing.T) {
	records := &memHistoryRecords{}
	log := NewHistoryLog(records, nil)
	ctx := context.Background()

	turns := []string{"q1", "a1", "q2", "a2", "q3"}
	for i, content := range turns {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		if err := log.Append(ctx, 1, role, content); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	recent, err := log.Recent(ctx, 1, 3)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	want := []string{"q2", "a2", "q3"}
	if len(recent) != len(want) {
		t.Fatalf("Recent returned %d entries, want %d", len(recent), len(want))
	}
	for i := range want {
		if recent[i].Content != want[i] {
			t.Errorf("entry %d = %q, want %q (chronological order)", i, recent[i].Content, want[i])
		}
	}
}

func TestHistoryLimitLargerThanLog(t *testing.T) {
	records := &memHistoryRecords{}
	log := NewHistoryLog(records, nil)
	ctx := context.Background()

	log.Append(ctx, 1, model.RoleUser, "only question")

	recent, err := log.Recent(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(recent) != 1 || recent[0].Content != "only question" {
		t.Errorf("Recent = %v, want the single appended entry", recent)
	}
}

func TestHistoryAppendInvalidatesCache(t *testing.T) {
	records := &memHistoryRecords{}
	cache := newFakeCache()
	log := NewHistoryLog(records, cache)
	ctx := context.Background()

	cache.stored[1] = []model.Message{{UserID: 1, Content: "stale"}}

	if err := log.Append(ctx, 1, model.RoleUser, "fresh"); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if cache.invalidations != 1 {
		t.Errorf("append invalidated the cache %d times, want 1", cache.invalidations)
	}

	// dirty marker forces the read through to the durable store
	recent, err := log.Recent(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(recent) != 1 || recent[0].Content != "fresh" {
		t.Errorf("Recent = %v, want the fresh durable entry", recent)
	}
}

// A window wider than the cached slice must return min(limit, stored)
// entries, not the cache bound.
func TestHistoryWideWindowBypassesCache(t *testing.T) {
	records := &memHistoryRecords{}
	cache := newFakeCache()
	log := NewHistoryLog(records, cache)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		if err := log.Append(ctx, 1, role, "turn"); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	recent, err := log.Recent(ctx, 1, 60)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(recent) != 60 {
		t.Fatalf("Recent(60) with 60 entries returned %d, want 60", len(recent))
	}
	if cache.getHits != 0 || cache.setCalls != 0 {
		t.Errorf("wide window touched the cache: %d hits, %d fills", cache.getHits, cache.setCalls)
	}

	// an even wider ask still caps at what is stored
	recent, err = log.Recent(ctx, 1, 500)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(recent) != 60 {
		t.Errorf("Recent(500) with 60 entries returned %d, want 60", len(recent))
	}
}

func TestHistoryCacheHit(t *testing.T) {
	records := &memHistoryRecords{}
	cache := newFakeCache()
	log := NewHistoryLog(records, cache)
	ctx := context.Background()

	cache.stored[1] = []model.Message{
		{UserID: 1, Role: model.RoleUser, Content: "cached q"},
		{UserID: 1, Role: model.RoleAssistant, Content: "cached a"},
	}

	recent, err := log.Recent(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(recent) != 2 || cache.getHits != 1 {
		t.Errorf("expected a clean cache hit, got %d entries with %d hits", len(recent), cache.getHits)
	}
}
