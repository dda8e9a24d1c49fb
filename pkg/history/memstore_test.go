package history_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/livescribe/pkg/history"
)

func entryAt(id string, start time.Time) history.Entry {
	return history.Entry{
		SessionID: id,
		StartedAt: start,
		EndedAt:   start.Add(5 * time.Second),
		Model:     "voxtral-mini-transcribe-realtime",
		Text:      "text of " + id,
	}
}

func TestMemStore_SaveAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := history.NewMemStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Save(ctx, entryAt("a", base)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text != "text of a" || got.Duration() != 5*time.Second {
		t.Errorf("Get = %+v", got)
	}

	// Saving the same ID replaces the entry.
	updated := entryAt("a", base)
	updated.Text = "replaced"
	if err := s.Save(ctx, updated); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ = s.Get(ctx, "a")
	if got.Text != "replaced" {
		t.Errorf("Text after replace = %q, want %q", got.Text, "replaced")
	}
}

func TestMemStore_GetMissing(t *testing.T) {
	t.Parallel()

	_, err := history.NewMemStore().Get(context.Background(), "nope")
	if !errors.Is(err, history.ErrNotFound) {
		t.Errorf("Get: err = %v, want ErrNotFound", err)
	}
}

func TestMemStore_SaveRejectsEmptyID(t *testing.T) {
	t.Parallel()

	if err := history.NewMemStore().Save(context.Background(), history.Entry{Text: "x"}); err == nil {
		t.Error("Save with empty ID: want error")
	}
}

func TestMemStore_RecentOrderAndLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var s history.MemStore // zero value must work
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		if err := s.Save(ctx, entryAt(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	all, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	want := []string{"third", "second", "first"}
	if len(all) != len(want) {
		t.Fatalf("Recent(0) returned %d entries, want %d", len(all), len(want))
	}
	for i, id := range want {
		if all[i].SessionID != id {
			t.Errorf("Recent(0)[%d] = %q, want %q", i, all[i].SessionID, id)
		}
	}

	two, _ := s.Recent(ctx, 2)
	if len(two) != 2 || two[0].SessionID != "third" {
		t.Errorf("Recent(2) = %v", two)
	}
}

func TestMemStore_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := history.NewMemStore()
	now := time.Now()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Save(ctx, entryAt(fmt.Sprintf("s%d", i), now))
			_, _ = s.Recent(ctx, 5)
		}()
	}
	wg.Wait()

	all, _ := s.Recent(ctx, 0)
	if len(all) != 32 {
		t.Errorf("Recent returned %d entries, want 32", len(all))
	}
}

func TestEntry_DurationNeverNegative(t *testing.T) {
	t.Parallel()

	now := time.Now()
	e := history.Entry{StartedAt: now, EndedAt: now.Add(-time.Second)}
	if d := e.Duration(); d != 0 {
		t.Errorf("Duration = %v, want 0", d)
	}
}
