package orchestrator

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/truthwire/internal/model"
)

func rec(id, text string) model.ClaimRecord {
	return model.NewPendingRecord(id, text, time.Unix(0, 0))
}

func TestCollection_InsertPrepends(t *testing.T) {
	c := NewCollection("active")
	c.Insert(rec("1", "first"))
	c.Insert(rec("2", "second"))
	c.Insert(rec("3", "third"))

	list := c.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	for i, want := range []string{"3", "2", "1"} {
		if list[i].ID != want {
			t.Errorf("expected %s at index %d, got %s", want, i, list[i].ID)
		}
	}
}

func TestCollection_InsertExistingReplaces(t *testing.T) {
	c := NewCollection("library")
	c.Insert(rec("1", "a"))
	c.Insert(rec("2", "b"))

	updated := rec("1", "a")
	updated.Status = model.StatusFailed
	c.Insert(updated)

	if c.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", c.Len())
	}
	got, _ := c.Get("1")
	if got.Status != model.StatusFailed {
		t.Errorf("expected in-place update, got %s", got.Status)
	}
	if c.List()[1].ID != "1" {
		t.Error("expected position unchanged")
	}
}

func TestCollection_ReplaceMissingIsNoop(t *testing.T) {
	c := NewCollection("active")
	c.Insert(rec("1", "a"))

	if c.Replace(rec("404", "ghost")) {
		t.Error("expected Replace of unknown id to report false")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 record, got %d", c.Len())
	}

	next := rec("1", "a")
	next.Status = model.StatusComplete
	next.Verdict = model.VerdictVerified
	next.Explanation = "ok"
	if !c.Replace(next) {
		t.Fatal("expected Replace to succeed")
	}
	got, _ := c.Get("1")
	if got.Verdict != model.VerdictVerified {
		t.Errorf("expected replaced record, got %+v", got)
	}
}

func TestCollection_Remove(t *testing.T) {
	c := NewCollection("active")
	c.Insert(rec("1", "a"))
	c.Insert(rec("2", "b"))
	c.Insert(rec("3", "c"))

	if !c.Remove("2") {
		t.Fatal("expected Remove to succeed")
	}
	if c.Remove("2") {
		t.Error("expected second Remove to report false")
	}
	if _, ok := c.Get("2"); ok {
		t.Error("expected record gone")
	}

	// Index stays consistent after removal
	if got, ok := c.Get("1"); !ok || got.OriginalText != "a" {
		t.Errorf("expected record 1 intact, got %+v", got)
	}
	list := c.List()
	if len(list) != 2 || list[0].ID != "3" || list[1].ID != "1" {
		t.Errorf("unexpected order after removal: %+v", list)
	}
}

func TestCollection_ReadsAreCopies(t *testing.T) {
	c := NewCollection("library")
	r := rec("1", "a")
	r.Sources = []model.Source{{Title: "t", URI: "https://u"}}
	c.Insert(r)

	got, _ := c.Get("1")
	got.Sources[0].URI = "mutated"

	again, _ := c.Get("1")
	if again.Sources[0].URI != "https://u" {
		t.Error("expected stored record unaffected by caller mutation")
	}
}

func TestCollection_Subscribe(t *testing.T) {
	c := NewCollection("library")
	events, cancel := c.Subscribe(8)

	c.Insert(rec("1", "a"))
	c.Replace(rec("1", "a"))
	c.Remove("1")
	c.Remove("missing")

	want := []EventKind{EventInsert, EventUpdate, EventRemove}
	for _, kind := range want {
		select {
		case ev := <-events:
			if ev.Kind != kind || ev.Record.ID != "1" || ev.Collection != "library" {
				t.Errorf("expected %s of 1, got %+v", kind, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", kind)
		}
	}

	cancel()
	cancel()
	if _, ok := <-events; ok {
		t.Error("expected channel closed after cancel")
	}
}

func TestCollection_SlowSubscriberDoesNotBlock(t *testing.T) {
	c := NewCollection("active")
	_, cancel := c.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			c.Insert(rec(string(rune('a'+i)), "x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Insert blocked on a slow subscriber")
	}

	if c.Missed() != 9 {
		t.Errorf("expected 9 missed events, got %d", c.Missed())
	}
}

func TestCollection_EventsFollowMutationOrder(t *testing.T) {
	const n = 500
	c := NewCollection("active")
	events, cancel := c.Subscribe(4 * n)
	defer cancel()

	for i := 0; i < n; i++ {
		c.Insert(rec(fmt.Sprintf("c%d", i), "claim"))
	}

	// Resolve and dismiss every record at the same time
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("c%d", i)
		resolved := rec(id, "claim").Failed("timeout", time.Unix(1, 0))
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Replace(resolved)
		}()
		go func() {
			defer wg.Done()
			c.Remove(id)
		}()
	}
	wg.Wait()

	if c.Missed() != 0 {
		t.Fatalf("expected no missed events, got %d", c.Missed())
	}

	// Rebuild the collection from events the way an observer would
	mirror := make(map[string]bool)
	for len(events) > 0 {
		ev := <-events
		switch ev.Kind {
		case EventInsert, EventUpdate:
			mirror[ev.Record.ID] = true
		case EventRemove:
			delete(mirror, ev.Record.ID)
		}
	}

	if len(mirror) != c.Len() {
		t.Fatalf("observer holds %d records, collection has %d", len(mirror), c.Len())
	}
	for _, r := range c.List() {
		if !mirror[r.ID] {
			t.Errorf("record %s missing from observer copy", r.ID)
		}
	}
}
