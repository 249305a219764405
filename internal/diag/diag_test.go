package diag

import (
	"fmt"
	"testing"
	"time"

	"github.com/aloglu/centsible/internal/models"
)

func record(id string, ok bool) models.CheckRecord {
	return models.CheckRecord{Time: time.Now(), ItemID: id, OK: ok}
}

func TestNewestFirst(t *testing.T) {
	l := NewLog(10)
	l.Add(record("a", true))
	l.Add(record("b", true))
	l.Add(record("c", false))

	got := l.Recent(0, false)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ItemID != "c" || got[1].ItemID != "b" || got[2].ItemID != "a" {
		t.Errorf("order = %s,%s,%s, want c,b,a", got[0].ItemID, got[1].ItemID, got[2].ItemID)
	}
}

func TestCapacityEviction(t *testing.T) {
	l := NewLog(5)
	for i := 0; i < 8; i++ {
		l.Add(record(fmt.Sprintf("item-%d", i), true))
	}

	if l.Len() != 5 {
		t.Fatalf("Len = %d, want 5", l.Len())
	}
	got := l.Recent(0, false)
	if got[0].ItemID != "item-7" {
		t.Errorf("head = %s, want item-7", got[0].ItemID)
	}
	if got[4].ItemID != "item-3" {
		t.Errorf("tail = %s, want item-3 (oldest evicted)", got[4].ItemID)
	}
}

func TestRecentLimitAndFilter(t *testing.T) {
	l := NewLog(10)
	l.Add(record("ok1", true))
	l.Add(record("bad1", false))
	l.Add(record("ok2", true))
	l.Add(record("bad2", false))

	if got := l.Recent(2, false); len(got) != 2 || got[0].ItemID != "bad2" {
		t.Errorf("Recent(2) head = %v", got)
	}

	failed := l.Recent(0, true)
	if len(failed) != 2 {
		t.Fatalf("failed count = %d, want 2", len(failed))
	}
	for _, rec := range failed {
		if rec.OK {
			t.Errorf("failedOnly returned OK record %s", rec.ItemID)
		}
	}
}

func TestSeedTrimsToCapacity(t *testing.T) {
	l := NewLog(3)
	recs := make([]models.CheckRecord, 6)
	for i := range recs {
		recs[i] = record(fmt.Sprintf("seed-%d", i), true)
	}
	l.Seed(recs)

	if l.Len() != 3 {
		t.Fatalf("Len = %d, want 3", l.Len())
	}
	// Seed input is newest-first already; the head must be preserved.
	if got := l.Recent(1, false); got[0].ItemID != "seed-0" {
		t.Errorf("head after seed = %s, want seed-0", got[0].ItemID)
	}
}

func TestDefaultCapacity(t *testing.T) {
	l := NewLog(0)
	if l.cap != DefaultCapacity {
		t.Errorf("cap = %d, want %d", l.cap, DefaultCapacity)
	}
}
