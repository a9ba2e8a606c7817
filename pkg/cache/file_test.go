package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileTierRoundTrip(t *testing.T) {
	ctx := context.Background()
	tier, err := NewFileTier(t.TempDir(), "session-a")
	if err != nil {
		t.Fatalf("NewFileTier() error: %v", err)
	}

	want := Entry{
		Key:      "messages",
		Value:    json.RawMessage(`[{"id":1}]`),
		StoredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		TTL:      5 * time.Minute,
	}
	if err := tier.Set(ctx, want); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, ok, err := tier.Get(ctx, "messages")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, want hit", ok, err)
	}
	if got.Key != want.Key || string(got.Value) != string(want.Value) ||
		!got.StoredAt.Equal(want.StoredAt) || got.TTL != want.TTL {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	if _, ok, err := tier.Get(ctx, "absent"); ok || err != nil {
		t.Errorf("Get(absent) = %v, %v, want miss", ok, err)
	}
}

func TestFileTierCorruptEntry(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	tier, err := NewFileTier(root, "session-a")
	if err != nil {
		t.Fatalf("NewFileTier() error: %v", err)
	}

	path := tier.path("messages")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	_, ok, err := tier.Get(ctx, "messages")
	if ok {
		t.Error("corrupt entry reported as a hit")
	}
	var corrupt *CorruptEntryError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Get() error = %v, want CorruptEntryError", err)
	}
	if corrupt.Key != "messages" || corrupt.Tier != TierSession {
		t.Errorf("CorruptEntryError = %+v", corrupt)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt entry file was not removed")
	}
}

func TestFileTierKeyMismatchIsCorrupt(t *testing.T) {
	ctx := context.Background()
	tier, err := NewFileTier(t.TempDir(), "session-a")
	if err != nil {
		t.Fatalf("NewFileTier() error: %v", err)
	}

	stray := Entry{Key: "other", Value: json.RawMessage(`1`), StoredAt: time.Now(), TTL: time.Minute}
	data, _ := json.Marshal(stray)
	if err := os.WriteFile(tier.path("messages"), data, 0o600); err != nil {
		t.Fatalf("seed mismatched file: %v", err)
	}

	_, ok, err := tier.Get(ctx, "messages")
	var corrupt *CorruptEntryError
	if ok || !errors.As(err, &corrupt) {
		t.Fatalf("Get() = %v, %v, want CorruptEntryError miss", ok, err)
	}
}

func TestFileTierSweepsForeignSessions(t *testing.T) {
	root := t.TempDir()

	ctx := context.Background()
	old, err := NewFileTier(root, "session-old")
	if err != nil {
		t.Fatalf("NewFileTier(old) error: %v", err)
	}
	if err := old.Set(ctx, memEntry("stale")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	if _, err := NewFileTier(root, "session-new"); err != nil {
		t.Fatalf("NewFileTier(new) error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "session-old")); !os.IsNotExist(err) {
		t.Error("previous session directory survived sweep")
	}
	if _, err := os.Stat(filepath.Join(root, "session-new")); err != nil {
		t.Errorf("current session directory missing: %v", err)
	}
}

func TestFileTierSweepExpired(t *testing.T) {
	ctx := context.Background()
	tier, err := NewFileTier(t.TempDir(), "session-a")
	if err != nil {
		t.Fatalf("NewFileTier() error: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fresh := Entry{Key: "fresh", Value: json.RawMessage(`1`), StoredAt: now, TTL: time.Hour}
	stale := Entry{Key: "stale", Value: json.RawMessage(`2`), StoredAt: now.Add(-time.Hour), TTL: time.Minute}
	for _, e := range []Entry{fresh, stale} {
		if err := tier.Set(ctx, e); err != nil {
			t.Fatalf("Set(%q) error: %v", e.Key, err)
		}
	}
	if err := os.WriteFile(filepath.Join(tier.dir, "junk.json"), []byte("?"), 0o600); err != nil {
		t.Fatalf("seed junk file: %v", err)
	}

	if removed := tier.sweepExpired(now); removed != 2 {
		t.Errorf("sweepExpired() = %d, want 2", removed)
	}
	if _, ok, _ := tier.Get(ctx, "fresh"); !ok {
		t.Error("fresh entry removed by sweep")
	}
	if _, ok, _ := tier.Get(ctx, "stale"); ok {
		t.Error("expired entry survived sweep")
	}
}

func TestFileTierEnforceBudget(t *testing.T) {
	ctx := context.Background()
	tier, err := NewFileTier(t.TempDir(), "session-a")
	if err != nil {
		t.Fatalf("NewFileTier() error: %v", err)
	}

	// Three entries of a few hundred bytes each, oldest first.
	for i, key := range []string{"oldest", "middle", "newest"} {
		e := memEntry(key)
		if err := tier.Set(ctx, e); err != nil {
			t.Fatalf("Set(%q) error: %v", key, err)
		}
		// Space out mtimes so eviction order is deterministic.
		mt := time.Now().Add(time.Duration(i-3) * time.Hour)
		if err := os.Chtimes(tier.path(key), mt, mt); err != nil {
			t.Fatalf("Chtimes(%q) error: %v", key, err)
		}
	}

	entrySize := func(key string) int64 {
		info, err := os.Stat(tier.path(key))
		if err != nil {
			t.Fatalf("Stat(%q) error: %v", key, err)
		}
		return info.Size()
	}
	total := entrySize("oldest") + entrySize("middle") + entrySize("newest")

	// Under the high watermark nothing moves.
	if removed, freed := tier.enforceBudget(total+1, total); removed != 0 || freed != 0 {
		t.Errorf("enforceBudget(under) = %d, %d, want 0, 0", removed, freed)
	}

	// Above it, the oldest files go until usage drops under low.
	low := entrySize("newest") + 1
	removed, freed := tier.enforceBudget(total-1, low)
	if removed != 2 {
		t.Errorf("enforceBudget() removed %d files, want 2", removed)
	}
	if freed != total-entrySize("newest") {
		t.Errorf("enforceBudget() freed %d bytes, want %d", freed, total-entrySize("newest"))
	}
	if _, ok, _ := tier.Get(ctx, "newest"); !ok {
		t.Error("newest entry removed by budget enforcement")
	}
	if _, ok, _ := tier.Get(ctx, "oldest"); ok {
		t.Error("oldest entry survived budget enforcement")
	}
}

func TestFileTierRequiresSessionID(t *testing.T) {
	if _, err := NewFileTier(t.TempDir(), ""); err == nil {
		t.Fatal("NewFileTier(\"\") succeeded, want error")
	}
}
