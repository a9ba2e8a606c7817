package cache

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEntryExpired(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		ttl     time.Duration
		now     time.Time
		expired bool
	}{
		{"fresh", time.Minute, base.Add(30 * time.Second), false},
		{"exactly at deadline", time.Minute, base.Add(time.Minute), true},
		{"past deadline", time.Minute, base.Add(2 * time.Minute), true},
		{"zero ttl expires immediately", 0, base, true},
		{"negative ttl expires immediately", -time.Second, base, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Entry{Key: "k", StoredAt: base, TTL: tt.ttl}
			if got := e.Expired(tt.now); got != tt.expired {
				t.Errorf("Expired(%v) = %v, want %v", tt.now, got, tt.expired)
			}
		})
	}
}

func TestEntryJSONShape(t *testing.T) {
	e := Entry{
		Key:      "messages",
		Value:    json.RawMessage(`[{"id":1}]`),
		StoredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		TTL:      90 * time.Second,
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	for _, field := range []string{"key", "value", "stored_at", "ttl_ms"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("serialized entry missing field %q: %s", field, data)
		}
	}
	if string(raw["ttl_ms"]) != "90000" {
		t.Errorf("ttl_ms = %s, want 90000", raw["ttl_ms"])
	}

	var back Entry
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("round-trip error: %v", err)
	}
	if back.TTL != e.TTL || back.Key != e.Key || !back.StoredAt.Equal(e.StoredAt) {
		t.Errorf("round-trip = %+v, want %+v", back, e)
	}
}
