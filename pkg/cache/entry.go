package cache

import (
	"encoding/json"
	"time"
)

// Entry is one cached value with its freshness metadata. The tier
// holding an entry owns it; Value is never aliased across tiers.
type Entry struct {
	Key      string
	Value    json.RawMessage
	StoredAt time.Time
	TTL      time.Duration
}

// Expired reports whether the entry is past its freshness window at
// the given instant. A non-positive TTL is expired on the next read.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.StoredAt.Add(e.TTL))
}

// entryJSON is the persisted shape. TTL travels as integer
// milliseconds.
type entryJSON struct {
	Key      string          `json:"key"`
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"stored_at"`
	TTLMs    int64           `json:"ttl_ms"`
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Key:      e.Key,
		Value:    e.Value,
		StoredAt: e.StoredAt,
		TTLMs:    e.TTL.Milliseconds(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w entryJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Key = w.Key
	e.Value = w.Value
	e.StoredAt = w.StoredAt
	e.TTL = time.Duration(w.TTLMs) * time.Millisecond
	return nil
}

// cloneValue copies a raw value so tier storage and callers never
// share backing arrays.
func cloneValue(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	return append(json.RawMessage(nil), v...)
}
