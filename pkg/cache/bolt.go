package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("cache")

// BoltTier is the durable tier: entries persisted in a single bbolt
// bucket, keyed "cache:durable:<key>". The database file survives
// across sessions and processes.
type BoltTier struct {
	db *bolt.DB
}

// NewBoltTier opens (or creates) the durable database at path. The
// open fails after one second if another process holds the file lock.
func NewBoltTier(path string) (*BoltTier, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open durable cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init durable cache: %w", err)
	}
	return &BoltTier{db: db}, nil
}

// Name returns "durable".
func (t *BoltTier) Name() string { return TierDurable }

// Get reads the entry stored under key. An undecodable record is
// deleted and reported as a miss with a CorruptEntryError.
func (t *BoltTier) Get(ctx context.Context, key string) (Entry, bool, error) {
	storageKey := []byte(TierKey(TierDurable, key))

	var e Entry
	var found, corrupt bool
	var decodeErr error

	err := t.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(boltBucket).Get(storageKey)
		if data == nil {
			return nil
		}
		found = true
		if err := json.Unmarshal(data, &e); err != nil {
			corrupt = true
			decodeErr = err
		}
		return nil
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("read durable entry: %w", err)
	}
	if !found {
		return Entry{}, false, nil
	}
	if corrupt {
		t.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(boltBucket).Delete(storageKey)
		})
		return Entry{}, false, &CorruptEntryError{Key: key, Tier: TierDurable, Err: decodeErr}
	}
	return e, true, nil
}

// Set stores the entry under its namespaced key.
func (t *BoltTier) Set(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode durable entry: %w", err)
	}
	err = t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(TierKey(TierDurable, entry.Key)), data)
	})
	if err != nil {
		return fmt.Errorf("write durable entry: %w", err)
	}
	return nil
}

// Delete removes the key from the bucket.
func (t *BoltTier) Delete(ctx context.Context, key string) error {
	err := t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(TierKey(TierDurable, key)))
	})
	if err != nil {
		return fmt.Errorf("delete durable entry: %w", err)
	}
	return nil
}

// Close closes the database file.
func (t *BoltTier) Close() error { return t.db.Close() }

// sweepExpired deletes entries that are expired or undecodable.
func (t *BoltTier) sweepExpired(now time.Time) int {
	removed := 0
	t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		c := b.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil || e.Expired(now) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if b.Delete(k) == nil {
				removed++
			}
		}
		return nil
	})
	return removed
}
