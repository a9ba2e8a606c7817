package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileTier is the session tier: one JSON file per key under a
// session-scoped directory. Entries belong to the session that wrote
// them; directories left behind by other sessions are swept when the
// tier opens.
type FileTier struct {
	mu   sync.Mutex
	root string
	dir  string
	sid  string
}

// NewFileTier opens the session tier rooted at root for the given
// session ID and removes leftover directories from other sessions.
func NewFileTier(root, sessionID string) (*FileTier, error) {
	if sessionID == "" {
		return nil, errors.New("cache: session id required")
	}
	dir := filepath.Join(root, sessionID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	t := &FileTier{root: root, dir: dir, sid: sessionID}
	t.sweepForeign()
	return t, nil
}

// Name returns "session".
func (t *FileTier) Name() string { return TierSession }

// Get reads the entry file for key. A malformed or mismatched file is
// removed and reported as a miss with a CorruptEntryError.
func (t *FileTier) Get(ctx context.Context, key string) (Entry, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	path := t.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("read session entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		os.Remove(path)
		return Entry{}, false, &CorruptEntryError{Key: key, Tier: TierSession, Err: err}
	}
	if e.Key != key {
		os.Remove(path)
		return Entry{}, false, &CorruptEntryError{
			Key:  key,
			Tier: TierSession,
			Err:  fmt.Errorf("entry key %q does not match %q", e.Key, key),
		}
	}
	return e, true, nil
}

// Set writes the entry file atomically (temp file + rename).
func (t *FileTier) Set(ctx context.Context, entry Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(t.dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session entry: %w", err)
	}

	path := t.path(entry.Key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit session entry: %w", err)
	}
	return nil
}

// Delete removes the entry file for key.
func (t *FileTier) Delete(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.Remove(t.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session entry: %w", err)
	}
	return nil
}

// Close is a no-op for the file tier.
func (t *FileTier) Close() error { return nil }

// path maps a cache key to its entry file. The namespaced storage key
// is query-escaped so any resource name yields a safe filename.
func (t *FileTier) path(key string) string {
	return filepath.Join(t.dir, url.QueryEscape(TierKey(TierSession, key))+".json")
}

// sweepForeign removes session directories other than this session's.
// Best effort; a directory that cannot be removed is left for the next
// sweep.
func (t *FileTier) sweepForeign() int {
	dirs, err := os.ReadDir(t.root)
	if err != nil {
		return 0
	}
	removed := 0
	for _, d := range dirs {
		if !d.IsDir() || d.Name() == t.sid {
			continue
		}
		if os.RemoveAll(filepath.Join(t.root, d.Name())) == nil {
			removed++
		}
	}
	return removed
}

// sweepExpired removes entry files that are expired or unreadable.
func (t *FileTier) sweepExpired(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	files, err := os.ReadDir(t.dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		path := filepath.Join(t.dir, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil || e.Expired(now) {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed
}

// enforceBudget deletes the oldest entry files until the tier's disk
// usage drops under low. Returns files removed and bytes freed.
func (t *FileTier) enforceBudget(high, low int64) (int, int64) {
	if high <= 0 {
		return 0, 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	type entryFile struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []entryFile
	var total int64

	filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		files = append(files, entryFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})

	if total <= high {
		return 0, 0
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	removed := 0
	var freed int64
	for _, f := range files {
		if total-freed <= low {
			break
		}
		if os.Remove(f.path) == nil {
			freed += f.size
			removed++
		}
	}
	return removed, freed
}
