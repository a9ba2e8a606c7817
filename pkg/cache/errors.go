package cache

import "fmt"

// CorruptEntryError reports a persisted entry that could not be
// decoded. The tier removes the record and treats the read as a miss;
// the error reaches logs and metrics, never the cache caller.
type CorruptEntryError struct {
	Key  string
	Tier string
	Err  error
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("cache: corrupt entry %q in %s tier: %v", e.Key, e.Tier, e.Err)
}

func (e *CorruptEntryError) Unwrap() error { return e.Err }
