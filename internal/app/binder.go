package app

import (
	"github.com/Mich120232024/dashsync/internal/domain"
	"github.com/Mich120232024/dashsync/pkg/source"
	"github.com/Mich120232024/dashsync/pkg/store"
)

// MetaKey returns the store key carrying the freshness summary for a
// resource. Views subscribe to it alongside the resource key itself.
func MetaKey(resource string) string { return "meta:" + resource }

// StoreBinder publishes resolved reads into the reactive store: the
// document under the resource key, the freshness summary under the
// meta key. The document is written first so a subscriber woken by
// the meta update always observes the matching value.
type StoreBinder struct {
	store *store.Store
}

// NewStoreBinder creates a binder writing into s.
func NewStoreBinder(s *store.Store) *StoreBinder {
	return &StoreBinder{store: s}
}

// Apply publishes one resolved read.
func (b *StoreBinder) Apply(res source.Result) {
	b.store.Set(res.Resource, res.Value)
	b.store.Set(MetaKey(res.Resource), domain.ResourceMeta{
		Resource:  res.Resource,
		Stale:     res.Stale,
		UpdatedAt: res.UpdatedAt,
	})
}

// Meta returns the last published freshness summary for resource.
func (b *StoreBinder) Meta(resource string) (domain.ResourceMeta, bool) {
	v, ok := b.store.Get(MetaKey(resource))
	if !ok {
		return domain.ResourceMeta{}, false
	}
	meta, ok := v.(domain.ResourceMeta)
	return meta, ok
}
