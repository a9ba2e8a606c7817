// Package store provides the reactive state container for dashsync.
//
// A Store maps string keys to arbitrary values and notifies key
// subscribers on every accepted change. It is the single source of
// truth consumers bind to; the sync engine writes fetched resources
// into it and view code subscribes to the keys it renders.
//
// # Usage
//
//	st := store.New()
//	cancel := st.Subscribe("messages", func(newV, oldV any) {
//	    render(newV)
//	})
//	defer cancel()
//
//	st.Set("messages", payload) // notifies the subscriber
//	st.Set("messages", payload) // equal value: no notification
//
// Writes carrying a value equal to the current one are dropped before
// notification, so subscribers never re-render unchanged data. Raw
// JSON values compare bytewise; everything else uses reflect.DeepEqual.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package store
