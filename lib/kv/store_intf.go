package kv

// SafeStoreKeyFilterFunc reports whether a key should be kept in a
// listing.
type SafeStoreKeyFilterFunc func(key []byte) bool

func defaultAllKeysFilter(key []byte) bool {
	return true
}

// EvictionCallback observes entries leaving the store through Delete
// or Purge. Callbacks run on the store's worker pool, not on the
// caller's goroutine.
type EvictionCallback func(key, val []byte)

// ThreadSafeSortedStorer is an exclusively locked key/value store
// with sorted iteration, meant as a building block for indexing,
// caching and configuration storage.
type ThreadSafeSortedStorer interface {
	AddOrUpdate(key, val []byte) error
	Delete(key []byte) error
	Get(key []byte) (val []byte, exists bool)
	// Nearest returns the entry for key, or the closest entry by the
	// store order (predecessor preferred) when key is absent.
	Nearest(key []byte) (nearestKey, nearestVal []byte, exists bool)
	ListKeys(filters ...SafeStoreKeyFilterFunc) [][]byte
	ListValues(keys ...[]byte) [][]byte
	// Range streams the entries in [from, to) in ascending order; a
	// nil to streams until the end. The action returns false to stop.
	Range(from, to []byte, action func(key, val []byte) bool) error
	Len() int64
	// Purge evicts everything and shuts the store's worker pool down.
	// The store is terminal afterwards.
	Purge() error
}
