package tree

import "io"

type RBColor uint8

const (
	Black RBColor = iota
	Red
)

func (color RBColor) String() string {
	if color == Red {
		return "red"
	}
	return "black"
}

// SortedMapEntry is one stored key/value pair. The returned byte
// slices are borrowed from the map; callers must copy before mutating.
type SortedMapEntry interface {
	Key() []byte
	Val() []byte
}

// SortedMapNode exposes the persistent structure of a stored node for
// validators and diagnostics. The transient traversal fields stay
// hidden.
type SortedMapNode interface {
	SortedMapEntry
	Color() RBColor
	Left() SortedMapNode
	Right() SortedMapNode
}

// SortedMapIterator is a resumable ascending in-order cursor.
//
// Next positions the cursor on the first entry when called on a fresh
// iterator and on the in-order successor afterwards. Seek positions
// the cursor on the first entry whose key is greater than or equal to
// the given key. Each positioning call is atomic with respect to the
// map's own locking, but a multi-call sweep only observes a consistent
// tree when the caller holds the map lock around the whole sequence.
//
// Mutating the map between positioning calls never corrupts memory,
// but a removal elsewhere in the tree may cause the sweep to skip
// (never duplicate) entries. The supported recovery is to capture the
// entry's key before removing it and call Seek with that key, which
// resumes at the captured key's in-order successor.
type SortedMapIterator interface {
	Next() bool
	Seek(key []byte) bool
	Key() []byte
	Val() []byte
}

// SortedMap is an in-memory ordered byte-key map backed by a
// left-leaning red-black tree. All single operations are O(log n) and
// leave the tree in a balance-invariant-satisfying state.
type SortedMap interface {
	Len() int64
	Root() SortedMapNode
	Put(key, val []byte) error
	Get(key []byte) ([]byte, error)
	Remove(key []byte) (SortedMapEntry, error)
	RemoveMin() (SortedMapEntry, error)
	Min() (SortedMapEntry, error)
	Max() (SortedMapEntry, error)
	// Nearest returns the entry holding key if present, otherwise the
	// entry with the largest key before it, and only if no smaller key
	// exists, the entry with the smallest key after it.
	Nearest(key []byte) (SortedMapEntry, error)
	Iter() SortedMapIterator
	Foreach(action func(idx int64, color RBColor, key, val []byte) bool)
	// Lock and Unlock bracket multi-call sequences. They are no-ops on
	// a map constructed without the thread-safe option and reentrant
	// for the owning goroutine otherwise, so single operations called
	// inside the bracket do not deadlock.
	Lock()
	Unlock()
	Purge()
	Dump(w io.Writer)
}
