package tree

import (
	"github.com/benz9527/xmap/lib/infra"
)

// The traversal protocol keeps no side stack. Each descent stores, in
// the transient travLink of every node it passes, the parent to climb
// back to once that node's subtree is exhausted, and each fresh
// traversal bumps the map generation so stamps from earlier walks are
// treated as unvisited.

// nextGeneration restarts the traversal clock. Callers must hold the
// map lock (in thread-safe mode).
func (m *llrbMap) nextGeneration() uint64 {
	m.generation++
	return m.generation
}

// seekDescend descends like a lookup while wiring the travLink chain
// and stamping every node passed on a right turn; those nodes order
// before the target and are therefore already behind a traversal that
// resumes at the result. Returns the exact match when present,
// otherwise the deepest node of the descent, leaving the predecessor
// resolution to the caller.
func (m *llrbMap) seekDescend(key []byte, gen uint64) *llrbNode {
	if m.root == nil {
		return nil
	}
	m.root.travLink = nil
	m.root.travGen = 0
	x := m.root
	for {
		res := m.compare(key, x.key)
		if res == 0 {
			return x
		}
		var child *llrbNode
		if res < 0 {
			child = x.left
		} else {
			x.travGen = gen
			child = x.right
		}
		if child == nil {
			return x
		}
		child.travLink = x
		child.travGen = 0
		x = child
	}
}

// seekNearest resolves the matched-or-nearest node for key:
// the exact match, else the predecessor found by climbing the
// recorded chain to the first node ordering before key, else the
// minimum (the all-left descent already ends there).
func (m *llrbMap) seekNearest(key []byte, gen uint64) *llrbNode {
	x := m.seekDescend(key, gen)
	if x == nil || m.compare(key, x.key) == 0 {
		return x
	}
	for aux := x; aux != nil; aux = aux.travLink {
		if m.compare(aux.key, key) < 0 {
			return aux
		}
	}
	// Key orders before every stored key, so the descent never turned
	// right and x is the minimum.
	return x
}

func (m *llrbMap) Nearest(key []byte) (SortedMapEntry, error) {
	m.Lock()
	defer m.Unlock()

	if m.root == nil {
		return nil, infra.WrapErrorStackWithMessage(ErrSortedMapEmpty, "nearest")
	}
	return m.seekNearest(key, m.nextGeneration()), nil
}

// advance yields the in-order successor of cur within generation gen:
// the unvisited leftmost node of the right subtree when there is one,
// otherwise the first unstamped node up the travLink chain. A nil
// return is end-of-traversal.
func (m *llrbMap) advance(cur *llrbNode, gen uint64) *llrbNode {
	if r := cur.right; r != nil && r.travGen != gen {
		r.travLink = cur
		x := r
		for x.left != nil && x.left.travGen != gen {
			x.left.travLink = x
			x = x.left
		}
		x.travGen = gen
		return x
	}
	for aux := cur.travLink; aux != nil; aux = aux.travLink {
		if aux.travGen != gen {
			aux.travGen = gen
			return aux
		}
	}
	return nil
}

const (
	iterFresh uint8 = iota
	iterActive
	iterDone
)

type llrbIter struct {
	m     *llrbMap
	cur   *llrbNode
	gen   uint64
	state uint8
}

func (it *llrbIter) Next() bool {
	it.m.Lock()
	defer it.m.Unlock()

	switch it.state {
	case iterDone:
		return false
	case iterFresh:
		if it.m.root == nil {
			it.state = iterDone
			return false
		}
		it.gen = it.m.nextGeneration()
		it.m.root.travLink = nil
		x := it.m.root
		for x.left != nil {
			x.left.travLink = x
			x = x.left
		}
		x.travGen = it.gen
		it.cur, it.state = x, iterActive
		return true
	default:
	}

	next := it.m.advance(it.cur, it.gen)
	if next == nil {
		it.cur, it.state = nil, iterDone
		return false
	}
	it.cur = next
	return true
}

func (it *llrbIter) Seek(key []byte) bool {
	it.m.Lock()
	defer it.m.Unlock()

	if it.m.root == nil {
		it.cur, it.state = nil, iterDone
		return false
	}
	it.gen = it.m.nextGeneration()
	x := it.m.seekNearest(key, it.gen)
	if it.m.compare(x.key, key) < 0 {
		// Predecessor hit; the sought key is gone or absent, resume at
		// its in-order successor. The descent already stamped x.
		x.travGen = it.gen
		x = it.m.advance(x, it.gen)
		if x == nil {
			it.cur, it.state = nil, iterDone
			return false
		}
	} else {
		x.travGen = it.gen
	}
	it.cur, it.state = x, iterActive
	return true
}

func (it *llrbIter) Key() []byte {
	if it.cur == nil {
		return nil
	}
	return it.cur.key
}

func (it *llrbIter) Val() []byte {
	if it.cur == nil {
		return nil
	}
	return it.cur.val
}

func (m *llrbMap) Iter() SortedMapIterator {
	return &llrbIter{m: m}
}

// Inorder traversal over the whole map, driven by the resumable
// cursor protocol.
func (m *llrbMap) Foreach(action func(idx int64, color RBColor, key, val []byte) bool) {
	m.Lock()
	defer m.Unlock()

	it := &llrbIter{m: m}
	for idx := int64(0); it.Next(); idx++ {
		if !action(idx, it.cur.color, it.cur.key, it.cur.val) {
			return
		}
	}
}
