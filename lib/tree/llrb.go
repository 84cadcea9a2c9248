package tree

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/benz9527/xmap/lib/infra"
)

var (
	ErrSortedMapNilKey      = errors.New("[sorted-map] nil or empty key")
	ErrSortedMapKeyNotFound = errors.New("[sorted-map] key not found")
	ErrSortedMapEmpty       = errors.New("[sorted-map] no elements")
)

type llrbNode struct {
	key []byte
	val []byte
	// Exclusively owned children. A nil slot is a black nil leaf.
	left  *llrbNode
	right *llrbNode
	// Transient traversal fields, meaningful only while travGen
	// matches the map's current generation. travLink remembers the
	// parent to climb back to once this node's subtree is exhausted;
	// travGen marks the node as already yielded in that generation.
	travLink *llrbNode
	travGen  uint64
	// Color of the link from this node's parent. This is the only
	// balance metadata; there is no height or weight field.
	color RBColor
}

func (node *llrbNode) Key() []byte {
	return node.key
}

func (node *llrbNode) Val() []byte {
	return node.val
}

func (node *llrbNode) Color() RBColor {
	return node.color
}

func (node *llrbNode) Left() SortedMapNode {
	if node == nil || node.left == nil {
		return nil
	}
	return node.left
}

func (node *llrbNode) Right() SortedMapNode {
	if node == nil || node.right == nil {
		return nil
	}
	return node.right
}

func (node *llrbNode) minimum() *llrbNode {
	aux := node
	for ; aux != nil && aux.left != nil; aux = aux.left {
	}
	return aux
}

func (node *llrbNode) maximum() *llrbNode {
	aux := node
	for ; aux != nil && aux.right != nil; aux = aux.right {
	}
	return aux
}

func isRed(node *llrbNode) bool {
	return node != nil && node.color == Red
}

// References:
// https://sedgewick.io/wp-content/themes/sedgewick/papers/2008LLRB.pdf
// LLRB properties, restored before every public operation returns:
// p1. The link into the root is black.
// p2. A red node does not have a red child. (red-violation)
// p3. Every path from the root to a nil slot passes the same number
//   of black links. (black-violation)
// p4. Within any 3-node the red link leans left; right-leaning red
//   links live only inside a single operation. (lean-violation)

/*
	  |                          |
	  X                         <R>
	 / \     leftRotate(X)      / \
	L  <R>   ============>     X   Rd
	   / \                    / \
	  Rc  Rd                 L   Rc
*/
func leftRotate(x *llrbNode) *llrbNode {
	y := x.right
	x.right = y.left
	y.left = x
	y.color = x.color
	x.color = Red
	return y
}

/*
	    |                        |
	    X                       <L>
	   / \    rightRotate(X)    / \
	 <L>  R   =============>   Lc  X
	 / \                          / \
	Lc  Ld                       Ld  R
*/
func rightRotate(x *llrbNode) *llrbNode {
	y := x.left
	x.left = y.right
	y.right = x
	y.color = x.color
	x.color = Red
	return y
}

// colorFlip splits (or merges) a conceptual 4-node by toggling the
// node and both children links.
func colorFlip(x *llrbNode) {
	x.color ^= 1
	x.left.color ^= 1
	x.right.color ^= 1
}

// fixUp is the shared bottom-up repair applied on every unwind of the
// recursive insert and delete:
// f1. right link red, left link not: rotate left to restore the lean.
// f2. two reds chained on the left: rotate right.
// f3. both children links red: flip to split the 4-node.
func fixUp(x *llrbNode) *llrbNode {
	if /* f1 */ isRed(x.right) && !isRed(x.left) {
		x = leftRotate(x)
	}
	if /* f2 */ isRed(x.left) && isRed(x.left.left) {
		x = rightRotate(x)
	}
	if /* f3 */ isRed(x.left) && isRed(x.right) {
		colorFlip(x)
	}
	return x
}

/*
moveRedLeft forces a red link onto the left spine before the delete
descends left, so the descent never enters a single black node that
would become under-full after the removal.

	flip(X); then if the left-leaning red surfaced under the right
	child, borrow it:

	   {X}                    {X}                  {Rc}
	   / \    rRotate(R)      / \    lRotate(X)    /  \
	  L  <R>  =========>     L  <Rc>  + flip      X    R
	     /                        \              / \
	   <Rc>                       <R>           L  ...
*/
func moveRedLeft(x *llrbNode) *llrbNode {
	colorFlip(x)
	if isRed(x.right.left) {
		x.right = rightRotate(x.right)
		x = leftRotate(x)
		colorFlip(x)
	}
	return x
}

// moveRedRight is the symmetric repair applied before descending
// right.
func moveRedRight(x *llrbNode) *llrbNode {
	colorFlip(x)
	if isRed(x.left.left) {
		x = rightRotate(x)
		colorFlip(x)
	}
	return x
}

type llrbMap struct {
	root    *llrbNode
	compare infra.BytesComparator
	// Non-nil only in thread-safe mode. Reentrant so a goroutine that
	// already brackets a multi-call sequence may call single
	// operations without deadlocking.
	locker *infra.ReentrantLock
	count  int64
	// Bumped whenever a traversal restarts from scratch; stamps the
	// nodes' travGen so stale traversal links are never followed.
	generation uint64
}

func (m *llrbMap) Lock() {
	if m.locker != nil {
		m.locker.Lock()
	}
}

func (m *llrbMap) Unlock() {
	if m.locker != nil {
		m.locker.Unlock()
	}
}

func (m *llrbMap) Len() int64 {
	return atomic.LoadInt64(&m.count)
}

func (m *llrbMap) Root() SortedMapNode {
	if m.root == nil {
		return nil
	}
	return m.root
}

func (m *llrbMap) Put(key, val []byte) error {
	if len(key) == 0 {
		return infra.WrapErrorStackWithMessage(ErrSortedMapNilKey, "put")
	}
	m.Lock()
	defer m.Unlock()

	m.root = m.put(m.root, key, val)
	m.root.color = Black
	return nil
}

func (m *llrbMap) put(x *llrbNode, key, val []byte) *llrbNode {
	if x == nil {
		atomic.AddInt64(&m.count, 1)
		return &llrbNode{
			key:   bytes.Clone(key),
			val:   bytes.Clone(val),
			color: Red,
		}
	}

	res := m.compare(key, x.key)
	if /* equal */ res == 0 {
		// Replace the value bytes in place, the node keeps its slot.
		x.val = bytes.Clone(val)
	} else /* before */ if res < 0 {
		x.left = m.put(x.left, key, val)
	} else /* after */ {
		x.right = m.put(x.right, key, val)
	}
	return fixUp(x)
}

func (m *llrbMap) Get(key []byte) ([]byte, error) {
	m.Lock()
	defer m.Unlock()

	if x := m.search(key); x != nil {
		return x.val, nil
	}
	return nil, infra.WrapErrorStackWithMessage(ErrSortedMapKeyNotFound, "get")
}

// search is the shared iterative lookup descent. Allocation-free, no
// rebalancing.
func (m *llrbMap) search(key []byte) *llrbNode {
	for aux := m.root; aux != nil; {
		res := m.compare(key, aux.key)
		if res == 0 {
			return aux
		} else if res < 0 {
			aux = aux.left
		} else {
			aux = aux.right
		}
	}
	return nil
}

func (m *llrbMap) Remove(key []byte) (SortedMapEntry, error) {
	if len(key) == 0 {
		return nil, infra.WrapErrorStackWithMessage(ErrSortedMapNilKey, "remove")
	}
	m.Lock()
	defer m.Unlock()

	z := m.search(key)
	if z == nil {
		return nil, infra.WrapErrorStackWithMessage(ErrSortedMapKeyNotFound, "remove")
	}
	// Snapshot before the delete descent; successor substitution may
	// overwrite z's key and value in place.
	removed := &llrbNode{key: z.key, val: z.val}

	if !isRed(m.root.left) && !isRed(m.root.right) {
		m.root.color = Red
	}
	m.root = m.remove(m.root, key)
	if m.root != nil {
		m.root.color = Black
	}
	atomic.AddInt64(&m.count, -1)
	return removed, nil
}

// remove assumes the key is present; the public wrapper has already
// resolved not-found so the tree is never restructured for a miss.
func (m *llrbMap) remove(x *llrbNode, key []byte) *llrbNode {
	if m.compare(key, x.key) < 0 {
		if !isRed(x.left) && !isRed(x.left.left) {
			x = moveRedLeft(x)
		}
		x.left = m.remove(x.left, key)
	} else {
		if isRed(x.left) {
			x = rightRotate(x)
		}
		if m.compare(key, x.key) == 0 && x.right == nil {
			// Target surfaced as a leaf slot, drop it.
			return nil
		}
		if !isRed(x.right) && !isRed(x.right.left) {
			x = moveRedRight(x)
		}
		if m.compare(key, x.key) == 0 {
			// Internal target: take over the in-order successor's
			// key and value, then remove the successor node from the
			// right subtree.
			succ := x.right.minimum()
			x.key, x.val = succ.key, succ.val
			x.right = m.removeMin(x.right)
		} else {
			x.right = m.remove(x.right, key)
		}
	}
	return fixUp(x)
}

func (m *llrbMap) RemoveMin() (SortedMapEntry, error) {
	m.Lock()
	defer m.Unlock()

	if m.root == nil {
		return nil, infra.WrapErrorStackWithMessage(ErrSortedMapEmpty, "remove min")
	}
	z := m.root.minimum()
	removed := &llrbNode{key: z.key, val: z.val}

	if !isRed(m.root.left) && !isRed(m.root.right) {
		m.root.color = Red
	}
	m.root = m.removeMin(m.root)
	if m.root != nil {
		m.root.color = Black
	}
	atomic.AddInt64(&m.count, -1)
	return removed, nil
}

func (m *llrbMap) removeMin(x *llrbNode) *llrbNode {
	if x.left == nil {
		return nil
	}
	if !isRed(x.left) && !isRed(x.left.left) {
		x = moveRedLeft(x)
	}
	x.left = m.removeMin(x.left)
	return fixUp(x)
}

func (m *llrbMap) Min() (SortedMapEntry, error) {
	m.Lock()
	defer m.Unlock()

	if m.root == nil {
		return nil, infra.WrapErrorStackWithMessage(ErrSortedMapEmpty, "min")
	}
	return m.root.minimum(), nil
}

func (m *llrbMap) Max() (SortedMapEntry, error) {
	m.Lock()
	defer m.Unlock()

	if m.root == nil {
		return nil, infra.WrapErrorStackWithMessage(ErrSortedMapEmpty, "max")
	}
	return m.root.maximum(), nil
}

// Purge releases the whole node tree in post-order, then the map is
// back to its empty state and may be reused.
func (m *llrbMap) Purge() {
	m.Lock()
	defer m.Unlock()

	release(m.root)
	m.root = nil
	atomic.StoreInt64(&m.count, 0)
}

func release(x *llrbNode) {
	if x == nil {
		return
	}
	release(x.left)
	release(x.right)
	x.left, x.right, x.travLink = nil, nil, nil
	x.key, x.val = nil, nil
}

/*
Dump renders the tree as indented text for diagnostics, <key> for a
red link and [key] for a black one:

	[E]
	  [C]
	    [B]
	      <A>
	    [D]
	  [R]

The format is not stable.
*/
func (m *llrbMap) Dump(w io.Writer) {
	m.Lock()
	defer m.Unlock()

	_, _ = fmt.Fprintf(w, "llrb sorted map, count=%d\n", atomic.LoadInt64(&m.count))
	dump(w, m.root, 0)
}

func dump(w io.Writer, x *llrbNode, depth int) {
	if x == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	if isRed(x) {
		_, _ = fmt.Fprintf(w, "%s<%s>\n", indent, printableKey(x.key))
	} else {
		_, _ = fmt.Fprintf(w, "%s[%s]\n", indent, printableKey(x.key))
	}
	dump(w, x.left, depth+1)
	dump(w, x.right, depth+1)
}

func printableKey(key []byte) string {
	for _, b := range key {
		if b < 0x20 || b > 0x7e {
			return fmt.Sprintf("0x%x", key)
		}
	}
	return string(key)
}

type LLRBOpt func(*llrbMap)

// WithSortedMapComparator replaces the default lexicographic byte
// order, e.g. for fixed-width integer keys.
func WithSortedMapComparator(cmp infra.BytesComparator) LLRBOpt {
	return func(m *llrbMap) {
		m.compare = cmp
	}
}

// WithSortedMapThreadSafe arms the map's exclusive reentrant lock.
// Without it the map is declared single-threaded and Lock/Unlock are
// no-ops.
func WithSortedMapThreadSafe() LLRBOpt {
	return func(m *llrbMap) {
		m.locker = &infra.ReentrantLock{}
	}
}

func NewLLRBSortedMap(opts ...LLRBOpt) SortedMap {
	m := &llrbMap{
		compare: infra.DefaultBytesComparator(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}
