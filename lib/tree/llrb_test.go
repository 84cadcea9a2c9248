package tree

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benz9527/xmap/lib/infra"
)

func requireBalanced(t *testing.T, m SortedMap) {
	t.Helper()
	require.NoError(t, RedViolationValidate(m))
	require.NoError(t, BlackViolationValidate(m))
	require.NoError(t, LeftLeaningValidate(m))
}

func putAll(t *testing.T, m SortedMap, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, m.Put([]byte(k), []byte("val-"+k)))
		requireBalanced(t, m)
	}
}

func TestLLRBSortedMap_PutGetRoundTrip(t *testing.T) {
	m := NewLLRBSortedMap()
	require.NoError(t, m.Put([]byte("alpha"), []byte("1")))
	require.NoError(t, m.Put([]byte("beta"), []byte("2")))

	val, err := m.Get([]byte("alpha"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), val)

	val, err = m.Get([]byte("beta"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), val)

	_, err = m.Get([]byte("gamma"))
	require.ErrorIs(t, err, ErrSortedMapKeyNotFound)

	removed, err := m.Remove([]byte("alpha"))
	require.NoError(t, err)
	require.Equal(t, []byte("alpha"), removed.Key())
	require.Equal(t, []byte("1"), removed.Val())

	_, err = m.Get([]byte("alpha"))
	require.ErrorIs(t, err, ErrSortedMapKeyNotFound)
	require.Equal(t, int64(1), m.Len())
}

func TestLLRBSortedMap_PutDuplicateKeepsSize(t *testing.T) {
	m := NewLLRBSortedMap()
	require.NoError(t, m.Put([]byte("k"), []byte("old")))
	require.NoError(t, m.Put([]byte("k"), []byte("new")))
	require.Equal(t, int64(1), m.Len())

	val, err := m.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("new"), val)
}

func TestLLRBSortedMap_InvalidAndMissing(t *testing.T) {
	m := NewLLRBSortedMap()

	require.ErrorIs(t, m.Put(nil, []byte("v")), ErrSortedMapNilKey)
	require.ErrorIs(t, m.Put([]byte{}, []byte("v")), ErrSortedMapNilKey)
	_, err := m.Remove(nil)
	require.ErrorIs(t, err, ErrSortedMapNilKey)

	_, err = m.Remove([]byte("nope"))
	require.ErrorIs(t, err, ErrSortedMapKeyNotFound)
	_, err = m.Min()
	require.ErrorIs(t, err, ErrSortedMapEmpty)
	_, err = m.Max()
	require.ErrorIs(t, err, ErrSortedMapEmpty)
	_, err = m.RemoveMin()
	require.ErrorIs(t, err, ErrSortedMapEmpty)
	_, err = m.Nearest([]byte("anything"))
	require.ErrorIs(t, err, ErrSortedMapEmpty)
}

// Inserting A S E R C D I N B X must settle on the canonical shape:
// black root E with black children C and R, red leaves A, I and S.
func TestLLRBSortedMap_InsertShape_Letters(t *testing.T) {
	m := NewLLRBSortedMap()
	putAll(t, m, "A", "S", "E", "R", "C", "D", "I", "N", "B", "X")
	requireBalanced(t, m)

	root := m.Root()
	require.Equal(t, []byte("E"), root.Key())
	require.Equal(t, Black, root.Color())

	left, right := root.Left(), root.Right()
	require.Equal(t, []byte("C"), left.Key())
	require.Equal(t, Black, left.Color())
	require.Equal(t, []byte("R"), right.Key())
	require.Equal(t, Black, right.Color())

	reds := map[string]RBColor{}
	m.Foreach(func(idx int64, color RBColor, key, val []byte) bool {
		if color == Red {
			reds[string(key)] = color
		}
		return true
	})
	require.Equal(t, map[string]RBColor{"A": Red, "I": Red, "S": Red}, reds)
}

// Inserting 10 20 30 40 50 25 must settle on root 40 with a red left
// child 20 holding 10 and 30, and a red 25 hanging off 30.
func TestLLRBSortedMap_InsertShape_Numbers(t *testing.T) {
	m := NewLLRBSortedMap()
	putAll(t, m, "10", "20", "30", "40", "50", "25")

	root := m.Root()
	require.Equal(t, []byte("40"), root.Key())
	require.Equal(t, Black, root.Color())
	require.Equal(t, []byte("50"), root.Right().Key())

	n20 := root.Left()
	require.Equal(t, []byte("20"), n20.Key())
	require.Equal(t, Red, n20.Color())
	require.Equal(t, []byte("10"), n20.Left().Key())

	n30 := n20.Right()
	require.Equal(t, []byte("30"), n30.Key())
	n25 := n30.Left()
	require.Equal(t, []byte("25"), n25.Key())
	require.Equal(t, Red, n25.Color())
}

func TestLLRBSortedMap_MinMaxRemoveMin(t *testing.T) {
	m := NewLLRBSortedMap()
	putAll(t, m, "delta", "alpha", "echo", "bravo", "charlie")

	minEntry, err := m.Min()
	require.NoError(t, err)
	require.Equal(t, []byte("alpha"), minEntry.Key())

	maxEntry, err := m.Max()
	require.NoError(t, err)
	require.Equal(t, []byte("echo"), maxEntry.Key())

	for _, expected := range []string{"alpha", "bravo", "charlie", "delta", "echo"} {
		removed, err := m.RemoveMin()
		require.NoError(t, err)
		require.Equal(t, []byte(expected), removed.Key())
		requireBalanced(t, m)
	}
	require.Equal(t, int64(0), m.Len())
}

func TestLLRBSortedMap_CustomComparator(t *testing.T) {
	m := NewLLRBSortedMap(
		WithSortedMapComparator(infra.ReverseBytesComparator(infra.DefaultBytesComparator())),
	)
	putAll(t, m, "a", "c", "b")

	minEntry, err := m.Min()
	require.NoError(t, err)
	require.Equal(t, []byte("c"), minEntry.Key())

	var keys []string
	m.Foreach(func(idx int64, color RBColor, key, val []byte) bool {
		keys = append(keys, string(key))
		return true
	})
	require.Equal(t, []string{"c", "b", "a"}, keys)
}

func TestLLRBSortedMap_PurgeThenReuse(t *testing.T) {
	m := NewLLRBSortedMap()
	putAll(t, m, "x", "y", "z")
	m.Purge()
	require.Equal(t, int64(0), m.Len())
	require.Nil(t, m.Root())

	require.NoError(t, m.Put([]byte("again"), []byte("v")))
	require.Equal(t, int64(1), m.Len())
}

func TestLLRBSortedMap_Dump(t *testing.T) {
	m := NewLLRBSortedMap()
	putAll(t, m, "A", "S", "E", "R", "C")

	sb := &strings.Builder{}
	m.Dump(sb)
	out := sb.String()
	require.Contains(t, out, "count=5")
	require.Contains(t, out, "[E]")
	// Red nodes are rendered in angle brackets.
	require.Contains(t, out, "<")
}

func TestLLRBSortedMap_ThreadSafeSingleOps(t *testing.T) {
	m := NewLLRBSortedMap(WithSortedMapThreadSafe())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_ = m.Put([]byte(fmt.Sprintf("g-%03d", i)), []byte("v"))
		}
	}()
	for i := 0; i < 500; i++ {
		_ = m.Put([]byte(fmt.Sprintf("m-%03d", i)), []byte("v"))
	}
	<-done
	require.Equal(t, int64(1000), m.Len())
	requireBalanced(t, m)
}

func TestLLRBSortedMap_LockBracketIsReentrant(t *testing.T) {
	m := NewLLRBSortedMap(WithSortedMapThreadSafe())
	putAll(t, m, "a", "b", "c")

	m.Lock()
	// Single ops lock internally again; the owner must not deadlock.
	require.NoError(t, m.Put([]byte("d"), []byte("v")))
	_, err := m.Remove([]byte("a"))
	require.NoError(t, err)
	m.Unlock()

	require.Equal(t, int64(3), m.Len())
}

// Randomized mutations against a plain map oracle: lookups, size and
// full iteration order must match at every step, and the balance
// validators must pass after every mutation.
func TestLLRBSortedMap_RandomizedOracle(t *testing.T) {
	const (
		totalOps = 10_000
		keySpace = 2_000
	)
	m := NewLLRBSortedMap()
	oracle := make(map[string][]byte, keySpace)

	randKey := func() []byte {
		return []byte(fmt.Sprintf("key-%04d", rand.Intn(keySpace)))
	}

	for op := 0; op < totalOps; op++ {
		key := randKey()
		if rand.Intn(100) < 60 {
			val := []byte(fmt.Sprintf("val-%d", op))
			require.NoError(t, m.Put(key, val))
			oracle[string(key)] = val
		} else {
			_, exists := oracle[string(key)]
			_, err := m.Remove(key)
			if exists {
				require.NoError(t, err)
				delete(oracle, string(key))
			} else {
				require.ErrorIs(t, err, ErrSortedMapKeyNotFound)
			}
		}

		requireBalanced(t, m)
		require.Equal(t, int64(len(oracle)), m.Len())

		probe := randKey()
		expected, exists := oracle[string(probe)]
		got, err := m.Get(probe)
		if exists {
			require.NoError(t, err)
			require.Equal(t, expected, got)
		} else {
			require.ErrorIs(t, err, ErrSortedMapKeyNotFound)
		}

		sortedKeys := make([]string, 0, len(oracle))
		for k := range oracle {
			sortedKeys = append(sortedKeys, k)
		}
		sort.Strings(sortedKeys)
		idx := 0
		m.Foreach(func(i int64, color RBColor, key, val []byte) bool {
			require.Equal(t, sortedKeys[i], string(key))
			idx++
			return true
		})
		require.Equal(t, len(sortedKeys), idx)
	}
}

func TestLLRBSortedMap_ValueBytesAreOwned(t *testing.T) {
	m := NewLLRBSortedMap()
	key := []byte("k")
	val := []byte("payload")
	require.NoError(t, m.Put(key, val))

	// Mutating the caller's slices must not reach the stored copies.
	key[0] = 'x'
	val[0] = 'X'

	got, err := m.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
}

func TestLLRBSortedMap_RemoveSnapshotSurvivesSubstitution(t *testing.T) {
	m := NewLLRBSortedMap()
	putAll(t, m, "b", "a", "d", "c", "e")

	// "b" sits on an internal node; its slot is refilled by the
	// in-order successor while the snapshot keeps the removed pair.
	removed, err := m.Remove([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("b"), removed.Key())
	require.Equal(t, []byte("val-b"), removed.Val())
	requireBalanced(t, m)

	var keys []string
	m.Foreach(func(idx int64, color RBColor, key, val []byte) bool {
		keys = append(keys, string(key))
		return true
	})
	require.Equal(t, []string{"a", "c", "d", "e"}, keys)
}

func TestLLRBSortedMap_WrappedErrorsCarryStacks(t *testing.T) {
	m := NewLLRBSortedMap()
	_, err := m.Get([]byte("missing"))
	require.Error(t, err)
	var es infra.ErrorStack
	require.True(t, errors.As(err, &es))
	require.True(t, bytes.Contains([]byte(es.Error()), []byte("key not found")))
}
