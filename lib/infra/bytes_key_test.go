package infra

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultBytesComparator(t *testing.T) {
	cmp := DefaultBytesComparator()
	require.Equal(t, int64(0), cmp([]byte("abc"), []byte("abc")))
	require.Equal(t, int64(-1), cmp([]byte("abc"), []byte("abd")))
	require.Equal(t, int64(1), cmp([]byte("abd"), []byte("abc")))
	require.Equal(t, int64(-1), cmp([]byte("ab"), []byte("abc")))
	require.Equal(t, int64(-1), cmp(nil, []byte("a")))
}

func TestUint64LEBytesComparator(t *testing.T) {
	cmp := Uint64LEBytesComparator()
	enc := func(v uint64) []byte {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], v)
		return buf[:]
	}

	// Little-endian byte order is not lexicographic; the comparator
	// must still order by numeric value.
	require.Equal(t, int64(-1), cmp(enc(1), enc(256)))
	require.Equal(t, int64(1), cmp(enc(1<<40), enc(3)))
	require.Equal(t, int64(0), cmp(enc(42), enc(42)))
	// Mixed widths stay deterministic, shorter first.
	require.Less(t, cmp([]byte{1}, enc(0)), int64(0))
}

func TestReverseBytesComparator(t *testing.T) {
	cmp := ReverseBytesComparator(DefaultBytesComparator())
	require.Equal(t, int64(1), cmp([]byte("a"), []byte("b")))
	require.Equal(t, int64(-1), cmp([]byte("b"), []byte("a")))
	require.Equal(t, int64(0), cmp([]byte("a"), []byte("a")))
}
