package infra

import (
	"bytes"
	"encoding/binary"
)

// BytesComparator is a total order over byte-sequence keys.
// Assume i is the new key.
//  1. i equals j (return 0)
//  2. i after j (return 1), turn to right part.
//  3. i before j (return -1), turn to left part.
//
// The comparator of a living container must stay consistent and
// transitive. Swapping it after keys have been stored is a caller
// error.
type BytesComparator func(i, j []byte) int64

// DefaultBytesComparator orders keys lexicographically byte by byte.
func DefaultBytesComparator() BytesComparator {
	return func(i, j []byte) int64 {
		return int64(bytes.Compare(i, j))
	}
}

// Uint64LEBytesComparator orders fixed-width 8-byte keys by their
// little-endian unsigned integer value. Shorter keys sort before
// longer ones so mixed widths stay deterministic.
func Uint64LEBytesComparator() BytesComparator {
	return func(i, j []byte) int64 {
		if len(i) != 8 || len(j) != 8 {
			if len(i) == len(j) {
				return int64(bytes.Compare(i, j))
			}
			return int64(len(i) - len(j))
		}
		vi, vj := binary.LittleEndian.Uint64(i), binary.LittleEndian.Uint64(j)
		if vi == vj {
			return 0
		} else if vi < vj {
			return -1
		}
		return 1
	}
}

// ReverseBytesComparator inverts the order of cmp.
func ReverseBytesComparator(cmp BytesComparator) BytesComparator {
	return func(i, j []byte) int64 {
		return -cmp(i, j)
	}
}
