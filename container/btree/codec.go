// Package btree implements a disk-backed B+ tree index with
// latch-crabbing traversal, the on-disk structure cmudb calls
// BPlusTreeIndex. Keys are compared with a three-way Comparator and
// encoded/decoded with a KeyCodec, generalizing the original's
// GenericKey<N>/GenericComparator<N> template parameters into Go
// generics, per the redesign direction in the original header's comments
// about making the key type pluggable.
package btree

import (
	"encoding/binary"

	"github.com/ledgerdb/ledgerdb/storage/page"
	"github.com/ledgerdb/ledgerdb/types"
)

// Comparator returns <0, 0, or >0 as a compares before, equal to, or after b.
type Comparator[K any] func(a, b K) int

// Int64Codec encodes an int64 key as 8 little-endian bytes.
type Int64Codec struct{}

func (Int64Codec) Size() int { return 8 }
func (Int64Codec) Encode(buf []byte, k int64) {
	binary.LittleEndian.PutUint64(buf, uint64(k))
}
func (Int64Codec) Decode(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf))
}

// CompareInt64 is the Comparator for int64 keys.
func CompareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// RIDCodec encodes a page.RID as its page id (4 bytes) followed by its
// slot number (4 bytes).
type RIDCodec struct{}

func (RIDCodec) Size() int { return 8 }
func (RIDCodec) Encode(buf []byte, v page.RID) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(v.GetPageId()))
	binary.LittleEndian.PutUint32(buf[4:8], v.GetSlot())
}
func (RIDCodec) Decode(buf []byte) page.RID {
	var rid page.RID
	rid.Set(types.PageID(int32(binary.LittleEndian.Uint32(buf[0:4]))), binary.LittleEndian.Uint32(buf[4:8]))
	return rid
}
