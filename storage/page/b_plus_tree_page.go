package page

import (
	"encoding/binary"

	"github.com/ledgerdb/ledgerdb/common"
	"github.com/ledgerdb/ledgerdb/types"
)

// BPlusTreePageType distinguishes an internal (directory) node from a leaf
// node when a page is fetched and its type has not been decoded yet.
// Grounded on original_source/src/include/page/b_plus_tree_page.h's
// IndexPageType enum.
type BPlusTreePageType int32

const (
	InvalidTreePage BPlusTreePageType = iota
	InternalTreePage
	LeafTreePage
)

// TreeHeaderSize is the size in bytes of the common header every B+ tree
// page carries: page type, current size, max size, page id, parent page
// id, and the page's LSN, each a 4-byte field.
const TreeHeaderSize = 24

// LeafTreeHeaderSize adds the leaf-only next_page_id field after the
// common header.
const LeafTreeHeaderSize = TreeHeaderSize + 4

// PeekTreePageType reads just the page type out of a page's raw bytes,
// without decoding the rest of the header or the key/value array. The
// B+ tree uses this to decide whether a fetched page should be loaded as
// an internal or a leaf node before it knows which.
func PeekTreePageType(data []byte) BPlusTreePageType {
	return BPlusTreePageType(int32(binary.LittleEndian.Uint32(data[0:4])))
}

// KeyCodec encodes and decodes a fixed-size key to and from a page's byte
// array. Every key in a given tree must encode to the same number of
// bytes, since max_size is derived from it.
type KeyCodec[K any] interface {
	Size() int
	Encode(buf []byte, k K)
	Decode(buf []byte) K
}

// treeMaxSize returns how many (key, value) pairs fit in a page after
// headerSize bytes of header, matching the original's
// (PAGE_SIZE - 24) / sizeof(MappingType) computation.
func treeMaxSize(headerSize, pairSize int) int {
	return (common.PageSize - headerSize) / pairSize
}

func writeHeader(buf []byte, pageType BPlusTreePageType, size, maxSize int, pageID, parentID types.PageID, lsn types.LSN) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(pageType))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(size))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(maxSize))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(pageID))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(parentID))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(lsn))
}

func readHeader(buf []byte) (pageType BPlusTreePageType, size, maxSize int, pageID, parentID types.PageID, lsn types.LSN) {
	pageType = BPlusTreePageType(int32(binary.LittleEndian.Uint32(buf[0:4])))
	size = int(int32(binary.LittleEndian.Uint32(buf[4:8])))
	maxSize = int(int32(binary.LittleEndian.Uint32(buf[8:12])))
	pageID = types.PageID(int32(binary.LittleEndian.Uint32(buf[12:16])))
	parentID = types.PageID(int32(binary.LittleEndian.Uint32(buf[16:20])))
	lsn = types.LSN(int32(binary.LittleEndian.Uint32(buf[20:24])))
	return
}
