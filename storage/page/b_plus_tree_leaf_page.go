package page

import "github.com/ledgerdb/ledgerdb/types"

// ValueCodec encodes and decodes a fixed-size leaf value (an RID, for this
// engine) to and from a page's byte array.
type ValueCodec[V any] interface {
	Size() int
	Encode(buf []byte, v V)
	Decode(buf []byte) V
}

// BPlusTreeLeafPage holds a sorted run of (key, value) pairs plus the page
// id of the next leaf, forming the forward-linked list range scans walk.
// Grounded on original_source/src/page/b_plus_tree_leaf_page.cpp.
type BPlusTreeLeafPage[K any, V any] struct {
	keyCodec   KeyCodec[K]
	valueCodec ValueCodec[V]

	pageID     types.PageID
	parentID   types.PageID
	nextPageID types.PageID
	lsn        types.LSN
	maxSize    int

	keys   []K
	values []V
}

// NewBPlusTreeLeafPage initializes an empty leaf.
func NewBPlusTreeLeafPage[K any, V any](keyCodec KeyCodec[K], valueCodec ValueCodec[V], pageID, parentID types.PageID) *BPlusTreeLeafPage[K, V] {
	maxSize := treeMaxSize(LeafTreeHeaderSize, keyCodec.Size()+valueCodec.Size())
	return &BPlusTreeLeafPage[K, V]{
		keyCodec:   keyCodec,
		valueCodec: valueCodec,
		pageID:     pageID,
		parentID:   parentID,
		nextPageID: types.InvalidPageID,
		lsn:        types.InvalidLSN,
		maxSize:    maxSize,
	}
}

func (n *BPlusTreeLeafPage[K, V]) PageID() types.PageID          { return n.pageID }
func (n *BPlusTreeLeafPage[K, V]) ParentID() types.PageID        { return n.parentID }
func (n *BPlusTreeLeafPage[K, V]) SetParentID(id types.PageID)   { n.parentID = id }
func (n *BPlusTreeLeafPage[K, V]) NextPageID() types.PageID      { return n.nextPageID }
func (n *BPlusTreeLeafPage[K, V]) SetNextPageID(id types.PageID) { n.nextPageID = id }
func (n *BPlusTreeLeafPage[K, V]) LSN() types.LSN                { return n.lsn }
func (n *BPlusTreeLeafPage[K, V]) SetLSN(lsn types.LSN)          { n.lsn = lsn }
func (n *BPlusTreeLeafPage[K, V]) Size() int                     { return len(n.keys) }
func (n *BPlusTreeLeafPage[K, V]) MaxSize() int                  { return n.maxSize }
func (n *BPlusTreeLeafPage[K, V]) MinSize() int                  { return (n.maxSize + 1) / 2 }
func (n *BPlusTreeLeafPage[K, V]) IsRootPage() bool              { return n.parentID == types.InvalidPageID }

func (n *BPlusTreeLeafPage[K, V]) KeyAt(i int) K   { return n.keys[i] }
func (n *BPlusTreeLeafPage[K, V]) ValueAt(i int) V { return n.values[i] }
func (n *BPlusTreeLeafPage[K, V]) Keys() []K       { return n.keys }
func (n *BPlusTreeLeafPage[K, V]) Values() []V     { return n.values }

// KeyIndex returns the first slot whose key is >= key, used both by
// Lookup/Insert and to seed a Begin(key) iterator.
func (n *BPlusTreeLeafPage[K, V]) KeyIndex(key K, cmp func(a, b K) int) int {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(n.keys[mid], key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup returns the value stored for key, if present.
func (n *BPlusTreeLeafPage[K, V]) Lookup(key K, cmp func(a, b K) int) (V, bool) {
	idx := n.KeyIndex(key, cmp)
	if idx < len(n.keys) && cmp(n.keys[idx], key) == 0 {
		return n.values[idx], true
	}
	var zero V
	return zero, false
}

// Insert adds (key, value) in sorted position. Returns false without
// modifying the node if key is already present.
func (n *BPlusTreeLeafPage[K, V]) Insert(key K, value V, cmp func(a, b K) int) bool {
	idx := n.KeyIndex(key, cmp)
	if idx < len(n.keys) && cmp(n.keys[idx], key) == 0 {
		return false
	}
	n.keys = append(n.keys, key)
	copy(n.keys[idx+1:], n.keys[idx:])
	n.keys[idx] = key

	n.values = append(n.values, value)
	copy(n.values[idx+1:], n.values[idx:])
	n.values[idx] = value
	return true
}

// RemoveAndDeleteRecord deletes key's entry if present, returning the
// resulting size and whether the key was found.
func (n *BPlusTreeLeafPage[K, V]) RemoveAndDeleteRecord(key K, cmp func(a, b K) int) (int, bool) {
	idx := n.KeyIndex(key, cmp)
	if idx >= len(n.keys) || cmp(n.keys[idx], key) != 0 {
		return len(n.keys), false
	}
	n.keys = append(n.keys[:idx], n.keys[idx+1:]...)
	n.values = append(n.values[:idx], n.values[idx+1:]...)
	return len(n.keys), true
}

// MoveHalfTo moves the upper half of this leaf's entries to recipient
// after an overflowing insert, and relinks the next-page-id chain so
// recipient sits between n and n's old successor.
func (n *BPlusTreeLeafPage[K, V]) MoveHalfTo(recipient *BPlusTreeLeafPage[K, V]) {
	mid := len(n.keys) / 2
	recipient.keys = append(recipient.keys[:0:0], n.keys[mid:]...)
	recipient.values = append(recipient.values[:0:0], n.values[mid:]...)
	n.keys = n.keys[:mid]
	n.values = n.values[:mid]

	recipient.nextPageID = n.nextPageID
	n.nextPageID = recipient.pageID
}

// MergeFrom appends right's entries onto n (the left sibling) and adopts
// right's next-page-id link. Used by Coalesce.
func (n *BPlusTreeLeafPage[K, V]) MergeFrom(right *BPlusTreeLeafPage[K, V]) {
	n.keys = append(n.keys, right.keys...)
	n.values = append(n.values, right.values...)
	n.nextPageID = right.nextPageID
}

// MoveFirstToEndOf pops this leaf's first entry and appends it to
// recipient, used during redistribution when n is the right sibling
// donating to a left neighbor.
func (n *BPlusTreeLeafPage[K, V]) MoveFirstToEndOf(recipient *BPlusTreeLeafPage[K, V]) {
	recipient.keys = append(recipient.keys, n.keys[0])
	recipient.values = append(recipient.values, n.values[0])
	n.keys = n.keys[1:]
	n.values = n.values[1:]
}

// MoveLastToFrontOf pops this leaf's last entry and prepends it to
// recipient, used during redistribution when n is the left sibling
// donating to a right neighbor.
func (n *BPlusTreeLeafPage[K, V]) MoveLastToFrontOf(recipient *BPlusTreeLeafPage[K, V]) {
	last := len(n.keys) - 1
	recipient.keys = append([]K{n.keys[last]}, recipient.keys...)
	recipient.values = append([]V{n.values[last]}, recipient.values...)
	n.keys = n.keys[:last]
	n.values = n.values[:last]
}

// Serialize writes this leaf's header and packed entries into buf, which
// must be at least common.PageSize bytes.
func (n *BPlusTreeLeafPage[K, V]) Serialize(buf []byte) {
	writeHeader(buf, LeafTreePage, len(n.keys), n.maxSize, n.pageID, n.parentID, n.lsn)
	writePageID(buf[TreeHeaderSize:LeafTreeHeaderSize], n.nextPageID)

	pairSize := n.keyCodec.Size() + n.valueCodec.Size()
	off := LeafTreeHeaderSize
	for i := range n.keys {
		n.keyCodec.Encode(buf[off:off+n.keyCodec.Size()], n.keys[i])
		n.valueCodec.Encode(buf[off+n.keyCodec.Size():off+pairSize], n.values[i])
		off += pairSize
	}
}

// LoadBPlusTreeLeafPage decodes a leaf previously written by Serialize.
func LoadBPlusTreeLeafPage[K any, V any](buf []byte, keyCodec KeyCodec[K], valueCodec ValueCodec[V]) *BPlusTreeLeafPage[K, V] {
	_, size, maxSize, pageID, parentID, lsn := readHeader(buf)
	n := &BPlusTreeLeafPage[K, V]{keyCodec: keyCodec, valueCodec: valueCodec, pageID: pageID, parentID: parentID, lsn: lsn, maxSize: maxSize}
	n.nextPageID = readPageID(buf[TreeHeaderSize:LeafTreeHeaderSize])

	n.keys = make([]K, size)
	n.values = make([]V, size)
	pairSize := keyCodec.Size() + valueCodec.Size()
	off := LeafTreeHeaderSize
	for i := 0; i < size; i++ {
		n.keys[i] = keyCodec.Decode(buf[off : off+keyCodec.Size()])
		n.values[i] = valueCodec.Decode(buf[off+keyCodec.Size() : off+pairSize])
		off += pairSize
	}
	return n
}
