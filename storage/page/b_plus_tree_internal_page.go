package page

import "github.com/ledgerdb/ledgerdb/types"

// BPlusTreeInternalPage is a directory node: size (key, child page id)
// pairs, where keys[0] is a sentinel never compared against (the original
// leaves array[0].first logically invalid; descent always compares against
// keys[1:]). Grounded on
// original_source/src/page/b_plus_tree_internal_page.cpp.
type BPlusTreeInternalPage[K any] struct {
	codec KeyCodec[K]

	pageID   types.PageID
	parentID types.PageID
	lsn      types.LSN
	maxSize  int

	keys     []K
	children []types.PageID
}

// NewBPlusTreeInternalPage initializes an empty internal node. Size starts
// at 1 to account for the sentinel key-0 slot, matching Init() in the
// original.
func NewBPlusTreeInternalPage[K any](codec KeyCodec[K], pageID, parentID types.PageID) *BPlusTreeInternalPage[K] {
	maxSize := treeMaxSize(TreeHeaderSize, codec.Size()+4)
	var zero K
	return &BPlusTreeInternalPage[K]{
		codec:    codec,
		pageID:   pageID,
		parentID: parentID,
		lsn:      types.InvalidLSN,
		maxSize:  maxSize,
		keys:     []K{zero},
		children: []types.PageID{types.InvalidPageID},
	}
}

func (n *BPlusTreeInternalPage[K]) PageID() types.PageID        { return n.pageID }
func (n *BPlusTreeInternalPage[K]) ParentID() types.PageID      { return n.parentID }
func (n *BPlusTreeInternalPage[K]) SetParentID(id types.PageID) { n.parentID = id }
func (n *BPlusTreeInternalPage[K]) LSN() types.LSN              { return n.lsn }
func (n *BPlusTreeInternalPage[K]) SetLSN(lsn types.LSN)        { n.lsn = lsn }
func (n *BPlusTreeInternalPage[K]) Size() int                   { return len(n.children) }
func (n *BPlusTreeInternalPage[K]) MaxSize() int                { return n.maxSize }
func (n *BPlusTreeInternalPage[K]) MinSize() int                { return (n.maxSize + 1) / 2 }
func (n *BPlusTreeInternalPage[K]) IsRootPage() bool            { return n.parentID == types.InvalidPageID }

func (n *BPlusTreeInternalPage[K]) KeyAt(i int) K              { return n.keys[i] }
func (n *BPlusTreeInternalPage[K]) SetKeyAt(i int, k K)        { n.keys[i] = k }
func (n *BPlusTreeInternalPage[K]) ValueAt(i int) types.PageID { return n.children[i] }

// ValueIndex returns the slot holding child, or -1 if absent.
func (n *BPlusTreeInternalPage[K]) ValueIndex(child types.PageID) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// Lookup walks keys[1:] to find the child pointer to descend into for key,
// matching the original's linear scan starting at index 1 (index 0's key
// is invalid).
func (n *BPlusTreeInternalPage[K]) Lookup(key K, cmp func(a, b K) int) types.PageID {
	for i := 1; i < len(n.keys); i++ {
		if cmp(key, n.keys[i]) < 0 {
			return n.children[i-1]
		}
	}
	return n.children[len(n.children)-1]
}

// PopulateNewRoot resets this node to hold exactly two children: the old
// root (under the sentinel key-0 slot) and newValue under newKey.
func (n *BPlusTreeInternalPage[K]) PopulateNewRoot(oldValue types.PageID, newKey K, newValue types.PageID) {
	var zero K
	n.keys = []K{zero, newKey}
	n.children = []types.PageID{oldValue, newValue}
}

// InsertNodeAfter inserts (newKey, newValue) immediately after the slot
// holding oldValue, returning the resulting size.
func (n *BPlusTreeInternalPage[K]) InsertNodeAfter(oldValue types.PageID, newKey K, newValue types.PageID) int {
	idx := n.ValueIndex(oldValue)
	at := idx + 1
	n.keys = append(n.keys, newKey)
	copy(n.keys[at+1:], n.keys[at:])
	n.keys[at] = newKey

	n.children = append(n.children, newValue)
	copy(n.children[at+1:], n.children[at:])
	n.children[at] = newValue
	return len(n.children)
}

// RemoveAt deletes the pair at index i.
func (n *BPlusTreeInternalPage[K]) RemoveAt(i int) {
	n.keys = append(n.keys[:i], n.keys[i+1:]...)
	n.children = append(n.children[:i], n.children[i+1:]...)
}

// RemoveAndReturnOnlyChild is used by AdjustRoot when the root has shrunk
// to a single child, which becomes the new root.
func (n *BPlusTreeInternalPage[K]) RemoveAndReturnOnlyChild() types.PageID {
	return n.children[0]
}

// MoveHalfTo moves the upper half of this node's entries to recipient,
// used when this node just overflowed past max_size during a split.
func (n *BPlusTreeInternalPage[K]) MoveHalfTo(recipient *BPlusTreeInternalPage[K]) {
	mid := len(n.children) / 2
	recipient.keys = append(recipient.keys[:0:0], n.keys[mid:]...)
	recipient.children = append(recipient.children[:0:0], n.children[mid:]...)
	n.keys = n.keys[:mid]
	n.children = n.children[:mid]
}

// MergeFrom appends right's entries onto n (n is the left sibling),
// replacing right's sentinel key-0 with sepKey, the separator key the
// parent held for right. Used by Coalesce.
func (n *BPlusTreeInternalPage[K]) MergeFrom(right *BPlusTreeInternalPage[K], sepKey K) {
	n.keys = append(n.keys, sepKey)
	n.keys = append(n.keys, right.keys[1:]...)
	n.children = append(n.children, right.children...)
}

// MoveFirstToEndOf pops this node's first entry and appends it to
// recipient with newSepKey standing in for the moved entry's old
// (invalid at index 0) key, returning the new separator key for the
// parent to store over the entry that used to point at n.
func (n *BPlusTreeInternalPage[K]) MoveFirstToEndOf(recipient *BPlusTreeInternalPage[K], newSepKey K) K {
	movedChild := n.children[0]
	nextSepKey := n.keys[1]
	n.keys = n.keys[1:]
	n.children = n.children[1:]

	recipient.keys = append(recipient.keys, newSepKey)
	recipient.children = append(recipient.children, movedChild)
	return nextSepKey
}

// MoveLastToFrontOf pops this node's last entry and prepends its child to
// recipient in the sentinel slot 0, storing newSepKey (the separator the
// parent used to hold for recipient) as the key of recipient's former
// first child, and returns the moved entry's key as the new separator
// for the parent to store over the entry that points at recipient.
func (n *BPlusTreeInternalPage[K]) MoveLastToFrontOf(recipient *BPlusTreeInternalPage[K], newSepKey K) K {
	last := len(n.children) - 1
	movedChild := n.children[last]
	nextSepKey := n.keys[last]
	n.keys = n.keys[:last]
	n.children = n.children[:last]

	recipient.keys = append([]K{recipient.keys[0]}, append([]K{newSepKey}, recipient.keys[1:]...)...)
	recipient.children = append([]types.PageID{movedChild}, recipient.children...)
	return nextSepKey
}

// Serialize writes this node's header and packed entries into buf, which
// must be at least common.PageSize bytes (a page's raw data array).
func (n *BPlusTreeInternalPage[K]) Serialize(buf []byte) {
	writeHeader(buf, InternalTreePage, len(n.children), n.maxSize, n.pageID, n.parentID, n.lsn)
	pairSize := n.codec.Size() + 4
	off := TreeHeaderSize
	for i := range n.children {
		n.codec.Encode(buf[off:off+n.codec.Size()], n.keys[i])
		writePageID(buf[off+n.codec.Size():off+pairSize], n.children[i])
		off += pairSize
	}
}

// LoadBPlusTreeInternalPage decodes an internal node previously written by
// Serialize.
func LoadBPlusTreeInternalPage[K any](buf []byte, codec KeyCodec[K]) *BPlusTreeInternalPage[K] {
	_, size, maxSize, pageID, parentID, lsn := readHeader(buf)
	n := &BPlusTreeInternalPage[K]{codec: codec, pageID: pageID, parentID: parentID, lsn: lsn, maxSize: maxSize}
	n.keys = make([]K, size)
	n.children = make([]types.PageID, size)
	pairSize := codec.Size() + 4
	off := TreeHeaderSize
	for i := 0; i < size; i++ {
		n.keys[i] = codec.Decode(buf[off : off+codec.Size()])
		n.children[i] = readPageID(buf[off+codec.Size() : off+pairSize])
		off += pairSize
	}
	return n
}

func writePageID(buf []byte, id types.PageID) {
	copy(buf, id.Serialize())
}

func readPageID(buf []byte) types.PageID {
	return types.NewPageIDFromBytes(buf)
}
