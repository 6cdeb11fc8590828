package btree

import (
	"github.com/ledgerdb/ledgerdb/errors"
	"github.com/ledgerdb/ledgerdb/storage/page"
	"github.com/ledgerdb/ledgerdb/types"
)

// Iterator walks a leaf chain in key order. Grounded on
// original_source/src/index/index_iterator.cpp: it holds a pinned leaf
// page plus an index into it, and Next() crosses to the next leaf via
// next_page_id once it runs off the end of the current one. Unlike a
// tree descent, a forward scan never latches more than the one leaf it
// is currently positioned on.
type Iterator[K any, V any] struct {
	tree *BPlusTree[K, V]
	pg   *page.Page
	leaf *page.BPlusTreeLeafPage[K, V]
	pos  int
}

// Begin returns an iterator positioned at the first entry of the tree. On
// an empty tree the returned iterator is already at its end.
func (t *BPlusTree[K, V]) Begin() (*Iterator[K, V], error) {
	var zero K
	return t.begin(zero, false, true)
}

// BeginAt returns an iterator positioned at the first entry whose key is
// >= key.
func (t *BPlusTree[K, V]) BeginAt(key K) (*Iterator[K, V], error) {
	return t.begin(key, true, false)
}

func (t *BPlusTree[K, V]) begin(key K, seek bool, leftMost bool) (*Iterator[K, V], error) {
	txn := scratchTxn(nil)
	pg, leaf, err := t.findLeaf(key, opSearch, leftMost, txn)
	if err != nil {
		if errKind, ok := errors.KindOf(err); ok && errKind == errors.NotFound {
			return &Iterator[K, V]{tree: t}, nil
		}
		return nil, err
	}
	// findLeaf already released every ancestor latch (SEARCH is always
	// safe); the leaf itself is still latched and belongs to the
	// iterator now, so drop it from the scratch txn without releasing it.
	txn.ClearPageSet()

	pos := 0
	if seek {
		pos = leaf.KeyIndex(key, t.cmp)
	}
	it := &Iterator[K, V]{tree: t, pg: pg, leaf: leaf, pos: pos}
	// KeyIndex can return leaf.Size() when key falls past every entry in
	// this leaf (the first entry >= key lives in the next leaf, if any);
	// roll forward so the iterator never sits on an out-of-range pos.
	if seek && pos >= leaf.Size() {
		it.rollToNextLeaf()
	}
	return it, nil
}

// IsEnd reports whether the iterator has exhausted every leaf.
func (it *Iterator[K, V]) IsEnd() bool {
	return it.leaf == nil
}

// Item returns the (key, value) pair the iterator is positioned on.
func (it *Iterator[K, V]) Item() (K, V) {
	return it.leaf.KeyAt(it.pos), it.leaf.ValueAt(it.pos)
}

// Next advances the iterator, crossing into the next leaf via
// next_page_id when it runs off the end of the current one, and
// unlatching/unpinning the leaf it leaves behind.
func (it *Iterator[K, V]) Next() {
	if it.leaf == nil {
		return
	}
	if it.pos < it.leaf.Size()-1 {
		it.pos++
		return
	}
	it.rollToNextLeaf()
}

// rollToNextLeaf crosses from the current leaf to its next_page_id
// sibling, leaving the iterator at position 0 there, or ended if there
// is no next leaf. Shared by Next() (once the current leaf is
// exhausted) and begin() (when a seek key lands past every entry in the
// leaf findLeaf returned).
func (it *Iterator[K, V]) rollToNextLeaf() {
	next := it.leaf.NextPageID()
	it.pg.RUnlatch()
	it.tree.bpm.UnpinPage(it.leaf.PageID(), false)

	if next == types.InvalidPageID {
		it.pg = nil
		it.leaf = nil
		return
	}

	pg := it.tree.bpm.FetchPage(next)
	pg.RLatch()
	it.pg = pg
	it.leaf = page.LoadBPlusTreeLeafPage[K, V](pg.Data()[:], it.tree.keyCodec, it.tree.valueCodec)
	it.pos = 0
}

// Close releases the iterator's current leaf latch and pin without
// advancing. Callers that stop scanning before IsEnd() must call this.
func (it *Iterator[K, V]) Close() {
	if it.leaf == nil {
		return
	}
	it.pg.RUnlatch()
	it.tree.bpm.UnpinPage(it.leaf.PageID(), false)
	it.pg = nil
	it.leaf = nil
}
