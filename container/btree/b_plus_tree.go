package btree

import (
	"sync"

	"github.com/ledgerdb/ledgerdb/errors"
	"github.com/ledgerdb/ledgerdb/storage/access"
	"github.com/ledgerdb/ledgerdb/storage/buffer"
	"github.com/ledgerdb/ledgerdb/storage/page"
	"github.com/ledgerdb/ledgerdb/types"
)

// opKind selects which safety rule FindLeafPage applies while crabbing
// down the tree: SEARCH never blocks an ancestor release, INSERT and
// REMOVE only release ancestors once they reach a node that provably
// cannot overflow or underflow and cascade a structural change upward.
// Grounded on the BTreeOper enum in
// original_source/src/include/index/b_plus_tree.h; that header also
// declares LockPageForOperation/UnLockPageForOperation/
// ReleaseSafeAncestorsLocks for exactly this purpose, but the
// corresponding b_plus_tree.cpp's FindLeafPage never calls them - its
// traversal takes no operation or transaction argument at all. The
// crabbing loop below is this port's own wiring of that declared-but-
// unused mechanism.
type opKind int

const (
	opSearch opKind = iota
	opInsert
	opRemove
)

// BPlusTree is a disk-backed B+ tree index over key type K and leaf value
// type V, read and mutated through a shared buffer pool. Grounded on
// original_source/src/index/b_plus_tree.cpp.
type BPlusTree[K any, V any] struct {
	indexName string
	header    *HeaderPage

	bpm        *buffer.BufferPoolManager
	keyCodec   page.KeyCodec[K]
	valueCodec page.ValueCodec[V]
	cmp        Comparator[K]

	rootMu     sync.Mutex
	rootPageID types.PageID
}

// NewBPlusTree constructs an empty tree registered under indexName in
// header. If indexName is already registered, the existing root page id
// is adopted instead of starting empty.
func NewBPlusTree[K any, V any](indexName string, bpm *buffer.BufferPoolManager, header *HeaderPage, keyCodec page.KeyCodec[K], valueCodec page.ValueCodec[V], cmp Comparator[K]) *BPlusTree[K, V] {
	t := &BPlusTree[K, V]{
		indexName:  indexName,
		header:     header,
		bpm:        bpm,
		keyCodec:   keyCodec,
		valueCodec: valueCodec,
		cmp:        cmp,
		rootPageID: types.InvalidPageID,
	}
	if id, ok := header.GetRootId(indexName); ok {
		t.rootPageID = id
	}
	return t
}

func (t *BPlusTree[K, V]) IsEmpty() bool {
	t.rootMu.Lock()
	defer t.rootMu.Unlock()
	return t.rootPageID == types.InvalidPageID
}

func scratchTxn(txn *access.Transaction) *access.Transaction {
	if txn != nil {
		return txn
	}
	return access.NewTransaction(types.InvalidTxnID)
}

func isSafe(op opKind, size, maxSize, minSize int, isRoot bool) bool {
	switch op {
	case opInsert:
		return size < maxSize-1
	case opRemove:
		if isRoot {
			return true
		}
		return size > minSize
	default:
		return true
	}
}

func latchPage(p *page.Page, op opKind) {
	if op == opSearch {
		p.RLatch()
	} else {
		p.WLatch()
	}
}

func unlatchPage(p *page.Page, op opKind) {
	if op == opSearch {
		p.RUnlatch()
	} else {
		p.WUnlatch()
	}
}

// releaseAncestors drops every latch queued in txn's page set (in
// root-to-leaf order), unpinning each page as clean. Called once a node
// proves safe, so everything above it in the current descent can let go.
func (t *BPlusTree[K, V]) releaseAncestors(txn *access.Transaction, op opKind) {
	for {
		p := txn.PopFrontPageSet()
		if p == nil {
			return
		}
		unlatchPage(p, op)
		t.bpm.UnpinPage(p.ID(), false)
	}
}

// releaseAll drops every latch left in txn's page set, used on the
// terminal return path once the operation no longer needs any of them,
// then deallocates whatever pages the operation freed along the way. The
// dealloc pass only happens once every latch is gone, since a page
// queued for deletion may still be an ancestor another goroutine is
// crabbing through.
func (t *BPlusTree[K, V]) releaseAll(txn *access.Transaction, op opKind, dirty bool) {
	for {
		p := txn.PopFrontPageSet()
		if p == nil {
			break
		}
		unlatchPage(p, op)
		t.bpm.UnpinPage(p.ID(), dirty)
	}
	for pageID := range txn.GetDeletedPageSet() {
		t.bpm.DeletePage(pageID)
	}
	txn.ClearDeletedPageSet()
}

// findLeaf crabs down from the root to the leaf that should hold key,
// latching each page in op's mode and releasing ancestor latches as soon
// as a node proves safe for op. The returned leaf's page remains latched
// and pinned and is the last entry of txn's page set, behind every
// ancestor still held because no safe node was found below it. When
// leftMost is set, key is ignored
// and the descent always takes children[0], landing on the first leaf
// in the tree regardless of how K's zero value compares to the keys
// actually stored - the same leftMost descent Begin() needs.
func (t *BPlusTree[K, V]) findLeaf(key K, op opKind, leftMost bool, txn *access.Transaction) (*page.Page, *page.BPlusTreeLeafPage[K, V], error) {
	t.rootMu.Lock()
	pageID := t.rootPageID
	t.rootMu.Unlock()
	if pageID == types.InvalidPageID {
		return nil, nil, errors.New(errors.NotFound, "tree is empty")
	}

	for {
		p := t.bpm.FetchPage(pageID)
		if p == nil {
			t.releaseAll(txn, op, false)
			return nil, nil, errors.New(errors.OutOfMemory, "no free frame while descending index")
		}
		latchPage(p, op)

		if page.PeekTreePageType(p.Data()[:]) == page.LeafTreePage {
			leaf := page.LoadBPlusTreeLeafPage[K, V](p.Data()[:], t.keyCodec, t.valueCodec)
			if isSafe(op, leaf.Size(), leaf.MaxSize(), leaf.MinSize(), leaf.IsRootPage()) {
				t.releaseAncestors(txn, op)
			}
			txn.AddIntoPageSet(p)
			return p, leaf, nil
		}

		internal := page.LoadBPlusTreeInternalPage[K](p.Data()[:], t.keyCodec)
		if isSafe(op, internal.Size(), internal.MaxSize(), internal.MinSize(), internal.IsRootPage()) {
			t.releaseAncestors(txn, op)
		}
		txn.AddIntoPageSet(p)
		if leftMost {
			pageID = internal.ValueAt(0)
		} else {
			pageID = internal.Lookup(key, t.cmp)
		}
	}
}

// GetValue looks up key, returning its value and whether it was found.
func (t *BPlusTree[K, V]) GetValue(key K, txn *access.Transaction) (V, bool, error) {
	txn = scratchTxn(txn)
	var zero V
	_, leaf, err := t.findLeaf(key, opSearch, false, txn)
	if err != nil {
		if errKind, ok := errors.KindOf(err); ok && errKind == errors.NotFound {
			return zero, false, nil
		}
		return zero, false, err
	}
	v, found := leaf.Lookup(key, t.cmp)
	t.releaseAll(txn, opSearch, false)
	return v, found, nil
}

// Insert adds (key, value), returning false without modifying the tree if
// key is already present.
func (t *BPlusTree[K, V]) Insert(key K, value V, txn *access.Transaction) (bool, error) {
	txn = scratchTxn(txn)

	t.rootMu.Lock()
	if t.rootPageID == types.InvalidPageID {
		ok, err := t.startNewTree(key, value)
		t.rootMu.Unlock()
		return ok, err
	}
	t.rootMu.Unlock()

	leafPg, leaf, err := t.findLeaf(key, opInsert, false, txn)
	if err != nil {
		return false, err
	}

	if _, found := leaf.Lookup(key, t.cmp); found {
		t.releaseAll(txn, opInsert, false)
		return false, nil
	}
	leaf.Insert(key, value, t.cmp)

	if leaf.Size() < leaf.MaxSize() {
		leaf.Serialize(leafPg.Data()[:])
		t.releaseAll(txn, opInsert, true)
		return true, nil
	}

	sibling, siblingPg, err := t.newLeafPage(leaf.ParentID())
	if err != nil {
		leaf.Serialize(leafPg.Data()[:])
		t.releaseAll(txn, opInsert, true)
		return false, err
	}
	leaf.MoveHalfTo(sibling)
	leaf.Serialize(leafPg.Data()[:])
	sibling.Serialize(siblingPg.Data()[:])
	t.bpm.UnpinPage(siblingPg.ID(), true)

	if err := t.insertIntoParent(leafPg, leaf.ParentID(), leaf.PageID(), sibling.KeyAt(0), sibling.PageID(), txn); err != nil {
		return false, err
	}
	t.releaseAll(txn, opInsert, true)
	return true, nil
}

func (t *BPlusTree[K, V]) startNewTree(key K, value V) (bool, error) {
	leafPg := t.bpm.NewPage()
	if leafPg == nil {
		return false, errors.New(errors.OutOfMemory, "no free frame to start a new tree")
	}
	leaf := page.NewBPlusTreeLeafPage[K, V](t.keyCodec, t.valueCodec, leafPg.ID(), types.InvalidPageID)
	leaf.Insert(key, value, t.cmp)
	leaf.Serialize(leafPg.Data()[:])
	t.bpm.UnpinPage(leafPg.ID(), true)

	t.rootPageID = leafPg.ID()
	if !t.header.InsertRecord(t.indexName, t.rootPageID) {
		t.header.UpdateRecord(t.indexName, t.rootPageID)
	}
	return true, nil
}

func (t *BPlusTree[K, V]) newLeafPage(parentID types.PageID) (*page.BPlusTreeLeafPage[K, V], *page.Page, error) {
	pg := t.bpm.NewPage()
	if pg == nil {
		return nil, nil, errors.New(errors.OutOfMemory, "no free frame to split a leaf")
	}
	return page.NewBPlusTreeLeafPage[K, V](t.keyCodec, t.valueCodec, pg.ID(), parentID), pg, nil
}

func (t *BPlusTree[K, V]) newInternalPage(parentID types.PageID) (*page.BPlusTreeInternalPage[K], *page.Page, error) {
	pg := t.bpm.NewPage()
	if pg == nil {
		return nil, nil, errors.New(errors.OutOfMemory, "no free frame to split an internal node")
	}
	return page.NewBPlusTreeInternalPage[K](t.keyCodec, pg.ID(), parentID), pg, nil
}

// insertIntoParent inserts (key, newChildID) into oldChildID's parent,
// splitting the parent in turn (and possibly growing a new root) if that
// overflows it. oldChildPg is the already-latched, already-in-flight
// child page whose split triggered this call; it stays in txn's page set
// and is not touched here.
func (t *BPlusTree[K, V]) insertIntoParent(oldChildPg *page.Page, parentID, oldChildID types.PageID, key K, newChildID types.PageID, txn *access.Transaction) error {
	if parentID == types.InvalidPageID {
		rootPg := t.bpm.NewPage()
		if rootPg == nil {
			return errors.New(errors.OutOfMemory, "no free frame to grow a new root")
		}
		root := page.NewBPlusTreeInternalPage[K](t.keyCodec, rootPg.ID(), types.InvalidPageID)
		root.PopulateNewRoot(oldChildID, key, newChildID)
		root.Serialize(rootPg.Data()[:])
		t.bpm.UnpinPage(rootPg.ID(), true)

		t.reparentChild(txn, oldChildID, rootPg.ID())
		t.reparentChild(txn, newChildID, rootPg.ID())

		t.rootMu.Lock()
		t.rootPageID = rootPg.ID()
		t.rootMu.Unlock()
		t.header.UpdateRecord(t.indexName, t.rootPageID)
		return nil
	}

	parentPg := t.bpm.FetchPage(parentID)
	if parentPg == nil {
		return errors.New(errors.OutOfMemory, "no free frame to fetch parent during split")
	}
	parent := page.LoadBPlusTreeInternalPage[K](parentPg.Data()[:], t.keyCodec)
	parent.InsertNodeAfter(oldChildID, key, newChildID)
	t.reparentChild(txn, newChildID, parentID)

	if parent.Size() < parent.MaxSize() {
		parent.Serialize(parentPg.Data()[:])
		t.bpm.UnpinPage(parentPg.ID(), true)
		return nil
	}

	sibling, siblingPg, err := t.newInternalPage(parent.ParentID())
	if err != nil {
		parent.Serialize(parentPg.Data()[:])
		t.bpm.UnpinPage(parentPg.ID(), true)
		return err
	}
	parent.MoveHalfTo(sibling)
	for i := 0; i < sibling.Size(); i++ {
		t.reparentChild(txn, sibling.ValueAt(i), sibling.PageID())
	}
	upKey := sibling.KeyAt(0)

	parent.Serialize(parentPg.Data()[:])
	sibling.Serialize(siblingPg.Data()[:])
	t.bpm.UnpinPage(parentPg.ID(), true)
	t.bpm.UnpinPage(siblingPg.ID(), true)

	return t.insertIntoParent(oldChildPg, parent.ParentID(), parent.PageID(), upKey, sibling.PageID(), txn)
}

// setParent re-parents child to point at parentID. Used after a split
// moves entries to a new sibling page, and after a root split. child must
// not be a page this goroutine already holds write-latched (a page in
// the in-flight transaction's page set) - use reparentChild, which
// checks for that case first, instead of calling this directly.
func (t *BPlusTree[K, V]) setParent(child types.PageID, parentID types.PageID) {
	pg := t.bpm.FetchPage(child)
	if pg == nil {
		return
	}
	pg.WLatch()
	setParentOnPage[K, V](pg, t.keyCodec, t.valueCodec, parentID)
	pg.WUnlatch()
	t.bpm.UnpinPage(child, true)
}

// reparentChild re-parents child to point at parentID, same as setParent,
// but first checks whether child is already held write-latched and
// pinned in txn's page set. A node still on the crabbing descent path
// (every leaf, and every ancestor found unsafe along the way) stays
// pinned and write-latched there until the whole operation finishes, and
// a split or merge can easily move that very node's page id around as a
// child pointer one level up. Fetching and WLatch-ing it again in that
// case would self-deadlock, since storage/page's latch is a plain,
// non-reentrant sync.RWMutex this goroutine already holds; mutating the
// already-held page object directly avoids the second acquire entirely.
func (t *BPlusTree[K, V]) reparentChild(txn *access.Transaction, child types.PageID, parentID types.PageID) {
	if held := txn.LookupInPageSet(child); held != nil {
		setParentOnPage[K, V](held, t.keyCodec, t.valueCodec, parentID)
		return
	}
	t.setParent(child, parentID)
}

// setParentOnPage writes parentID into a page already fetched into pg,
// without touching its latch or pin state.
func setParentOnPage[K any, V any](pg *page.Page, keyCodec page.KeyCodec[K], valueCodec page.ValueCodec[V], parentID types.PageID) {
	if page.PeekTreePageType(pg.Data()[:]) == page.LeafTreePage {
		leaf := page.LoadBPlusTreeLeafPage[K, V](pg.Data()[:], keyCodec, valueCodec)
		leaf.SetParentID(parentID)
		leaf.Serialize(pg.Data()[:])
	} else {
		internal := page.LoadBPlusTreeInternalPage[K](pg.Data()[:], keyCodec)
		internal.SetParentID(parentID)
		internal.Serialize(pg.Data()[:])
	}
}

// Remove deletes key, if present. It is not an error for key to be
// absent.
func (t *BPlusTree[K, V]) Remove(key K, txn *access.Transaction) error {
	txn = scratchTxn(txn)

	leafPg, leaf, err := t.findLeaf(key, opRemove, false, txn)
	if err != nil {
		if errKind, ok := errors.KindOf(err); ok && errKind == errors.NotFound {
			return nil
		}
		return err
	}

	newSize, found := leaf.RemoveAndDeleteRecord(key, t.cmp)
	if !found {
		t.releaseAll(txn, opRemove, false)
		return nil
	}

	if newSize >= leaf.MinSize() || leaf.IsRootPage() {
		leaf.Serialize(leafPg.Data()[:])
		t.adjustRootIfNeeded(leaf)
		t.releaseAll(txn, opRemove, true)
		return nil
	}

	if err := t.coalesceOrRedistribute(leafPg, leaf, txn); err != nil {
		return err
	}
	t.releaseAll(txn, opRemove, true)
	return nil
}

// adjustRootIfNeeded marks the tree empty if the root leaf became empty,
// matching the original's AdjustRoot case 2 (empty leaf root): it resets
// rootPageID and the header record to InvalidPageID. The emptied leaf
// page is not deallocated.
func (t *BPlusTree[K, V]) adjustRootIfNeeded(leaf *page.BPlusTreeLeafPage[K, V]) {
	if leaf.IsRootPage() && leaf.Size() == 0 {
		t.rootMu.Lock()
		t.rootPageID = types.InvalidPageID
		t.rootMu.Unlock()
		t.header.UpdateRecord(t.indexName, types.InvalidPageID)
	}
}

// coalesceOrRedistribute handles an underflowed leaf by borrowing from a
// sibling (redistribute) or merging into one (coalesce). leafPg/leaf
// carry the underflowed leaf. A merge that underflows the parent
// continues up the parent chain through finishInternalUnderflow and
// coalesceOrRedistributeInternal.
func (t *BPlusTree[K, V]) coalesceOrRedistribute(leafPg *page.Page, leaf *page.BPlusTreeLeafPage[K, V], txn *access.Transaction) error {
	if leaf.IsRootPage() {
		return nil
	}

	parentPg := t.bpm.FetchPage(leaf.ParentID())
	if parentPg == nil {
		return errors.New(errors.OutOfMemory, "no free frame to fetch parent during underflow repair")
	}
	parent := page.LoadBPlusTreeInternalPage[K](parentPg.Data()[:], t.keyCodec)
	idx := parent.ValueIndex(leaf.PageID())

	if idx > 0 {
		siblingID := parent.ValueAt(idx - 1)
		siblingPg := t.bpm.FetchPage(siblingID)
		siblingPg.WLatch()
		sibling := page.LoadBPlusTreeLeafPage[K, V](siblingPg.Data()[:], t.keyCodec, t.valueCodec)
		if sibling.Size()+leaf.Size() >= leaf.MaxSize() {
			sibling.MoveLastToFrontOf(leaf)
			parent.SetKeyAt(idx, leaf.KeyAt(0))
			leaf.Serialize(leafPg.Data()[:])
			sibling.Serialize(siblingPg.Data()[:])
			parent.Serialize(parentPg.Data()[:])
			siblingPg.WUnlatch()
			t.bpm.UnpinPage(siblingID, true)
			t.bpm.UnpinPage(parentPg.ID(), true)
			return nil
		}
		sibling.MergeFrom(leaf)
		sibling.Serialize(siblingPg.Data()[:])
		siblingPg.WUnlatch()
		t.bpm.UnpinPage(siblingID, true)
		parent.RemoveAt(idx)
		txn.AddIntoDeletedPageSet(leaf.PageID())
		return t.finishInternalUnderflow(parentPg, parent, txn)
	}

	siblingID := parent.ValueAt(idx + 1)
	siblingPg := t.bpm.FetchPage(siblingID)
	siblingPg.WLatch()
	sibling := page.LoadBPlusTreeLeafPage[K, V](siblingPg.Data()[:], t.keyCodec, t.valueCodec)
	if sibling.Size()+leaf.Size() >= leaf.MaxSize() {
		sibling.MoveFirstToEndOf(leaf)
		parent.SetKeyAt(idx+1, sibling.KeyAt(0))
		leaf.Serialize(leafPg.Data()[:])
		sibling.Serialize(siblingPg.Data()[:])
		parent.Serialize(parentPg.Data()[:])
		siblingPg.WUnlatch()
		t.bpm.UnpinPage(siblingID, true)
		t.bpm.UnpinPage(parentPg.ID(), true)
		return nil
	}
	leaf.MergeFrom(sibling)
	leaf.Serialize(leafPg.Data()[:])
	siblingPg.WUnlatch()
	t.bpm.UnpinPage(siblingID, true)
	parent.RemoveAt(idx + 1)
	txn.AddIntoDeletedPageSet(siblingID)
	return t.finishInternalUnderflow(parentPg, parent, txn)
}

// finishInternalUnderflow writes back parent after a child merge removed
// one of its entries, recursing into the internal-node underflow path if
// that removal itself underflowed parent.
func (t *BPlusTree[K, V]) finishInternalUnderflow(parentPg *page.Page, parent *page.BPlusTreeInternalPage[K], txn *access.Transaction) error {
	if parent.IsRootPage() {
		parent.Serialize(parentPg.Data()[:])
		if parent.Size() == 1 {
			onlyChild := parent.RemoveAndReturnOnlyChild()
			t.rootMu.Lock()
			t.rootPageID = onlyChild
			t.rootMu.Unlock()
			t.header.UpdateRecord(t.indexName, onlyChild)
			t.reparentChild(txn, onlyChild, types.InvalidPageID)
			txn.AddIntoDeletedPageSet(parent.PageID())
			t.bpm.UnpinPage(parentPg.ID(), true)
		} else {
			t.bpm.UnpinPage(parentPg.ID(), true)
		}
		return nil
	}

	if parent.Size() >= parent.MinSize() {
		parent.Serialize(parentPg.Data()[:])
		t.bpm.UnpinPage(parentPg.ID(), true)
		return nil
	}
	return t.coalesceOrRedistributeInternal(parentPg, parent, txn)
}

func (t *BPlusTree[K, V]) coalesceOrRedistributeInternal(nodePg *page.Page, node *page.BPlusTreeInternalPage[K], txn *access.Transaction) error {
	grandparentPg := t.bpm.FetchPage(node.ParentID())
	if grandparentPg == nil {
		return errors.New(errors.OutOfMemory, "no free frame to fetch grandparent during underflow repair")
	}
	grandparent := page.LoadBPlusTreeInternalPage[K](grandparentPg.Data()[:], t.keyCodec)
	idx := grandparent.ValueIndex(node.PageID())

	if idx > 0 {
		siblingID := grandparent.ValueAt(idx - 1)
		siblingPg := t.bpm.FetchPage(siblingID)
		siblingPg.WLatch()
		sibling := page.LoadBPlusTreeInternalPage[K](siblingPg.Data()[:], t.keyCodec)
		if sibling.Size()+node.Size() >= node.MaxSize() {
			sepKey := grandparent.KeyAt(idx)
			newSep := sibling.MoveLastToFrontOf(node, sepKey)
			t.reparentChild(txn, node.ValueAt(0), node.PageID())
			grandparent.SetKeyAt(idx, newSep)
			node.Serialize(nodePg.Data()[:])
			sibling.Serialize(siblingPg.Data()[:])
			grandparent.Serialize(grandparentPg.Data()[:])
			siblingPg.WUnlatch()
			t.bpm.UnpinPage(siblingID, true)
			t.bpm.UnpinPage(grandparentPg.ID(), true)
			return nil
		}
		sepKey := grandparent.KeyAt(idx)
		sibling.MergeFrom(node, sepKey)
		for i := 0; i < node.Size(); i++ {
			t.reparentChild(txn, node.ValueAt(i), sibling.PageID())
		}
		sibling.Serialize(siblingPg.Data()[:])
		siblingPg.WUnlatch()
		t.bpm.UnpinPage(siblingID, true)
		grandparent.RemoveAt(idx)
		txn.AddIntoDeletedPageSet(node.PageID())
		return t.finishInternalUnderflow(grandparentPg, grandparent, txn)
	}

	siblingID := grandparent.ValueAt(idx + 1)
	siblingPg := t.bpm.FetchPage(siblingID)
	siblingPg.WLatch()
	sibling := page.LoadBPlusTreeInternalPage[K](siblingPg.Data()[:], t.keyCodec)
	if sibling.Size()+node.Size() >= node.MaxSize() {
		sepKey := grandparent.KeyAt(idx + 1)
		newSep := sibling.MoveFirstToEndOf(node, sepKey)
		t.reparentChild(txn, node.ValueAt(node.Size()-1), node.PageID())
		grandparent.SetKeyAt(idx+1, newSep)
		node.Serialize(nodePg.Data()[:])
		sibling.Serialize(siblingPg.Data()[:])
		grandparent.Serialize(grandparentPg.Data()[:])
		siblingPg.WUnlatch()
		t.bpm.UnpinPage(siblingID, true)
		t.bpm.UnpinPage(grandparentPg.ID(), true)
		return nil
	}
	sepKey := grandparent.KeyAt(idx + 1)
	node.MergeFrom(sibling, sepKey)
	for i := 0; i < sibling.Size(); i++ {
		t.reparentChild(txn, sibling.ValueAt(i), node.PageID())
	}
	node.Serialize(nodePg.Data()[:])
	siblingPg.WUnlatch()
	t.bpm.UnpinPage(siblingID, true)
	grandparent.RemoveAt(idx + 1)
	txn.AddIntoDeletedPageSet(siblingID)
	return t.finishInternalUnderflow(grandparentPg, grandparent, txn)
}
