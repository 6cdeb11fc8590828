package btree

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/ledgerdb/ledgerdb/storage/buffer"
	"github.com/ledgerdb/ledgerdb/storage/disk"
	"github.com/ledgerdb/ledgerdb/storage/page"
	"github.com/ledgerdb/ledgerdb/types"
)

func newTestTree(t *testing.T, poolSize uint32) *BPlusTree[int64, page.RID] {
	t.Helper()
	dm := disk.NewDiskManagerTest()
	t.Cleanup(func() { dm.ShutDown() })
	bpm := buffer.NewBufferPoolManager(poolSize, dm, nil)
	header := NewHeaderPage()
	return NewBPlusTree[int64, page.RID]("test_index", bpm, header, Int64Codec{}, RIDCodec{}, CompareInt64)
}

// paddedInt64Codec pads a key's on-page encoding out to width bytes,
// carrying the real int64 in the first 8. treeMaxSize derives max_size
// as (PageSize-headerSize)/pairSize, so widening the encoded pair size
// this way forces a small max_size without touching common.PageSize or
// any tree code, letting a test force splits, merges, and multi-level
// trees with a handful of keys instead of thousands.
type paddedInt64Codec struct{ width int }

func (c paddedInt64Codec) Size() int { return c.width }
func (c paddedInt64Codec) Encode(buf []byte, k int64) {
	binary.LittleEndian.PutUint64(buf[:8], uint64(k))
}
func (c paddedInt64Codec) Decode(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf[:8]))
}

// paddedInt64ValueCodec is paddedInt64Codec's leaf-value counterpart,
// carrying an int64 value truncated to 32 bits (ample for small test
// keys) in a width-byte slot.
type paddedInt64ValueCodec struct{ width int }

func (c paddedInt64ValueCodec) Size() int { return c.width }
func (c paddedInt64ValueCodec) Encode(buf []byte, v int64) {
	binary.LittleEndian.PutUint32(buf[:4], uint32(v))
}
func (c paddedInt64ValueCodec) Decode(buf []byte) int64 {
	return int64(int32(binary.LittleEndian.Uint32(buf[:4])))
}

// newSmallMaxSizeTestTree returns a tree whose leaf and internal
// max_size are both exactly 4 (leaf pair width 1000 -> (4096-28)/1000 =
// 4; internal pair width 996+4=1000 -> (4096-24)/1000 = 4), so splits,
// redistribution, coalescing, root collapse, and the cross-leaf
// iterator are all reachable with a handful of keys instead of
// hundreds.
func newSmallMaxSizeTestTree(t *testing.T, poolSize uint32) *BPlusTree[int64, int64] {
	t.Helper()
	dm := disk.NewDiskManagerTest()
	t.Cleanup(func() { dm.ShutDown() })
	bpm := buffer.NewBufferPoolManager(poolSize, dm, nil)
	header := NewHeaderPage()
	return NewBPlusTree[int64, int64]("small_max_size_index", bpm, header,
		paddedInt64Codec{width: 996}, paddedInt64ValueCodec{width: 4}, CompareInt64)
}

// treeHeight walks from the root down the leftmost child, returning the
// number of internal levels above the leaf (0 for a single-leaf tree).
func treeHeight[K any, V any](t *testing.T, tree *BPlusTree[K, V]) int {
	t.Helper()
	height := 0
	pageID := tree.rootPageID
	for {
		pg := tree.bpm.FetchPage(pageID)
		if pg == nil {
			t.Fatalf("treeHeight: could not fetch page %v", pageID)
		}
		isLeaf := page.PeekTreePageType(pg.Data()[:]) == page.LeafTreePage
		var next types.PageID
		if !isLeaf {
			internal := page.LoadBPlusTreeInternalPage[K](pg.Data()[:], tree.keyCodec)
			next = internal.ValueAt(0)
		}
		tree.bpm.UnpinPage(pageID, false)
		if isLeaf {
			return height
		}
		height++
		pageID = next
	}
}

// checkNodeSizeInvariants walks every node reachable from the root and
// asserts property 5: every non-root node's size sits in
// [min_size, max_size).
func checkNodeSizeInvariants[K any, V any](t *testing.T, tree *BPlusTree[K, V]) {
	t.Helper()
	if tree.rootPageID == types.InvalidPageID {
		return
	}
	var walk func(pageID types.PageID, isRoot bool)
	walk = func(pageID types.PageID, isRoot bool) {
		pg := tree.bpm.FetchPage(pageID)
		if pg == nil {
			t.Fatalf("checkNodeSizeInvariants: could not fetch page %v", pageID)
		}
		defer tree.bpm.UnpinPage(pageID, false)

		if page.PeekTreePageType(pg.Data()[:]) == page.LeafTreePage {
			leaf := page.LoadBPlusTreeLeafPage[K, V](pg.Data()[:], tree.keyCodec, tree.valueCodec)
			if !isRoot && (leaf.Size() < leaf.MinSize() || leaf.Size() >= leaf.MaxSize()) {
				t.Errorf("leaf %v size %d outside [%d, %d)", pageID, leaf.Size(), leaf.MinSize(), leaf.MaxSize())
			}
			return
		}
		internal := page.LoadBPlusTreeInternalPage[K](pg.Data()[:], tree.keyCodec)
		if !isRoot && (internal.Size() < internal.MinSize() || internal.Size() >= internal.MaxSize()) {
			t.Errorf("internal %v size %d outside [%d, %d)", pageID, internal.Size(), internal.MinSize(), internal.MaxSize())
		}
		for i := 0; i < internal.Size(); i++ {
			walk(internal.ValueAt(i), false)
		}
	}
	walk(tree.rootPageID, true)
}

func ridOf(n int64) page.RID {
	var rid page.RID
	rid.Set(types.PageID(n), 0)
	return rid
}

func TestBPlusTreeEmptyTreeHasNoValue(t *testing.T) {
	tree := newTestTree(t, 50)
	if !tree.IsEmpty() {
		t.Fatalf("fresh tree should be empty")
	}
	if _, found, err := tree.GetValue(1, nil); err != nil || found {
		t.Fatalf("GetValue on empty tree = (_, %v, %v), want (_, false, nil)", found, err)
	}
}

func TestBPlusTreeInsertAndGetValueRoundTrip(t *testing.T) {
	tree := newTestTree(t, 50)
	for _, k := range []int64{5, 3, 8, 1, 9} {
		ok, err := tree.Insert(k, ridOf(k), nil)
		if err != nil || !ok {
			t.Fatalf("Insert(%d) = (%v, %v), want (true, nil)", k, ok, err)
		}
	}
	for _, k := range []int64{5, 3, 8, 1, 9} {
		v, found, err := tree.GetValue(k, nil)
		if err != nil || !found {
			t.Fatalf("GetValue(%d) = (_, %v, %v), want (_, true, nil)", k, found, err)
		}
		if v != ridOf(k) {
			t.Fatalf("GetValue(%d) = %v, want %v", k, v, ridOf(k))
		}
	}
}

func TestBPlusTreeInsertDuplicateKeyFails(t *testing.T) {
	tree := newTestTree(t, 50)
	tree.Insert(1, ridOf(1), nil)
	ok, err := tree.Insert(1, ridOf(99), nil)
	if err != nil || ok {
		t.Fatalf("Insert of duplicate key = (%v, %v), want (false, nil)", ok, err)
	}
	v, _, _ := tree.GetValue(1, nil)
	if v != ridOf(1) {
		t.Fatalf("duplicate insert should not overwrite existing value, got %v", v)
	}
}

// Inserting a run of keys and then removing the odd ones should leave the
// even ones reachable in ascending order via a forward scan.
func TestBPlusTreeOrderedScanAfterRemoves(t *testing.T) {
	tree := newTestTree(t, 50)
	for i := int64(1); i <= 10; i++ {
		if ok, err := tree.Insert(i, ridOf(i), nil); err != nil || !ok {
			t.Fatalf("Insert(%d) failed: ok=%v err=%v", i, ok, err)
		}
	}

	var got []int64
	it, err := tree.Begin()
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	for !it.IsEnd() {
		k, _ := it.Item()
		got = append(got, k)
		it.Next()
	}
	wantAsc := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assertInt64Slice(t, got, wantAsc)

	for i := int64(1); i <= 9; i += 2 {
		if err := tree.Remove(i, nil); err != nil {
			t.Fatalf("Remove(%d) error: %v", i, err)
		}
	}

	got = nil
	it, err = tree.Begin()
	if err != nil {
		t.Fatalf("Begin() after removes error: %v", err)
	}
	for !it.IsEnd() {
		k, _ := it.Item()
		got = append(got, k)
		it.Next()
	}
	wantEven := []int64{2, 4, 6, 8, 10}
	assertInt64Slice(t, got, wantEven)
}

func TestBPlusTreeRemoveMissingKeyIsNoop(t *testing.T) {
	tree := newTestTree(t, 50)
	tree.Insert(1, ridOf(1), nil)
	if err := tree.Remove(42, nil); err != nil {
		t.Fatalf("Remove of absent key returned error: %v", err)
	}
	if _, found, _ := tree.GetValue(1, nil); !found {
		t.Fatalf("unrelated key should survive a no-op remove")
	}
}

func TestBPlusTreeRemoveAllEmptiesTree(t *testing.T) {
	tree := newTestTree(t, 50)
	keys := []int64{1, 2, 3, 4, 5}
	for _, k := range keys {
		tree.Insert(k, ridOf(k), nil)
	}
	for _, k := range keys {
		if err := tree.Remove(k, nil); err != nil {
			t.Fatalf("Remove(%d) error: %v", k, err)
		}
	}
	if !tree.IsEmpty() {
		t.Fatalf("tree should be empty after removing every key")
	}
}

// With max_size around 250 entries per leaf for an (int64, RID) pair,
// inserting several hundred keys forces real leaf and internal splits,
// and removing most of them forces the redistribute/coalesce paths.
func TestBPlusTreeManyKeysSplitsAndMerges(t *testing.T) {
	tree := newTestTree(t, 2000)
	const n = 600

	for i := int64(0); i < n; i++ {
		if ok, err := tree.Insert(i, ridOf(i), nil); err != nil || !ok {
			t.Fatalf("Insert(%d) failed: ok=%v err=%v", i, ok, err)
		}
	}

	var got []int64
	it, err := tree.Begin()
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	for !it.IsEnd() {
		k, _ := it.Item()
		got = append(got, k)
		it.Next()
	}
	if len(got) != n {
		t.Fatalf("scan returned %d keys, want %d", len(got), n)
	}
	for i := range got {
		if got[i] != int64(i) {
			t.Fatalf("scan out of order at position %d: %d", i, got[i])
		}
	}

	for i := int64(0); i < n; i += 2 {
		if err := tree.Remove(i, nil); err != nil {
			t.Fatalf("Remove(%d) error: %v", i, err)
		}
	}
	for i := int64(1); i < n; i += 2 {
		if _, found, err := tree.GetValue(i, nil); err != nil || !found {
			t.Fatalf("GetValue(%d) after removing evens = (_, %v, %v), want (_, true, nil)", i, found, err)
		}
	}
	for i := int64(0); i < n; i += 2 {
		if _, found, _ := tree.GetValue(i, nil); found {
			t.Fatalf("GetValue(%d) should miss after removal", i)
		}
	}
}

func TestBPlusTreeBeginAtSeeksToKey(t *testing.T) {
	tree := newTestTree(t, 50)
	for i := int64(1); i <= 10; i++ {
		tree.Insert(i, ridOf(i), nil)
	}
	it, err := tree.BeginAt(6)
	if err != nil {
		t.Fatalf("BeginAt(6) error: %v", err)
	}
	k, _ := it.Item()
	if k != 6 {
		t.Fatalf("BeginAt(6) landed on %d, want 6", k)
	}
}

func assertInt64Slice(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func scanKeys(t *testing.T, tree *BPlusTree[int64, int64]) []int64 {
	t.Helper()
	it, err := tree.Begin()
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	var got []int64
	for !it.IsEnd() {
		k, _ := it.Item()
		got = append(got, k)
		it.Next()
	}
	return got
}

// TestBPlusTreeSmallMaxSizeSplitMergeScan drives a max_size=4 tree
// through the full lifecycle: inserting 1..10 in order forces multiple
// splits and a multi-level tree, Begin() must still yield 1..10 in
// order, and removing every odd key must force coalesce/redistribute
// back down to a tree whose Begin() yields exactly 2,4,6,8,10 -
// exercising split, merge, crab-release, and the cross-leaf iterator
// hop together, not each in isolation.
func TestBPlusTreeSmallMaxSizeSplitMergeScan(t *testing.T) {
	tree := newSmallMaxSizeTestTree(t, 50)

	for i := int64(1); i <= 10; i++ {
		ok, err := tree.Insert(i, i*10, nil)
		if err != nil || !ok {
			t.Fatalf("Insert(%d) = (%v, %v), want (true, nil)", i, ok, err)
		}
	}

	if height := treeHeight(t, tree); height == 0 {
		t.Fatalf("tree height = 0 after 10 inserts at max_size=4, want a split to have happened")
	}
	checkNodeSizeInvariants(t, tree)

	assertInt64Slice(t, scanKeys(t, tree), []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	for i := int64(1); i <= 10; i++ {
		if v, found, err := tree.GetValue(i, nil); err != nil || !found || v != i*10 {
			t.Fatalf("GetValue(%d) = (%v, %v, %v), want (%d, true, nil)", i, v, found, err, i*10)
		}
	}

	for i := int64(1); i <= 9; i += 2 {
		if err := tree.Remove(i, nil); err != nil {
			t.Fatalf("Remove(%d) error: %v", i, err)
		}
	}
	checkNodeSizeInvariants(t, tree)

	assertInt64Slice(t, scanKeys(t, tree), []int64{2, 4, 6, 8, 10})

	for i := int64(1); i <= 9; i += 2 {
		if _, found, _ := tree.GetValue(i, nil); found {
			t.Fatalf("GetValue(%d) should miss after removal", i)
		}
	}
	for i := int64(2); i <= 10; i += 2 {
		if v, found, err := tree.GetValue(i, nil); err != nil || !found || v != i*10 {
			t.Fatalf("GetValue(%d) = (%v, %v, %v), want (%d, true, nil)", i, v, found, err, i*10)
		}
	}
}

// TestBPlusTreeSmallMaxSizeMultiLevelSplit inserts enough keys at
// max_size=4 to force the root to split more than once (height >= 2
// internal levels above the leaves), then confirms every key is still
// reachable both by point lookup and by a single forward scan that
// crosses many next_page_id links without skipping or duplicating a key.
func TestBPlusTreeSmallMaxSizeMultiLevelSplit(t *testing.T) {
	tree := newSmallMaxSizeTestTree(t, 100)
	const n = int64(60)

	for i := int64(0); i < n; i++ {
		if ok, err := tree.Insert(i, i, nil); err != nil || !ok {
			t.Fatalf("Insert(%d) = (%v, %v), want (true, nil)", i, ok, err)
		}
	}

	if height := treeHeight(t, tree); height < 2 {
		t.Fatalf("tree height = %d after %d inserts at max_size=4, want >= 2 (multi-level split)", height, n)
	}
	checkNodeSizeInvariants(t, tree)

	got := scanKeys(t, tree)
	want := make([]int64, n)
	for i := range want {
		want[i] = int64(i)
	}
	assertInt64Slice(t, got, want)

	for i := int64(0); i < n; i++ {
		if v, found, err := tree.GetValue(i, nil); err != nil || !found || v != i {
			t.Fatalf("GetValue(%d) = (%v, %v, %v), want (%d, true, nil)", i, v, found, err, i)
		}
	}
}

// TestBPlusTreeSmallMaxSizeRootCollapse drives a multi-level tree back
// down to a single leaf by removing all but a handful of keys,
// confirming the root itself shrinks (AdjustRoot's internal-root-with-
// one-child case firing repeatedly) rather than leaving a tall tree of
// near-empty nodes. A leaked pin on the old root would not surface here
// as a wrong answer, but the point is that this path runs clean: every
// removal in the loop must succeed and the final scan must be exactly
// the surviving keys.
func TestBPlusTreeSmallMaxSizeRootCollapse(t *testing.T) {
	tree := newSmallMaxSizeTestTree(t, 100)
	const n = int64(60)

	for i := int64(0); i < n; i++ {
		if ok, err := tree.Insert(i, i, nil); err != nil || !ok {
			t.Fatalf("Insert(%d) = (%v, %v), want (true, nil)", i, ok, err)
		}
	}
	if height := treeHeight(t, tree); height < 2 {
		t.Fatalf("tree height = %d after %d inserts, want >= 2 before collapsing it back down", height, n)
	}

	for i := int64(2); i < n; i++ {
		if err := tree.Remove(i, nil); err != nil {
			t.Fatalf("Remove(%d) error: %v", i, err)
		}
	}
	checkNodeSizeInvariants(t, tree)

	if height := treeHeight(t, tree); height != 0 {
		t.Fatalf("tree height = %d after collapsing to 2 keys, want 0 (single leaf root)", height)
	}
	assertInt64Slice(t, scanKeys(t, tree), []int64{0, 1})

	for i := int64(0); i < 2; i++ {
		if err := tree.Remove(i, nil); err != nil {
			t.Fatalf("Remove(%d) error: %v", i, err)
		}
	}
	if !tree.IsEmpty() {
		t.Fatalf("tree should be empty after removing every remaining key")
	}
	assertInt64Slice(t, scanKeys(t, tree), nil)
}

// TestBPlusTreeSmallMaxSizeConcurrentInsertNoDeadlock exercises the
// exact hazard the maintainer flagged: concurrent insertions that force
// splits and new-root creation under max_size=4, guarded by a timeout so
// a self-deadlock in insertIntoParent's re-parenting fails the test
// instead of hanging the suite forever.
func TestBPlusTreeSmallMaxSizeConcurrentInsertNoDeadlock(t *testing.T) {
	tree := newSmallMaxSizeTestTree(t, 200)
	const n = 200

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := int64(0); i < n; i++ {
			wg.Add(1)
			go func(i int64) {
				defer wg.Done()
				tree.Insert(i, i, nil)
			}(i)
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent inserts did not complete in time; likely self-deadlock in insertIntoParent")
	}

	checkNodeSizeInvariants(t, tree)
	got := scanKeys(t, tree)
	if len(got) != n {
		t.Fatalf("scan after concurrent inserts returned %d keys, want %d", len(got), n)
	}
	for i, k := range got {
		if k != int64(i) {
			t.Fatalf("scan after concurrent inserts not ordered/complete: got %v", got)
		}
	}
}
