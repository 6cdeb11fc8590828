// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package buffer

import (
	"sync"

	"github.com/ledgerdb/ledgerdb/common"
	"github.com/ledgerdb/ledgerdb/container/hash"
	"github.com/ledgerdb/ledgerdb/errors"
	"github.com/ledgerdb/ledgerdb/recovery"
	"github.com/ledgerdb/ledgerdb/storage/disk"
	"github.com/ledgerdb/ledgerdb/storage/page"
	"github.com/ledgerdb/ledgerdb/types"
)

// BufferPoolManager owns the fixed-size pool of page frames. The page
// table (PageID -> FrameID) is an extendible hash table rather than a
// plain map, and victim selection among unpinned frames is LRU. When a
// dirty frame must be evicted, the WAL rule applies: the log manager must
// have persisted at least that page's PageLSN before the page's bytes are
// written back, so logManager may be nil only for tests that never dirty
// a page.
type BufferPoolManager struct {
	mu          sync.Mutex
	diskManager disk.DiskManager
	logManager  *recovery.LogManager
	pages       []*page.Page
	replacer    *LRUReplacer
	freeList    []FrameID
	pageTable   *hash.ExtendibleHashTable[types.PageID, FrameID]
}

// NewBufferPoolManager returns an empty buffer pool manager with poolSize
// frames. logManager may be nil if the caller never dirties a page.
func NewBufferPoolManager(poolSize uint32, diskManager disk.DiskManager, logManager *recovery.LogManager) *BufferPoolManager {
	freeList := make([]FrameID, poolSize)
	pages := make([]*page.Page, poolSize)
	for i := uint32(0); i < poolSize; i++ {
		freeList[i] = FrameID(i)
	}

	return &BufferPoolManager{
		diskManager: diskManager,
		logManager:  logManager,
		pages:       pages,
		replacer:    NewLRUReplacer(poolSize),
		freeList:    freeList,
		pageTable:   hash.NewExtendibleHashTable[types.PageID, FrameID](common.BucketSize),
	}
}

// FetchPage fetches the requested page from the buffer pool, reading it
// from disk on a miss. Returns nil if the pool is full of pinned frames.
func (b *BufferPoolManager) FetchPage(pageID types.PageID) *page.Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	if frameID, ok := b.pageTable.Find(pageID); ok {
		pg := b.pages[frameID]
		pg.IncPinCount()
		b.replacer.Erase(frameID)
		return pg
	}

	frameID, fromFreeList, ok := b.getFrameID()
	if !ok {
		return nil
	}
	if !fromFreeList {
		b.evictFrame(frameID)
	}

	data := make([]byte, common.PageSize)
	if err := b.diskManager.ReadPage(pageID, data); err != nil {
		b.freeList = append(b.freeList, frameID)
		return nil
	}
	var pageData [common.PageSize]byte
	copy(pageData[:], data)

	pg := page.New(pageID, 1, false, &pageData)
	b.pageTable.Insert(pageID, frameID)
	b.pages[frameID] = pg

	return pg
}

// UnpinPage unpins the target page from the buffer pool. If isDirty, the
// page's dirty flag is set (and never cleared here — FlushPage clears it).
func (b *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok {
		return errors.New(errors.NotFound, "could not find page")
	}

	pg := b.pages[frameID]
	pg.DecPinCount()
	if pg.PinCount() <= 0 {
		b.replacer.Insert(frameID)
	}
	if isDirty {
		pg.SetIsDirty(true)
	}

	return nil
}

// FlushPage flushes the target page to disk regardless of pin count,
// forcing the WAL up to the page's PageLSN first.
func (b *BufferPoolManager) FlushPage(pageID types.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok {
		return false
	}

	pg := b.pages[frameID]
	b.forceLogUpTo(pg.PageLSN())
	data := pg.Data()
	b.diskManager.WritePage(pageID, data[:])
	pg.SetIsDirty(false)

	return true
}

// NewPage allocates a new page in the buffer pool with the disk manager's
// help. Returns nil if the pool is full of pinned frames.
func (b *BufferPoolManager) NewPage() *page.Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, fromFreeList, ok := b.getFrameID()
	if !ok {
		return nil
	}
	if !fromFreeList {
		b.evictFrame(frameID)
	}

	pageID := b.diskManager.AllocatePage()
	pg := page.NewEmpty(pageID)

	b.pageTable.Insert(pageID, frameID)
	b.pages[frameID] = pg

	return pg
}

// DeletePage deletes a page from the buffer pool. Fails if the page is
// still pinned.
func (b *BufferPoolManager) DeletePage(pageID types.PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok {
		return nil
	}

	pg := b.pages[frameID]
	if pg.PinCount() > 0 {
		return errors.New(errors.StateViolation, "page is pinned")
	}

	b.pageTable.Remove(pageID)
	b.replacer.Erase(frameID)
	b.diskManager.DeallocatePage(pageID)
	b.pages[frameID] = nil
	b.freeList = append(b.freeList, frameID)

	return nil
}

// FlushAllPages flushes every page currently resident in the pool to disk.
func (b *BufferPoolManager) FlushAllPages() {
	b.mu.Lock()
	ids := make([]types.PageID, 0, len(b.pages))
	for _, pg := range b.pages {
		if pg != nil {
			ids = append(ids, pg.ID())
		}
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.FlushPage(id)
	}
}

// evictFrame writes back the frame's current page if dirty, and clears
// it from the page table, making the frame available for reuse. Must be
// called with mu held.
func (b *BufferPoolManager) evictFrame(frameID FrameID) {
	victim := b.pages[frameID]
	if victim == nil {
		return
	}
	if victim.IsDirty() {
		b.forceLogUpTo(victim.PageLSN())
		data := victim.Data()
		b.diskManager.WritePage(victim.ID(), data[:])
	}
	b.pageTable.Remove(victim.ID())
}

// forceLogUpTo blocks until the log manager's persistent LSN covers lsn,
// the invariant that lets a dirty page be safely written back: its WAL
// record must already be durable.
func (b *BufferPoolManager) forceLogUpTo(lsn types.LSN) {
	if b.logManager == nil || lsn == types.InvalidLSN {
		return
	}
	b.logManager.EnsureFlushed(lsn)
}

// getFrameID returns a frame to use for a new or fetched page: from the
// free list if one is available, otherwise the LRU replacer's victim. The
// bool reports whether it came from the free list (false means the frame
// may hold a page that needs evicting first).
func (b *BufferPoolManager) getFrameID() (FrameID, bool, bool) {
	if len(b.freeList) > 0 {
		id := b.freeList[0]
		b.freeList = b.freeList[1:]
		return id, true, true
	}

	id, ok := b.replacer.Victim()
	return id, false, ok
}
