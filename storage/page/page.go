// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package page

import (
	"github.com/ledgerdb/ledgerdb/common"
	"github.com/ledgerdb/ledgerdb/types"
)

// Page is a frame of the buffer pool: PageSize bytes of page content plus
// the bookkeeping the buffer pool manager and WAL need to manage it. Every
// mutation a transaction makes to a page's content must be preceded by a
// log record whose LSN is stamped into pageLSN before the page is unpinned,
// so the log manager can tell whether persistent_lsn already covers it.
type Page struct {
	id       types.PageID
	pinCount int
	isDirty  bool
	data     *[common.PageSize]byte
	pageLSN  types.LSN
	latch    common.ReaderWriterLatch
}

// IncPinCount increments pin count
func (p *Page) IncPinCount() {
	p.pinCount++
}

// DecPinCount decrements pin count
func (p *Page) DecPinCount() {
	if p.pinCount > 0 {
		p.pinCount--
	}
}

// PinCount returns the pin count
func (p *Page) PinCount() int {
	return p.pinCount
}

// ID returns the page id
func (p *Page) ID() types.PageID {
	return p.id
}

func (p *Page) Data() *[common.PageSize]byte {
	return p.data
}

// Copy overwrites page content starting at offset with data.
func (p *Page) Copy(offset int, data []byte) {
	copy(p.data[offset:], data)
}

func (p *Page) SetIsDirty(isDirty bool) {
	p.isDirty = isDirty
}

func (p *Page) IsDirty() bool {
	return p.isDirty
}

// PageLSN returns the LSN of the most recent log record covering a
// modification to this page's content.
func (p *Page) PageLSN() types.LSN {
	return p.pageLSN
}

// SetPageLSN stamps the LSN of the log record that justifies the page's
// current content. Called right after AppendLogRecord, before unpinning.
func (p *Page) SetPageLSN(lsn types.LSN) {
	p.pageLSN = lsn
}

// WLatch takes the page's content latch for writing. Crabbing callers
// release ancestor latches as soon as a child is known safe, never holding
// more than the path from root to the first unsafe ancestor.
func (p *Page) WLatch() {
	p.latch.WLock()
}

func (p *Page) WUnlatch() {
	p.latch.WUnlock()
}

func (p *Page) RLatch() {
	p.latch.RLock()
}

func (p *Page) RUnlatch() {
	p.latch.RUnlock()
}

func New(id types.PageID, pinCount int, isDirty bool, data *[common.PageSize]byte) *Page {
	return &Page{id: id, pinCount: pinCount, isDirty: isDirty, data: data, pageLSN: types.InvalidLSN, latch: common.NewRWLatch()}
}

func NewEmpty(id types.PageID) *Page {
	return &Page{id: id, pinCount: 1, isDirty: false, data: &[common.PageSize]byte{}, pageLSN: types.InvalidLSN, latch: common.NewRWLatch()}
}
