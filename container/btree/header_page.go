package btree

import (
	"sync"

	"github.com/ledgerdb/ledgerdb/types"
)

// HeaderPage is the root-page-id directory a tree registers itself in, so
// a process that restarts can look its root back up by name instead of
// needing it passed in out of band. Grounded on the InsertRecord/
// UpdateRecord/GetRootId interface of original_source's header_page.h;
// the catalog that would normally own this page is out of scope here
// (see the index name -> root page id table treated as an external
// collaborator), so this is a minimal in-memory stand-in for that
// interface rather than a page-0-backed implementation.
type HeaderPage struct {
	mu      sync.Mutex
	records map[string]types.PageID
}

func NewHeaderPage() *HeaderPage {
	return &HeaderPage{records: make(map[string]types.PageID)}
}

func (h *HeaderPage) InsertRecord(name string, pageID types.PageID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.records[name]; ok {
		return false
	}
	h.records[name] = pageID
	return true
}

func (h *HeaderPage) UpdateRecord(name string, pageID types.PageID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.records[name]; !ok {
		return false
	}
	h.records[name] = pageID
	return true
}

func (h *HeaderPage) GetRootId(name string) (types.PageID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.records[name]
	return id, ok
}
