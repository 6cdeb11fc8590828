// Package access implements the tuple-level lock manager and the
// transaction bookkeeping it and the B+ tree index share.
//
// Transaction states:
//
//	                         _________________________
//	                        v                         |
//	GROWING -> SHRINKING -> COMMITTED   ABORTED
//	   |__________|________________________^
package access

import (
	"github.com/ledgerdb/ledgerdb/common"
	"github.com/ledgerdb/ledgerdb/storage/page"
	"github.com/ledgerdb/ledgerdb/types"
)

type TransactionState int32

const (
	GROWING TransactionState = iota
	SHRINKING
	COMMITTED
	ABORTED
)

func (s TransactionState) String() string {
	switch s {
	case GROWING:
		return "GROWING"
	case SHRINKING:
		return "SHRINKING"
	case COMMITTED:
		return "COMMITTED"
	case ABORTED:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Transaction tracks the state a running transaction needs from the
// lock manager and the B+ tree's latch-crabbing passes. It owns its
// lock sets and page set; the lock manager and index only use them as
// scratch state.
type Transaction struct {
	txnID   types.TxnID
	prevLSN types.LSN

	sharedLockSet    []page.RID
	exclusiveLockSet []page.RID

	// pageSet holds the pages latched during a tree operation (read-latched
	// for a search, write-latched for insert/remove), in
	// acquisition order, so they can be unlatched front-first once the
	// operation determines it is safe to release ancestors.
	pageSet []*page.Page
	// deletedPageSet holds page IDs freed during this transaction's tree
	// operation, so the caller can deallocate them once every latch in
	// pageSet has been released.
	deletedPageSet map[types.PageID]bool

	txnState TransactionState
	dbgInfo  string
}

func NewTransaction(txnID types.TxnID) *Transaction {
	return &Transaction{
		txnID:            txnID,
		prevLSN:          common.InvalidLSN,
		sharedLockSet:    make([]page.RID, 0),
		exclusiveLockSet: make([]page.RID, 0),
		pageSet:          make([]*page.Page, 0),
		deletedPageSet:   make(map[types.PageID]bool),
		txnState:         GROWING,
	}
}

func (txn *Transaction) GetTransactionId() types.TxnID { return txn.txnID }

func (txn *Transaction) GetSharedLockSet() []page.RID    { return txn.sharedLockSet }
func (txn *Transaction) GetExclusiveLockSet() []page.RID { return txn.exclusiveLockSet }

func (txn *Transaction) SetSharedLockSet(set []page.RID)    { txn.sharedLockSet = set }
func (txn *Transaction) SetExclusiveLockSet(set []page.RID) { txn.exclusiveLockSet = set }

func isContainsRID(list []page.RID, rid page.RID) bool {
	for _, r := range list {
		if rid == r {
			return true
		}
	}
	return false
}

func removeRID(list []page.RID, rid page.RID) []page.RID {
	for i, r := range list {
		if r == rid {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// IsSharedLocked reports whether rid is currently shared-locked by txn.
func (txn *Transaction) IsSharedLocked(rid *page.RID) bool {
	return isContainsRID(txn.sharedLockSet, *rid)
}

// IsExclusiveLocked reports whether rid is currently exclusive-locked by txn.
func (txn *Transaction) IsExclusiveLocked(rid *page.RID) bool {
	return isContainsRID(txn.exclusiveLockSet, *rid)
}

// GetPageSet returns the pages latched so far during the in-flight tree
// operation, oldest (root-most) first.
func (txn *Transaction) GetPageSet() []*page.Page { return txn.pageSet }

// AddIntoPageSet records that p was just latched as part of the current
// descent.
func (txn *Transaction) AddIntoPageSet(p *page.Page) {
	txn.pageSet = append(txn.pageSet, p)
}

// PopFrontPageSet removes and returns the oldest latched page, or nil
// if the page set is empty. The tree releases ancestor latches in this
// order once it knows the descent is safe.
func (txn *Transaction) PopFrontPageSet() *page.Page {
	if len(txn.pageSet) == 0 {
		return nil
	}
	p := txn.pageSet[0]
	txn.pageSet = txn.pageSet[1:]
	return p
}

// ClearPageSet drops every entry without unlatching them; callers that
// have already released every latch use this to reset for the next
// operation.
func (txn *Transaction) ClearPageSet() {
	txn.pageSet = txn.pageSet[:0]
}

// LookupInPageSet returns the page for pageID if it is currently held in
// the page set (already fetched, pinned, and write-latched by this
// transaction's in-flight descent), or nil if it isn't. Callers that need
// to touch a page use this first, since re-fetching and re-latching a
// page this same goroutine already write-latches self-deadlocks against
// storage/page's plain, non-reentrant latch.
func (txn *Transaction) LookupInPageSet(pageID types.PageID) *page.Page {
	for _, p := range txn.pageSet {
		if p.ID() == pageID {
			return p
		}
	}
	return nil
}

// GetDeletedPageSet returns the set of page IDs freed by the in-flight
// tree operation.
func (txn *Transaction) GetDeletedPageSet() map[types.PageID]bool { return txn.deletedPageSet }

// AddIntoDeletedPageSet records that pageID was freed by the in-flight
// tree operation.
func (txn *Transaction) AddIntoDeletedPageSet(pageID types.PageID) {
	txn.deletedPageSet[pageID] = true
}

// IsDeletedPage reports whether pageID was deleted earlier in the
// in-flight operation, which matters when a subsequent split or merge
// in the same operation would otherwise reuse it.
func (txn *Transaction) IsDeletedPage(pageID types.PageID) bool {
	return txn.deletedPageSet[pageID]
}

// ClearDeletedPageSet empties the deleted-page set once the caller has
// deallocated every entry.
func (txn *Transaction) ClearDeletedPageSet() {
	txn.deletedPageSet = make(map[types.PageID]bool)
}

func (txn *Transaction) GetState() TransactionState { return txn.txnState }

func (txn *Transaction) SetState(state TransactionState) {
	if common.EnableDebug {
		if state == ABORTED {
			common.ShPrintf(common.WARN, "access: transaction %d aborted (%s)\n", txn.txnID, txn.dbgInfo)
		}
	}
	txn.txnState = state
}

func (txn *Transaction) GetPrevLSN() types.LSN        { return txn.prevLSN }
func (txn *Transaction) SetPrevLSN(prevLSN types.LSN) { txn.prevLSN = prevLSN }

func (txn *Transaction) GetDebugInfo() string        { return txn.dbgInfo }
func (txn *Transaction) SetDebugInfo(dbgInfo string) { txn.dbgInfo = dbgInfo }
