// lock_manager.go implements record-level two-phase locking with a
// wait-die deadlock-prevention policy. Grounded on cmudb's LockManager
// (original_source/src/concurrency/lock_manager.cpp): a per-RID wait
// list protected by one mutex, where a blocked waiter releases the
// mutex and awaits a one-shot completion handle. The C++ original uses
// std::promise<bool>/std::future<bool> for that handle; this port uses
// a buffered channel of size 1, the idiomatic Go equivalent of a
// single-fire promise.
package access

import (
	"sync"

	"github.com/ledgerdb/ledgerdb/storage/page"
)

// TwoPLMode selects whether locks are held until commit/abort (STRICT)
// or may be released early once a transaction enters SHRINKING.
type TwoPLMode int32

const (
	Regular TwoPLMode = iota
	Strict
)

// LockMode is the granted or requested mode for a record lock.
type LockMode int32

const (
	Shared LockMode = iota
	Exclusive
)

// waiter is a transaction blocked on a wait list, plus its one-shot
// completion handle: Unlock sends true to grant the lock, or false to
// complete a wait-die abort.
type waiter struct {
	txn         *Transaction
	targetState LockMode
	done        chan bool
}

// waitList is the lock state for one RID: the currently granted mode
// and holder set, plus transactions queued behind it.
type waitList struct {
	state   LockMode
	granted []*Transaction
	waiters []*waiter
}

func containsTxn(list []*Transaction, txn *Transaction) bool {
	for _, t := range list {
		if t == txn {
			return true
		}
	}
	return false
}

func removeTxn(list []*Transaction, txn *Transaction) []*Transaction {
	for i, t := range list {
		if t == txn {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// LockManager grants and releases per-RID record locks under wait-die.
type LockManager struct {
	mode TwoPLMode

	mu    sync.Mutex
	table map[page.RID]*waitList
}

// NewLockManager returns a lock manager operating under the given 2PL
// mode. Deadlock prevention is always wait-die; there is no detection
// mode, since wait-die already guarantees the oldest transaction in any
// conflict eventually makes progress.
func NewLockManager(mode TwoPLMode) *LockManager {
	return &LockManager{
		mode:  mode,
		table: make(map[page.RID]*waitList),
	}
}

// isValidToAcquireLock applies the validity check every acquire starts
// with: an already-terminal transaction never acquires, and a
// SHRINKING transaction requesting a new lock is itself aborted (it
// violated 2PL by trying to grow again).
func isValidToAcquireLock(txn *Transaction) bool {
	switch txn.GetState() {
	case ABORTED, COMMITTED:
		return false
	case SHRINKING:
		txn.SetState(ABORTED)
		return false
	}
	return true
}

// LockShared acquires rid in shared mode for txn, blocking if txn is
// older than the exclusive holder. Returns false if the validity check
// fails or wait-die aborts the transaction.
func (lm *LockManager) LockShared(txn *Transaction, rid *page.RID) bool {
	if !isValidToAcquireLock(txn) {
		return false
	}

	lm.mu.Lock()
	wl, ok := lm.table[*rid]
	if !ok {
		lm.table[*rid] = &waitList{state: Shared, granted: []*Transaction{txn}}
		lm.mu.Unlock()
		txn.SetSharedLockSet(append(txn.GetSharedLockSet(), *rid))
		return true
	}

	if wl.state == Shared {
		if containsTxn(wl.granted, txn) {
			lm.mu.Unlock()
			return true
		}
		wl.granted = append(wl.granted, txn)
		lm.mu.Unlock()
		txn.SetSharedLockSet(append(txn.GetSharedLockSet(), *rid))
		return true
	}

	// state == Exclusive, held by exactly one holder.
	holder := wl.granted[0]
	if holder == txn {
		lm.mu.Unlock()
		return true
	}
	if txn.GetTransactionId() > holder.GetTransactionId() {
		// Younger than the holder: die.
		lm.mu.Unlock()
		txn.SetState(ABORTED)
		return false
	}

	w := &waiter{txn: txn, targetState: Shared, done: make(chan bool, 1)}
	wl.waiters = append(wl.waiters, w)
	lm.mu.Unlock()

	granted := <-w.done
	if !granted {
		txn.SetState(ABORTED)
		return false
	}
	txn.SetSharedLockSet(append(txn.GetSharedLockSet(), *rid))
	return true
}

// LockExclusive acquires rid in exclusive mode for txn, blocking if txn
// is older than every current holder and dying immediately if txn is
// younger than any holder.
func (lm *LockManager) LockExclusive(txn *Transaction, rid *page.RID) bool {
	if !isValidToAcquireLock(txn) {
		return false
	}

	lm.mu.Lock()
	wl, ok := lm.table[*rid]
	if !ok {
		lm.table[*rid] = &waitList{state: Exclusive, granted: []*Transaction{txn}}
		lm.mu.Unlock()
		txn.SetExclusiveLockSet(append(txn.GetExclusiveLockSet(), *rid))
		return true
	}

	if len(wl.granted) == 1 && wl.granted[0] == txn {
		// txn is the sole current holder, shared or exclusive: succeed
		// (promoting a sole shared holder to exclusive in place) rather
		// than falling through to enqueue a waiter that nothing but txn
		// itself could ever wake.
		wasShared := wl.state == Shared
		wl.state = Exclusive
		lm.mu.Unlock()
		if wasShared {
			txn.SetSharedLockSet(removeRID(txn.GetSharedLockSet(), *rid))
			txn.SetExclusiveLockSet(append(txn.GetExclusiveLockSet(), *rid))
		}
		return true
	}

	for _, holder := range wl.granted {
		if txn.GetTransactionId() > holder.GetTransactionId() {
			lm.mu.Unlock()
			txn.SetState(ABORTED)
			return false
		}
	}

	w := &waiter{txn: txn, targetState: Exclusive, done: make(chan bool, 1)}
	wl.waiters = append(wl.waiters, w)
	lm.mu.Unlock()

	granted := <-w.done
	if !granted {
		txn.SetState(ABORTED)
		return false
	}
	txn.SetExclusiveLockSet(append(txn.GetExclusiveLockSet(), *rid))
	return true
}

// LockUpgrade promotes txn's shared lock on rid to exclusive. Atomicity
// across the unlock/relock is not guaranteed: another transaction can
// slip in between, but wait-die still prevents deadlock across the
// race.
func (lm *LockManager) LockUpgrade(txn *Transaction, rid *page.RID) bool {
	if !isValidToAcquireLock(txn) {
		return false
	}
	if !txn.IsSharedLocked(rid) {
		return false
	}
	if txn.IsExclusiveLocked(rid) {
		return true
	}

	// Release the shared lock without running the general Unlock path:
	// that path would flip a Regular-mode txn to SHRINKING, and the
	// validity check at the top of LockExclusive would then abort it
	// before it ever reacquires. An upgrade is still within the same
	// growing phase, so it must not trip that transition.
	lm.unlockOne(txn, *rid)
	return lm.LockExclusive(txn, rid)
}

// Unlock releases every RID in ridList that txn holds. In strict mode
// this is only permitted once txn has reached COMMITTED or ABORTED.
func (lm *LockManager) Unlock(txn *Transaction, ridList []page.RID) bool {
	if lm.mode == Strict {
		if txn.GetState() != COMMITTED && txn.GetState() != ABORTED {
			return false
		}
	}

	for _, rid := range ridList {
		lm.unlockOne(txn, rid)
	}

	if lm.mode == Regular && txn.GetState() == GROWING {
		txn.SetState(SHRINKING)
	}
	return true
}

func (lm *LockManager) unlockOne(txn *Transaction, rid page.RID) {
	lm.mu.Lock()

	wl, ok := lm.table[rid]
	if !ok {
		lm.mu.Unlock()
		return
	}
	wl.granted = removeTxn(wl.granted, txn)
	if wl.state == Exclusive {
		txn.SetExclusiveLockSet(removeRID(txn.GetExclusiveLockSet(), rid))
	} else {
		txn.SetSharedLockSet(removeRID(txn.GetSharedLockSet(), rid))
	}

	if len(wl.granted) != 0 {
		// Other shared holders remain; nothing to wake.
		lm.mu.Unlock()
		return
	}
	if len(wl.waiters) == 0 {
		delete(lm.table, rid)
		lm.mu.Unlock()
		return
	}

	// Wake the last-enqueued waiter and grant it the lock; wait-die
	// aborts every remaining waiter younger than the one woken.
	last := len(wl.waiters) - 1
	woken := wl.waiters[last]
	wl.waiters = wl.waiters[:last]
	wl.state = woken.targetState
	wl.granted = append(wl.granted, woken.txn)

	wokenID := woken.txn.GetTransactionId()
	remaining := wl.waiters[:0]
	for _, w := range wl.waiters {
		if w.txn.GetTransactionId() > wokenID {
			w.done <- false
		} else {
			remaining = append(remaining, w)
		}
	}
	wl.waiters = remaining

	lm.mu.Unlock()
	woken.done <- true
}
