package access

import (
	"testing"
	"time"

	"github.com/ledgerdb/ledgerdb/storage/page"
	"github.com/ledgerdb/ledgerdb/types"
)

func ridAt(pageID int32, slot uint32) page.RID {
	var rid page.RID
	rid.Set(types.PageID(pageID), slot)
	return rid
}

func TestLockSharedNoConflictSucceeds(t *testing.T) {
	lm := NewLockManager(Regular)
	txn := NewTransaction(types.TxnID(1))
	rid := ridAt(0, 0)

	if !lm.LockShared(txn, &rid) {
		t.Fatalf("LockShared should succeed with no existing lock")
	}
	if !txn.IsSharedLocked(&rid) {
		t.Fatalf("txn should record the shared lock")
	}
}

func TestLockSharedReentrant(t *testing.T) {
	lm := NewLockManager(Regular)
	txn := NewTransaction(types.TxnID(1))
	rid := ridAt(0, 0)

	lm.LockShared(txn, &rid)
	if !lm.LockShared(txn, &rid) {
		t.Fatalf("re-acquiring the same shared lock should succeed")
	}
}

func TestLockExclusiveYoungerDies(t *testing.T) {
	lm := NewLockManager(Regular)
	old := NewTransaction(types.TxnID(1))
	young := NewTransaction(types.TxnID(2))
	rid := ridAt(0, 0)

	if !lm.LockExclusive(old, &rid) {
		t.Fatalf("first exclusive lock should succeed")
	}
	if lm.LockShared(young, &rid) {
		t.Fatalf("younger transaction should die, not be granted")
	}
	if young.GetState() != ABORTED {
		t.Fatalf("younger transaction should be ABORTED, got %v", young.GetState())
	}
}

// T1 (id=1) holds X; T2 (id=2) requesting S dies immediately since it is
// younger than the holder; T0 (id=0) requesting S blocks since it is
// older; when T1 unlocks, T0 is granted.
func TestWaitDieGrantAfterUnlock(t *testing.T) {
	lm := NewLockManager(Regular)
	t0 := NewTransaction(types.TxnID(0))
	t1 := NewTransaction(types.TxnID(1))
	t2 := NewTransaction(types.TxnID(2))
	rid := ridAt(0, 0)

	if !lm.LockExclusive(t1, &rid) {
		t.Fatalf("T1 should acquire X")
	}
	if lm.LockShared(t2, &rid) {
		t.Fatalf("T2 should die (younger than holder T1)")
	}

	granted := make(chan bool, 1)
	go func() { granted <- lm.LockShared(t0, &rid) }()

	// Give the goroutine a chance to block on the wait list before unlocking.
	time.Sleep(20 * time.Millisecond)

	lm.Unlock(t1, []page.RID{rid})

	select {
	case ok := <-granted:
		if !ok {
			t.Fatalf("T0 should be granted S after T1 unlocks")
		}
	case <-time.After(time.Second):
		t.Fatalf("T0 never woke up after T1 unlocked")
	}
}

func TestLockUpgrade(t *testing.T) {
	lm := NewLockManager(Regular)
	txn := NewTransaction(types.TxnID(1))
	rid := ridAt(0, 0)

	lm.LockShared(txn, &rid)
	if !lm.LockUpgrade(txn, &rid) {
		t.Fatalf("upgrade should succeed when txn is the sole shared holder")
	}
	if !txn.IsExclusiveLocked(&rid) {
		t.Fatalf("txn should hold exclusive after upgrade")
	}
	if txn.IsSharedLocked(&rid) {
		t.Fatalf("txn should no longer hold shared after upgrade")
	}
}

func TestUnlockTransitionsToShrinkingInRegularMode(t *testing.T) {
	lm := NewLockManager(Regular)
	txn := NewTransaction(types.TxnID(1))
	rid := ridAt(0, 0)

	lm.LockExclusive(txn, &rid)
	lm.Unlock(txn, []page.RID{rid})

	if txn.GetState() != SHRINKING {
		t.Fatalf("GetState() = %v, want SHRINKING", txn.GetState())
	}
}

func TestStrictModeRejectsEarlyUnlock(t *testing.T) {
	lm := NewLockManager(Strict)
	txn := NewTransaction(types.TxnID(1))
	rid := ridAt(0, 0)

	lm.LockExclusive(txn, &rid)
	if lm.Unlock(txn, []page.RID{rid}) {
		t.Fatalf("strict mode should reject unlock before commit/abort")
	}
}

func TestShrinkingTransactionDiesOnNewAcquire(t *testing.T) {
	lm := NewLockManager(Regular)
	txn := NewTransaction(types.TxnID(1))
	txn.SetState(SHRINKING)
	rid := ridAt(0, 0)

	if lm.LockShared(txn, &rid) {
		t.Fatalf("a SHRINKING transaction requesting a new lock should be aborted")
	}
	if txn.GetState() != ABORTED {
		t.Fatalf("GetState() = %v, want ABORTED", txn.GetState())
	}
}
