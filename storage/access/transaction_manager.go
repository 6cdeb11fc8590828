package access

import (
	"sync"

	"github.com/ledgerdb/ledgerdb/common"
	"github.com/ledgerdb/ledgerdb/recovery"
	"github.com/ledgerdb/ledgerdb/storage/page"
	"github.com/ledgerdb/ledgerdb/types"
)

// TransactionManager assigns transaction ids and drives the WAL/lock
// bookkeeping around a transaction's lifecycle. Table and index
// rollback (BusTub's TransactionManager::Abort walking a write set) is
// out of scope here: this engine's only mutating collaborator is the
// B+ tree, which manages its own page latches through the
// transaction's page set rather than through undo records.
type TransactionManager struct {
	mu          sync.Mutex
	nextTxnID   types.TxnID
	lockMgr     *LockManager
	logMgr      *recovery.LogManager
	globalLatch common.ReaderWriterLatch

	txnTableMu sync.Mutex
	txnTable   map[types.TxnID]*Transaction
}

func NewTransactionManager(lockMgr *LockManager, logMgr *recovery.LogManager) *TransactionManager {
	return &TransactionManager{
		lockMgr:     lockMgr,
		logMgr:      logMgr,
		globalLatch: common.NewRWLatch(),
		txnTable:    make(map[types.TxnID]*Transaction),
	}
}

// Begin starts a new transaction, or admits an already-constructed one
// (used by tests that need a specific txn id), and appends a BEGIN
// record if logging is enabled. It holds the global transaction latch
// in shared mode until Commit or Abort releases it, so a checkpoint
// via BlockAllTransactions can wait out every in-flight transaction.
func (tm *TransactionManager) Begin(txn *Transaction) *Transaction {
	tm.globalLatch.RLock()

	if txn == nil {
		tm.mu.Lock()
		tm.nextTxnID++
		txn = NewTransaction(tm.nextTxnID)
		tm.mu.Unlock()
	}

	if tm.logMgr != nil && common.EnableLogging {
		record := recovery.NewTxnLogRecord(txn.GetTransactionId(), txn.GetPrevLSN(), recovery.Begin)
		lsn := tm.logMgr.AppendLogRecord(record)
		txn.SetPrevLSN(lsn)
	}

	tm.txnTableMu.Lock()
	tm.txnTable[txn.GetTransactionId()] = txn
	tm.txnTableMu.Unlock()
	return txn
}

// Commit marks txn COMMITTED, appends a COMMIT record, forces the log
// up to that record, releases every lock txn holds, and releases the
// global transaction latch.
func (tm *TransactionManager) Commit(txn *Transaction) {
	txn.SetState(COMMITTED)

	if tm.logMgr != nil && common.EnableLogging {
		record := recovery.NewTxnLogRecord(txn.GetTransactionId(), txn.GetPrevLSN(), recovery.Commit)
		lsn := tm.logMgr.AppendLogRecord(record)
		txn.SetPrevLSN(lsn)
		tm.logMgr.EnsureFlushed(lsn)
	}

	tm.releaseLocks(txn)
	tm.globalLatch.RUnlock()
}

// Abort marks txn ABORTED, appends an ABORT record, releases every
// lock txn holds, and releases the global transaction latch. Any
// undo of in-flight B+ tree mutations must have already happened via
// the tree's own latch-crabbing error paths before Abort is called.
func (tm *TransactionManager) Abort(txn *Transaction) {
	txn.SetState(ABORTED)

	if tm.logMgr != nil && common.EnableLogging {
		record := recovery.NewTxnLogRecord(txn.GetTransactionId(), txn.GetPrevLSN(), recovery.Abort)
		lsn := tm.logMgr.AppendLogRecord(record)
		txn.SetPrevLSN(lsn)
	}

	tm.releaseLocks(txn)
	tm.globalLatch.RUnlock()
}

// BlockAllTransactions takes the global transaction latch in exclusive
// mode, blocking until every in-flight transaction has committed or
// aborted. Used to quiesce the system before a checkpoint.
func (tm *TransactionManager) BlockAllTransactions() {
	tm.globalLatch.WLock()
}

// ResumeTransactions releases the latch taken by BlockAllTransactions.
func (tm *TransactionManager) ResumeTransactions() {
	tm.globalLatch.WUnlock()
}

func (tm *TransactionManager) releaseLocks(txn *Transaction) {
	ridSet := make([]page.RID, 0, len(txn.GetExclusiveLockSet())+len(txn.GetSharedLockSet()))
	ridSet = append(ridSet, txn.GetExclusiveLockSet()...)
	ridSet = append(ridSet, txn.GetSharedLockSet()...)
	tm.lockMgr.Unlock(txn, ridSet)
}
