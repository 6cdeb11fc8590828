package recovery

import (
	"sync"
	"time"

	"github.com/ledgerdb/ledgerdb/common"
	"github.com/ledgerdb/ledgerdb/storage/disk"
	"github.com/ledgerdb/ledgerdb/types"
)

// LogManager owns the double-buffered write-ahead log. AppendLogRecord
// serializes a record into logBuffer, assigning it the next LSN. A
// background goroutine started by RunFlushThread wakes on common.LogTimeout or
// an explicit TriggerFlush, swaps logBuffer with flushBuffer, and writes
// the flush buffer out through the disk manager — the same
// swap-then-write-unlocked shape as BackgroundFsync, so appends to the new
// log buffer are never blocked on the write syscall.
type LogManager struct {
	appendMu sync.Mutex // serializes AppendLogRecord callers against each other

	mu            sync.Mutex
	flushedCond   *sync.Cond
	offset        uint32
	nextLSN       types.LSN
	persistentLSN types.LSN
	logBuffer     []byte
	flushBuffer   []byte

	diskManager disk.DiskManager

	flushThreadOn bool
	triggerCh     chan struct{}
	doneCh        chan struct{}
}

// NewLogManager returns a log manager writing through diskManager. The
// background flusher is not started until RunFlushThread is called.
func NewLogManager(diskManager disk.DiskManager) *LogManager {
	lm := &LogManager{
		persistentLSN: types.InvalidLSN,
		logBuffer:     make([]byte, common.LogBufferSize),
		flushBuffer:   make([]byte, common.LogBufferSize),
		diskManager:   diskManager,
		triggerCh:     make(chan struct{}, 1),
	}
	lm.flushedCond = sync.NewCond(&lm.mu)
	return lm
}

func (lm *LogManager) GetNextLSN() types.LSN {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.nextLSN
}

func (lm *LogManager) GetPersistentLSN() types.LSN {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.persistentLSN
}

// RunFlushThread starts the background flusher if it isn't already
// running, and sets common.EnableLogging.
func (lm *LogManager) RunFlushThread() {
	lm.mu.Lock()
	if lm.flushThreadOn {
		lm.mu.Unlock()
		return
	}
	lm.flushThreadOn = true
	common.EnableLogging = true
	lm.doneCh = make(chan struct{})
	lm.mu.Unlock()

	go lm.backgroundFsync()
}

// StopFlushThread forces a final flush of anything buffered, then stops
// and joins the background flusher.
func (lm *LogManager) StopFlushThread() {
	lm.mu.Lock()
	if !lm.flushThreadOn {
		lm.mu.Unlock()
		return
	}
	lm.flushThreadOn = false
	common.EnableLogging = false
	done := lm.doneCh
	lm.mu.Unlock()

	lm.TriggerFlush()
	<-done
}

// TriggerFlush wakes the background flusher immediately rather than
// waiting for it to notice on its own at the next common.LogTimeout tick.
func (lm *LogManager) TriggerFlush() {
	select {
	case lm.triggerCh <- struct{}{}:
	default:
	}
}

// EnsureFlushed blocks until persistent_lsn covers lsn, triggering a flush
// if necessary. The buffer pool manager calls this before writing back a
// dirty page, so the WAL record that justifies the page's content is
// durable before the page itself is.
func (lm *LogManager) EnsureFlushed(lsn types.LSN) {
	if lsn == types.InvalidLSN {
		return
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	for lm.persistentLSN < lsn {
		lm.mu.Unlock()
		lm.TriggerFlush()
		lm.mu.Lock()
		if lm.persistentLSN >= lsn {
			return
		}
		lm.flushedCond.Wait()
	}
}

// AppendLogRecord assigns the record the next LSN and copies its
// serialized form into the log buffer, flushing first if there isn't
// room. Returns the assigned LSN.
func (lm *LogManager) AppendLogRecord(record *LogRecord) types.LSN {
	lm.appendMu.Lock()
	defer lm.appendMu.Unlock()

	lm.mu.Lock()
	if lm.offset+record.GetSize() > uint32(len(lm.logBuffer)) {
		lm.mu.Unlock()
		lm.TriggerFlush()
		lm.waitForBufferDrain()
		lm.mu.Lock()
	}

	record.SetLSN(lm.nextLSN)
	lm.nextLSN++
	data := record.Serialize()
	copy(lm.logBuffer[lm.offset:], data)
	lm.offset += uint32(len(data))
	lsn := record.GetLSN()
	lm.mu.Unlock()

	return lsn
}

// waitForBufferDrain blocks until the background flusher has swapped the
// active log buffer out, i.e. offset has been reset to 0.
func (lm *LogManager) waitForBufferDrain() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for lm.offset != 0 {
		lm.flushedCond.Wait()
	}
}

func (lm *LogManager) backgroundFsync() {
	defer close(lm.doneCh)
	for {
		lm.mu.Lock()
		for lm.offset == 0 && lm.flushThreadOn {
			lm.mu.Unlock()
			select {
			case <-lm.triggerCh:
			case <-time.After(common.LogTimeout):
			}
			lm.mu.Lock()
		}
		if lm.offset == 0 && !lm.flushThreadOn {
			lm.mu.Unlock()
			return
		}

		lm.logBuffer, lm.flushBuffer = lm.flushBuffer, lm.logBuffer
		flushSize := lm.offset
		lm.offset = 0
		currentLSN := lm.nextLSN - 1
		flushBuf := lm.flushBuffer[:flushSize]
		stillOn := lm.flushThreadOn
		lm.mu.Unlock()

		if err := lm.diskManager.WriteLog(flushBuf); err != nil {
			common.ShPrintf(common.ERROR, "recovery: log flush failed: %v\n", err)
		}

		lm.mu.Lock()
		lm.persistentLSN = currentLSN
		lm.flushedCond.Broadcast()
		lm.mu.Unlock()

		if !stillOn {
			return
		}
	}
}
