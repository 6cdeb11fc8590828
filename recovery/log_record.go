// Package recovery implements the write-ahead log: the log record format,
// and the double-buffered log manager that appends records, batches them,
// and fsyncs them to the disk manager's log file. Grounded on cmudb's
// LogRecord/LogManager (original_source/src/logging/log_manager.cpp),
// adapted so records carry raw byte payloads instead of a full Tuple type.
package recovery

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ledgerdb/ledgerdb/storage/page"
	"github.com/ledgerdb/ledgerdb/types"
)

// LogRecordType identifies what a log record describes.
type LogRecordType int32

const (
	Invalid LogRecordType = iota
	Insert
	MarkDelete
	ApplyDelete
	RollbackDelete
	Update
	NewPage
	Begin
	Commit
	Abort
)

func (t LogRecordType) String() string {
	switch t {
	case Insert:
		return "INSERT"
	case MarkDelete:
		return "MARKDELETE"
	case ApplyDelete:
		return "APPLYDELETE"
	case RollbackDelete:
		return "ROLLBACKDELETE"
	case Update:
		return "UPDATE"
	case NewPage:
		return "NEWPAGE"
	case Begin:
		return "BEGIN"
	case Commit:
		return "COMMIT"
	case Abort:
		return "ABORT"
	default:
		return "INVALID"
	}
}

// HeaderSize is the fixed prefix every log record carries: size, lsn,
// txn_id, prev_lsn, log_type, each a 4-byte field.
const HeaderSize = 20

const ridSize = 8 // PageID (4) + slot (4)

// LogRecord is one entry in the write-ahead log. AppendLogRecord assigns
// lsn; everything else is set at construction.
type LogRecord struct {
	size    uint32
	lsn     types.LSN
	txnID   types.TxnID
	prevLSN types.LSN
	logType LogRecordType

	insertRID  page.RID
	insertData []byte

	deleteRID  page.RID
	deleteData []byte

	updateRID page.RID
	oldData   []byte
	newData   []byte

	prevPageID types.PageID
}

func payloadSize(logType LogRecordType, a, b []byte) uint32 {
	switch logType {
	case Insert, MarkDelete, ApplyDelete, RollbackDelete:
		return ridSize + 4 + uint32(len(a))
	case Update:
		return ridSize + 4 + uint32(len(a)) + 4 + uint32(len(b))
	case NewPage:
		return 4
	default:
		return 0
	}
}

// NewInsertLogRecord records that tupleData was inserted at rid.
func NewInsertLogRecord(txnID types.TxnID, prevLSN types.LSN, rid page.RID, tupleData []byte) *LogRecord {
	r := &LogRecord{txnID: txnID, prevLSN: prevLSN, logType: Insert, insertRID: rid, insertData: tupleData, lsn: types.InvalidLSN}
	r.size = HeaderSize + payloadSize(Insert, tupleData, nil)
	return r
}

// NewDeleteLogRecord records a delete of tupleData at rid. kind must be
// MarkDelete, ApplyDelete, or RollbackDelete.
func NewDeleteLogRecord(txnID types.TxnID, prevLSN types.LSN, kind LogRecordType, rid page.RID, tupleData []byte) *LogRecord {
	if kind != MarkDelete && kind != ApplyDelete && kind != RollbackDelete {
		panic("recovery: NewDeleteLogRecord requires a delete log record type")
	}
	r := &LogRecord{txnID: txnID, prevLSN: prevLSN, logType: kind, deleteRID: rid, deleteData: tupleData, lsn: types.InvalidLSN}
	r.size = HeaderSize + payloadSize(kind, tupleData, nil)
	return r
}

// NewUpdateLogRecord records that the tuple at rid changed from oldData to
// newData.
func NewUpdateLogRecord(txnID types.TxnID, prevLSN types.LSN, rid page.RID, oldData, newData []byte) *LogRecord {
	r := &LogRecord{txnID: txnID, prevLSN: prevLSN, logType: Update, updateRID: rid, oldData: oldData, newData: newData, lsn: types.InvalidLSN}
	r.size = HeaderSize + payloadSize(Update, oldData, newData)
	return r
}

// NewNewPageLogRecord records that a new page was linked in after
// prevPageID.
func NewNewPageLogRecord(txnID types.TxnID, prevLSN types.LSN, prevPageID types.PageID) *LogRecord {
	r := &LogRecord{txnID: txnID, prevLSN: prevLSN, logType: NewPage, prevPageID: prevPageID, lsn: types.InvalidLSN}
	r.size = HeaderSize + payloadSize(NewPage, nil, nil)
	return r
}

// NewTxnLogRecord builds a BEGIN, COMMIT, or ABORT record (header only).
func NewTxnLogRecord(txnID types.TxnID, prevLSN types.LSN, kind LogRecordType) *LogRecord {
	if kind != Begin && kind != Commit && kind != Abort {
		panic("recovery: NewTxnLogRecord requires Begin, Commit, or Abort")
	}
	return &LogRecord{txnID: txnID, prevLSN: prevLSN, logType: kind, size: HeaderSize, lsn: types.InvalidLSN}
}

func (r *LogRecord) GetSize() uint32        { return r.size }
func (r *LogRecord) GetLSN() types.LSN      { return r.lsn }
func (r *LogRecord) SetLSN(lsn types.LSN)   { r.lsn = lsn }
func (r *LogRecord) GetTxnID() types.TxnID  { return r.txnID }
func (r *LogRecord) GetPrevLSN() types.LSN  { return r.prevLSN }
func (r *LogRecord) GetType() LogRecordType { return r.logType }

func putLengthPrefixed(buf *bytes.Buffer, data []byte) {
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
}

func putRID(buf *bytes.Buffer, rid page.RID) {
	binary.Write(buf, binary.LittleEndian, int32(rid.GetPageId()))
	binary.Write(buf, binary.LittleEndian, rid.GetSlot())
}

// Serialize encodes the record as HeaderSize bytes of header followed by
// its type-specific payload. Must only be called after lsn is assigned.
func (r *LogRecord) Serialize() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(int(r.size))

	binary.Write(buf, binary.LittleEndian, r.size)
	binary.Write(buf, binary.LittleEndian, int32(r.lsn))
	binary.Write(buf, binary.LittleEndian, int32(r.txnID))
	binary.Write(buf, binary.LittleEndian, int32(r.prevLSN))
	binary.Write(buf, binary.LittleEndian, int32(r.logType))

	switch r.logType {
	case Insert:
		putRID(buf, r.insertRID)
		putLengthPrefixed(buf, r.insertData)
	case MarkDelete, ApplyDelete, RollbackDelete:
		putRID(buf, r.deleteRID)
		putLengthPrefixed(buf, r.deleteData)
	case Update:
		putRID(buf, r.updateRID)
		putLengthPrefixed(buf, r.oldData)
		putLengthPrefixed(buf, r.newData)
	case NewPage:
		binary.Write(buf, binary.LittleEndian, int32(r.prevPageID))
	case Begin, Commit, Abort:
		// header only
	}

	return buf.Bytes()
}

func getRID(r *bytes.Reader) page.RID {
	var pid int32
	var slot uint32
	binary.Read(r, binary.LittleEndian, &pid)
	binary.Read(r, binary.LittleEndian, &slot)
	var rid page.RID
	rid.Set(types.PageID(pid), slot)
	return rid
}

func getLengthPrefixed(r *bytes.Reader) []byte {
	var n uint32
	binary.Read(r, binary.LittleEndian, &n)
	data := make([]byte, n)
	r.Read(data)
	return data
}

// DeserializeLogRecord decodes one record starting at buf[0]. Returns an
// error if buf is shorter than HeaderSize or the encoded size.
func DeserializeLogRecord(buf []byte) (*LogRecord, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("recovery: log record header truncated, have %d bytes", len(buf))
	}

	r := bytes.NewReader(buf)
	var size uint32
	var lsn, prevLSN, logType int32
	var txnID int32
	binary.Read(r, binary.LittleEndian, &size)
	binary.Read(r, binary.LittleEndian, &lsn)
	binary.Read(r, binary.LittleEndian, &txnID)
	binary.Read(r, binary.LittleEndian, &prevLSN)
	binary.Read(r, binary.LittleEndian, &logType)

	if uint32(len(buf)) < size {
		return nil, fmt.Errorf("recovery: log record truncated, want %d bytes have %d", size, len(buf))
	}

	rec := &LogRecord{
		size:    size,
		lsn:     types.LSN(lsn),
		txnID:   types.TxnID(txnID),
		prevLSN: types.LSN(prevLSN),
		logType: LogRecordType(logType),
	}

	switch rec.logType {
	case Insert:
		rec.insertRID = getRID(r)
		rec.insertData = getLengthPrefixed(r)
	case MarkDelete, ApplyDelete, RollbackDelete:
		rec.deleteRID = getRID(r)
		rec.deleteData = getLengthPrefixed(r)
	case Update:
		rec.updateRID = getRID(r)
		rec.oldData = getLengthPrefixed(r)
		rec.newData = getLengthPrefixed(r)
	case NewPage:
		var prevPageID int32
		binary.Read(r, binary.LittleEndian, &prevPageID)
		rec.prevPageID = types.PageID(prevPageID)
	case Begin, Commit, Abort:
		// header only
	default:
		return nil, fmt.Errorf("recovery: unknown log record type %d", logType)
	}

	return rec, nil
}
