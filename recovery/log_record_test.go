package recovery

import (
	"bytes"
	"testing"

	"github.com/ledgerdb/ledgerdb/storage/page"
	"github.com/ledgerdb/ledgerdb/types"
)

func TestInsertLogRecordRoundTrip(t *testing.T) {
	var rid page.RID
	rid.Set(types.PageID(3), 7)

	rec := NewInsertLogRecord(types.TxnID(1), types.InvalidLSN, rid, []byte("a tuple"))
	rec.SetLSN(types.LSN(42))

	data := rec.Serialize()
	if uint32(len(data)) != rec.GetSize() {
		t.Fatalf("Serialize() produced %d bytes, GetSize() says %d", len(data), rec.GetSize())
	}

	got, err := DeserializeLogRecord(data)
	if err != nil {
		t.Fatalf("DeserializeLogRecord: %v", err)
	}
	if got.GetType() != Insert {
		t.Fatalf("GetType() = %v, want Insert", got.GetType())
	}
	if got.GetLSN() != types.LSN(42) {
		t.Fatalf("GetLSN() = %v, want 42", got.GetLSN())
	}
	if got.GetTxnID() != types.TxnID(1) {
		t.Fatalf("GetTxnID() = %v, want 1", got.GetTxnID())
	}
	if got.insertRID.GetPageId() != types.PageID(3) || got.insertRID.GetSlot() != 7 {
		t.Fatalf("insertRID = %+v, want {3 7}", got.insertRID)
	}
	if !bytes.Equal(got.insertData, []byte("a tuple")) {
		t.Fatalf("insertData = %q, want %q", got.insertData, "a tuple")
	}
}

func TestUpdateLogRecordRoundTrip(t *testing.T) {
	var rid page.RID
	rid.Set(types.PageID(1), 0)

	rec := NewUpdateLogRecord(types.TxnID(2), types.LSN(5), rid, []byte("old"), []byte("new value"))
	rec.SetLSN(types.LSN(6))

	got, err := DeserializeLogRecord(rec.Serialize())
	if err != nil {
		t.Fatalf("DeserializeLogRecord: %v", err)
	}
	if got.GetType() != Update {
		t.Fatalf("GetType() = %v, want Update", got.GetType())
	}
	if got.GetPrevLSN() != types.LSN(5) {
		t.Fatalf("GetPrevLSN() = %v, want 5", got.GetPrevLSN())
	}
	if !bytes.Equal(got.oldData, []byte("old")) || !bytes.Equal(got.newData, []byte("new value")) {
		t.Fatalf("old/new = %q/%q, want old/new value", got.oldData, got.newData)
	}
}

func TestTxnLogRecordRoundTrip(t *testing.T) {
	for _, kind := range []LogRecordType{Begin, Commit, Abort} {
		rec := NewTxnLogRecord(types.TxnID(9), types.LSN(3), kind)
		rec.SetLSN(types.LSN(10))

		data := rec.Serialize()
		if uint32(len(data)) != HeaderSize {
			t.Fatalf("%s record serialized to %d bytes, want %d", kind, len(data), HeaderSize)
		}

		got, err := DeserializeLogRecord(data)
		if err != nil {
			t.Fatalf("DeserializeLogRecord(%s): %v", kind, err)
		}
		if got.GetType() != kind {
			t.Fatalf("GetType() = %v, want %v", got.GetType(), kind)
		}
	}
}

func TestDeserializeLogRecordTruncated(t *testing.T) {
	if _, err := DeserializeLogRecord([]byte{1, 2, 3}); err == nil {
		t.Fatalf("DeserializeLogRecord on a truncated header should fail")
	}
}
