package disk

import (
	"bytes"
	"testing"

	"github.com/ledgerdb/ledgerdb/common"
	"github.com/ledgerdb/ledgerdb/types"
)

func TestReadWritePage(t *testing.T) {
	dm := NewDiskManagerTest()
	defer dm.ShutDown()

	data := make([]byte, common.PageSize)
	buffer := make([]byte, common.PageSize)

	copy(data, "A test string.")

	dm.ReadPage(types.PageID(0), buffer) // tolerate empty read
	if err := dm.WritePage(types.PageID(0), data); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := dm.ReadPage(types.PageID(0), buffer); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(data, buffer) {
		t.Fatalf("ReadPage returned %q, want %q", buffer, data)
	}

	memset(buffer, 0)
	copy(data, "Another test string.")

	if err := dm.WritePage(types.PageID(5), data); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := dm.ReadPage(types.PageID(5), buffer); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(data, buffer) {
		t.Fatalf("ReadPage returned %q, want %q", buffer, data)
	}
}

func memset(buffer []byte, value byte) {
	for i := range buffer {
		buffer[i] = value
	}
}
