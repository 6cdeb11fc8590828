package page

import (
	"testing"

	"github.com/ledgerdb/ledgerdb/types"
)

func TestRID(t *testing.T) {
	rid := RID{}
	rid.Set(types.PageID(0), uint32(0))
	if rid.GetPageId() != types.PageID(0) {
		t.Errorf("GetPageId() = %v, want %v", rid.GetPageId(), types.PageID(0))
	}
	if rid.GetSlot() != uint32(0) {
		t.Errorf("GetSlot() = %v, want %v", rid.GetSlot(), uint32(0))
	}
}
