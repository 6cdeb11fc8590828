package disk

import (
	"github.com/ledgerdb/ledgerdb/types"
)

// DiskManager is responsible for interacting with disk
type DiskManager interface {
	ReadPage(types.PageID, []byte) error
	WritePage(types.PageID, []byte) error
	AllocatePage() types.PageID
	DeallocatePage(types.PageID)
	GetNumWrites() uint64
	ShutDown()
	Size() int64

	// WriteLog appends log_data to the log file and fsyncs before
	// returning, so the log manager's flush is durable when this call
	// completes.
	WriteLog(log_data []byte) error
	// ReadLog fills log_data starting at offset, returning false at EOF.
	ReadLog(log_data []byte, offset int32) (bool, error)
}
