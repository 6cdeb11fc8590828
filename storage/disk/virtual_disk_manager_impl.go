package disk

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dsnet/golib/memfile"
	"github.com/ledgerdb/ledgerdb/common"
	"github.com/ledgerdb/ledgerdb/types"
)

// ErrDeallocatedPage is returned by ReadPage when the requested page was
// already deallocated.
var ErrDeallocatedPage = errors.New("disk: page already deallocated")

// VirtualDiskManagerImpl is an in-memory DiskManager, backed by
// github.com/dsnet/golib/memfile instead of an *os.File, for tests that
// want WAL durability semantics without touching the filesystem.
type VirtualDiskManagerImpl struct {
	db              *memfile.File
	fileName        string
	log             *memfile.File
	fileName_log    string
	nextPageID      types.PageID
	numWrites       uint64
	size            int64
	flush_log       bool
	numFlushes      uint64
	dbFileMutex     *sync.Mutex
	logFileMutex    *sync.Mutex
	reusableSpceIDs []types.PageID
	spaceIDConvMap  map[types.PageID]types.PageID
	deallocedIDMap  map[types.PageID]bool
}

func NewVirtualDiskManagerImpl(dbFilename string) DiskManager {
	file := memfile.New(make([]byte, 0))

	period_idx := strings.LastIndex(dbFilename, ".")
	logfname_base := dbFilename[:period_idx]
	logfname := logfname_base + "." + "log"

	file_1 := memfile.New(make([]byte, 0))

	fileSize := int64(0)
	nextPageID := types.PageID(0)

	return &VirtualDiskManagerImpl{file, dbFilename, file_1, logfname, nextPageID, 0, fileSize, false, 0, new(sync.Mutex), new(sync.Mutex), make([]types.PageID, 0), make(map[types.PageID]types.PageID), make(map[types.PageID]bool)}
}

// ShutDown closes of the database file
func (d *VirtualDiskManagerImpl) ShutDown() {
	// nothing to release; backing store is heap memory
}

// spaceID(pageID) conversion for reuse of file space which is allocated to deallocated page
func (d *VirtualDiskManagerImpl) convToSpaceID(pageID types.PageID) (spaceID types.PageID) {
	if convedID, exist := d.spaceIDConvMap[pageID]; exist {
		return convedID
	} else {
		return pageID
	}
}

// Write a page to the database file
func (d *VirtualDiskManagerImpl) WritePage(pageId types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	offset := int64(d.convToSpaceID(pageId)) * int64(common.PageSize)
	d.db.WriteAt(pageData, offset)
	d.numWrites++

	if offset >= d.size {
		d.size = offset + int64(len(pageData))
	}

	return nil
}

// Read a page from the database file
func (d *VirtualDiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if _, exist := d.deallocedIDMap[pageID]; exist {
		return ErrDeallocatedPage
	}

	offset := int64(d.convToSpaceID(pageID)) * int64(common.PageSize)

	if offset > d.size || offset+int64(len(pageData)) > d.size {
		return errors.New("I/O error past end of file")
	}

	_, err := d.db.ReadAt(pageData, offset)
	if err != nil {
		return fmt.Errorf("file read error: %w", err)
	}
	return nil
}

// AllocatePage allocates a new page
func (d *VirtualDiskManagerImpl) AllocatePage() types.PageID {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	ret := d.nextPageID
	if len(d.reusableSpceIDs) > 0 {
		reuseID := d.reusableSpceIDs[0]
		if len(d.reusableSpceIDs) == 1 {
			d.reusableSpceIDs = make([]types.PageID, 0)
		} else {
			d.reusableSpceIDs = d.reusableSpceIDs[1:]
		}
		d.spaceIDConvMap[ret] = reuseID
	}
	d.nextPageID++

	return ret
}

// DeallocatePage deallocates page
func (d *VirtualDiskManagerImpl) DeallocatePage(pageID types.PageID) {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	d.deallocedIDMap[pageID] = true
	if convedID, exist := d.spaceIDConvMap[pageID]; exist {
		d.reusableSpceIDs = append(d.reusableSpceIDs, convedID)
		delete(d.spaceIDConvMap, pageID)
	} else {
		d.reusableSpceIDs = append(d.reusableSpceIDs, pageID)
	}
}

// GetNumWrites returns the number of disk writes
func (d *VirtualDiskManagerImpl) GetNumWrites() uint64 {
	return d.numWrites
}

// Size returns the size of the file in disk
func (d *VirtualDiskManagerImpl) Size() int64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	return d.size
}

// ATTENTION: this method can be call after calling of Shutdown method
func (d *VirtualDiskManagerImpl) RemoveDBFile() {
	// nothing on disk to remove
}

// ATTENTION: this method can be call after calling of Shutdown method
func (d *VirtualDiskManagerImpl) RemoveLogFile() {
	// nothing on disk to remove
}

// GCLogFile erases needless data from the log file (use when recovery or a
// snapshot finishes); file content becomes empty.
func (d *VirtualDiskManagerImpl) GCLogFile() error {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	d.log = memfile.New(make([]byte, 0))
	return nil
}

// WriteLog appends log_data to the in-memory log, sequentially.
func (d *VirtualDiskManagerImpl) WriteLog(log_data []byte) error {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	if len(log_data) == 0 {
		return nil
	}

	d.flush_log = true
	defer func() { d.flush_log = false }()

	d.numFlushes += 1
	d.log.WriteAt(log_data, int64(len(d.log.Bytes())))
	return nil
}

// ReadLog fills log_data starting at offset, performing a sequential read.
func (d *VirtualDiskManagerImpl) ReadLog(log_data []byte, offset int32) (bool, error) {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	logSize := int64(len(d.log.Bytes()))
	if int64(offset) >= logSize {
		return false, nil
	}

	n, err := d.log.ReadAt(log_data, int64(offset))
	if err != nil && n == 0 {
		return false, fmt.Errorf("I/O error at log data reading: %w", err)
	}
	if n < len(log_data) {
		for i := n; i < len(log_data); i++ {
			log_data[i] = 0
		}
	}

	return true, nil
}

// GetLogFileSize returns the size in bytes of the in-memory log.
func (d *VirtualDiskManagerImpl) GetLogFileSize() int64 {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	return int64(len(d.log.Bytes()))
}
