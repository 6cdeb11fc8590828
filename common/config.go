// this code is from https://github.com/pzhzqt/goostub
// there is license and copyright notice in licenses/goostub dir

package common

import (
	"time"
)

var CycleDetectionInterval time.Duration
var EnableLogging bool = false
var LogTimeout time.Duration = 1 * time.Second
var EnableDebug bool = false

// LogLevelSetting is a bitmask of LogLevel values; ShPrintf only prints
// when the call site's level has a bit in common with this mask.
var LogLevelSetting LogLevel = INFO | WARN | ERROR | FATAL

const (
	// invalid page id
	InvalidPageID = -1
	// invalid transaction id
	InvalidTxnID = -1
	// invalid log sequence number
	InvalidLSN = -1
	// the header page id
	HeaderPageID = 0
	// size of a data page in byte
	PageSize = 4096
	// size of buffer pool
	LogBufferPoolSize = 32
	// size of a log buffer in byte
	LogBufferSize = ((LogBufferPoolSize + 1) * PageSize)
	// size of extendible hash bucket (default entries per bucket before a split)
	BucketSize = 50
	// not read by container/hash: NewExtendibleHashTable starts from a
	// single bucket at global depth 0
	InitialNumBuckets = 2
)

// SlotOffset is the byte offset of a slot within a page.
type SlotOffset uintptr
