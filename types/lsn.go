package types

import (
	"bytes"
	"encoding/binary"
)

// LSN is the type of a log sequence number. LSNs are assigned in strictly
// increasing order by the log manager.
type LSN int32

// InvalidLSN is the sentinel for "no LSN assigned yet".
const InvalidLSN = LSN(-1)

// Serialize casts it to []byte
func (lsn LSN) Serialize() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, lsn)
	return buf.Bytes()
}

// NewLSNFromBytes creates an LSN from []byte
func NewLSNFromBytes(data []byte) (ret LSN) {
	binary.Read(bytes.NewBuffer(data), binary.LittleEndian, &ret)
	return ret
}
