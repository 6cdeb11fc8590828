// Package hash provides the hashing primitives shared by the extendible
// hash table: bytes go in, a uint32 bucket hash comes out.
package hash

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// GenHashMurMur hashes an arbitrary key's serialized bytes with murmur3.
// The hash table uses the low bits of this value to pick a directory slot.
func GenHashMurMur(key []byte) uint32 {
	h := murmur3.New128()
	h.Write(key)
	hash := h.Sum(nil)
	return binary.LittleEndian.Uint32(hash)
}
