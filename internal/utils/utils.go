package utils

import (
	"encoding/binary"
	"hash/fnv"
)

// HashAddr hashes a pid-qualified address into the 32-bit keyspace used by
// the address-space lookup cache.
func HashAddr(pid int, addr uint64) uint32 {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(pid))
	binary.LittleEndian.PutUint64(buf[4:], addr)

	h := fnv.New32a()
	h.Write(buf[:])

	return h.Sum32()
}
