package qooilproto

import "encoding/binary"

// bit-packing functions. callers are expected to check that the backing
// slice has enough space for whatever they're writing; these functions
// extend their argument slice by the amount of data encoded. All
// multi-byte integers are little-endian on the wire regardless of host.

func puint8(b []byte, v uint8) []byte {
	b = b[:len(b)+1]
	b[len(b)-1] = v
	return b
}

func puint16(b []byte, v uint16) []byte {
	binary.LittleEndian.PutUint16(b[len(b):len(b)+2], v)
	return b[:len(b)+2]
}

func puint32(b []byte, v ...uint32) []byte {
	for _, vv := range v {
		binary.LittleEndian.PutUint32(b[len(b):len(b)+4], vv)
		b = b[:len(b)+4]
	}
	return b
}

func puint64(b []byte, v uint64) []byte {
	binary.LittleEndian.PutUint64(b[len(b):len(b)+8], v)
	return b[:len(b)+8]
}

func guint16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func guint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func guint64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }
