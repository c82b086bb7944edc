// Package wire holds the explicit binary.LittleEndian field helpers
// shared by the frame, dispatch, and message layers: field-by-field
// marshaling rather than reflection or unsafe struct casts.
package wire

import "encoding/binary"

// PutUint16 writes v as little-endian into buf[0:2].
func PutUint16(buf []byte, v uint16) { binary.LittleEndian.PutUint16(buf, v) }

// Uint16 reads a little-endian uint16 from buf[0:2].
func Uint16(buf []byte) uint16 { return binary.LittleEndian.Uint16(buf) }

// PutUint32 writes v as little-endian into buf[0:4].
func PutUint32(buf []byte, v uint32) { binary.LittleEndian.PutUint32(buf, v) }

// Uint32 reads a little-endian uint32 from buf[0:4].
func Uint32(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf) }

// AppendUint16 appends v as little-endian to buf, returning the
// extended slice.
func AppendUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

// AppendUint32 appends v as little-endian to buf, returning the
// extended slice.
func AppendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
