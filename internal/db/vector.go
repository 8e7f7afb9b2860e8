package db

import (
	"encoding/binary"
	"math"
)

// EncodeVector serialises a float32 slice to a little-endian byte blob.
// This is the format expected by sqlite-vec's BLOB column input and the one
// the persistent embedding map stores.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector deserialises a little-endian byte blob to a float32 slice.
func DecodeVector(b []byte) []float32 {
	result := make([]float32, len(b)/4)
	for i := range result {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		result[i] = math.Float32frombits(bits)
	}
	return result
}
