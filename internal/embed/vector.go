package embed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrCorruptVector indicates stored bytes are not a whole number of float32s.
var ErrCorruptVector = errors.New("corrupt vector encoding")

// EncodeVector packs vec as little-endian IEEE 754 float32s, the format
// shared by every cache store and the database.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector reverses EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptVector, len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return vec, nil
}
