package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ErrMalformedVector indicates a stored vector blob whose byte length does not
// match the expected dimensionality. Reads fail loudly rather than reinterpret.
type ErrMalformedVector struct {
	Dimensions int
	ByteLen    int
}

func (e *ErrMalformedVector) Error() string {
	return fmt.Sprintf("malformed vector: %d bytes for %d dimensions (want %d)",
		e.ByteLen, e.Dimensions, e.Dimensions*4)
}

// Encode serializes a vector as consecutive little-endian IEEE-754 float32 values.
func Encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode deserializes a vector of the given dimensionality from b.
// Returns *ErrMalformedVector when len(b) != dimensions*4.
func Decode(b []byte, dimensions int) ([]float32, error) {
	if dimensions <= 0 || len(b) != dimensions*4 {
		return nil, &ErrMalformedVector{Dimensions: dimensions, ByteLen: len(b)}
	}
	v := make([]float32, dimensions)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
