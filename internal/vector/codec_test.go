package vector

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestCodec_RoundTrip(t *testing.T) {
	v := []float32{0.1, -2.5, 3.75, 0, math.MaxFloat32}
	b := Encode(v)
	if len(b) != len(v)*4 {
		t.Fatalf("encoded length=%d, want %d", len(b), len(v)*4)
	}
	got, err := Decode(b, len(v))
	if err != nil {
		t.Fatal(err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("round trip mismatch at %d: %v != %v", i, got[i], v[i])
		}
	}
}

func TestCodec_LittleEndianLayout(t *testing.T) {
	b := Encode([]float32{1.0})
	if got := binary.LittleEndian.Uint32(b); got != math.Float32bits(1.0) {
		t.Errorf("layout not little-endian float32: %x", got)
	}
}

func TestDecode_MalformedLength(t *testing.T) {
	_, err := Decode(make([]byte, 10), 3)
	var mv *ErrMalformedVector
	if !errors.As(err, &mv) {
		t.Fatalf("expected ErrMalformedVector, got %v", err)
	}
	if mv.Dimensions != 3 || mv.ByteLen != 10 {
		t.Errorf("unexpected error fields: %+v", mv)
	}
}

func TestDecode_ZeroDimensions(t *testing.T) {
	if _, err := Decode(nil, 0); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}
