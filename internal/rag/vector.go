package rag

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeVector serialises a vector as little-endian float32 values. The
// encoding is bit-exact, so a stored vector decodes to the same bits on
// every read and repeated retrieval stays deterministic.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("rag: corrupt vector blob: %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}

// l2Squared returns the squared Euclidean distance between two equal-length
// vectors. Squared distance orders identically to true L2, so the square
// root is skipped on the ranking path. Accumulates in float64 to limit
// rounding drift over 384 terms.
func l2Squared(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
