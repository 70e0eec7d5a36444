package signature

import (
	"encoding/binary"
	"math"
)

// Vector is a dense float32 feature vector.
type Vector []float32

// FromBytes deserializes a vector from a little-endian byte blob.
// Returns nil when the blob length is not a multiple of four.
func FromBytes(data []byte) Vector {
	if len(data)%4 != 0 {
		return nil
	}
	v := make(Vector, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}

// Bytes serializes the vector to a little-endian byte blob.
func (v Vector) Bytes() []byte {
	data := make([]byte, len(v)*4)
	for i, val := range v {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(val))
	}
	return data
}

// Norm returns the L2 norm of the vector.
func (v Vector) Norm() float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	return float32(math.Sqrt(float64(sum)))
}

// Dot computes the dot product with another vector.
func (v Vector) Dot(other Vector) float32 {
	if len(v) != len(other) {
		return 0
	}
	var sum float32
	for i := range v {
		sum += v[i] * other[i]
	}
	return sum
}

// CosineSimilarity computes cosine similarity with another vector.
// Mismatched lengths and zero vectors score 0.
func (v Vector) CosineSimilarity(other Vector) float32 {
	if len(v) != len(other) {
		return 0
	}
	normA := v.Norm()
	normB := other.Norm()
	if normA == 0 || normB == 0 {
		return 0
	}
	return v.Dot(other) / (normA * normB)
}
