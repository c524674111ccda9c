package store

import "math"

// MaxCosineDistance is the distance reported for vectors without a direction.
const MaxCosineDistance = 2

// CosineSimilarity returns dot(a, b) / (|a| * |b|), a value in [-1, 1].
//
// Components are accumulated left to right in float64, so identical inputs
// always produce identical output. The result is NaN when the lengths differ
// or when either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return float32(math.NaN())
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return float32(math.NaN())
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp rounding error at the boundary.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return float32(similarity)
}

// CosineDistance returns 1 - CosineSimilarity(a, b) in [0, 2].
//
// An undefined similarity maps to MaxCosineDistance, so a zero vector is
// maximally distant from everything, itself included.
func CosineDistance(a, b []float32) float32 {
	s := CosineSimilarity(a, b)
	if math.IsNaN(float64(s)) {
		return MaxCosineDistance
	}
	return 1 - s
}
