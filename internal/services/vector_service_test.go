package services

import (
	"math"
	"testing"
)

func TestCosineSimilarityIdentical(t *testing.T) {
	vector := []float32{0.5, 0.25, 0.8}
	got := CosineSimilarity(vector, vector)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("identical vectors similarity = %v, want 1.0", got)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	got := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors similarity = %v, want 0", got)
	}
}

func TestCosineSimilarityOpposite(t *testing.T) {
	got := CosineSimilarity([]float32{1, 2}, []float32{-1, -2})
	if math.Abs(got+1.0) > 1e-9 {
		t.Errorf("opposite vectors similarity = %v, want -1.0", got)
	}
}

func TestCosineSimilarityDegenerate(t *testing.T) {
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Errorf("empty vectors similarity = %v, want 0", got)
	}
	if got := CosineSimilarity([]float32{1, 2}, []float32{1}); got != 0 {
		t.Errorf("mismatched lengths similarity = %v, want 0", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 2}); got != 0 {
		t.Errorf("zero-norm similarity = %v, want 0", got)
	}
}
