package testutil

import (
	"fmt"
	"math"
	"testing"
)

// RequireSliceNearlyEqual fails t if got and want differ in length or if any
// element pair differs by more than eps.
func RequireSliceNearlyEqual(t *testing.T, got, want []float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		if diff := math.Abs(got[i] - want[i]); diff > eps {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireSetsNearlyEqual compares two [imf][sample] arrays.
func RequireSetsNearlyEqual(t *testing.T, got, want [][]float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("set size mismatch: got %d, want %d", len(got), len(want))
	}
	for k := range got {
		d, err := MaxAbsDiff(got[k], want[k])
		if err != nil {
			t.Fatalf("row %d: %v", k, err)
		}
		if d > eps {
			t.Fatalf("row %d: max diff %v > eps %v", k, d, eps)
		}
	}
}

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t *testing.T, data []float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// MaxAbsDiff returns the largest absolute difference between a and b.
func MaxAbsDiff(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}
	maxDiff := 0.0
	for i := range a {
		maxDiff = math.Max(maxDiff, math.Abs(a[i]-b[i]))
	}
	return maxDiff, nil
}
