package envelope

// FindExtrema returns the indices of strict local maxima and minima. A sample
// is a maximum when it is greater than both neighbours and a minimum when it
// is smaller than both. End samples are never extrema and plateaus are not
// reported.
func FindExtrema(x []float64) (maxLocs, minLocs []int) {
	for i := 1; i < len(x)-1; i++ {
		switch {
		case x[i] > x[i-1] && x[i] > x[i+1]:
			maxLocs = append(maxLocs, i)
		case x[i] < x[i-1] && x[i] < x[i+1]:
			minLocs = append(minLocs, i)
		}
	}
	return maxLocs, minLocs
}

// CountExtrema returns the total number of strict local maxima and minima.
func CountExtrema(x []float64) int {
	count := 0
	for i := 1; i < len(x)-1; i++ {
		if (x[i] > x[i-1] && x[i] > x[i+1]) || (x[i] < x[i-1] && x[i] < x[i+1]) {
			count++
		}
	}
	return count
}

// CountZeroCrossings counts sign changes. Zero is treated as positive.
func CountZeroCrossings(x []float64) int {
	count := 0
	for i := 1; i < len(x); i++ {
		if (x[i-1] < 0) != (x[i] < 0) {
			count++
		}
	}
	return count
}

// padExtrema places pseudo-extrema beyond both ends of the signal by
// odd-reflecting the extremum locations about the first and last extremum.
// The returned knots are strictly increasing.
func padExtrema(locs []int, x []float64, boundary Boundary, width int) (xs, ys []float64) {
	n := len(locs)
	if boundary == BoundaryNone || width <= 0 || n < 2 {
		xs = make([]float64, n)
		ys = make([]float64, n)
		for i, l := range locs {
			xs[i] = float64(l)
			ys[i] = x[l]
		}
		return xs, ys
	}

	w := min(width, n-1)
	xs = make([]float64, 0, n+2*w)
	ys = make([]float64, 0, n+2*w)

	first, last := locs[0], locs[n-1]
	for k := w; k >= 1; k-- {
		xs = append(xs, float64(2*first-locs[k]))
		ys = append(ys, padMagnitude(x, locs, boundary, 0, k))
	}
	for _, l := range locs {
		xs = append(xs, float64(l))
		ys = append(ys, x[l])
	}
	for k := 1; k <= w; k++ {
		xs = append(xs, float64(2*last-locs[n-1-k]))
		ys = append(ys, padMagnitude(x, locs, boundary, n-1, n-1-k))
	}
	return xs, ys
}

func padMagnitude(x []float64, locs []int, boundary Boundary, edge, mirrored int) float64 {
	if boundary == BoundaryMirror {
		return x[locs[mirrored]]
	}
	return x[locs[edge]]
}
