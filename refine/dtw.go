package refine

// Scalar DTW used for phrase-local realignment. Unlike the chroma aligner in
// the offline pipeline, this operates directly on pitch values (in cents
// relative to A4) over short phrase windows, where drift is small and a
// narrow band suffices.

import "math"

const (
	// unvoicedMismatchCost penalizes matching a voiced frame against an
	// unvoiced one. Matching unvoiced to unvoiced is free.
	unvoicedMismatchCost = 600.0

	// minBand keeps the search window usable on very short phrases.
	minBand = 3
)

// pitchCost is the DTW local cost between two F0 values in Hz.
func pitchCost(a, b float64) float64 {
	switch {
	case a <= 0 && b <= 0:
		return 0
	case a <= 0 || b <= 0:
		return unvoicedMismatchCost
	default:
		return math.Abs(1200.0 * math.Log2(a/b))
	}
}

// warpPath computes the banded min-cost monotonic path between two scalar
// pitch sequences. bandFraction is relative to the longer sequence.
func warpPath(a, b []float64, bandFraction float64) [][2]int {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return nil
	}

	longer := n
	if m > longer {
		longer = m
	}
	band := int(bandFraction * float64(longer))
	if band < minBand {
		band = minBand
	}

	inf := math.Inf(1)
	dp := make([][]float64, n+1)
	for i := range dp {
		dp[i] = make([]float64, m+1)
		for j := range dp[i] {
			dp[i][j] = inf
		}
	}
	dp[0][0] = 0

	for i := 1; i <= n; i++ {
		center := i * m / n
		jLo := center - band
		if jLo < 1 {
			jLo = 1
		}
		jHi := center + band
		if jHi > m {
			jHi = m
		}
		for j := jLo; j <= jHi; j++ {
			cost := pitchCost(a[i-1], b[j-1])
			best := dp[i-1][j-1]
			if dp[i-1][j] < best {
				best = dp[i-1][j]
			}
			if dp[i][j-1] < best {
				best = dp[i][j-1]
			}
			if !math.IsInf(best, 1) {
				dp[i][j] = cost + best
			}
		}
	}

	var path [][2]int
	i, j := n, m
	for i > 0 && j > 0 {
		path = append(path, [2]int{i - 1, j - 1})
		diag, up, left := dp[i-1][j-1], dp[i-1][j], dp[i][j-1]
		switch {
		case diag <= up && diag <= left:
			i--
			j--
		case up <= left:
			i--
		default:
			j--
		}
	}
	for ; i > 0; i-- {
		path = append(path, [2]int{i - 1, 0})
	}
	for ; j > 0; j-- {
		path = append(path, [2]int{0, j - 1})
	}

	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}
