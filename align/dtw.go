package align

// Banded dynamic time warping over chroma sequences.
//
// The cost of matching frame i of the source against frame j of the target is
// the cosine distance of their chroma vectors. The DP search is restricted to
// a Sakoe-Chiba band around the length-normalized diagonal, bounding both the
// run time (O(n * band)) and how far the alignment may drift. The minimum
// cost monotonic path is backtracked and reduced to a piecewise-linear warp
// function; the reduction quality doubles as the alignment quality score.
//
// The computation is deterministic: identical inputs always produce the same
// path and warp.

import (
	"math"

	"github.com/hamzapatwa/PitchPerfectly/dsp"
)

// Align computes the warp from the source (karaoke) chroma sequence onto the
// target (studio) chroma sequence. hopSeconds converts frame indices to
// timeline seconds and must be identical for both sequences.
func Align(source, target [][]float64, hopSeconds float64, opts Options) (WarpFunction, error) {
	n, m := len(source), len(target)
	if n == 0 || m == 0 {
		return WarpFunction{}, ErrEmptySequence
	}

	band := int(opts.BandFraction * float64(max(n, m)))
	if band < 1 {
		band = 1
	}

	path := bandedPath(source, target, band)
	warp := fitWarp(path, hopSeconds, opts.MaxFitError)
	if err := warp.Validate(); err != nil {
		return WarpFunction{}, err
	}
	if warp.Quality < opts.MinQuality {
		return WarpFunction{}, ErrQualityTooLow
	}
	return warp, nil
}

// bandedPath fills the banded DP matrix and backtracks the min-cost path.
// Returned index pairs are monotonically non-decreasing in both dimensions.
func bandedPath(source, target [][]float64, band int) [][2]int {
	n, m := len(source), len(target)
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
		// Band center follows the length-normalized diagonal.
		center := i * m / n
		jLo := max(1, center-band)
		jHi := min(m, center+band)
		for j := jLo; j <= jHi; j++ {
			cost := dsp.CosineDistance(source[i-1], target[j-1])
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

	// Backtrack from (n, m), preferring the diagonal on ties so the path
	// stays as short as possible.
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

	// Reverse in place: backtracking built it end-first.
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
