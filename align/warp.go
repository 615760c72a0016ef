package align

// Reduction of a raw DTW path to a compact piecewise-linear warp function.
// Consecutive path points are merged into a single segment while every
// intermediate point stays within MaxFitError seconds of the segment; the
// coefficient of determination of the final fit against the raw path is the
// alignment quality score.

import "math"

// fitWarp collapses the index path to one target per source frame, converts
// indices to seconds and greedily fits linear segments.
func fitWarp(path [][2]int, hopSeconds, maxFitError float64) WarpFunction {
	collapsed := collapsePath(path)
	if len(collapsed) == 0 {
		return WarpFunction{}
	}

	points := make([]WarpPoint, len(collapsed))
	for i, p := range collapsed {
		points[i] = WarpPoint{
			Source: float64(p[0]) * hopSeconds,
			Target: p[1] * hopSeconds,
		}
	}

	breaks := []WarpPoint{points[0]}
	anchor := 0
	for end := 2; end < len(points); end++ {
		if !segmentFits(points, anchor, end, maxFitError) {
			breaks = append(breaks, points[end-1])
			anchor = end - 1
		}
	}
	if last := points[len(points)-1]; len(breaks) == 0 || breaks[len(breaks)-1] != last {
		breaks = append(breaks, last)
	}

	warp := WarpFunction{Points: breaks}
	warp.Quality = fitQuality(warp, points)
	return warp
}

// collapsePath keeps a single (source, mean target) pair per source index so
// the resulting function is single-valued and strictly increasing in source.
func collapsePath(path [][2]int) [][2]float64 {
	if len(path) == 0 {
		return nil
	}
	var collapsed [][2]float64
	i := 0
	for i < len(path) {
		src := path[i][0]
		sum, count := 0.0, 0.0
		for i < len(path) && path[i][0] == src {
			sum += float64(path[i][1])
			count++
			i++
		}
		collapsed = append(collapsed, [2]float64{float64(src), sum / count})
	}
	return collapsed
}

// segmentFits reports whether every point strictly between anchor and end
// deviates from the anchor-end chord by at most maxErr seconds of target time.
func segmentFits(points []WarpPoint, anchor, end int, maxErr float64) bool {
	a, b := points[anchor], points[end]
	span := b.Source - a.Source
	if span <= 0 {
		return true
	}
	slope := (b.Target - a.Target) / span
	for k := anchor + 1; k < end; k++ {
		expected := a.Target + slope*(points[k].Source-a.Source)
		if math.Abs(points[k].Target-expected) > maxErr {
			return false
		}
	}
	return true
}

// fitQuality is the coefficient of determination of the warp against the
// collapsed path: 1 for a perfect fit, toward 0 as the fit degrades.
func fitQuality(warp WarpFunction, points []WarpPoint) float64 {
	if len(points) == 0 {
		return 0
	}

	var mean float64
	for _, p := range points {
		mean += p.Target
	}
	mean /= float64(len(points))

	var ssRes, ssTot float64
	for _, p := range points {
		predicted := warp.Map(p.Source)
		ssRes += (p.Target - predicted) * (p.Target - predicted)
		ssTot += (p.Target - mean) * (p.Target - mean)
	}
	if ssTot < 1e-12 {
		// Degenerate flat path: quality hinges on residuals alone.
		if ssRes < 1e-9 {
			return 1
		}
		return 0
	}
	r2 := 1 - ssRes/ssTot
	if r2 < 0 {
		return 0
	}
	return r2
}
