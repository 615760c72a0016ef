package align

import "errors"

var (
	// ErrEmptySequence indicates one or both chroma sequences are empty.
	ErrEmptySequence = errors.New("align: input sequences must be non-empty")

	// ErrQualityTooLow indicates the fitted warp explains too little of the
	// alignment path to be trusted. Callers must not use the warp.
	ErrQualityTooLow = errors.New("align: alignment quality below configured minimum")
)

// Options bound the DTW search and the warp reduction.
type Options struct {
	// BandFraction is the Sakoe-Chiba band half-width as a fraction of the
	// longer sequence. Keeps the search O(n*band) and rejects implausible
	// warps that wander far off the diagonal.
	BandFraction float64

	// MaxFitError is the largest tolerated deviation (seconds) between the
	// raw path and a fitted linear segment before a new breakpoint starts.
	MaxFitError float64

	// MinQuality is the minimum coefficient of determination of the fit.
	MinQuality float64
}

// DefaultOptions matches the reference pipeline configuration.
func DefaultOptions() Options {
	return Options{
		BandFraction: 0.10,
		MaxFitError:  0.05,
		MinQuality:   0.65,
	}
}

// WarpPoint is one breakpoint of the piecewise-linear timeline mapping.
// Source is karaoke time, Target is studio-reference time, both seconds.
type WarpPoint struct {
	Source float64 `json:"source"`
	Target float64 `json:"target"`
}

// WarpFunction maps karaoke-timeline seconds onto reference-timeline seconds.
// Breakpoints are strictly increasing in Source and non-decreasing in Target.
type WarpFunction struct {
	Points  []WarpPoint `json:"points"`
	Quality float64     `json:"quality"` // R² of the piecewise-linear fit
}

// Map converts a source-timeline instant to the target timeline by linear
// interpolation between breakpoints. Times outside the covered range are
// extrapolated along the nearest edge segment.
func (w WarpFunction) Map(source float64) float64 {
	pts := w.Points
	if len(pts) == 0 {
		return source
	}
	if len(pts) == 1 {
		return pts[0].Target + (source - pts[0].Source)
	}

	// Locate the segment containing source.
	lo, hi := 0, len(pts)-1
	if source <= pts[0].Source {
		lo, hi = 0, 1
	} else if source >= pts[len(pts)-1].Source {
		lo, hi = len(pts)-2, len(pts)-1
	} else {
		for hi-lo > 1 {
			mid := (lo + hi) / 2
			if pts[mid].Source <= source {
				lo = mid
			} else {
				hi = mid
			}
		}
	}

	a, b := pts[lo], pts[hi]
	span := b.Source - a.Source
	if span <= 0 {
		return a.Target
	}
	t := (source - a.Source) / span
	return a.Target + t*(b.Target-a.Target)
}

// Validate checks the monotonicity invariant.
func (w WarpFunction) Validate() error {
	for i := 1; i < len(w.Points); i++ {
		if w.Points[i].Source <= w.Points[i-1].Source {
			return errors.New("align: warp breakpoints not strictly increasing in source time")
		}
		if w.Points[i].Target < w.Points[i-1].Target {
			return errors.New("align: warp breakpoints decreasing in target time")
		}
	}
	return nil
}
