// Package hls computes and caches HLS segment plans and renders VOD
// playlists for them.
package hls

import (
	"fmt"
	"math"
)

// Segment length bounds in seconds. Segments shorter than the minimum
// cause playback glitches in browsers; segments much longer than the
// maximum make seeking coarse. The target length steers the even-split
// rule (per https://bitmovin.com/mpeg-dash-hls-segment-length/).
const (
	MinSegmentSeconds    = 2.25
	MaxSegmentSeconds    = 4.75
	targetSegmentSeconds = 3.5
)

// Plan is an ordered list of segment boundaries in seconds. The first
// boundary is always 0 and the last always equals the media duration,
// so a plan with n+1 boundaries describes n segments. Plans are
// immutable once computed.
type Plan []float64

// SegmentCount returns the number of segments in the plan.
func (p Plan) SegmentCount() int {
	if len(p) < 2 {
		return 0
	}
	return len(p) - 1
}

// Segment returns the start time and duration of segment i.
func (p Plan) Segment(i int) (start, duration float64, err error) {
	if i < 0 || i >= p.SegmentCount() {
		return 0, 0, fmt.Errorf("segment index %d out of range [0, %d)", i, p.SegmentCount())
	}
	return p[i], p[i+1] - p[i], nil
}

// PlanSegments converts raw keyframe timestamps into segment
// boundaries. Keyframes must be ascending, deduplicated, non-negative
// and strictly less than duration.
//
// Keyframes are used as boundaries where possible. A keyframe closer
// than the minimum to the previous boundary is dropped; a gap of the
// maximum or more is split into equal parts no longer than the target
// length. After the pass an overlong final segment is split once at
// its midpoint. The midpoint split is deliberately not recursive,
// matching the behavior this planner was validated against; the gap
// arithmetic keeps the halves within bounds anyway.
func PlanSegments(keyframes []float64, duration float64) Plan {
	boundaries := make(Plan, 1, len(keyframes)+2)
	lastTime := 0.0

	times := make([]float64, 0, len(keyframes)+1)
	times = append(times, keyframes...)
	times = append(times, duration)

	for _, time := range times {
		gap := time - lastTime
		switch {
		case gap < MinSegmentSeconds:
			// Too close to the previous boundary, drop it.
		case gap < MaxSegmentSeconds:
			lastTime = time
			boundaries = append(boundaries, time)
		default:
			parts := math.Ceil(gap / targetSegmentSeconds)
			each := gap / parts
			for i := 1; i < int(parts); i++ {
				lastTime += each
				boundaries = append(boundaries, lastTime)
			}
			// Use the keyframe time directly rather than the
			// accumulated increments to avoid float drift.
			lastTime = time
			boundaries = append(boundaries, time)
		}
	}

	if len(boundaries) > 1 {
		// The last boundary equals duration unless the drop branch
		// fired on the final candidate; either way it is replaced by
		// the unconditional append below.
		boundaries = boundaries[:len(boundaries)-1]

		if tail := duration - boundaries[len(boundaries)-1]; tail > MaxSegmentSeconds {
			boundaries = append(boundaries, duration-tail/2)
		}
	}
	boundaries = append(boundaries, duration)

	return boundaries
}
