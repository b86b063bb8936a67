package timeline

import "math"

// TotalDuration sums the segment durations. fallback is returned only when
// the sum is exactly zero, which covers an empty or fully unresolved track.
func TotalDuration[S Placed](segments []S, fallback float64) float64 {
	var total float64
	for _, s := range segments {
		total += length(s.Span().Duration)
	}
	if total == 0 {
		return length(fallback)
	}
	return total
}

// StartOf returns the global time at which segment i begins. Indexes past
// the end return the total length of the track.
func StartOf[S Placed](segments []S, i int) float64 {
	var start float64
	for j := 0; j < i && j < len(segments); j++ {
		start += length(segments[j].Span().Duration)
	}
	return start
}

// GlobalTime is the inverse of Locate.
func GlobalTime[S Placed](segments []S, i int, local float64) float64 {
	return StartOf(segments, i) + local
}

// Locate finds the segment playing at global time t and the offset into it.
// A time on a boundary belongs to the segment that starts there. Times at or
// past the end clamp to the end of the last segment; an empty track and
// negative times yield (0, 0).
func Locate[S Placed](segments []S, t float64) (index int, offset float64) {
	if len(segments) == 0 || math.IsNaN(t) || t < 0 {
		return 0, 0
	}

	var acc float64
	for i, s := range segments {
		d := length(s.Span().Duration)
		if t < acc+d {
			return i, t - acc
		}
		acc += d
	}

	last := len(segments) - 1
	return last, length(segments[last].Span().Duration)
}
