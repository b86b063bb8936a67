package timeline

// Cut splits clips[target] at globalTime into two adjacent clips covering the
// same source range. The returned selection points at the second piece so
// cuts can be chained. A cut outside the clip interior, or at an unknown
// index, returns the input unchanged with ok=false.
func Cut(clips []VideoSegment, target int, globalTime float64) (out []VideoSegment, selection int, ok bool) {
	if target < 0 || target >= len(clips) {
		return clips, target, false
	}

	local := globalTime - StartOf(clips, target)
	before, after, ok := clips[target].Split(local)
	if !ok {
		return clips, target, false
	}

	out = make([]VideoSegment, 0, len(clips)+1)
	out = append(out, clips[:target]...)
	out = append(out, VideoSegment{Range: before}, VideoSegment{Range: after})
	out = append(out, clips[target+1:]...)
	return out, target + 1, true
}

// CutAudio splits music[target] at globalTime. Audio segments are not
// contiguous, so the local cut point is taken relative to the segment's own
// StartTime rather than its position in the slice.
func CutAudio(music []AudioSegment, target int, globalTime float64) (out []AudioSegment, selection int, ok bool) {
	if target < 0 || target >= len(music) {
		return music, target, false
	}

	parent := music[target]
	local := globalTime - parent.StartTime
	before, after, ok := parent.Split(local)
	if !ok {
		return music, target, false
	}

	out = make([]AudioSegment, 0, len(music)+1)
	out = append(out, music[:target]...)
	out = append(out,
		AudioSegment{Range: before, StartTime: parent.StartTime},
		AudioSegment{Range: after, StartTime: parent.StartTime + local},
	)
	out = append(out, music[target+1:]...)
	return out, target + 1, true
}
