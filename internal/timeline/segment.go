// Package timeline holds the segment model of the editor: media sources, the
// contiguous video track, the freely placed music track, and the pure
// functions that translate between global timeline time and source time.
package timeline

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// epsilon absorbs float drift when comparing offsets against source durations.
const epsilon = 1e-9

type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// KindFromMediaType classifies a declared media type. Only "audio/*" is audio;
// everything else, including an empty type, is treated as video.
func KindFromMediaType(mediaType string) Kind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "audio/") {
		return KindAudio
	}
	return KindVideo
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindVideo || k == KindAudio
}

// MediaSource is an uploaded file in the media pool. SourceDuration stays 0
// until the source is probed.
type MediaSource struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Source         string    `json:"source"`
	Kind           Kind      `json:"type"`
	SourceDuration float64   `json:"sourceDuration"`
}

func NewMediaSource(name, source string, kind Kind) MediaSource {
	return MediaSource{ID: uuid.New(), Name: name, Source: source, Kind: kind}
}

// Probed reports whether the source duration is known.
func (m MediaSource) Probed() bool {
	return m.SourceDuration > 0
}

// Resolve performs the one-time unknown -> known duration transition.
// Non-finite or non-positive durations leave the source unresolved.
func (m MediaSource) Resolve(duration float64) MediaSource {
	if m.Probed() || !finitePositive(duration) {
		return m
	}
	m.SourceDuration = duration
	return m
}

// Range is the placed sub-range [StartOffset, StartOffset+Duration) of a
// source. A zero Duration means the segment is still waiting for its probe.
type Range struct {
	Name           string  `json:"name"`
	Source         string  `json:"source"`
	Kind           Kind    `json:"type"`
	SourceDuration float64 `json:"sourceDuration"`
	StartOffset    float64 `json:"startOffset"`
	Duration       float64 `json:"duration"`
}

// RangeOf starts a fresh, unresolved range over m. Probed sources resolve
// immediately.
func RangeOf(m MediaSource) Range {
	r := Range{Name: m.Name, Source: m.Source, Kind: m.Kind}
	if m.Probed() {
		r = ResolveMetadata(r, m.SourceDuration)
	}
	return r
}

func (r Range) End() float64 {
	return r.StartOffset + length(r.Duration)
}

func (r Range) Resolved() bool {
	return finitePositive(r.Duration)
}

// Fits reports whether the range lies inside its source once both the range
// and the source duration are known.
func (r Range) Fits() bool {
	if r.StartOffset < 0 || math.IsNaN(r.StartOffset) {
		return false
	}
	if !r.Resolved() || r.SourceDuration <= 0 {
		return true
	}
	return r.End() <= r.SourceDuration+epsilon
}

// Split cuts the range at local, a time relative to the range start. The cut
// must land strictly inside the range.
func (r Range) Split(local float64) (before, after Range, ok bool) {
	if !r.Resolved() || math.IsNaN(local) || local <= 0 || local >= r.Duration {
		return r, Range{}, false
	}
	before, after = r, r
	before.Duration = local
	after.StartOffset = r.StartOffset + local
	after.Duration = r.Duration - local
	return before, after, true
}

// ResolveMetadata applies a probed source duration to r. The segment duration
// is only filled while it is unresolved, so repeated calls are no-ops.
func ResolveMetadata(r Range, sourceDuration float64) Range {
	if !finitePositive(sourceDuration) {
		return r
	}
	if r.SourceDuration <= 0 {
		r.SourceDuration = sourceDuration
	}
	if !r.Resolved() {
		r.Duration = math.Max(0, r.SourceDuration-r.StartOffset)
	}
	return r
}

// Placed is implemented by every segment kind.
type Placed interface {
	Span() Range
}

// VideoSegment is one element of the contiguous primary timeline.
type VideoSegment struct {
	Range
}

func (v VideoSegment) Span() Range { return v.Range }

// AudioSegment sits on the music track at its own StartTime. Segments may
// overlap each other or leave gaps.
type AudioSegment struct {
	Range
	StartTime float64 `json:"startTime"`
}

func (a AudioSegment) Span() Range { return a.Range }

// Window returns the global interval the segment plays in.
func (a AudioSegment) Window() (start, end float64) {
	return a.StartTime, a.StartTime + length(a.Duration)
}

// Contains reports whether t falls in the closed window of a resolved segment.
func (a AudioSegment) Contains(t float64) bool {
	if !a.Resolved() {
		return false
	}
	start, end := a.Window()
	return t >= start && t <= end
}

// LocalAt maps a global time to a position inside the source.
func (a AudioSegment) LocalAt(t float64) float64 {
	return a.StartOffset + (t - a.StartTime)
}

// length is the duration used in sums: unknown, negative and NaN count as 0.
func length(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0
	}
	return d
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
