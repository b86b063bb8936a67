// Package playback keeps one video element and N audio elements in step with
// a virtual, continuous timeline. The scheduler is a pure reducer: it never
// touches media elements itself, it returns directives for the host to apply.
package playback

import (
	"math"

	"timeline-editor/internal/timeline"
)

type State string

const (
	StateIdle    State = "idle"
	StateSeeking State = "seeking"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
)

// Tuning holds the tolerances of the scheduler, in seconds.
type Tuning struct {
	// EndTolerance is how close to a segment end the video may get before
	// the scheduler advances to the next segment.
	EndTolerance float64 `json:"endTolerance" toml:"end_tolerance"`
	// DriftTolerance is how far an audio element may wander from its ideal
	// position before it is snapped back.
	DriftTolerance float64 `json:"driftTolerance" toml:"drift_tolerance"`
}

func DefaultTuning() Tuning {
	return Tuning{EndTolerance: 0.03, DriftTolerance: 0.25}
}

// PendingSeek is the continuation held while the video element loads a new
// source. It is only flushed by readiness for exactly this source and
// generation.
type PendingSeek struct {
	Source     string  `json:"source"`
	Generation uint64  `json:"generation"`
	Position   float64 `json:"position"`
}

type Video struct {
	State       State        `json:"state"`
	Index       int          `json:"index"`
	Source      string       `json:"source"`
	StartOffset float64      `json:"startOffset"`
	Ready       bool         `json:"ready"`
	Generation  uint64       `json:"generation"`
	Pending     *PendingSeek `json:"pending,omitempty"`
}

// Audio is the state of one audio slot. Start and Offset identify the music
// segment the slot is bound to; Rebound marks a slot whose element kept its
// source but now serves another segment, so its position is unknown.
type Audio struct {
	Source   string  `json:"source"`
	Ready    bool    `json:"ready"`
	Position float64 `json:"position"`
	Playing  bool    `json:"playing"`
	Parked   bool    `json:"parked"`
	Start    float64 `json:"start"`
	Offset   float64 `json:"offset"`
	Rebound  bool    `json:"rebound,omitempty"`
}

// Scheduler is the complete playback state. Playing is the single play/pause
// intent shared by every element.
type Scheduler struct {
	Video    Video   `json:"video"`
	Audio    []Audio `json:"audio"`
	Playhead float64 `json:"playhead"`
	Playing  bool    `json:"playing"`
	Tuning   Tuning  `json:"tuning"`

	// Dropped counts notifications discarded because they referred to a
	// source that is no longer active.
	Dropped uint64 `json:"dropped"`
}

func New(tuning Tuning) Scheduler {
	return Scheduler{Video: Video{State: StateIdle}, Tuning: tuning}
}

// Timeline is the read-only input of the reducer.
type Timeline struct {
	Clips    []timeline.VideoSegment
	Music    []timeline.AudioSegment
	Fallback float64
}

// Total is the composed timeline length, falling back while nothing is
// resolved.
func (tl Timeline) Total() float64 {
	return timeline.TotalDuration(tl.Clips, tl.Fallback)
}

// Reduce applies one event and returns the next scheduler state together
// with the directives for the media elements. s is not modified.
func Reduce(s Scheduler, tl Timeline, ev Event) (Scheduler, []Directive) {
	r := &reducer{s: s.clone(), tl: tl}
	if r.s.Tuning == (Tuning{}) {
		r.s.Tuning = DefaultTuning()
	}
	if r.s.Video.State == "" {
		r.s.Video.State = StateIdle
	}
	r.bindAudio()

	switch e := ev.(type) {
	case Seek:
		r.seek(e.Time)
	case MetadataReady:
		r.ready(e)
	case Progress:
		r.progress(e)
	case SourceEnded:
		r.ended(e)
	case SetPlaying:
		r.setPlaying(e.Playing)
	case Toggle:
		r.setPlaying(!r.s.Playing)
	case PlaybackRejected:
		// Intent stays the user's last explicit choice; the next gesture
		// retries.
	case TimelineChanged:
		r.timelineChanged()
	}
	return r.s, r.out
}

type reducer struct {
	s   Scheduler
	tl  Timeline
	out []Directive

	// jumped is set when the playhead moved discontinuously in this step.
	jumped bool
}

func (s Scheduler) clone() Scheduler {
	c := s
	c.Audio = append([]Audio(nil), s.Audio...)
	if s.Video.Pending != nil {
		p := *s.Video.Pending
		c.Video.Pending = &p
	}
	return c
}

func (r *reducer) emit(d Directive) {
	r.out = append(r.out, d)
}

func (r *reducer) seek(t float64) {
	if len(r.tl.Clips) == 0 {
		return
	}
	r.s.Playhead = clamp(t, 0, timeline.TotalDuration(r.tl.Clips, 0))
	index, offset := r.locate(r.s.Playhead)
	r.enter(index, offset)
	r.jumped = true
	r.reconcileAudio(nil)
}

// locate wraps timeline.Locate so that a fully unresolved track starts at
// its first segment.
func (r *reducer) locate(t float64) (int, float64) {
	if timeline.TotalDuration(r.tl.Clips, 0) == 0 {
		return 0, 0
	}
	return timeline.Locate(r.tl.Clips, t)
}

// enter makes clip index the active segment, positioned local seconds in.
// A different or not yet ready source is loaded first; the seek waits in a
// pending continuation that replaces any older one.
func (r *reducer) enter(index int, local float64) {
	seg := r.tl.Clips[index]
	v := &r.s.Video
	v.Generation++
	v.Index = index
	v.StartOffset = seg.StartOffset
	v.Pending = nil
	position := seg.StartOffset + local

	if v.Source == seg.Source && v.Ready {
		r.emit(Directive{Slot: VideoSlot, Op: OpSeek, Source: seg.Source, Position: position})
		r.applyIntent()
		return
	}

	v.Source = seg.Source
	v.Ready = false
	v.State = StateSeeking
	v.Pending = &PendingSeek{Source: seg.Source, Generation: v.Generation, Position: position}
	r.emit(Directive{Slot: VideoSlot, Op: OpLoad, Source: seg.Source, Generation: v.Generation})
}

func (r *reducer) applyIntent() {
	v := &r.s.Video
	if r.s.Playing {
		v.State = StatePlaying
		r.emit(Directive{Slot: VideoSlot, Op: OpPlay, Source: v.Source})
		return
	}
	v.State = StatePaused
	r.emit(Directive{Slot: VideoSlot, Op: OpPause, Source: v.Source})
}

func (r *reducer) ready(e MetadataReady) {
	if e.Slot.Track == timeline.KindAudio {
		if e.Slot.Index >= 0 && e.Slot.Index < len(r.s.Audio) && r.s.Audio[e.Slot.Index].Source == e.Source {
			r.s.Audio[e.Slot.Index].Ready = true
			return
		}
		r.s.Dropped++
		return
	}

	v := &r.s.Video
	p := v.Pending
	if v.State != StateSeeking || p == nil || p.Source != e.Source ||
		(e.Generation != 0 && e.Generation != p.Generation) {
		r.s.Dropped++
		return
	}
	if !(e.Duration > 0) || math.IsInf(e.Duration, 1) {
		// Not seekable yet; keep waiting for a usable readiness signal.
		return
	}

	v.Pending = nil
	v.Ready = true
	r.emit(Directive{Slot: VideoSlot, Op: OpSeek, Source: p.Source, Position: p.Position})
	r.applyIntent()
}

func (r *reducer) progress(e Progress) {
	v := &r.s.Video
	if v.State != StatePlaying || v.Index >= len(r.tl.Clips) {
		return
	}
	if e.Source != v.Source {
		r.s.Dropped++
		return
	}

	seg := r.tl.Clips[v.Index]
	local := math.Max(0, e.Time-seg.StartOffset)
	if seg.Resolved() {
		local = math.Min(local, seg.Duration)
	}
	r.s.Playhead = clamp(timeline.GlobalTime(r.tl.Clips, v.Index, local), 0, r.tl.Total())

	if seg.Resolved() && local >= seg.Duration-r.s.Tuning.EndTolerance {
		r.advance()
	}
	r.reconcileAudio(e.Audio)
}

func (r *reducer) ended(e SourceEnded) {
	v := &r.s.Video
	if e.Source != v.Source {
		r.s.Dropped++
		return
	}
	// A pause can race the end of the element; the notification is current
	// but there is nothing to advance.
	if v.State != StatePlaying || v.Index >= len(r.tl.Clips) {
		return
	}
	r.advance()
	r.reconcileAudio(nil)
}

// advance moves to the next clip, or past the last one stops playback and
// rewinds to the first clip.
func (r *reducer) advance() {
	next := r.s.Video.Index + 1
	if next < len(r.tl.Clips) {
		r.s.Playhead = timeline.StartOf(r.tl.Clips, next)
		r.enter(next, 0)
		return
	}

	r.s.Video.State = StateEnded
	r.s.Playing = false
	r.s.Playhead = 0
	r.jumped = true
	r.enter(0, 0)
}

func (r *reducer) setPlaying(playing bool) {
	r.s.Playing = playing
	switch r.s.Video.State {
	case StatePlaying, StatePaused:
		r.applyIntent()
	}
	r.reconcileAudio(nil)
}

func (r *reducer) timelineChanged() {
	v := &r.s.Video
	if len(r.tl.Clips) == 0 {
		if v.State != StateIdle {
			r.emit(Directive{Slot: VideoSlot, Op: OpUnload, Source: v.Source})
		}
		*v = Video{State: StateIdle, Generation: v.Generation + 1}
		r.s.Playhead = clamp(r.s.Playhead, 0, r.tl.Total())
		r.reconcileAudio(nil)
		return
	}

	r.s.Playhead = clamp(r.s.Playhead, 0, timeline.TotalDuration(r.tl.Clips, 0))
	index, offset := r.locate(r.s.Playhead)
	seg := r.tl.Clips[index]
	if v.State == StateIdle || index != v.Index || seg.Source != v.Source || seg.StartOffset != v.StartOffset {
		r.enter(index, offset)
	}
	r.reconcileAudio(nil)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
