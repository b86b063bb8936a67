package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeline-editor/internal/timeline"
)

func vclip(source string, offset, duration float64) timeline.VideoSegment {
	return timeline.VideoSegment{Range: timeline.Range{Source: source, Kind: timeline.KindVideo, StartOffset: offset, Duration: duration}}
}

func track(source string, start, offset, duration float64) timeline.AudioSegment {
	return timeline.AudioSegment{
		Range:     timeline.Range{Source: source, Kind: timeline.KindAudio, StartOffset: offset, Duration: duration},
		StartTime: start,
	}
}

func find(ds []Directive, slot Slot, op Op) (Directive, bool) {
	for _, d := range ds {
		if d.Slot == slot && d.Op == op {
			return d, true
		}
	}
	return Directive{}, false
}

func onSlot(ds []Directive, slot Slot) []Directive {
	var out []Directive
	for _, d := range ds {
		if d.Slot == slot {
			out = append(out, d)
		}
	}
	return out
}

// loaded returns a scheduler whose video element finished loading the first
// clip.
func loaded(t *testing.T, tl Timeline) Scheduler {
	t.Helper()
	s, out := Reduce(New(DefaultTuning()), tl, TimelineChanged{})
	load, ok := find(out, VideoSlot, OpLoad)
	require.True(t, ok)
	s, _ = Reduce(s, tl, MetadataReady{Slot: VideoSlot, Source: load.Source, Generation: load.Generation, Duration: 60})
	require.Equal(t, StatePaused, s.Video.State)
	return s
}

// =============================================================================
// Video track
// =============================================================================

func TestReduce_EmptyTimeline(t *testing.T) {
	s := New(DefaultTuning())

	next, out := Reduce(s, Timeline{Fallback: 60}, Seek{Time: 12})
	assert.Empty(t, out)
	assert.Equal(t, StateIdle, next.Video.State)
	assert.Equal(t, 0.0, next.Playhead)

	next, out = Reduce(s, Timeline{}, TimelineChanged{})
	assert.Empty(t, out)
	assert.Equal(t, StateIdle, next.Video.State)
}

func TestReduce_LoadThenReady(t *testing.T) {
	tl := Timeline{Clips: []timeline.VideoSegment{vclip("a.mp4", 2, 10)}}

	s, out := Reduce(New(DefaultTuning()), tl, TimelineChanged{})
	require.Len(t, out, 1)
	assert.Equal(t, Directive{Slot: VideoSlot, Op: OpLoad, Source: "a.mp4", Generation: 1}, out[0])
	assert.Equal(t, StateSeeking, s.Video.State)
	require.NotNil(t, s.Video.Pending)
	assert.Equal(t, 2.0, s.Video.Pending.Position)

	s, out = Reduce(s, tl, MetadataReady{Slot: VideoSlot, Source: "a.mp4", Generation: 1, Duration: 12})
	require.Len(t, out, 2)
	assert.Equal(t, Directive{Slot: VideoSlot, Op: OpSeek, Source: "a.mp4", Position: 2}, out[0])
	assert.Equal(t, OpPause, out[1].Op)
	assert.Equal(t, StatePaused, s.Video.State)
	assert.True(t, s.Video.Ready)
	assert.Nil(t, s.Video.Pending)
}

func TestReduce_ReadyWithoutDurationKeepsWaiting(t *testing.T) {
	tl := Timeline{Clips: []timeline.VideoSegment{vclip("a.mp4", 0, 10)}}
	s, _ := Reduce(New(DefaultTuning()), tl, TimelineChanged{})

	s, out := Reduce(s, tl, MetadataReady{Slot: VideoSlot, Source: "a.mp4", Duration: 0})
	assert.Empty(t, out)
	assert.Equal(t, StateSeeking, s.Video.State)
	assert.NotNil(t, s.Video.Pending)
}

func TestReduce_StaleReadinessIsDiscarded(t *testing.T) {
	tl := Timeline{Clips: []timeline.VideoSegment{
		vclip("a.mp4", 0, 4),
		vclip("b.mp4", 0, 6),
		vclip("a.mp4", 4, 3),
	}}

	s, _ := Reduce(New(DefaultTuning()), tl, TimelineChanged{})
	s, out := Reduce(s, tl, Seek{Time: 5})
	load, ok := find(out, VideoSlot, OpLoad)
	require.True(t, ok)
	assert.Equal(t, "b.mp4", load.Source)

	s, out = Reduce(s, tl, MetadataReady{Slot: VideoSlot, Source: "a.mp4", Generation: 1, Duration: 20})
	assert.Empty(t, out, "late readiness for a.mp4 must not seek b.mp4")
	assert.Equal(t, StateSeeking, s.Video.State)
	assert.Equal(t, uint64(1), s.Dropped)

	// Back to a.mp4 before b.mp4 became ready: the first load's readiness
	// still belongs to an older generation.
	s, out = Reduce(s, tl, Seek{Time: 11})
	load, ok = find(out, VideoSlot, OpLoad)
	require.True(t, ok)
	assert.Equal(t, "a.mp4", load.Source)

	s, out = Reduce(s, tl, MetadataReady{Slot: VideoSlot, Source: "a.mp4", Generation: 1, Duration: 20})
	assert.Empty(t, out)

	s, out = Reduce(s, tl, MetadataReady{Slot: VideoSlot, Source: "a.mp4", Generation: load.Generation, Duration: 20})
	seek, ok := find(out, VideoSlot, OpSeek)
	require.True(t, ok)
	assert.Equal(t, 5.0, seek.Position)
	assert.Equal(t, 2, s.Video.Index)
}

func TestReduce_AdvanceAcrossSources(t *testing.T) {
	tl := Timeline{Clips: []timeline.VideoSegment{vclip("a.mp4", 0, 4), vclip("b.mp4", 0, 6)}}
	s := loaded(t, tl)

	s, out := Reduce(s, tl, SetPlaying{Playing: true})
	_, ok := find(out, VideoSlot, OpPlay)
	assert.True(t, ok)
	assert.Equal(t, StatePlaying, s.Video.State)

	s, _ = Reduce(s, tl, Progress{Source: "a.mp4", Time: 2})
	assert.Equal(t, 2.0, s.Playhead)

	s, out = Reduce(s, tl, Progress{Source: "a.mp4", Time: 3.98})
	load, ok := find(out, VideoSlot, OpLoad)
	require.True(t, ok)
	assert.Equal(t, "b.mp4", load.Source)
	assert.Equal(t, 1, s.Video.Index)
	assert.Equal(t, 4.0, s.Playhead)
	assert.True(t, s.Playing)

	s, out = Reduce(s, tl, MetadataReady{Slot: VideoSlot, Source: "b.mp4", Generation: load.Generation, Duration: 6})
	_, ok = find(out, VideoSlot, OpPlay)
	assert.True(t, ok, "play intent survives the source switch")
	assert.Equal(t, StatePlaying, s.Video.State)

	s, _ = Reduce(s, tl, Progress{Source: "b.mp4", Time: 3})
	assert.Equal(t, 7.0, s.Playhead)
}

func TestReduce_AdvanceWithinSameSource(t *testing.T) {
	tl := Timeline{Clips: []timeline.VideoSegment{vclip("a.mp4", 0, 4), vclip("a.mp4", 4, 6)}}
	s := loaded(t, tl)
	s, _ = Reduce(s, tl, SetPlaying{Playing: true})

	s, out := Reduce(s, tl, Progress{Source: "a.mp4", Time: 3.99})
	_, reloaded := find(out, VideoSlot, OpLoad)
	assert.False(t, reloaded)
	seek, ok := find(out, VideoSlot, OpSeek)
	require.True(t, ok)
	assert.Equal(t, 4.0, seek.Position)
	assert.Equal(t, StatePlaying, s.Video.State)

	s, _ = Reduce(s, tl, Progress{Source: "a.mp4", Time: 7})
	assert.Equal(t, 7.0, s.Playhead)
}

func TestReduce_EndResetsToStart(t *testing.T) {
	tl := Timeline{Clips: []timeline.VideoSegment{vclip("a.mp4", 0, 4), vclip("b.mp4", 0, 6)}}
	s := loaded(t, tl)
	s, _ = Reduce(s, tl, Seek{Time: 5})
	s, _ = Reduce(s, tl, MetadataReady{Slot: VideoSlot, Source: "b.mp4", Duration: 6})
	s, _ = Reduce(s, tl, SetPlaying{Playing: true})
	require.Equal(t, StatePlaying, s.Video.State)

	s, out := Reduce(s, tl, Progress{Source: "b.mp4", Time: 5.99})
	assert.False(t, s.Playing)
	assert.Equal(t, 0.0, s.Playhead)
	assert.Equal(t, 0, s.Video.Index)
	load, ok := find(out, VideoSlot, OpLoad)
	require.True(t, ok)
	assert.Equal(t, "a.mp4", load.Source)

	s, out = Reduce(s, tl, MetadataReady{Slot: VideoSlot, Source: "a.mp4", Generation: load.Generation, Duration: 4})
	_, ok = find(out, VideoSlot, OpPause)
	assert.True(t, ok)
	assert.Equal(t, StatePaused, s.Video.State)
}

func TestReduce_SourceEndedSafetyNet(t *testing.T) {
	tl := Timeline{Clips: []timeline.VideoSegment{vclip("a.mp4", 0, 4), vclip("b.mp4", 0, 6)}}
	s := loaded(t, tl)
	s, _ = Reduce(s, tl, SetPlaying{Playing: true})

	s, out := Reduce(s, tl, SourceEnded{Source: "a.mp4"})
	_, ok := find(out, VideoSlot, OpLoad)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Video.Index)

	// The tolerance check already moved on; a duplicate signal is ignored.
	_, out = Reduce(s, tl, SourceEnded{Source: "a.mp4"})
	assert.Empty(t, out)
}

func TestReduce_StaleProgressIgnored(t *testing.T) {
	tl := Timeline{Clips: []timeline.VideoSegment{vclip("a.mp4", 0, 4), vclip("b.mp4", 0, 6)}}
	s := loaded(t, tl)
	s, _ = Reduce(s, tl, SetPlaying{Playing: true})
	s, _ = Reduce(s, tl, Progress{Source: "a.mp4", Time: 1})

	next, out := Reduce(s, tl, Progress{Source: "b.mp4", Time: 3})
	assert.Empty(t, out)
	assert.Equal(t, 1.0, next.Playhead)
	assert.Equal(t, s.Dropped+1, next.Dropped)
}

func TestReduce_PauseWhileSeekingAppliesOnReady(t *testing.T) {
	tl := Timeline{Clips: []timeline.VideoSegment{vclip("a.mp4", 0, 4)}}
	s, _ := Reduce(New(DefaultTuning()), tl, TimelineChanged{})

	s, out := Reduce(s, tl, SetPlaying{Playing: true})
	assert.Empty(t, onSlot(out, VideoSlot))
	s, out = Reduce(s, tl, SetPlaying{Playing: false})
	assert.Empty(t, onSlot(out, VideoSlot))
	assert.NotNil(t, s.Video.Pending, "pausing does not cancel the pending load")

	s, out = Reduce(s, tl, MetadataReady{Slot: VideoSlot, Source: "a.mp4", Duration: 4})
	_, ok := find(out, VideoSlot, OpPause)
	assert.True(t, ok)
	assert.Equal(t, StatePaused, s.Video.State)
}

func TestReduce_ToggleAndRejection(t *testing.T) {
	tl := Timeline{Clips: []timeline.VideoSegment{vclip("a.mp4", 0, 4)}}
	s := loaded(t, tl)

	s, _ = Reduce(s, tl, Toggle{})
	assert.True(t, s.Playing)

	next, out := Reduce(s, tl, PlaybackRejected{Slot: VideoSlot})
	assert.Empty(t, out)
	assert.Equal(t, s, next)

	s, _ = Reduce(s, tl, Toggle{})
	assert.False(t, s.Playing)
	assert.Equal(t, StatePaused, s.Video.State)
}

func TestReduce_TimelineChanged(t *testing.T) {
	tl := Timeline{Clips: []timeline.VideoSegment{vclip("a.mp4", 0, 10)}}
	s := loaded(t, tl)
	s, _ = Reduce(s, tl, Seek{Time: 7})

	// Cutting the active clip at the playhead re-enters the second piece at
	// the same source position.
	cut := Timeline{Clips: []timeline.VideoSegment{vclip("a.mp4", 0, 7), vclip("a.mp4", 7, 3)}}
	s, out := Reduce(s, cut, TimelineChanged{})
	seek, ok := find(out, VideoSlot, OpSeek)
	require.True(t, ok)
	assert.Equal(t, 7.0, seek.Position)
	assert.Equal(t, 1, s.Video.Index)

	// Unrelated edits leave the video element alone.
	appended := Timeline{Clips: append(cut.Clips, vclip("b.mp4", 0, 5))}
	s, out = Reduce(s, appended, TimelineChanged{})
	assert.Empty(t, out)

	s, out = Reduce(s, Timeline{Fallback: 60}, TimelineChanged{})
	_, ok = find(out, VideoSlot, OpUnload)
	assert.True(t, ok)
	assert.Equal(t, StateIdle, s.Video.State)
	assert.Equal(t, 7.0, s.Playhead)

	s, _ = Reduce(s, Timeline{}, TimelineChanged{})
	assert.Equal(t, 0.0, s.Playhead)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	tl := Timeline{
		Clips: []timeline.VideoSegment{vclip("a.mp4", 0, 20)},
		Music: []timeline.AudioSegment{track("m.mp3", 5, 0, 10)},
	}
	s := loaded(t, tl)
	before := s.clone()

	_, _ = Reduce(s, tl, Seek{Time: 8})
	assert.Equal(t, before, s)
}

// =============================================================================
// Audio reconciliation
// =============================================================================

func TestReduce_AudioWindow(t *testing.T) {
	tl := Timeline{
		Clips: []timeline.VideoSegment{vclip("v.mp4", 0, 20)},
		Music: []timeline.AudioSegment{track("m.mp3", 5, 0, 10)},
	}
	slot := AudioSlot(0)

	s, out := Reduce(New(DefaultTuning()), tl, TimelineChanged{})
	load, ok := find(out, slot, OpLoad)
	require.True(t, ok)
	assert.Equal(t, "m.mp3", load.Source)

	s, _ = Reduce(s, tl, MetadataReady{Slot: VideoSlot, Source: "v.mp4", Duration: 20})
	s, _ = Reduce(s, tl, MetadataReady{Slot: slot, Source: "m.mp3", Duration: 30})
	assert.True(t, s.Audio[0].Ready)
	s, _ = Reduce(s, tl, SetPlaying{Playing: true})

	s, out = Reduce(s, tl, Seek{Time: 3})
	assert.Empty(t, onSlot(out, slot))
	assert.False(t, s.Audio[0].Playing)
	assert.True(t, s.Audio[0].Parked)
	assert.Equal(t, 0.0, s.Audio[0].Position)

	s, out = Reduce(s, tl, Seek{Time: 8})
	seek, ok := find(out, slot, OpSeek)
	require.True(t, ok)
	assert.InDelta(t, 3.0, seek.Position, 0.25)
	_, ok = find(out, slot, OpPlay)
	assert.True(t, ok)
	assert.True(t, s.Audio[0].Playing)

	s, out = Reduce(s, tl, Seek{Time: 16})
	_, ok = find(out, slot, OpPause)
	assert.True(t, ok)
	_, ok = find(out, slot, OpSeek)
	assert.False(t, ok, "past the window the position is left alone")
	assert.False(t, s.Audio[0].Playing)
	assert.InDelta(t, 3.0, s.Audio[0].Position, 1e-9)
}

func TestReduce_AudioDriftTolerance(t *testing.T) {
	tl := Timeline{
		Clips: []timeline.VideoSegment{vclip("v.mp4", 0, 20)},
		Music: []timeline.AudioSegment{track("m.mp3", 5, 0, 10)},
	}
	slot := AudioSlot(0)
	s := loaded(t, tl)
	s, _ = Reduce(s, tl, SetPlaying{Playing: true})
	s, _ = Reduce(s, tl, Seek{Time: 8})

	s, out := Reduce(s, tl, Progress{Source: "v.mp4", Time: 8.5, Audio: map[int]float64{0: 3.6}})
	_, ok := find(out, slot, OpSeek)
	assert.False(t, ok, "small drift is tolerated")
	assert.Equal(t, 8.5, s.Playhead)

	s, out = Reduce(s, tl, Progress{Source: "v.mp4", Time: 9})
	assert.Empty(t, onSlot(out, slot))

	_, out = Reduce(s, tl, Progress{Source: "v.mp4", Time: 9.5, Audio: map[int]float64{0: 5.2}})
	seek, ok := find(out, slot, OpSeek)
	require.True(t, ok)
	assert.InDelta(t, 4.5, seek.Position, 1e-9)
}

func TestReduce_AudioStartsWhenReached(t *testing.T) {
	tl := Timeline{
		Clips: []timeline.VideoSegment{vclip("v.mp4", 0, 20)},
		Music: []timeline.AudioSegment{track("m.mp3", 5, 2, 10)},
	}
	slot := AudioSlot(0)
	s := loaded(t, tl)
	s, _ = Reduce(s, tl, SetPlaying{Playing: true})

	s, _ = Reduce(s, tl, Progress{Source: "v.mp4", Time: 4.9})
	assert.False(t, s.Audio[0].Playing)
	assert.Equal(t, 2.0, s.Audio[0].Position)

	s, out := Reduce(s, tl, Progress{Source: "v.mp4", Time: 5.1})
	_, ok := find(out, slot, OpPlay)
	assert.True(t, ok)
	_, ok = find(out, slot, OpSeek)
	assert.False(t, ok, "parked position is close enough to start cleanly")
	assert.True(t, s.Audio[0].Playing)
}

func TestReduce_AudioSlotsFollowTrack(t *testing.T) {
	tl := Timeline{
		Clips: []timeline.VideoSegment{vclip("v.mp4", 0, 20)},
		Music: []timeline.AudioSegment{track("m.mp3", 0, 0, 10), track("n.mp3", 2, 0, 4)},
	}
	s := loaded(t, tl)
	require.Len(t, s.Audio, 2)

	shrunk := Timeline{Clips: tl.Clips, Music: tl.Music[1:]}
	s, out := Reduce(s, shrunk, TimelineChanged{})
	require.Len(t, s.Audio, 1)
	_, ok := find(out, AudioSlot(1), OpUnload)
	assert.True(t, ok)
	load, ok := find(out, AudioSlot(0), OpLoad)
	require.True(t, ok)
	assert.Equal(t, "n.mp3", load.Source)
}

func TestReduce_AudioSlotRebindsSameSource(t *testing.T) {
	tl := Timeline{
		Clips: []timeline.VideoSegment{vclip("v.mp4", 0, 20)},
		Music: []timeline.AudioSegment{track("m.mp3", 0, 0, 10), track("m.mp3", 3, 0, 10)},
	}
	s := loaded(t, tl)
	s, _ = Reduce(s, tl, SetPlaying{Playing: true})
	s, _ = Reduce(s, tl, Progress{Source: "v.mp4", Time: 5.1})
	require.True(t, s.Audio[0].Playing)
	assert.InDelta(t, 5.1, s.Audio[0].Position, 1e-9)

	// Deleting the first placement shifts the second one into slot 0. The
	// element keeps its source, so nothing reloads, but its position belongs
	// to the deleted segment.
	shifted := Timeline{Clips: tl.Clips, Music: tl.Music[1:]}
	s, out := Reduce(s, shifted, TimelineChanged{})
	require.Len(t, s.Audio, 1)
	_, ok := find(out, AudioSlot(1), OpUnload)
	assert.True(t, ok)
	_, ok = find(out, AudioSlot(0), OpLoad)
	assert.False(t, ok)
	seek, ok := find(out, AudioSlot(0), OpSeek)
	require.True(t, ok)
	assert.InDelta(t, 2.1, seek.Position, 1e-9)
	assert.False(t, s.Audio[0].Rebound)
	assert.Equal(t, 3.0, s.Audio[0].Start)

	// Once rebound the slot is tracked as usual.
	s, out = Reduce(s, shifted, Progress{Source: "v.mp4", Time: 5.2})
	assert.Empty(t, onSlot(out, AudioSlot(0)))
	assert.InDelta(t, 2.2, s.Audio[0].Position, 1e-9)
}

func TestReduce_AudioSlotRebindBeforeWindowParks(t *testing.T) {
	tl := Timeline{
		Clips: []timeline.VideoSegment{vclip("v.mp4", 0, 20)},
		Music: []timeline.AudioSegment{track("m.mp3", 0, 0, 10), track("m.mp3", 8, 2, 5)},
	}
	s := loaded(t, tl)
	s, _ = Reduce(s, tl, SetPlaying{Playing: true})
	s, _ = Reduce(s, tl, Progress{Source: "v.mp4", Time: 4})
	require.True(t, s.Audio[0].Playing)

	s, out := Reduce(s, Timeline{Clips: tl.Clips, Music: tl.Music[1:]}, TimelineChanged{})
	_, ok := find(out, AudioSlot(0), OpPause)
	assert.True(t, ok, "the element was playing the deleted segment")
	seek, ok := find(out, AudioSlot(0), OpSeek)
	require.True(t, ok)
	assert.Equal(t, 2.0, seek.Position)
	assert.True(t, s.Audio[0].Parked)
}

func TestReduce_SourceEndedWhilePaused(t *testing.T) {
	tl := Timeline{Clips: []timeline.VideoSegment{vclip("a.mp4", 0, 4), vclip("b.mp4", 0, 6)}}
	s := loaded(t, tl)

	next, out := Reduce(s, tl, SourceEnded{Source: "a.mp4"})
	assert.Empty(t, out)
	assert.Equal(t, s.Dropped, next.Dropped, "a current notification is not stale")
	assert.Equal(t, 0, next.Video.Index)

	next, _ = Reduce(s, tl, SourceEnded{Source: "b.mp4"})
	assert.Equal(t, s.Dropped+1, next.Dropped)
}

func TestReduce_UnresolvedAudioStaysQuiet(t *testing.T) {
	tl := Timeline{
		Clips: []timeline.VideoSegment{vclip("v.mp4", 0, 20)},
		Music: []timeline.AudioSegment{track("m.mp3", 0, 0, 0)},
	}
	s := loaded(t, tl)
	s, out := Reduce(s, tl, SetPlaying{Playing: true})
	assert.Empty(t, onSlot(out, AudioSlot(0)))
	assert.False(t, s.Audio[0].Playing)
}
