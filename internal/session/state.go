// Package session is the single authoritative state of one editing session.
// Every user gesture and media notification is a Command applied by Apply,
// one at a time, so the ordering of edits and playback ticks is explicit.
package session

import (
	"slices"

	"timeline-editor/internal/playback"
	"timeline-editor/internal/timeline"
)

// Selection holds at most one selected clip or music segment; -1 is none.
type Selection struct {
	Clip  int `json:"clip"`
	Music int `json:"music"`
}

func NoSelection() Selection {
	return Selection{Clip: -1, Music: -1}
}

func (s Selection) Empty() bool {
	return s.Clip < 0 && s.Music < 0
}

type State struct {
	Media     []timeline.MediaSource  `json:"media"`
	Clips     []timeline.VideoSegment `json:"clips"`
	Music     []timeline.AudioSegment `json:"music"`
	Selection Selection               `json:"selection"`

	// Fallback is the timeline length shown while no clip is resolved.
	Fallback float64 `json:"fallback"`

	Playback playback.Scheduler `json:"playback"`
}

func New(fallback float64, tuning playback.Tuning) State {
	return State{
		Selection: NoSelection(),
		Fallback:  fallback,
		Playback:  playback.New(tuning),
	}
}

func (s State) Timeline() playback.Timeline {
	return playback.Timeline{Clips: s.Clips, Music: s.Music, Fallback: s.Fallback}
}

func (s State) Total() float64 {
	return s.Timeline().Total()
}

func (s State) Playhead() float64 {
	return s.Playback.Playhead
}

// Apply runs one command and returns the next state plus the directives for
// the host's media elements. s itself is never modified.
func Apply(s State, c Command) (State, []playback.Directive) {
	switch c := c.(type) {
	case Upload:
		return s.upload(c)
	case Place:
		return s.place(c)
	case SelectClip:
		if c.Index >= 0 && c.Index < len(s.Clips) {
			s.Selection = Selection{Clip: c.Index, Music: -1}
		}
		return s, nil
	case SelectMusic:
		if c.Index >= 0 && c.Index < len(s.Music) {
			s.Selection = Selection{Clip: -1, Music: c.Index}
		}
		return s, nil
	case Deselect:
		s.Selection = NoSelection()
		return s, nil
	case Cut:
		return s.cut()
	case DeleteSelected:
		return s.deleteSelected()
	case MetadataLoaded:
		return s.metadataLoaded(c)
	case Playback:
		return s.dispatch(c.Event)
	}
	return s, nil
}

// dispatch feeds one event to the scheduler.
func (s State) dispatch(ev playback.Event) (State, []playback.Directive) {
	next, out := playback.Reduce(s.Playback, s.Timeline(), ev)
	s.Playback = next
	return s, out
}

func (s State) edited() (State, []playback.Directive) {
	return s.dispatch(playback.TimelineChanged{})
}

func (s State) upload(c Upload) (State, []playback.Directive) {
	if len(c.Files) == 0 {
		return s, nil
	}

	s.Media = slices.Clone(s.Media)
	var placed bool
	for _, f := range c.Files {
		m := timeline.NewMediaSource(f.Name, f.Source, timeline.KindFromMediaType(f.MediaType))
		m = m.Resolve(f.Duration)
		s.Media = append(s.Media, m)

		// Audio goes straight onto the music track at the playhead.
		if m.Kind == timeline.KindAudio {
			if !placed {
				s.Music = slices.Clone(s.Music)
				placed = true
			}
			s.Music = append(s.Music, timeline.AudioSegment{Range: timeline.RangeOf(m), StartTime: s.Playhead()})
		}
	}
	if !placed {
		return s, nil
	}
	return s.edited()
}

func (s State) place(c Place) (State, []playback.Directive) {
	if c.Media < 0 || c.Media >= len(s.Media) {
		return s, nil
	}
	m := s.Media[c.Media]
	track := c.Track
	if track == "" {
		track = m.Kind
	}
	if track != m.Kind {
		return s, nil
	}

	switch m.Kind {
	case timeline.KindVideo:
		s.Clips = append(slices.Clone(s.Clips), timeline.VideoSegment{Range: timeline.RangeOf(m)})
	case timeline.KindAudio:
		s.Music = append(slices.Clone(s.Music), timeline.AudioSegment{Range: timeline.RangeOf(m), StartTime: s.Playhead()})
	default:
		return s, nil
	}
	return s.edited()
}

// cut splits the selected segment at the playhead. Clips are cut by their
// position on the contiguous track, music segments by their own start time.
func (s State) cut() (State, []playback.Directive) {
	t := s.Playhead()
	switch {
	case s.Selection.Clip >= 0:
		clips, sel, ok := timeline.Cut(s.Clips, s.Selection.Clip, t)
		if !ok {
			return s, nil
		}
		s.Clips = clips
		s.Selection = Selection{Clip: sel, Music: -1}
	case s.Selection.Music >= 0:
		music, sel, ok := timeline.CutAudio(s.Music, s.Selection.Music, t)
		if !ok {
			return s, nil
		}
		s.Music = music
		s.Selection = Selection{Clip: -1, Music: sel}
	default:
		return s, nil
	}
	return s.edited()
}

func (s State) deleteSelected() (State, []playback.Directive) {
	sel := s.Selection
	s.Selection = NoSelection()
	switch {
	case sel.Clip >= 0 && sel.Clip < len(s.Clips):
		s.Clips = slices.Delete(slices.Clone(s.Clips), sel.Clip, sel.Clip+1)
	case sel.Music >= 0 && sel.Music < len(s.Music):
		s.Music = slices.Delete(slices.Clone(s.Music), sel.Music, sel.Music+1)
	default:
		return s, nil
	}
	return s.edited()
}

// metadataLoaded records a probed duration on the pool entry and every
// segment cut from that source, then lets the scheduler flush a pending seek.
func (s State) metadataLoaded(c MetadataLoaded) (State, []playback.Directive) {
	s.Media = slices.Clone(s.Media)
	for i, m := range s.Media {
		if m.Source == c.Source {
			s.Media[i] = m.Resolve(c.Duration)
		}
	}
	s.Clips = slices.Clone(s.Clips)
	for i, v := range s.Clips {
		if v.Source == c.Source {
			s.Clips[i].Range = timeline.ResolveMetadata(v.Range, c.Duration)
		}
	}
	s.Music = slices.Clone(s.Music)
	for i, a := range s.Music {
		if a.Source == c.Source {
			s.Music[i].Range = timeline.ResolveMetadata(a.Range, c.Duration)
		}
	}

	s, out := s.dispatch(playback.MetadataReady{
		Slot:       c.Slot,
		Source:     c.Source,
		Generation: c.Generation,
		Duration:   c.Duration,
	})
	s, more := s.edited()
	return s, append(out, more...)
}
