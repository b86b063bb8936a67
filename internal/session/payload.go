package session

import (
	"math"

	"timeline-editor/internal/playback"
	"timeline-editor/internal/timeline"
)

// Item is the persisted shape shared by media files, clips and music tracks.
// The project store keeps it verbatim.
type Item struct {
	Name           string        `json:"name"`
	Source         string        `json:"source"`
	Duration       float64       `json:"duration"`
	SourceDuration float64       `json:"sourceDuration"`
	Type           timeline.Kind `json:"type"`
	StartOffset    float64       `json:"startOffset"`
	StartTime      float64       `json:"startTime"`
}

type Payload struct {
	MediaFiles  []Item `json:"media_files"`
	Clips       []Item `json:"clips"`
	MusicTracks []Item `json:"music_tracks"`
}

// Payload flattens the session into its persisted form.
func (s State) Payload() Payload {
	p := Payload{
		MediaFiles:  make([]Item, 0, len(s.Media)),
		Clips:       make([]Item, 0, len(s.Clips)),
		MusicTracks: make([]Item, 0, len(s.Music)),
	}
	for _, m := range s.Media {
		p.MediaFiles = append(p.MediaFiles, Item{
			Name:           m.Name,
			Source:         m.Source,
			SourceDuration: m.SourceDuration,
			Type:           m.Kind,
		})
	}
	for _, c := range s.Clips {
		p.Clips = append(p.Clips, itemOf(c.Range, 0))
	}
	for _, a := range s.Music {
		p.MusicTracks = append(p.MusicTracks, itemOf(a.Range, a.StartTime))
	}
	return p
}

// Load rebuilds a session from a persisted payload and positions the
// playhead at the start of the timeline.
func Load(p Payload, fallback float64, tuning playback.Tuning) (State, []playback.Directive) {
	s := New(fallback, tuning)
	for _, it := range p.MediaFiles {
		kind := it.Type
		if !kind.Valid() {
			kind = timeline.KindVideo
		}
		m := timeline.NewMediaSource(it.Name, it.Source, kind)
		s.Media = append(s.Media, m.Resolve(sanitize(it.SourceDuration)))
	}
	for _, it := range p.Clips {
		s.Clips = append(s.Clips, timeline.VideoSegment{Range: s.rangeOf(it, timeline.KindVideo)})
	}
	for _, it := range p.MusicTracks {
		s.Music = append(s.Music, timeline.AudioSegment{
			Range:     s.rangeOf(it, timeline.KindAudio),
			StartTime: sanitize(it.StartTime),
		})
	}
	return s.edited()
}

// rangeOf restores a segment. A source duration the pool already knows wins
// over a missing one in the item.
func (s State) rangeOf(it Item, kind timeline.Kind) timeline.Range {
	r := timeline.Range{
		Name:           it.Name,
		Source:         it.Source,
		Kind:           kind,
		SourceDuration: sanitize(it.SourceDuration),
		StartOffset:    sanitize(it.StartOffset),
		Duration:       sanitize(it.Duration),
	}
	for _, m := range s.Media {
		if m.Source == it.Source && m.Probed() {
			r = timeline.ResolveMetadata(r, m.SourceDuration)
			break
		}
	}
	return r
}

func itemOf(r timeline.Range, startTime float64) Item {
	return Item{
		Name:           r.Name,
		Source:         r.Source,
		Duration:       r.Duration,
		SourceDuration: r.SourceDuration,
		Type:           r.Kind,
		StartOffset:    r.StartOffset,
		StartTime:      startTime,
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
