package playback

import "timeline-editor/internal/timeline"

// Event is a notification from the host or a user gesture. Events are
// applied one at a time by Reduce.
type Event interface {
	isEvent()
}

// Seek moves the playhead to a global time (user scrub).
type Seek struct {
	Time float64 `json:"time"`
}

// MetadataReady reports that a media element finished loading Source.
// Generation echoes the value carried by the load directive; zero skips the
// generation check.
type MetadataReady struct {
	Slot       Slot    `json:"slot"`
	Source     string  `json:"source"`
	Generation uint64  `json:"generation,omitempty"`
	Duration   float64 `json:"duration"`
}

// Progress is a playback tick from the video element. Audio optionally
// carries the measured positions of audio slots keyed by slot index.
type Progress struct {
	Source string          `json:"source"`
	Time   float64         `json:"time"`
	Audio  map[int]float64 `json:"audio,omitempty"`
}

// SourceEnded is the media layer's hard end-of-source signal.
type SourceEnded struct {
	Source string `json:"source"`
}

type SetPlaying struct {
	Playing bool `json:"playing"`
}

type Toggle struct{}

// PlaybackRejected is sent when the host refused to start playback, for
// example because of an autoplay policy.
type PlaybackRejected struct {
	Slot Slot `json:"slot"`
}

// TimelineChanged must follow every edit of the clip or music lists.
type TimelineChanged struct{}

func (Seek) isEvent()             {}
func (MetadataReady) isEvent()    {}
func (Progress) isEvent()         {}
func (SourceEnded) isEvent()      {}
func (SetPlaying) isEvent()       {}
func (Toggle) isEvent()           {}
func (PlaybackRejected) isEvent() {}
func (TimelineChanged) isEvent()  {}

// Slot names a mounted media element: the single video element or one of
// the audio elements, indexed like the music track.
type Slot struct {
	Track timeline.Kind `json:"track"`
	Index int           `json:"index"`
}

var VideoSlot = Slot{Track: timeline.KindVideo}

func AudioSlot(i int) Slot {
	return Slot{Track: timeline.KindAudio, Index: i}
}

type Op string

const (
	OpLoad   Op = "load"
	OpSeek   Op = "seek"
	OpPlay   Op = "play"
	OpPause  Op = "pause"
	OpUnload Op = "unload"
)

// Directive tells the host what to do with one media element.
type Directive struct {
	Slot       Slot    `json:"slot"`
	Op         Op      `json:"op"`
	Source     string  `json:"source,omitempty"`
	Position   float64 `json:"position,omitempty"`
	Generation uint64  `json:"generation,omitempty"`
}
