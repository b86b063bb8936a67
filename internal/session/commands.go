package session

import (
	"timeline-editor/internal/playback"
	"timeline-editor/internal/timeline"
)

type Command interface {
	isCommand()
}

// File is an uploaded file as handed over by the upload collaborator.
// Duration is set when the source was already probed server side.
type File struct {
	Name      string  `json:"name"`
	Source    string  `json:"source"`
	MediaType string  `json:"mediaType"`
	Duration  float64 `json:"sourceDuration,omitempty"`
}

type Upload struct {
	Files []File `json:"files"`
}

// Place drops media pool entry Media on a track. An empty Track uses the
// media kind.
type Place struct {
	Media int           `json:"media"`
	Track timeline.Kind `json:"track,omitempty"`
}

type SelectClip struct {
	Index int `json:"index"`
}

type SelectMusic struct {
	Index int `json:"index"`
}

type Deselect struct{}

// Cut splits the selected segment at the playhead.
type Cut struct{}

type DeleteSelected struct{}

// MetadataLoaded reports a media element's readiness together with the
// duration it probed for Source.
type MetadataLoaded struct {
	Slot       playback.Slot `json:"slot"`
	Source     string        `json:"source"`
	Generation uint64        `json:"generation,omitempty"`
	Duration   float64       `json:"duration"`
}

// Playback forwards a playback event (seek, play/pause, ticks) unchanged.
type Playback struct {
	Event playback.Event
}

func (Upload) isCommand()         {}
func (Place) isCommand()          {}
func (SelectClip) isCommand()     {}
func (SelectMusic) isCommand()    {}
func (Deselect) isCommand()       {}
func (Cut) isCommand()            {}
func (DeleteSelected) isCommand() {}
func (MetadataLoaded) isCommand() {}
func (Playback) isCommand()       {}
