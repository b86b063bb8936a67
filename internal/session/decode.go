package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"timeline-editor/internal/playback"
)

var ErrUnknownCommand = errors.New("unknown command type")

// DecodeCommand reads the wire form of a command: a JSON object whose "type"
// names the command, with the command's own fields alongside it. Playback
// events are accepted directly by their own type names.
func DecodeCommand(raw []byte) (Command, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	var target any
	switch envelope.Type {
	case "upload":
		target = &Upload{}
	case "place":
		target = &Place{}
	case "select_clip":
		target = &SelectClip{}
	case "select_music":
		target = &SelectMusic{}
	case "deselect":
		return Deselect{}, nil
	case "cut":
		return Cut{}, nil
	case "delete_selected":
		return DeleteSelected{}, nil
	case "metadata_loaded":
		target = &MetadataLoaded{}
	case "seek":
		target = &playback.Seek{}
	case "progress":
		target = &playback.Progress{}
	case "source_ended":
		target = &playback.SourceEnded{}
	case "set_playing":
		target = &playback.SetPlaying{}
	case "toggle":
		return Playback{Event: playback.Toggle{}}, nil
	case "playback_rejected":
		target = &playback.PlaybackRejected{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, envelope.Type)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
	}

	switch c := target.(type) {
	case *Upload:
		return *c, nil
	case *Place:
		return *c, nil
	case *SelectClip:
		return *c, nil
	case *SelectMusic:
		return *c, nil
	case *MetadataLoaded:
		return *c, nil
	case *playback.Seek:
		return Playback{Event: *c}, nil
	case *playback.Progress:
		return Playback{Event: *c}, nil
	case *playback.SourceEnded:
		return Playback{Event: *c}, nil
	case *playback.SetPlaying:
		return Playback{Event: *c}, nil
	case *playback.PlaybackRejected:
		return Playback{Event: *c}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, envelope.Type)
}
