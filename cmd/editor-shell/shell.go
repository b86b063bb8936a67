package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"

	"timeline-editor/internal/playback"
	"timeline-editor/internal/session"
	"timeline-editor/internal/timeline"
	"timeline-editor/internal/validation"
)

type prober interface {
	Duration(ctx context.Context, location string) (float64, error)
}

// Shell drives one editing session from typed commands, standing in for the
// browser: it prints the directives a host would execute and lets the user
// play the host's part with ready, tick and ended.
type Shell struct {
	state    session.State
	path     string
	out      io.Writer
	prober   prober
	fallback float64
	tuning   playback.Tuning
}

func NewShell(path string, out io.Writer, p prober, fallback float64, tuning playback.Tuning) *Shell {
	return &Shell{
		state:    session.New(fallback, tuning),
		path:     path,
		out:      out,
		prober:   p,
		fallback: fallback,
		tuning:   tuning,
	}
}

func (sh *Shell) completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("import"),
		readline.PcItem("place",
			readline.PcItem("video"),
			readline.PcItem("audio"),
		),
		readline.PcItem("select",
			readline.PcItem("clip"),
			readline.PcItem("music"),
		),
		readline.PcItem("deselect"),
		readline.PcItem("cut"),
		readline.PcItem("delete"),
		readline.PcItem("seek"),
		readline.PcItem("play"),
		readline.PcItem("pause"),
		readline.PcItem("toggle"),
		readline.PcItem("ready"),
		readline.PcItem("tick"),
		readline.PcItem("ended"),
		readline.PcItem("status"),
		readline.PcItem("load"),
		readline.PcItem("save"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func (sh *Shell) printHelp() {
	fmt.Fprintf(sh.out, "Commands:\n")
	fmt.Fprintf(sh.out, "  import <path> [seconds]   Add a file to the media pool (audio lands on the music track)\n")
	fmt.Fprintf(sh.out, "  place <n> [video|audio]   Place media pool entry n on a track\n")
	fmt.Fprintf(sh.out, "  select <clip|music> <n>   Select a segment\n")
	fmt.Fprintf(sh.out, "  deselect                  Clear the selection\n")
	fmt.Fprintf(sh.out, "  cut                       Cut the selected segment at the playhead\n")
	fmt.Fprintf(sh.out, "  delete                    Delete the selected segment\n")
	fmt.Fprintf(sh.out, "  seek <seconds>            Move the playhead\n")
	fmt.Fprintf(sh.out, "  play | pause | toggle     Change the play intent\n")
	fmt.Fprintf(sh.out, "  ready [seconds]           Report the pending video source as loaded\n")
	fmt.Fprintf(sh.out, "  tick <seconds>            Report the video element's media time\n")
	fmt.Fprintf(sh.out, "  ended                     Report the end of the current video source\n")
	fmt.Fprintf(sh.out, "  status                    Show tracks, selection and playback\n")
	fmt.Fprintf(sh.out, "  load [file] | save [file] Read or write the timeline payload\n")
	fmt.Fprintf(sh.out, "  help | exit\n\n")
}

// Run reads commands until exit or interrupt.
func (sh *Shell) Run(historyFile string) error {
	sh.printHelp()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "editor> ",
		HistoryFile:  historyFile,
		AutoComplete: sh.completer(),
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	for {
		input, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		more, err := sh.Exec(input)
		if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
		if !more {
			return nil
		}
	}
}

// Exec runs one command line. It reports false when the shell should stop.
func (sh *Shell) Exec(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true, nil
	}
	args := fields[1:]

	var cmd session.Command
	switch fields[0] {
	case "exit", "quit":
		return false, nil
	case "help":
		sh.printHelp()
		return true, nil
	case "status":
		sh.printStatus()
		return true, nil
	case "save":
		return true, sh.save(pathArg(args, sh.path))
	case "load":
		return true, sh.load(pathArg(args, sh.path))
	case "import":
		c, err := sh.importFile(args)
		if err != nil {
			return true, err
		}
		cmd = c
	case "place":
		n, err := intArg(args, 0)
		if err != nil {
			return true, err
		}
		place := session.Place{Media: n}
		if len(args) > 1 {
			place.Track = timeline.Kind(args[1])
		}
		cmd = place
	case "select":
		if len(args) < 2 {
			return true, errors.New("usage: select <clip|music> <n>")
		}
		n, err := intArg(args, 1)
		if err != nil {
			return true, err
		}
		if args[0] == "music" {
			cmd = session.SelectMusic{Index: n}
		} else {
			cmd = session.SelectClip{Index: n}
		}
	case "deselect":
		cmd = session.Deselect{}
	case "cut":
		cmd = session.Cut{}
	case "delete":
		cmd = session.DeleteSelected{}
	case "seek":
		t, err := floatArg(args, 0)
		if err != nil {
			return true, err
		}
		cmd = session.Playback{Event: playback.Seek{Time: t}}
	case "play":
		cmd = session.Playback{Event: playback.SetPlaying{Playing: true}}
	case "pause":
		cmd = session.Playback{Event: playback.SetPlaying{Playing: false}}
	case "toggle":
		cmd = session.Playback{Event: playback.Toggle{}}
	case "ready":
		c, err := sh.ready(args)
		if err != nil {
			return true, err
		}
		cmd = c
	case "tick":
		t, err := floatArg(args, 0)
		if err != nil {
			return true, err
		}
		cmd = session.Playback{Event: playback.Progress{Source: sh.state.Playback.Video.Source, Time: t}}
	case "ended":
		cmd = session.Playback{Event: playback.SourceEnded{Source: sh.state.Playback.Video.Source}}
	default:
		return true, fmt.Errorf("unknown command %q, try help", fields[0])
	}

	sh.apply(cmd)
	return true, nil
}

func (sh *Shell) apply(cmd session.Command) {
	var out []playback.Directive
	sh.state, out = session.Apply(sh.state, cmd)
	for _, d := range out {
		sh.printDirective(d)
	}
	fmt.Fprintf(sh.out, "playhead %.3fs / %.3fs  %s\n", sh.state.Playhead(), sh.state.Total(), sh.state.Playback.Video.State)
}

func (sh *Shell) importFile(args []string) (session.Command, error) {
	if len(args) == 0 {
		return nil, errors.New("usage: import <path> [seconds]")
	}
	path := args[0]
	mediaType := validation.GuessContentType(path)
	if !validation.AllowedMimeTypes[mediaType] {
		return nil, validation.ErrInvalidFileType
	}

	var duration float64
	if len(args) > 1 {
		d, err := floatArg(args, 1)
		if err != nil {
			return nil, err
		}
		duration = d
	} else if sh.prober != nil {
		d, err := sh.prober.Duration(context.Background(), path)
		if err != nil {
			fmt.Fprintf(sh.out, "probe failed, duration stays unknown: %v\n", err)
		}
		duration = d
	}

	if info, err := os.Stat(path); err == nil {
		fmt.Fprintf(sh.out, "importing %s (%s)\n", filepath.Base(path), humanize.Bytes(uint64(info.Size())))
	}
	return session.Upload{Files: []session.File{{
		Name:      filepath.Base(path),
		Source:    path,
		MediaType: mediaType,
		Duration:  duration,
	}}}, nil
}

// ready answers the pending video load. Without an explicit duration the
// source duration recorded in the media pool is used.
func (sh *Shell) ready(args []string) (session.Command, error) {
	pending := sh.state.Playback.Video.Pending
	if pending == nil {
		return nil, errors.New("no video source is loading")
	}
	duration := sh.knownDuration(pending.Source)
	if len(args) > 0 {
		d, err := floatArg(args, 0)
		if err != nil {
			return nil, err
		}
		duration = d
	}
	if duration <= 0 {
		return nil, fmt.Errorf("duration of %s unknown, pass it: ready <seconds>", pending.Source)
	}
	return session.MetadataLoaded{
		Slot:       playback.VideoSlot,
		Source:     pending.Source,
		Generation: pending.Generation,
		Duration:   duration,
	}, nil
}

func (sh *Shell) knownDuration(source string) float64 {
	for _, m := range sh.state.Media {
		if m.Source == source && m.Probed() {
			return m.SourceDuration
		}
	}
	for _, c := range sh.state.Clips {
		if c.Source == source && c.SourceDuration > 0 {
			return c.SourceDuration
		}
	}
	return 0
}

func (sh *Shell) printDirective(d playback.Directive) {
	slot := "video"
	if d.Slot.Track == timeline.KindAudio {
		slot = fmt.Sprintf("audio[%d]", d.Slot.Index)
	}
	switch d.Op {
	case playback.OpLoad:
		fmt.Fprintf(sh.out, "  %-9s load   %s (gen %d)\n", slot, d.Source, d.Generation)
	case playback.OpSeek:
		fmt.Fprintf(sh.out, "  %-9s seek   %s @ %.3fs\n", slot, d.Source, d.Position)
	default:
		fmt.Fprintf(sh.out, "  %-9s %-6s %s\n", slot, d.Op, d.Source)
	}
}

func (sh *Shell) printStatus() {
	st := sh.state
	fmt.Fprintf(sh.out, "Media pool:\n")
	for i, m := range st.Media {
		fmt.Fprintf(sh.out, "  %d  %-5s %s  %s\n", i, m.Kind, m.Name, seconds(m.SourceDuration))
	}
	fmt.Fprintf(sh.out, "Clips:\n")
	for i, c := range st.Clips {
		mark := " "
		if st.Selection.Clip == i {
			mark = "*"
		}
		fmt.Fprintf(sh.out, " %s%d  %s  at %.3fs  [%.3f +%s]\n",
			mark, i, c.Name, timeline.StartOf(st.Clips, i), c.StartOffset, seconds(c.Duration))
	}
	fmt.Fprintf(sh.out, "Music:\n")
	for i, a := range st.Music {
		mark := " "
		if st.Selection.Music == i {
			mark = "*"
		}
		fmt.Fprintf(sh.out, " %s%d  %s  at %.3fs  [%.3f +%s]\n",
			mark, i, a.Name, a.StartTime, a.StartOffset, seconds(a.Duration))
	}
	pb := st.Playback
	fmt.Fprintf(sh.out, "Playback: %s, playing=%v, playhead %.3fs of %.3fs, dropped %d\n",
		pb.Video.State, pb.Playing, pb.Playhead, st.Total(), pb.Dropped)
}

func (sh *Shell) save(path string) error {
	raw, err := json.MarshalIndent(sh.state.Payload(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "saved %s\n", path)
	return nil
}

func (sh *Shell) load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := validation.ValidatePayload(raw); err != nil {
		return err
	}
	var p session.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}

	var out []playback.Directive
	sh.state, out = session.Load(p, sh.fallback, sh.tuning)
	fmt.Fprintf(sh.out, "loaded %s: %d clips, %d music segments\n", path, len(sh.state.Clips), len(sh.state.Music))
	for _, d := range out {
		sh.printDirective(d)
	}
	return nil
}

func seconds(v float64) string {
	if v <= 0 {
		return "?"
	}
	return strconv.FormatFloat(v, 'f', 3, 64) + "s"
}

func pathArg(args []string, def string) string {
	if len(args) > 0 {
		return args[0]
	}
	return def
}

func intArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, errors.New("missing index")
	}
	return strconv.Atoi(args[i])
}

func floatArg(args []string, i int) (float64, error) {
	if len(args) <= i {
		return 0, errors.New("missing seconds")
	}
	return strconv.ParseFloat(args[i], 64)
}
