package playback

import "math"

// bindAudio keeps one audio slot per music segment. A slot whose segment now
// points at another source is redirected instead of replaced. A slot that keeps
// its source but now serves a different segment is rebound: its element stays
// loaded, and the next reconcile discards the old position and seeks.
func (r *reducer) bindAudio() {
	music := r.tl.Music
	for i := len(music); i < len(r.s.Audio); i++ {
		r.emit(Directive{Slot: AudioSlot(i), Op: OpUnload, Source: r.s.Audio[i].Source})
	}
	if len(r.s.Audio) > len(music) {
		r.s.Audio = r.s.Audio[:len(music)]
	}
	for len(r.s.Audio) < len(music) {
		r.s.Audio = append(r.s.Audio, Audio{})
	}

	for i, m := range music {
		a := &r.s.Audio[i]
		if a.Source == m.Source {
			if a.Start != m.StartTime || a.Offset != m.StartOffset {
				*a = Audio{
					Source:  m.Source,
					Ready:   a.Ready,
					Playing: a.Playing,
					Start:   m.StartTime,
					Offset:  m.StartOffset,
					Rebound: true,
				}
			}
			continue
		}
		*a = Audio{Source: m.Source, Start: m.StartTime, Offset: m.StartOffset}
		r.emit(Directive{Slot: AudioSlot(i), Op: OpLoad, Source: m.Source})
	}
}

// reconcileAudio drives every audio slot from the current playhead. It must
// run after the playhead for this step is final.
//
// reported holds positions measured by the host. Without a measurement a
// playing slot is assumed to be on track, unless the playhead jumped.
func (r *reducer) reconcileAudio(reported map[int]float64) {
	t := r.s.Playhead
	for i, m := range r.tl.Music {
		a := &r.s.Audio[i]
		slot := AudioSlot(i)

		if !m.Resolved() {
			r.pauseAudio(slot, a)
			continue
		}

		start, end := m.Window()
		switch {
		case t < start:
			r.pauseAudio(slot, a)
			if !a.Parked {
				a.Position = m.StartOffset
				a.Parked = true
				a.Rebound = false
				r.emit(Directive{Slot: slot, Op: OpSeek, Source: a.Source, Position: a.Position})
			}

		case t <= end:
			desired := m.LocalAt(t)
			actual, measured := reported[i]
			switch {
			case measured && !math.IsNaN(actual):
			case a.Playing && !r.jumped && !a.Parked:
				actual = desired
			default:
				actual = a.Position
			}

			stale := r.jumped || a.Rebound || math.Abs(actual-desired) > r.s.Tuning.DriftTolerance
			a.Parked = false
			a.Rebound = false
			a.Position = actual
			if stale {
				a.Position = desired
				r.emit(Directive{Slot: slot, Op: OpSeek, Source: a.Source, Position: desired})
			}
			if r.s.Playing && !a.Playing {
				a.Playing = true
				r.emit(Directive{Slot: slot, Op: OpPlay, Source: a.Source})
			} else if !r.s.Playing {
				r.pauseAudio(slot, a)
			}

		default:
			// Past the window: stop driving playback but leave the position
			// alone so nothing audibly resets.
			r.pauseAudio(slot, a)
		}
	}
}

func (r *reducer) pauseAudio(slot Slot, a *Audio) {
	if !a.Playing {
		return
	}
	a.Playing = false
	r.emit(Directive{Slot: slot, Op: OpPause, Source: a.Source})
}
