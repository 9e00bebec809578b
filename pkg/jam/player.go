package jam

import (
	"context"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// BarClock reports whether a shared transport is running and when the next
// bar boundary falls, so replies land on the beat.
type BarClock interface {
	Running() bool
	NextBar(now time.Time) time.Time
}

// Player schedules a note sequence onto the MIDI sink: note-on at each
// event's onset, note-off at onset+duration, in time order. Overlapping
// notes are emitted independently.
type Player struct {
	send    SendFunc
	channel uint8
	clock   BarClock
	log     *Logger
}

func NewPlayer(send SendFunc) *Player {
	return &Player{
		send: send,
		log:  GetGlobalLogger().WithComponent("Player"),
	}
}

// SetClock attaches a bar clock; playback start is then quantized to the
// next bar boundary while the transport runs.
func (p *Player) SetClock(clock BarClock) {
	p.clock = clock
}

// SetChannel selects the MIDI channel for melodic output (default 0).
func (p *Player) SetChannel(channel uint8) {
	p.channel = channel
}

// timedMsg is one scheduled wire event.
type timedMsg struct {
	at    time.Duration
	onMsg bool
	pitch uint8
	vel   uint8
}

// Play emits the sequence and blocks until playback completes. An empty
// sequence completes immediately with no MIDI traffic. If the sink fails
// mid-playback, no further note-ons are sent but note-offs for notes already
// sounding are still attempted, so nothing is left stuck. Cancellation
// likewise flushes note-offs before returning.
func (p *Player) Play(ctx context.Context, seq NoteSequence) error {
	if len(seq) == 0 {
		return nil
	}

	timeline := buildTimeline(seq)

	if p.clock != nil && p.clock.Running() {
		barStart := p.clock.NextBar(time.Now())
		if wait := time.Until(barStart); wait > 0 {
			p.log.Debugf("waiting %v for next bar", wait.Round(time.Millisecond))
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
		}
	}

	p.log.Infof("playing %d notes over %v", len(seq), seq.TotalLength().Round(time.Millisecond))

	start := time.Now()
	sounding := make(map[uint8]int)
	var sinkErr error

	for _, ev := range timeline {
		if wait := ev.at - time.Since(start); wait > 0 {
			if err := sleepCtx(ctx, wait); err != nil {
				p.flushNoteOffs(sounding)
				return err
			}
		}

		if ev.onMsg {
			if sinkErr != nil {
				continue
			}
			if err := p.send(midi.NoteOn(p.channel, ev.pitch, ev.vel)); err != nil {
				sinkErr = WrapError(err, "MIDI sink failed mid-playback", ErrCodePlayback)
				p.log.WithError(err).Error("note on failed, suppressing further note ons")
				continue
			}
			sounding[ev.pitch]++
		} else {
			if sounding[ev.pitch] == 0 {
				// The matching note-on was never sent.
				continue
			}
			sounding[ev.pitch]--
			if err := p.send(midi.NoteOff(p.channel, ev.pitch)); err != nil && sinkErr == nil {
				sinkErr = WrapError(err, "MIDI sink failed mid-playback", ErrCodePlayback)
			}
		}
	}

	p.flushNoteOffs(sounding)
	return sinkErr
}

// flushNoteOffs sends best-effort note-offs for anything still sounding.
func (p *Player) flushNoteOffs(sounding map[uint8]int) {
	for pitch, count := range sounding {
		for i := 0; i < count; i++ {
			_ = p.send(midi.NoteOff(p.channel, pitch))
		}
		delete(sounding, pitch)
	}
}

// buildTimeline flattens the sequence into on/off events sorted by time.
// At equal timestamps note-offs sort before note-ons so a repeated pitch is
// released before it is re-struck.
func buildTimeline(seq NoteSequence) []timedMsg {
	timeline := make([]timedMsg, 0, 2*len(seq))
	for _, e := range seq {
		timeline = append(timeline,
			timedMsg{at: e.Onset, onMsg: true, pitch: e.Pitch, vel: e.Velocity},
			timedMsg{at: e.End(), onMsg: false, pitch: e.Pitch},
		)
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		if timeline[i].at != timeline[j].at {
			return timeline[i].at < timeline[j].at
		}
		return !timeline[i].onMsg && timeline[j].onMsg
	})
	return timeline
}

// sleepCtx sleeps for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
