package jam

import (
	"context"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// General MIDI percussion on channel 10 (0-indexed 9).
const (
	drumChannel  uint8 = 9
	kickNote     uint8 = 36
	snareNote    uint8 = 38
	closedHat    uint8 = 42
	beatsPerBar        = 4
)

// Metronome plays a fixed 4/4 drum pattern over the shared MIDI port on an
// eighth-note grid and serves as the bar clock for reply quantization.
type Metronome struct {
	send SendFunc
	bpm  float64
	log  *Logger

	mu      sync.Mutex
	running bool
	startAt time.Time
	cancel  context.CancelFunc
}

func NewMetronome(send SendFunc, bpm float64) *Metronome {
	return &Metronome{
		send: send,
		bpm:  bpm,
		log:  GetGlobalLogger().WithComponent("Metronome"),
	}
}

func (m *Metronome) beatDuration() time.Duration {
	return time.Duration(60 / m.bpm * float64(time.Second))
}

func (m *Metronome) barDuration() time.Duration {
	return beatsPerBar * m.beatDuration()
}

// Start begins the drum loop. It is a no-op when already running.
func (m *Metronome) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.startAt = time.Now()
	go m.loop(ctx)
	m.log.Infof("metronome started at %.1f BPM", m.bpm)
}

// Stop halts the drum loop.
func (m *Metronome) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.cancel()
	m.running = false
	m.log.Info("metronome stopped")
}

// Running reports whether the transport is active.
func (m *Metronome) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// NextBar returns the first bar boundary after now.
func (m *Metronome) NextBar(now time.Time) time.Time {
	m.mu.Lock()
	start := m.startAt
	m.mu.Unlock()

	bar := m.barDuration()
	elapsed := now.Sub(start)
	bars := elapsed / bar
	return start.Add((bars + 1) * bar)
}

func (m *Metronome) loop(ctx context.Context) {
	eighth := m.beatDuration() / 2
	start := m.startAt
	for i := 0; ; i++ {
		next := start.Add(time.Duration(i) * eighth)
		if wait := time.Until(next); wait > 0 {
			if err := sleepCtx(ctx, wait); err != nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		m.hit(closedHat, 70)
		if i%2 == 0 {
			switch (i / 2) % beatsPerBar {
			case 0, 2:
				m.hit(kickNote, 110)
			case 1, 3:
				m.hit(snareNote, 100)
			}
		}
	}
}

// hit fires a percussion note; drum voices trigger on note-on, so the
// note-off follows immediately.
func (m *Metronome) hit(note, velocity uint8) {
	if err := m.send(midi.NoteOn(drumChannel, note, velocity)); err != nil {
		m.log.WithError(err).Warn("drum hit failed")
		return
	}
	_ = m.send(midi.NoteOff(drumChannel, note))
}
