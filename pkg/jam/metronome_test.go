package jam

import (
	"context"
	"testing"
	"time"
)

func TestMetronomePattern(t *testing.T) {
	sink := &fakeSink{}
	metro := NewMetronome(sink.send, 600) // fast tempo keeps the test short

	ctx := context.Background()
	metro.Start(ctx)
	if !metro.Running() {
		t.Fatal("metronome not running after Start")
	}

	// 600 BPM puts eighths 50ms apart; a quarter second spans a few.
	time.Sleep(260 * time.Millisecond)
	metro.Stop()
	if metro.Running() {
		t.Fatal("metronome still running after Stop")
	}

	var hats, kicks, snares int
	for _, m := range sink.messages() {
		if !m.noteOn {
			continue
		}
		switch m.pitch {
		case closedHat:
			hats++
		case kickNote:
			kicks++
		case snareNote:
			snares++
		}
	}
	if hats < 4 {
		t.Errorf("heard %d hi-hats, want at least 4", hats)
	}
	if kicks == 0 {
		t.Error("heard no kick, want the downbeat")
	}
	if hats < kicks+snares {
		t.Errorf("hats (%d) should outnumber kicks+snares (%d)", hats, kicks+snares)
	}
}

func TestMetronomeNextBar(t *testing.T) {
	sink := &fakeSink{}
	metro := NewMetronome(sink.send, 120) // 2s bars
	metro.Start(context.Background())
	defer metro.Stop()

	now := time.Now()
	next := metro.NextBar(now)
	if !next.After(now) {
		t.Errorf("NextBar(%v) = %v, want a future boundary", now, next)
	}
	if next.Sub(now) > 2*time.Second {
		t.Errorf("next bar %v away, want within one 2s bar", next.Sub(now))
	}
}

func TestMetronomeStartIdempotent(t *testing.T) {
	sink := &fakeSink{}
	metro := NewMetronome(sink.send, 120)
	metro.Start(context.Background())
	metro.Start(context.Background())
	metro.Stop()
	metro.Stop()
	if metro.Running() {
		t.Error("metronome running after double stop")
	}
}
