package jam

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeFrameSource plays back a scripted series of frames.
type fakeFrameSource struct {
	frames chan []float32
}

func newFakeFrameSource() *fakeFrameSource {
	return &fakeFrameSource{frames: make(chan []float32, 64)}
}

func (f *fakeFrameSource) Start() error             { return nil }
func (f *fakeFrameSource) Frames() <-chan []float32 { return f.frames }
func (f *fakeFrameSource) Stop() error              { return nil }

func (f *fakeFrameSource) push(amplitude float32, frames, frameLen int) {
	for i := 0; i < frames; i++ {
		frame := make([]float32, frameLen)
		for j := range frame {
			frame[j] = amplitude
		}
		f.frames <- frame
	}
}

func testGateConfig() GateConfig {
	return GateConfig{
		SampleRate:       1000,
		SilenceThreshold: 0.05,
		SilenceTimeout:   300 * time.Millisecond,
		MinOnset:         200 * time.Millisecond,
		MaxRecord:        2 * time.Second,
	}
}

func TestGateCapturesPhraseEndedBySilence(t *testing.T) {
	src := newFakeFrameSource()
	gate := NewAudioGate(testGateConfig(), src)

	var started atomic.Int32
	gate.OnSoundStart(func() { started.Add(1) })

	src.push(0, 2, 100)   // leading silence, ignored
	src.push(0.5, 5, 100) // 500ms of sound
	src.push(0, 4, 100)   // 400ms of silence, past the timeout

	buf, err := gate.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}
	if buf.SampleRate != 1000 {
		t.Errorf("buffer sample rate = %d, want 1000", buf.SampleRate)
	}
	// Trailing silence is trimmed, so only the voiced span remains.
	if len(buf.Samples) != 500 {
		t.Errorf("buffer has %d samples, want 500", len(buf.Samples))
	}
	if got := started.Load(); got != 1 {
		t.Errorf("sound start fired %d times, want 1", got)
	}
}

func TestGateIgnoresShortBlips(t *testing.T) {
	src := newFakeFrameSource()
	gate := NewAudioGate(testGateConfig(), src)

	var started atomic.Int32
	gate.OnSoundStart(func() { started.Add(1) })

	src.push(0.5, 1, 100) // 100ms blip, under the 200ms minimum onset
	src.push(0, 4, 100)
	src.push(0.5, 4, 100) // the real phrase
	src.push(0, 4, 100)

	buf, err := gate.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}
	if len(buf.Samples) != 400 {
		t.Errorf("buffer has %d samples, want 400 (blip must not leak in)", len(buf.Samples))
	}
	if got := started.Load(); got != 1 {
		t.Errorf("sound start fired %d times, want 1 (never for the blip)", got)
	}
}

func TestGateForcesBoundaryAtMaxRecord(t *testing.T) {
	cfg := testGateConfig()
	cfg.MaxRecord = 500 * time.Millisecond
	src := newFakeFrameSource()
	gate := NewAudioGate(cfg, src)

	src.push(0.5, 10, 100) // 1s of sound, never goes silent

	buf, err := gate.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}
	if len(buf.Samples) != 500 {
		t.Errorf("buffer has %d samples, want 500 (capped at max record)", len(buf.Samples))
	}
}

func TestGateCaptureCancellation(t *testing.T) {
	src := newFakeFrameSource()
	gate := NewAudioGate(testGateConfig(), src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := gate.Capture(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Capture returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Capture did not return after cancellation")
	}
}

func TestGateClosedStreamIsDeviceError(t *testing.T) {
	src := newFakeFrameSource()
	gate := NewAudioGate(testGateConfig(), src)
	close(src.frames)

	_, err := gate.Capture(context.Background())
	if !IsErrorCode(err, ErrCodeAudioDevice) {
		t.Errorf("Capture returned %v, want an %s error", err, ErrCodeAudioDevice)
	}
}
