package jam

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedGate hands out pre-recorded buffers, then blocks until cancelled.
type scriptedGate struct {
	buffers      chan *AudioBuffer
	onSoundStart func()
}

func newScriptedGate(bufs ...*AudioBuffer) *scriptedGate {
	g := &scriptedGate{buffers: make(chan *AudioBuffer, len(bufs))}
	for _, b := range bufs {
		g.buffers <- b
	}
	return g
}

func (g *scriptedGate) OnSoundStart(fn func()) { g.onSoundStart = fn }

func (g *scriptedGate) Capture(ctx context.Context) (*AudioBuffer, error) {
	select {
	case buf := <-g.buffers:
		if g.onSoundStart != nil {
			g.onSoundStart()
		}
		return buf, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type stubTranscriber struct {
	mu       sync.Mutex
	notes    NoteSequence
	failures int
	calls    int
}

func (t *stubTranscriber) Transcribe(ctx context.Context, buf *AudioBuffer) (NoteSequence, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.failures > 0 {
		t.failures--
		return nil, errors.New("transcriber glitch")
	}
	return t.notes, nil
}

type stubMusician struct {
	mu       sync.Mutex
	reply    string
	failures int
	calls    int
	styles   []string
}

func (m *stubMusician) Respond(ctx context.Context, seq NoteSequence, style string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.styles = append(m.styles, style)
	if m.failures > 0 {
		m.failures--
		return "", errors.New("model unavailable")
	}
	return m.reply, nil
}

func (m *stubMusician) Name() string { return "stub" }

type recordingPlayer struct {
	mu     sync.Mutex
	played []NoteSequence
	done   chan struct{}
}

func newRecordingPlayer() *recordingPlayer {
	return &recordingPlayer{done: make(chan struct{}, 16)}
}

func (p *recordingPlayer) Play(ctx context.Context, seq NoteSequence) error {
	p.mu.Lock()
	p.played = append(p.played, seq)
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	states []SessionState
	in     []NoteSequence
	out    []NoteSequence
	styles []string
}

func (s *recordingSink) StateChanged(state SessionState) {
	s.mu.Lock()
	s.states = append(s.states, state)
	s.mu.Unlock()
}
func (s *recordingSink) NotesCaptured(seq NoteSequence) {
	s.mu.Lock()
	s.in = append(s.in, seq)
	s.mu.Unlock()
}
func (s *recordingSink) NotesGenerated(seq NoteSequence) {
	s.mu.Lock()
	s.out = append(s.out, seq)
	s.mu.Unlock()
}
func (s *recordingSink) StyleChanged(style string) {
	s.mu.Lock()
	s.styles = append(s.styles, style)
	s.mu.Unlock()
}

func testBuffer() *AudioBuffer {
	return &AudioBuffer{Samples: make([]float32, 4410), SampleRate: 44100}
}

func testNotes() NoteSequence {
	return NoteSequence{{Pitch: 60, Velocity: 90, Onset: 0, Duration: 500 * time.Millisecond}}
}

func waitPlayed(t *testing.T, p *recordingPlayer) {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("player was never invoked")
	}
}

func TestSessionFullCycle(t *testing.T) {
	gate := newScriptedGate(testBuffer())
	transcriber := &stubTranscriber{notes: testNotes()}
	musician := &stubMusician{reply: "67,0.0,0.4,80"}
	player := newRecordingPlayer()
	sink := &recordingSink{}

	sess := NewSession(gate, transcriber, musician, player)
	sess.SetEventSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	waitPlayed(t, player)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v, want nil on cancellation", err)
	}

	if len(player.played) != 1 || len(player.played[0]) != 1 || player.played[0][0].Pitch != 67 {
		t.Errorf("player received %+v, want the parsed reply note 67", player.played)
	}

	// The cycle must pass through the pipeline states in order.
	wantOrder := []SessionState{StateListening, StateRecording, StateTranscribing, StateGenerating, StatePlaying}
	sink.mu.Lock()
	states := append([]SessionState(nil), sink.states...)
	sink.mu.Unlock()
	idx := 0
	for _, st := range states {
		if idx < len(wantOrder) && st == wantOrder[idx] {
			idx++
		}
	}
	if idx != len(wantOrder) {
		t.Errorf("state transitions %v do not contain the pipeline order %v", states, wantOrder)
	}

	if len(sink.in) != 1 || len(sink.out) != 1 {
		t.Errorf("sink saw %d captured and %d generated sequences, want 1 and 1", len(sink.in), len(sink.out))
	}
}

func TestSessionStyleUsedInNextPrompt(t *testing.T) {
	gate := newScriptedGate(testBuffer())
	transcriber := &stubTranscriber{notes: testNotes()}
	musician := &stubMusician{reply: "60,0.0,0.5,90"}
	player := newRecordingPlayer()

	sess := NewSession(gate, transcriber, musician, player)
	sess.SetStyle("aggressive bebop")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	waitPlayed(t, player)
	cancel()
	<-done

	musician.mu.Lock()
	defer musician.mu.Unlock()
	if len(musician.styles) == 0 || musician.styles[0] != "aggressive bebop" {
		t.Errorf("musician saw styles %v, want the directive set before the cycle", musician.styles)
	}
}

// blockingPlayer holds playback open until released, so a test can act while
// the session sits in the playing state.
type blockingPlayer struct {
	*recordingPlayer
	release chan struct{}
}

func (p *blockingPlayer) Play(ctx context.Context, seq NoteSequence) error {
	if err := p.recordingPlayer.Play(ctx, seq); err != nil {
		return err
	}
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSessionStyleChangeDuringPlaying(t *testing.T) {
	gate := newScriptedGate(testBuffer(), testBuffer())
	transcriber := &stubTranscriber{notes: testNotes()}
	musician := &stubMusician{reply: "60,0.0,0.5,90"}
	player := &blockingPlayer{
		recordingPlayer: newRecordingPlayer(),
		release:         make(chan struct{}),
	}

	sess := NewSession(gate, transcriber, musician, player)
	sess.SetStyle("mellow")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	// First cycle reaches the playing state and blocks there.
	waitPlayed(t, player.recordingPlayer)
	sess.SetStyle("frantic breakbeat")
	player.release <- struct{}{}

	// Second cycle generates with the new directive.
	waitPlayed(t, player.recordingPlayer)
	cancel()
	<-done

	musician.mu.Lock()
	defer musician.mu.Unlock()
	if len(musician.styles) < 2 {
		t.Fatalf("musician called %d times, want 2 cycles", len(musician.styles))
	}
	if musician.styles[0] != "mellow" {
		t.Errorf("first prompt used style %q, want mellow", musician.styles[0])
	}
	if musician.styles[1] != "frantic breakbeat" {
		t.Errorf("second prompt used style %q, want the directive set during playback", musician.styles[1])
	}
}

func TestSessionRetriesMusicianOnce(t *testing.T) {
	gate := newScriptedGate(testBuffer())
	transcriber := &stubTranscriber{notes: testNotes()}
	musician := &stubMusician{reply: "60,0.0,0.5,90", failures: 1}
	player := newRecordingPlayer()

	sess := NewSession(gate, transcriber, musician, player)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	waitPlayed(t, player)
	cancel()
	<-done

	musician.mu.Lock()
	calls := musician.calls
	musician.mu.Unlock()
	if calls != 2 {
		t.Errorf("musician called %d times, want 2 (one retry)", calls)
	}
}

func TestSessionAbandonsCycleOnRepeatedFailure(t *testing.T) {
	// Two buffers: the first cycle fails both musician attempts, the second
	// succeeds, proving the loop survives a failed cycle.
	gate := newScriptedGate(testBuffer(), testBuffer())
	transcriber := &stubTranscriber{notes: testNotes()}
	musician := &stubMusician{reply: "60,0.0,0.5,90", failures: 2}
	player := newRecordingPlayer()

	sess := NewSession(gate, transcriber, musician, player)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	waitPlayed(t, player)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	player.mu.Lock()
	plays := len(player.played)
	player.mu.Unlock()
	if plays != 1 {
		t.Errorf("player invoked %d times, want 1 (only the second cycle)", plays)
	}
}

func TestSessionSkipsEmptyTranscription(t *testing.T) {
	gate := newScriptedGate(testBuffer(), testBuffer())
	transcriber := &stubTranscriber{} // no notes detected
	musician := &stubMusician{reply: "60,0.0,0.5,90"}
	player := newRecordingPlayer()

	sess := NewSession(gate, transcriber, musician, player)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	// Give both cycles time to run their empty transcriptions.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	musician.mu.Lock()
	calls := musician.calls
	musician.mu.Unlock()
	if calls != 0 {
		t.Errorf("musician called %d times for empty transcriptions, want 0", calls)
	}
}

type failingGate struct{}

func (failingGate) OnSoundStart(func()) {}
func (failingGate) Capture(ctx context.Context) (*AudioBuffer, error) {
	return nil, NewAudioError("device unplugged")
}

func TestSessionStopsOnAudioDeviceError(t *testing.T) {
	sess := NewSession(failingGate{}, &stubTranscriber{}, &stubMusician{}, newRecordingPlayer())

	err := sess.Run(context.Background())
	if !IsErrorCode(err, ErrCodeAudioDevice) {
		t.Errorf("Run returned %v, want an %s error", err, ErrCodeAudioDevice)
	}
	if sess.State() != StateIdle {
		t.Errorf("final state = %s, want %s", sess.State(), StateIdle)
	}
}
