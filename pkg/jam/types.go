package jam

import (
	"context"
	"sync"
)

// SessionState enum
type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateListening    SessionState = "listening"
	StateRecording    SessionState = "recording"
	StateTranscribing SessionState = "transcribing"
	StateGenerating   SessionState = "generating"
	StatePlaying      SessionState = "playing"
)

// Capturer blocks until a phrase has been captured from the audio input.
// OnSoundStart registers a callback fired when the capture transitions from
// waiting-for-sound to recording.
type Capturer interface {
	Capture(ctx context.Context) (*AudioBuffer, error)
	OnSoundStart(fn func())
}

// Transcriber converts a raw audio buffer into an ordered note sequence.
// An empty or near-silent buffer legitimately yields an empty sequence.
type Transcriber interface {
	Transcribe(ctx context.Context, buf *AudioBuffer) (NoteSequence, error)
}

// Musician sends a note sequence plus a style directive to a generative
// model and returns the raw textual reply, unparsed.
type Musician interface {
	Respond(ctx context.Context, seq NoteSequence, style string) (string, error)
	Name() string
}

// NotePlayer emits a note sequence to a MIDI sink with relative timing.
type NotePlayer interface {
	Play(ctx context.Context, seq NoteSequence) error
}

// EventSink receives session events for external observers (e.g. the
// websocket monitor). Implementations must not block.
type EventSink interface {
	StateChanged(state SessionState)
	NotesCaptured(seq NoteSequence)
	NotesGenerated(seq NoteSequence)
	StyleChanged(style string)
}

// StyleCell holds the current style directive. It is written by the
// interrupt listener and read at the start of each generation phase, so a
// read must always observe a complete value.
type StyleCell struct {
	mu    sync.RWMutex
	value string
}

func NewStyleCell(initial string) *StyleCell {
	return &StyleCell{value: initial}
}

func (c *StyleCell) Set(style string) {
	c.mu.Lock()
	c.value = style
	c.mu.Unlock()
}

func (c *StyleCell) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}
