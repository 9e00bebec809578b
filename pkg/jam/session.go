package jam

import (
	"context"
	"errors"
	"sync"
)

// Session is the orchestrating state machine. Each cycle runs the sequential
// pipeline capture -> transcribe -> generate -> parse -> play; phases never
// overlap. A style-change request may arrive in any state and only affects
// the next generation prompt.
type Session struct {
	gate        Capturer
	transcriber Transcriber
	musician    Musician
	player      NotePlayer
	style       *StyleCell
	threshold   float64
	log         *Logger

	mu    sync.Mutex
	state SessionState
	sink  EventSink
}

func NewSession(gate Capturer, transcriber Transcriber, musician Musician, player NotePlayer) *Session {
	s := &Session{
		gate:        gate,
		transcriber: transcriber,
		musician:    musician,
		player:      player,
		style:       NewStyleCell(""),
		threshold:   0.01,
		log:         GetGlobalLogger().WithComponent("Session"),
		state:       StateIdle,
	}
	gate.OnSoundStart(func() {
		s.setState(StateRecording)
	})
	return s
}

// SetEventSink attaches an observer for state and note events.
func (s *Session) SetEventSink(sink EventSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// SetVoicedThreshold aligns the capture-statistics threshold with the gate.
func (s *Session) SetVoicedThreshold(threshold float64) {
	s.threshold = threshold
}

// SetStyle updates the style directive. Accepted in any state; the update is
// visible to the next generation phase and never disturbs an in-flight
// cycle.
func (s *Session) SetStyle(phrase string) {
	s.style.Set(phrase)
	s.log.Infof("playing style set to %q", phrase)
	if sink := s.eventSink(); sink != nil {
		sink.StyleChanged(phrase)
	}
}

// Style returns the current style directive.
func (s *Session) Style() string {
	return s.style.Get()
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) eventSink() EventSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	sink := s.sink
	s.mu.Unlock()

	if prev != state {
		s.log.LogStateChange(prev, state)
		if sink != nil {
			sink.StateChanged(state)
		}
	}
}

// Run drives the session loop until the context is cancelled. Collaborator
// failures abandon the current cycle with a notice and the loop continues;
// only an unrecoverable audio device failure ends the loop with an error.
// Cancellation is a clean shutdown, not an error.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateIdle)

	for {
		err := s.runCycle(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			s.log.Info("session stopped")
			return nil
		case IsErrorCode(err, ErrCodeAudioDevice):
			s.setState(StateIdle)
			return err
		default:
			s.setState(StateIdle)
			s.log.WithError(err).Warn("cycle abandoned, listening again")
		}
	}
}

func (s *Session) runCycle(ctx context.Context) error {
	s.setState(StateListening)
	s.log.Info("waiting for sound, recording until silence")

	buf, err := s.gate.Capture(ctx)
	if err != nil {
		return err
	}
	s.log.LogCaptureStats(AnalyzeBuffer(buf, s.threshold))

	s.setState(StateTranscribing)
	notes, err := s.transcribeWithRetry(ctx, buf)
	if err != nil {
		return WrapError(err, "transcription failed", ErrCodeTranscribe)
	}
	if len(notes) == 0 {
		s.log.Info("no notes detected, try again")
		return nil
	}
	s.log.Infof("detected %d notes", len(notes))
	if sink := s.eventSink(); sink != nil {
		sink.NotesCaptured(notes)
	}

	s.setState(StateGenerating)
	style := s.style.Get()
	raw, err := s.respondWithRetry(ctx, notes, style)
	if err != nil {
		return WrapError(err, "musician reply failed", ErrCodeGenerate)
	}

	reply := ParseNotes(raw)
	if len(reply) == 0 {
		s.log.Warn("reply contained no playable notes")
	}
	if sink := s.eventSink(); sink != nil {
		sink.NotesGenerated(reply)
	}

	s.setState(StatePlaying)
	if err := s.player.Play(ctx, reply); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return WrapError(err, "playback failed", ErrCodePlayback)
	}
	return nil
}

// transcribeWithRetry gives the transcriber one bounded retry so a transient
// failure does not cost the captured phrase.
func (s *Session) transcribeWithRetry(ctx context.Context, buf *AudioBuffer) (NoteSequence, error) {
	notes, err := s.transcriber.Transcribe(ctx, buf)
	if err == nil || ctx.Err() != nil {
		return notes, err
	}
	s.log.WithError(err).Warn("transcription failed, retrying once")
	return s.transcriber.Transcribe(ctx, buf)
}

// respondWithRetry performs at most one retry before abandoning the cycle,
// keeping the interactive loop responsive.
func (s *Session) respondWithRetry(ctx context.Context, notes NoteSequence, style string) (string, error) {
	raw, err := s.musician.Respond(ctx, notes, style)
	if err == nil || ctx.Err() != nil {
		return raw, err
	}
	s.log.WithError(err).Warnf("%s request failed, retrying once", s.musician.Name())
	return s.musician.Respond(ctx, notes, style)
}
