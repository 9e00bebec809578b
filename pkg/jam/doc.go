// Package jam implements an interactive call-and-response session between a
// live performer and a generative "musician": it listens to the audio input,
// segments a played phrase on silence, transcribes it to a note sequence,
// asks the musician for a reply, and plays that reply back over MIDI.
//
// # Overview
//
// The session is a closed loop driven by a single state machine:
//
//	idle -> listening -> recording -> transcribing -> generating -> playing -> idle
//
// The main pieces:
//   - AudioGate extracts utterance buffers from the input stream using a
//     rolling energy measure and a silence timeout.
//   - Transcriber turns a buffer into timed note events; PitchTracker is the
//     built-in monophonic implementation.
//   - Musician sends the notes plus the current style directive to a
//     language model and returns its raw textual reply.
//   - ParseNotes tolerantly decodes the reply, dropping malformed rows.
//   - Player schedules the reply onto a MIDI output with relative timing;
//     Metronome keeps a 4/4 drum groove and the bar clock.
//   - Session wires it together and accepts style changes at any point
//     without disturbing the cycle in flight.
//
// # Quick start
//
//	mic, err := jam.NewMicSource(44100, 1024)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer mic.Stop()
//	mic.Start()
//
//	out, err := jam.OpenMIDIOut("", true)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer out.Close()
//
//	gate := jam.NewAudioGate(jam.GateConfig{
//		SampleRate:       44100,
//		SilenceThreshold: 0.01,
//		SilenceTimeout:   time.Second,
//		MinOnset:         100 * time.Millisecond,
//		MaxRecord:        30 * time.Second,
//	}, mic)
//
//	sess := jam.NewSession(gate, jam.NewPitchTracker(), musician, jam.NewPlayer(out.Send))
//	sess.SetStyle("mellow")
//	sess.Run(ctx)
//
// Musician implementations live in pkg/llm.
package jam
