package jam

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// NoteEvent is a single timed note in a phrase. Onset is relative to the
// start of the sequence.
type NoteEvent struct {
	Pitch    uint8
	Velocity uint8
	Onset    time.Duration
	Duration time.Duration
}

func (e NoteEvent) Validate() error {
	if e.Pitch > 127 {
		return fmt.Errorf("pitch %d out of MIDI range", e.Pitch)
	}
	if e.Velocity > 127 {
		return fmt.Errorf("velocity %d out of MIDI range", e.Velocity)
	}
	if e.Onset < 0 {
		return fmt.Errorf("negative onset %v", e.Onset)
	}
	if e.Duration <= 0 {
		return fmt.Errorf("non-positive duration %v", e.Duration)
	}
	return nil
}

// End returns the offset at which the note stops sounding.
func (e NoteEvent) End() time.Duration {
	return e.Onset + e.Duration
}

// NoteSequence is an ordered list of note events, ordered by onset with ties
// broken by input order. May be empty when transcription found no pitches.
type NoteSequence []NoteEvent

// Sort orders the sequence by onset, keeping input order for equal onsets.
func (s NoteSequence) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Onset < s[j].Onset
	})
}

// TotalLength is the offset at which the last note stops sounding.
func (s NoteSequence) TotalLength() time.Duration {
	var end time.Duration
	for _, e := range s {
		if e.End() > end {
			end = e.End()
		}
	}
	return end
}

// MarshalNotes serializes the sequence as compact CSV rows, one note per
// line: pitch,onset_seconds,duration_seconds,velocity. This is the format
// sent to the musician and expected back in its reply.
func (s NoteSequence) MarshalNotes() string {
	lines := make([]string, 0, len(s))
	for _, e := range s {
		lines = append(lines, fmt.Sprintf("%d,%.3f,%.3f,%d",
			e.Pitch, e.Onset.Seconds(), e.Duration.Seconds(), e.Velocity))
	}
	return strings.Join(lines, "\n")
}

// secondsToDuration converts a fractional-seconds field to a duration with
// millisecond rounding, matching the serialized precision.
func secondsToDuration(sec float64) time.Duration {
	return time.Duration(math.Round(sec*1000)) * time.Millisecond
}
