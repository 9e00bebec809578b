package jam

import (
	"strconv"
	"strings"
)

// ParseNotes decodes a raw textual model reply into a note sequence. The
// expected shape is one note per row: pitch,onset,duration,velocity, where
// the pitch field may be a '|'-separated chord (each chord pitch becomes its
// own event sharing onset, duration and velocity).
//
// Decoding is a decode-or-skip fold over lines: rows that fail numeric
// parsing or fall outside MIDI ranges are dropped individually, never
// failing the whole reply. Zero valid rows yields an empty sequence.
func ParseNotes(raw string) NoteSequence {
	var seq NoteSequence
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		events, ok := parseRow(line)
		if !ok {
			continue
		}
		seq = append(seq, events...)
	}
	seq.Sort()
	return seq
}

func parseRow(line string) ([]NoteEvent, bool) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return nil, false
	}

	onsetSec, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil || onsetSec < 0 {
		return nil, false
	}
	durSec, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil || durSec <= 0 {
		return nil, false
	}
	velocity, err := parseMIDIValue(fields[3])
	if err != nil {
		return nil, false
	}

	var events []NoteEvent
	for _, p := range strings.Split(fields[0], "|") {
		pitch, err := parseMIDIValue(p)
		if err != nil {
			return nil, false
		}
		events = append(events, NoteEvent{
			Pitch:    pitch,
			Velocity: velocity,
			Onset:    secondsToDuration(onsetSec),
			Duration: secondsToDuration(durSec),
		})
	}
	return events, true
}

func parseMIDIValue(field string) (uint8, error) {
	v, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 127 {
		return 0, strconv.ErrRange
	}
	return uint8(v), nil
}
