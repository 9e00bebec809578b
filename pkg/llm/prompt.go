package llm

import (
	"fmt"

	"github.com/rojolang/jamloop-go/pkg/jam"
)

// systemPromptTemplate frames the model as the other half of a
// call-and-response duo. The style directive and the session BPM are
// interpolated per request.
const systemPromptTemplate = `<playing_style_or_character>%s</playing_style_or_character>
<activity>Call and response between two musicians</activity>
<velocity>humanize</velocity>

<answer_format>
A compact CSV list of note events.
Each event is a line: pitch,start_time,duration,velocity.
pitch can be a single MIDI note (0-127) or a chord of '|'-separated notes
(e.g., 60|64|67).
start_time (seconds), duration (seconds), velocity (0-127).
Only output the CSV, no extra text.
Example (C major chord, then E):
60|64|67,0.0,0.5,100
64,0.5,0.5,90

There is a 4/4 drum beat at %g bpm playing.
</answer_format>

Given a melody as a list of MIDI note events, respond with a new melody.`

// BuildSystemPrompt renders the fixed musician instruction for the given
// style directive and tempo.
func BuildSystemPrompt(style string, bpm float64) string {
	return fmt.Sprintf(systemPromptTemplate, style, bpm)
}

// BuildUserMessage serializes the captured phrase for the model.
func BuildUserMessage(seq jam.NoteSequence) string {
	return "Input melody (as CSV):\n" + seq.MarshalNotes()
}
