package jam

import (
	"context"
	"math"
	"time"
)

// PitchTracker is a monophonic time-domain transcriber. It estimates f0 per
// frame with normalized autocorrelation, converts to MIDI pitch, and merges
// consecutive frames into note events: a new note starts when the pitch
// moves more than half a semitone, and notes shorter than MinNoteLen are
// dropped as detection jitter.
type PitchTracker struct {
	FrameSize  int
	HopSize    int
	Confidence float64
	MinNoteLen time.Duration
	MinFreq    float64
	MaxFreq    float64
}

func NewPitchTracker() *PitchTracker {
	return &PitchTracker{
		FrameSize:  2048,
		HopSize:    512,
		Confidence: 0.3,
		MinNoteLen: 100 * time.Millisecond,
		MinFreq:    60,
		MaxFreq:    1200,
	}
}

// Transcribe converts a captured buffer into a note sequence. A buffer too
// short or too quiet to carry a pitch yields an empty sequence, not an
// error.
func (t *PitchTracker) Transcribe(ctx context.Context, buf *AudioBuffer) (NoteSequence, error) {
	if buf == nil || len(buf.Samples) < t.FrameSize {
		return nil, nil
	}

	var (
		seq      NoteSequence
		curPitch float64
		curOnset time.Duration
		curVel   uint8
		active   bool
	)

	flush := func(end time.Duration) {
		if !active {
			return
		}
		active = false
		dur := end - curOnset
		if dur < t.MinNoteLen {
			return
		}
		pitch := int(math.Round(curPitch))
		if pitch < 0 || pitch > 127 {
			return
		}
		seq = append(seq, NoteEvent{
			Pitch:    uint8(pitch),
			Velocity: curVel,
			Onset:    curOnset,
			Duration: dur,
		})
	}

	sr := buf.SampleRate
	var frameTime time.Duration
	for start := 0; start+t.FrameSize <= len(buf.Samples); start += t.HopSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame := buf.Samples[start : start+t.FrameSize]
		frameTime = time.Duration(start) * time.Second / time.Duration(sr)

		freq, conf := estimatePitch(frame, sr, t.MinFreq, t.MaxFreq)
		if conf < t.Confidence || freq <= 0 {
			flush(frameTime)
			continue
		}

		midi := 69 + 12*math.Log2(freq/440)
		if midi < 0 || midi > 127 {
			flush(frameTime)
			continue
		}

		if !active {
			active = true
			curPitch = midi
			curOnset = frameTime
			curVel = velocityFromRMS(frameRMS(frame))
		} else if math.Abs(midi-curPitch) > 0.5 {
			flush(frameTime)
			active = true
			curPitch = midi
			curOnset = frameTime
			curVel = velocityFromRMS(frameRMS(frame))
		}
	}
	flush(buf.Duration())

	seq.Sort()
	return seq, nil
}

// estimatePitch returns the strongest periodicity in the frame and a 0..1
// confidence, using normalized autocorrelation over the lag range that
// corresponds to [minFreq, maxFreq].
func estimatePitch(frame []float32, sampleRate int, minFreq, maxFreq float64) (float64, float64) {
	n := len(frame)

	// Remove DC offset.
	var mean float64
	for _, v := range frame {
		mean += float64(v)
	}
	mean /= float64(n)

	samples := make([]float64, n)
	var energy float64
	for i, v := range frame {
		samples[i] = float64(v) - mean
		energy += samples[i] * samples[i]
	}
	if energy < 1e-9 {
		return 0, 0
	}

	minLag := int(float64(sampleRate) / maxFreq)
	maxLag := int(float64(sampleRate) / minFreq)
	if maxLag >= n {
		maxLag = n - 1
	}
	if minLag < 2 {
		minLag = 2
	}

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i+lag < n; i++ {
			corr += samples[i] * samples[i+lag]
		}
		corr /= energy
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0, 0
	}
	return float64(sampleRate) / float64(bestLag), bestCorr
}

// velocityFromRMS maps frame energy onto a humanized MIDI velocity band.
func velocityFromRMS(rms float64) uint8 {
	v := 40 + rms*600
	if v > 115 {
		v = 115
	}
	if v < 40 {
		v = 40
	}
	return uint8(v)
}
