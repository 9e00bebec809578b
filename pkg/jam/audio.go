package jam

import (
	"math"
	"time"
)

// AudioBuffer is a captured utterance: raw mono samples between sound onset
// and the silence boundary, with trailing silence trimmed.
type AudioBuffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the buffer length in wall time.
func (b *AudioBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// frameRMS is the root-mean-square energy of one frame.
func frameRMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// CaptureStats summarizes a captured buffer for logging and monitoring.
type CaptureStats struct {
	Duration     time.Duration
	TotalSamples int
	MaxAmplitude float32
	RMSAmplitude float64
	VoicedRatio  float64
}

// AnalyzeBuffer computes capture statistics. voicedThreshold is the same
// RMS threshold the gate uses to separate sound from silence.
func AnalyzeBuffer(buf *AudioBuffer, voicedThreshold float64) *CaptureStats {
	stats := &CaptureStats{
		Duration:     buf.Duration(),
		TotalSamples: len(buf.Samples),
	}
	if len(buf.Samples) == 0 {
		return stats
	}

	var sum float64
	voiced := 0
	for _, v := range buf.Samples {
		abs := v
		if abs < 0 {
			abs = -abs
		}
		if abs > stats.MaxAmplitude {
			stats.MaxAmplitude = abs
		}
		if float64(abs) > voicedThreshold {
			voiced++
		}
		sum += float64(v) * float64(v)
	}
	stats.RMSAmplitude = math.Sqrt(sum / float64(len(buf.Samples)))
	stats.VoicedRatio = float64(voiced) / float64(len(buf.Samples))
	return stats
}
