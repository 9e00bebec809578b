package jam

import (
	"context"
	"time"
)

// FrameSource delivers fixed-size mono audio frames from an input stream.
// The stream is opened once at session start and held for the process
// lifetime; Stop releases it.
type FrameSource interface {
	Start() error
	Frames() <-chan []float32
	Stop() error
}

// GateConfig holds the silence-segmentation tunables.
type GateConfig struct {
	SampleRate       int
	SilenceThreshold float64
	SilenceTimeout   time.Duration
	MinOnset         time.Duration
	MaxRecord        time.Duration
}

// AudioGate watches the input stream, decides silence vs sound, and extracts
// discrete utterance buffers. A capture starts when frame energy exceeds the
// silence threshold and ends after a contiguous silence-timeout window.
type AudioGate struct {
	cfg          GateConfig
	source       FrameSource
	log          *Logger
	onSoundStart func()
}

func NewAudioGate(cfg GateConfig, source FrameSource) *AudioGate {
	return &AudioGate{
		cfg:    cfg,
		source: source,
		log:    GetGlobalLogger().WithComponent("AudioGate"),
	}
}

// OnSoundStart registers a callback fired once per capture, when enough
// voiced audio has accumulated to rule out a noise blip.
func (g *AudioGate) OnSoundStart(fn func()) {
	g.onSoundStart = fn
}

// Capture blocks until a full utterance has been recorded and returns it
// with trailing silence trimmed. Voiced spans shorter than MinOnset are
// treated as noise and discarded without ending the capture loop. On
// cancellation it returns immediately with ctx.Err() and no buffer.
func (g *AudioGate) Capture(ctx context.Context) (*AudioBuffer, error) {
	silenceSamples := int(g.cfg.SilenceTimeout.Seconds() * float64(g.cfg.SampleRate))
	minOnsetSamples := int(g.cfg.MinOnset.Seconds() * float64(g.cfg.SampleRate))
	maxSamples := int(g.cfg.MaxRecord.Seconds() * float64(g.cfg.SampleRate))

	var recorded []float32
	recording := false
	announced := false
	silent := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case frame, ok := <-g.source.Frames():
			if !ok {
				return nil, NewAudioError("audio input stream closed")
			}
			rms := frameRMS(frame)

			if !recording {
				if rms > g.cfg.SilenceThreshold {
					g.log.Debugf("sound detected (rms %.4f), recording", rms)
					recording = true
					silent = 0
					recorded = append(recorded, frame...)
				}
				continue
			}

			recorded = append(recorded, frame...)
			if rms < g.cfg.SilenceThreshold {
				silent += len(frame)
			} else {
				silent = 0
			}

			voiced := len(recorded) - silent
			if !announced && voiced >= minOnsetSamples {
				announced = true
				if g.onSoundStart != nil {
					g.onSoundStart()
				}
			}

			if silent >= silenceSamples {
				if voiced < minOnsetSamples {
					// Spurious blip: back to listening.
					g.log.Debug("blip shorter than minimum onset, ignoring")
					recorded = recorded[:0]
					recording = false
					announced = false
					silent = 0
					continue
				}
				g.log.Debugf("%v of silence, capture complete", g.cfg.SilenceTimeout)
				return g.finish(recorded, silent), nil
			}

			if len(recorded) >= maxSamples {
				g.log.Warn("max record time reached, forcing capture boundary")
				return g.finish(recorded, silent), nil
			}
		}
	}
}

// finish trims the trailing silence window off the recorded payload.
func (g *AudioGate) finish(recorded []float32, silent int) *AudioBuffer {
	payload := recorded[:len(recorded)-silent]
	buf := make([]float32, len(payload))
	copy(buf, payload)
	return &AudioBuffer{Samples: buf, SampleRate: g.cfg.SampleRate}
}
