package jam

import (
	"sync"

	"github.com/gordonklaus/portaudio"
)

// MicSource is the portaudio-backed frame source. The default input device
// is opened once and held until Stop; a missing input device surfaces as a
// startup error.
type MicSource struct {
	stream *portaudio.Stream
	frames chan []float32
	mu     sync.Mutex
	closed bool
	log    *Logger
}

func NewMicSource(sampleRate, blockSize int) (*MicSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, WrapError(err, "failed to initialize portaudio", ErrCodeAudioDevice)
	}

	ms := &MicSource{
		frames: make(chan []float32, 32),
		log:    GetGlobalLogger().WithComponent("MicSource"),
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), blockSize, ms.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, WrapError(err, "failed to open default input stream", ErrCodeAudioDevice)
	}
	ms.stream = stream
	return ms, nil
}

func (ms *MicSource) callback(in []float32) {
	frame := make([]float32, len(in))
	copy(frame, in)
	select {
	case ms.frames <- frame:
	default:
		// Consumer is behind; dropping is preferable to blocking the
		// portaudio callback thread.
	}
}

func (ms *MicSource) Start() error {
	if err := ms.stream.Start(); err != nil {
		return WrapError(err, "failed to start input stream", ErrCodeAudioDevice)
	}
	ms.log.Info("Microphone stream started")
	return nil
}

func (ms *MicSource) Frames() <-chan []float32 {
	return ms.frames
}

func (ms *MicSource) Stop() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return nil
	}
	ms.closed = true

	var firstErr error
	if err := ms.stream.Stop(); err != nil {
		firstErr = WrapError(err, "failed to stop input stream", ErrCodeAudioDevice)
	}
	if err := ms.stream.Close(); err != nil && firstErr == nil {
		firstErr = WrapError(err, "failed to close input stream", ErrCodeAudioDevice)
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = WrapError(err, "failed to terminate portaudio", ErrCodeAudioDevice)
	}
	close(ms.frames)
	ms.log.Info("Microphone stream stopped")
	return firstErr
}
