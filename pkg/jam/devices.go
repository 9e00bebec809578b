package jam

import (
	"github.com/gordonklaus/portaudio"
)

// AudioDevice describes one audio input device.
type AudioDevice struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
	HostAPI           string
}

// ListInputDevices returns the available audio input devices. It manages its
// own portaudio lifetime, so it must not be called while a MicSource is
// open.
func ListInputDevices() ([]AudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, WrapError(err, "failed to initialize portaudio", ErrCodeAudioDevice)
	}
	defer portaudio.Terminate()

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		GetGlobalLogger().WithError(err).Warn("no default input device")
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, WrapError(err, "failed to list audio devices", ErrCodeAudioDevice)
	}

	var inputs []AudioDevice
	for i, dev := range devices {
		if dev.MaxInputChannels == 0 {
			continue
		}
		hostAPI := "Unknown"
		if dev.HostApi != nil {
			hostAPI = dev.HostApi.Name
		}
		inputs = append(inputs, AudioDevice{
			ID:                i,
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         defaultInput != nil && dev == defaultInput,
			HostAPI:           hostAPI,
		})
	}
	return inputs, nil
}
