package jam

import (
	"fmt"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// SendFunc emits one MIDI message to the sink. Fire-and-forget: no
// acknowledgement channel is assumed.
type SendFunc func(midi.Message) error

// DefaultVirtualPortName is used when no existing output port is selected.
const DefaultVirtualPortName = "jamloop MIDI Out"

// MIDIOut owns the long-lived MIDI output connection, acquired once at
// session start and held for the process lifetime.
type MIDIOut struct {
	drv  *rtmididrv.Driver
	port drivers.Out
	send SendFunc
	mu   sync.Mutex
	name string
}

// OpenMIDIOut opens a MIDI output. With createVirtual set, a virtual port
// named DefaultVirtualPortName is created; otherwise portName selects an
// existing port by case-insensitive substring match (a single available port
// is used when portName is empty). Failure here is a startup device error.
func OpenMIDIOut(portName string, createVirtual bool) (*MIDIOut, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, WrapError(err, "failed to initialize MIDI driver", ErrCodeMIDIPort)
	}

	m := &MIDIOut{drv: drv}
	if createVirtual {
		port, err := drv.OpenVirtualOut(DefaultVirtualPortName)
		if err != nil {
			drv.Close()
			return nil, WrapError(err, "failed to open virtual MIDI port", ErrCodeMIDIPort)
		}
		m.port = port
	} else {
		port, err := findOutPort(drv, portName)
		if err != nil {
			drv.Close()
			return nil, err
		}
		if err := port.Open(); err != nil {
			drv.Close()
			return nil, WrapError(err, fmt.Sprintf("failed to open MIDI port %q", port.String()), ErrCodeMIDIPort)
		}
		m.port = port
	}
	m.name = m.port.String()

	send, err := midi.SendTo(m.port)
	if err != nil {
		m.Close()
		return nil, WrapError(err, "failed to attach MIDI sender", ErrCodeMIDIPort)
	}
	m.send = send

	GetGlobalLogger().WithComponent("MIDIOut").Infof("MIDI output ready: %s", m.name)
	return m, nil
}

func findOutPort(drv *rtmididrv.Driver, portName string) (drivers.Out, error) {
	outs, err := drv.Outs()
	if err != nil {
		return nil, WrapError(err, "failed to list MIDI outputs", ErrCodeMIDIPort)
	}
	if len(outs) == 0 {
		return nil, NewMIDIError("no MIDI output ports available")
	}
	if portName == "" {
		if len(outs) == 1 {
			return outs[0], nil
		}
		return nil, NewMIDIError("multiple MIDI ports available, select one").
			AddDetail("ports", outPortNames(outs))
	}
	for _, out := range outs {
		if strings.Contains(strings.ToLower(out.String()), strings.ToLower(portName)) {
			return out, nil
		}
	}
	return nil, NewMIDIError(fmt.Sprintf("MIDI port %q not found", portName)).
		AddDetail("ports", outPortNames(outs))
}

func outPortNames(outs []drivers.Out) []string {
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names
}

// Name returns the connected port name.
func (m *MIDIOut) Name() string {
	return m.name
}

// Send emits one message, serialized so the metronome and the player can
// share the port.
func (m *MIDIOut) Send(msg midi.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send(msg)
}

// Close releases the port and the driver.
func (m *MIDIOut) Close() {
	if m.port != nil {
		_ = m.port.Close()
		m.port = nil
	}
	if m.drv != nil {
		_ = m.drv.Close()
		m.drv = nil
	}
}

// ListMIDIOutputs returns the names of the available MIDI output ports.
func ListMIDIOutputs() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, WrapError(err, "failed to initialize MIDI driver", ErrCodeMIDIPort)
	}
	defer drv.Close()

	outs, err := drv.Outs()
	if err != nil {
		return nil, WrapError(err, "failed to list MIDI outputs", ErrCodeMIDIPort)
	}
	return outPortNames(outs), nil
}
