package jam

import (
	"fmt"
)

// Error codes as constants
const (
	ErrCodeAudioDevice = "AUDIO_DEVICE_ERROR"
	ErrCodeMIDIPort    = "MIDI_PORT_ERROR"
	ErrCodeTranscribe  = "TRANSCRIBE_FAILED"
	ErrCodeGenerate    = "GENERATE_FAILED"
	ErrCodePlayback    = "PLAYBACK_ERROR"
	ErrCodeConfig      = "CONFIG_INVALID"
	ErrCodeUnknown     = "UNKNOWN_ERROR"
)

// JamError is a domain error with a stable code and optional details.
type JamError struct {
	Message string
	Code    string
	Details map[string]interface{}
	err     error
}

func NewJamError(message, code string) *JamError {
	return &JamError{
		Message: message,
		Code:    code,
	}
}

func (e *JamError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Code, e.err)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *JamError) Unwrap() error {
	return e.err
}

func (e *JamError) AddDetail(key string, value interface{}) *JamError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WrapError wraps any error as a JamError with the given code.
func WrapError(err error, message, code string) *JamError {
	if err == nil {
		return nil
	}
	return &JamError{Message: message, Code: code, err: err}
}

// IsErrorCode reports whether err is a JamError carrying the given code.
func IsErrorCode(err error, code string) bool {
	je, ok := err.(*JamError)
	return ok && je.Code == code
}

func NewAudioError(message string) *JamError {
	return NewJamError(message, ErrCodeAudioDevice)
}

func NewMIDIError(message string) *JamError {
	return NewJamError(message, ErrCodeMIDIPort)
}

func NewConfigError(message string) *JamError {
	return NewJamError(message, ErrCodeConfig)
}
