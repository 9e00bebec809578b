package jam

import (
	"errors"
	"testing"
)

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := errors.New("socket closed")
	err := WrapError(cause, "playback failed", ErrCodePlayback)

	if !IsErrorCode(err, ErrCodePlayback) {
		t.Errorf("wrapped error does not carry %s", ErrCodePlayback)
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error does not unwrap to its cause")
	}
	if WrapError(nil, "x", ErrCodeUnknown) != nil {
		t.Error("WrapError(nil) should be nil")
	}
}

func TestIsErrorCode(t *testing.T) {
	err := NewAudioError("device unplugged")
	if !IsErrorCode(err, ErrCodeAudioDevice) {
		t.Error("audio error not recognized by its code")
	}
	if IsErrorCode(err, ErrCodeMIDIPort) {
		t.Error("audio error matched the wrong code")
	}
	if IsErrorCode(errors.New("plain"), ErrCodeAudioDevice) {
		t.Error("plain error should never match a code")
	}
}

func TestJamErrorDetails(t *testing.T) {
	err := NewMIDIError("no such port").AddDetail("requested", "IAC").AddDetail("available", []string{"Synth"})
	if err.Details["requested"] != "IAC" {
		t.Errorf("details = %v", err.Details)
	}
	if err.Error() == "" {
		t.Error("error string empty")
	}
}
