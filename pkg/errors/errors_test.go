package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidDimensions, "source is %dx%d", 0, 10)

	if err.Code != ErrCodeInvalidDimensions {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidDimensions)
	}

	expected := "INVALID_DIMENSIONS: source is 0x10"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeRemoteTransient, cause, "inpaint request")

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if err.Error() != "REMOTE_TRANSIENT: inpaint request: connection refused" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestIsThroughWrapping(t *testing.T) {
	base := New(ErrCodeEncoderFailure, "pipe closed")
	wrapped := fmt.Errorf("slideshow: %w", base)

	if !Is(wrapped, ErrCodeEncoderFailure) {
		t.Error("Is should unwrap fmt.Errorf chains")
	}
	if Is(wrapped, ErrCodeRemoteFatal) {
		t.Error("Is should not match a different code")
	}
	if GetCode(wrapped) != ErrCodeEncoderFailure {
		t.Errorf("GetCode = %v", GetCode(wrapped))
	}
	if GetCode(errors.New("plain")) != "" {
		t.Error("GetCode of a plain error should be empty")
	}
}

func TestTransient(t *testing.T) {
	if !Transient(New(ErrCodeRemoteTransient, "429")) {
		t.Error("transient code should be retryable")
	}
	if Transient(New(ErrCodeRemoteFatal, "401")) {
		t.Error("fatal code should not be retryable")
	}
	if Transient(nil) {
		t.Error("nil is not transient")
	}
}
