package pipeline

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := NewError(EmptyRecording, "no audio captured")
	expected := "empty_recording: no audio captured"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestServerErrorIncludesStatus(t *testing.T) {
	err := NewServerError(422, "bad sample rate")
	expected := "server_error (status 422): bad sample rate"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestClassifyKeepsTaggedKind(t *testing.T) {
	tagged := NewError(ConversionFailure, "truncated header")
	wrapped := fmt.Errorf("convert stage: %w", tagged)

	classified := Classify(wrapped)
	if classified.Kind != ConversionFailure {
		t.Errorf("Expected kind %s, got %s", ConversionFailure, classified.Kind)
	}
	if classified.Message != "truncated header" {
		t.Errorf("Expected original message, got %q", classified.Message)
	}
}

func TestClassifyUntaggedBecomesUnknown(t *testing.T) {
	plain := errors.New("something odd happened")

	classified := Classify(plain)
	if classified.Kind != UnknownError {
		t.Errorf("Expected kind %s, got %s", UnknownError, classified.Kind)
	}
	if classified.Message != "something odd happened" {
		t.Errorf("Message must carry the best available text, got %q", classified.Message)
	}
}

func TestClassifyNil(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("Classify(nil) must return nil")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("read: connection refused")
	err := WrapError(NetworkFailure, "no response from server", cause)

	if !errors.Is(err, cause) {
		t.Error("Wrapped cause must be reachable via errors.Is")
	}
	if KindOf(err) != NetworkFailure {
		t.Errorf("Expected kind %s, got %s", NetworkFailure, KindOf(err))
	}
}
