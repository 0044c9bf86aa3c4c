package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/avatarspeech/capture-client/internal/pipeline"
)

func TestStopWithoutStartIsNoOp(t *testing.T) {
	recorder := NewRecorder(Config{})

	payload, ok := recorder.Stop()
	if ok {
		t.Error("Stop without Start must report no session")
	}
	if !payload.IsEmpty() {
		t.Errorf("Expected empty payload, got %d bytes", payload.Size())
	}
	if recorder.IsRecording() {
		t.Error("Recorder must stay idle")
	}

	// A second stray stop behaves the same
	if _, ok := recorder.Stop(); ok {
		t.Error("Repeated Stop must remain a no-op")
	}
}

func TestConfigDefaults(t *testing.T) {
	config := Config{}.withDefaults()

	if config.SampleRate != 16000 {
		t.Errorf("Expected default sample rate 16000, got %d", config.SampleRate)
	}
	if config.FramesPerBuffer != 1024 {
		t.Errorf("Expected default frames per buffer 1024, got %d", config.FramesPerBuffer)
	}
}

func TestMaxDurationCapsBuffer(t *testing.T) {
	recorder := NewRecorder(Config{SampleRate: 16000, MaxDuration: time.Second})

	// 1s at 16kHz PCM-16 is 32000 bytes; three 16000-byte fragments overflow it
	for i := 0; i < 3; i++ {
		recorder.buffer.Append(make([]byte, 16000))
	}

	stats := recorder.Stats()
	if stats.Buffer.Bytes != 32000 {
		t.Errorf("Expected cap at 32000 bytes, got %d", stats.Buffer.Bytes)
	}
	if !stats.Buffer.Truncated {
		t.Error("Expected truncation to be reported")
	}
}

func TestClassifyAcquireError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected pipeline.ErrorKind
	}{
		{"permission", errors.New("Device permission denied by host"), pipeline.PermissionDenied},
		{"access", errors.New("microphone access denied"), pipeline.PermissionDenied},
		{"missing device", errors.New("no default input device"), pipeline.DeviceNotFound},
		{"unavailable device", errors.New("Device unavailable"), pipeline.DeviceNotFound},
		{"other", errors.New("Invalid sample rate"), pipeline.CaptureUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyAcquireError(tt.err)
			if classified.Kind != tt.expected {
				t.Errorf("Expected kind %s, got %s", tt.expected, classified.Kind)
			}
			if !errors.Is(classified, tt.err) {
				t.Error("Classified error must wrap the driver error")
			}
		})
	}
}
