package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/avatarspeech/capture-client/internal/audio"
	"github.com/avatarspeech/capture-client/internal/pipeline"
)

// Config contains recorder configuration.
type Config struct {
	SampleRate      int           // Hz, 16000 by default
	FramesPerBuffer int           // samples read from the device per cycle
	MaxDuration     time.Duration // accumulation cap, 0 disables it
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = 1024
	}
	return c
}

// Recorder records mono PCM-16 audio from the default input device. One
// recorder serves many sequential sessions; the underlying portaudio host
// is shared process-wide.
type Recorder struct {
	config Config

	mu      sync.Mutex
	stream  *portaudio.Stream
	readBuf []int16
	buffer  *audio.Buffer
	running bool
	done    chan struct{}
}

// Stats describes the current capture session for monitoring.
type Stats struct {
	Recording bool              `json:"recording"`
	Buffer    audio.BufferStats `json:"buffer"`
}

// NewRecorder creates a recorder. The device is not touched until Start.
func NewRecorder(config Config) *Recorder {
	config = config.withDefaults()

	maxBytes := 0
	if config.MaxDuration > 0 {
		maxBytes = int(config.MaxDuration.Seconds()*float64(config.SampleRate)) * 2
	}

	return &Recorder{
		config:  config,
		readBuf: make([]int16, config.FramesPerBuffer),
		buffer:  audio.NewBuffer(config.SampleRate*4, maxBytes), // hint: 2s of PCM-16
	}
}

// Start acquires the microphone and begins accumulating audio. It returns
// once capture is actively running. Failures are classified: denied access
// maps to PermissionDenied, a missing input device to DeviceNotFound, and
// anything else to CaptureUnavailable. Starting while already recording
// fails fast with CaptureUnavailable.
func (r *Recorder) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return pipeline.WrapError(pipeline.CaptureUnavailable, "capture cancelled before start", err)
	}

	if err := ensureHost(); err != nil {
		return classifyAcquireError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return pipeline.NewError(pipeline.CaptureUnavailable, "capture already in progress")
	}

	if _, err := portaudio.DefaultInputDevice(); err != nil {
		return pipeline.WrapError(pipeline.DeviceNotFound, "no audio input device available", err)
	}

	stream, err := portaudio.OpenDefaultStream(
		audio.CanonicalChannels, // input channels
		0,                       // output channels
		float64(r.config.SampleRate),
		r.config.FramesPerBuffer,
		r.readBuf,
	)
	if err != nil {
		return classifyAcquireError(err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return classifyAcquireError(err)
	}

	r.stream = stream
	r.running = true
	r.done = make(chan struct{})
	r.buffer.Flush()

	go r.recordLoop()

	return nil
}

// recordLoop drains the device into the session buffer until Stop flips
// the running flag.
func (r *Recorder) recordLoop() {
	defer close(r.done)

	for {
		r.mu.Lock()
		running := r.running
		stream := r.stream
		r.mu.Unlock()

		if !running || stream == nil {
			return
		}

		available, err := stream.AvailableToRead()
		if err != nil || available < r.config.FramesPerBuffer {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if err := stream.Read(); err != nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		r.mu.Lock()
		if r.running {
			r.buffer.Append(audio.SamplesToBytes(r.readBuf))
		}
		r.mu.Unlock()
	}
}

// Stop ends the session, flushes buffered fragments, and releases the
// device so the microphone indicator turns off. The device is closed only
// after the record loop has exited, keeping the final fragment intact. The
// returned flag is false when no capture was running; that call is a no-op.
func (r *Recorder) Stop() (audio.Payload, bool) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return audio.Payload{}, false
	}

	r.running = false
	stream := r.stream
	r.stream = nil
	done := r.done
	r.mu.Unlock()

	// The loop checks the running flag every cycle; bound the wait anyway
	// so a wedged device cannot hang Stop.
	if done != nil {
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
		}
	}

	if stream != nil {
		stream.Stop()
		stream.Close()
	}

	data := r.buffer.Flush()
	mime := fmt.Sprintf("%s;rate=%d;channels=%d", audio.MIMEPCM16, r.config.SampleRate, audio.CanonicalChannels)

	return audio.NewPayload(data, mime), true
}

// IsRecording reports whether a capture session is active.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stats returns the current capture statistics.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()

	return Stats{
		Recording: running,
		Buffer:    r.buffer.Stats(),
	}
}

// classifyAcquireError maps a device acquisition failure onto the pipeline
// taxonomy, keeping the driver's message.
func classifyAcquireError(err error) *pipeline.Error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "access denied"):
		return pipeline.WrapError(pipeline.PermissionDenied, "microphone access denied: "+err.Error(), err)
	case strings.Contains(msg, "no device") || strings.Contains(msg, "device unavailable") ||
		strings.Contains(msg, "no default input"):
		return pipeline.WrapError(pipeline.DeviceNotFound, "no audio input device available: "+err.Error(), err)
	default:
		return pipeline.WrapError(pipeline.CaptureUnavailable, "failed to acquire audio device: "+err.Error(), err)
	}
}
