package audio

import (
	"fmt"
	"math"
	"strings"

	"github.com/avatarspeech/capture-client/internal/pipeline"
)

// Converter turns a captured audio payload into the canonical WAV container
// the server accepts. Conversion is a pure in-memory transformation with no
// network or device side effects, so a failed conversion is safe to retry
// with the same input.
type Converter struct {
	sampleRate int
}

// NewConverter creates a converter producing canonical WAV at the given
// sample rate. A non-positive rate falls back to DefaultSampleRate.
func NewConverter(sampleRate int) *Converter {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Converter{sampleRate: sampleRate}
}

// SampleRate returns the canonical output sample rate.
func (c *Converter) SampleRate() int {
	return c.sampleRate
}

// Convert decodes the payload according to its declared media type and
// re-encodes it as canonical WAV. Identical input bytes always produce
// bit-identical output. A zero-length payload is rejected before any decode
// attempt; decode failures carry the underlying decoder message.
func (c *Converter) Convert(payload Payload) (Payload, error) {
	if payload.IsEmpty() {
		return Payload{}, pipeline.NewError(pipeline.EmptyRecording, "recording contains no audio data")
	}

	samples, sampleRate, err := c.decode(payload)
	if err != nil {
		return Payload{}, pipeline.WrapError(pipeline.ConversionFailure, err.Error(), err)
	}

	wav, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		return Payload{}, pipeline.WrapError(pipeline.ConversionFailure, err.Error(), err)
	}

	return NewPayload(wav, MIMEWAV), nil
}

// decode dispatches on the declared media type and returns PCM-16 samples
// plus the rate they should be encoded at.
func (c *Converter) decode(payload Payload) ([]int16, int, error) {
	base := payload.BaseMIME()

	switch {
	case strings.EqualFold(base, MIMEPCM16):
		samples, err := BytesToSamples(payload.Data)
		if err != nil {
			return nil, 0, err
		}
		return samples, c.sampleRate, nil

	case strings.EqualFold(base, MIMEFloat32):
		samples, err := float32ToPCM16(payload.Data)
		if err != nil {
			return nil, 0, err
		}
		return samples, c.sampleRate, nil

	case strings.EqualFold(base, MIMEWAV):
		// Already a WAV container: decode and re-encode so the output is
		// canonical regardless of header quirks. The declared rate of the
		// source is kept; resampling is not attempted.
		samples, rate, err := DecodeWAV(payload.Data)
		if err != nil {
			return nil, 0, err
		}
		return samples, rate, nil

	default:
		return nil, 0, fmt.Errorf("unsupported media type %q", payload.MIME)
	}
}

// float32ToPCM16 converts little-endian 32-bit float samples in [-1, 1] to
// clamped PCM-16, the conversion portaudio float streams need.
func float32ToPCM16(data []byte) ([]int16, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("float32 data length must be a multiple of 4, got %d bytes", len(data))
	}

	samples := make([]int16, len(data)/4)
	for i := range samples {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		f := math.Float32frombits(bits)

		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		samples[i] = int16(f * math.MaxInt16)
	}
	return samples, nil
}
