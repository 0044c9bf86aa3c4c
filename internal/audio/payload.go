package audio

import "strings"

// Media types handled by the pipeline. The capture stage produces raw PCM;
// the converter produces the canonical WAV container the server accepts.
const (
	MIMEPCM16   = "audio/L16"         // raw little-endian signed 16-bit PCM
	MIMEFloat32 = "audio/x-raw-float" // raw little-endian 32-bit float PCM
	MIMEWAV     = "audio/wav"         // RIFF/WAVE container, PCM payload
)

// Payload is an immutable audio buffer plus its declared media type. A
// payload is owned by the stage that produced it until handed to the next
// stage and is never mutated after creation.
type Payload struct {
	Data []byte
	MIME string
}

// NewPayload wraps a buffer with its media type.
func NewPayload(data []byte, mime string) Payload {
	return Payload{Data: data, MIME: mime}
}

// IsEmpty reports whether the payload carries no audio data.
func (p Payload) IsEmpty() bool {
	return len(p.Data) == 0
}

// Size returns the payload length in bytes.
func (p Payload) Size() int {
	return len(p.Data)
}

// BaseMIME returns the media type without parameters, lower-cased, so
// "audio/L16;rate=16000;channels=1" matches MIMEPCM16.
func (p Payload) BaseMIME() string {
	base := p.MIME
	if idx := strings.IndexByte(base, ';'); idx >= 0 {
		base = base[:idx]
	}
	return strings.ToLower(strings.TrimSpace(base))
}
