package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// headerSize is the fixed size of the canonical RIFF/WAVE header.
const headerSize = 44

// Canonical container parameters. Uncompressed mono PCM-16 needs no
// server-side codec and decodes everywhere, at the cost of bandwidth.
const (
	CanonicalChannels      = 1
	CanonicalBitsPerSample = 16
	DefaultSampleRate      = 16000
)

// WAVHeader is the canonical 44-byte RIFF/WAVE header layout.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // bytes of sample data
}

// EncodeWAV encodes PCM-16 samples into the canonical WAV container. The
// output is deterministic: identical samples and rate always produce
// bit-identical bytes.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty sample buffer")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(headerSize-8) + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   CanonicalChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * CanonicalChannels * CanonicalBitsPerSample / 8,
		BlockAlign:    CanonicalChannels * CanonicalBitsPerSample / 8,
		BitsPerSample: CanonicalBitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write sample data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV decodes canonical WAV data back into PCM-16 samples and the
// sample rate declared in the header.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < headerSize {
		return nil, 0, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", headerSize, len(data))
	}

	buf := bytes.NewReader(data)
	var header WAVHeader
	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(header.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing WAVE format")
	}
	if string(header.Subchunk1ID[:]) != "fmt " {
		return nil, 0, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if string(header.Subchunk2ID[:]) != "data" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing data chunk")
	}
	if header.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format %d: only PCM is supported", header.AudioFormat)
	}
	if header.BitsPerSample != CanonicalBitsPerSample {
		return nil, 0, fmt.Errorf("unsupported bit depth %d: only 16-bit is supported", header.BitsPerSample)
	}
	if header.NumChannels != CanonicalChannels {
		return nil, 0, fmt.Errorf("unsupported channel count %d: only mono is supported", header.NumChannels)
	}

	numSamples := int(header.Subchunk2Size) / 2
	if numSamples <= 0 {
		return nil, 0, fmt.Errorf("no sample data found")
	}
	if headerSize+numSamples*2 > len(data) {
		return nil, 0, fmt.Errorf("data chunk declares %d bytes but only %d are present",
			header.Subchunk2Size, len(data)-headerSize)
	}

	samples := make([]int16, numSamples)
	if err := binary.Read(buf, binary.LittleEndian, samples); err != nil {
		return nil, 0, fmt.Errorf("failed to read sample data: %w", err)
	}

	return samples, int(header.SampleRate), nil
}

// ValidateWAV checks the container markers without decoding sample data.
func ValidateWAV(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("WAV data too short: need at least %d bytes, got %d", headerSize, len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return fmt.Errorf("invalid WAV file: missing WAVE format")
	}
	if string(data[12:16]) != "fmt " {
		return fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if string(data[36:40]) != "data" {
		return fmt.Errorf("invalid WAV file: missing data chunk")
	}
	return nil
}

// WAVDuration returns the duration of canonical WAV data in seconds.
func WAVDuration(data []byte) (float64, error) {
	if err := ValidateWAV(data); err != nil {
		return 0, err
	}

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	if sampleRate == 0 {
		return 0, fmt.Errorf("invalid sample rate: 0")
	}

	dataSize := binary.LittleEndian.Uint32(data[40:44])
	numSamples := dataSize / 2

	return float64(numSamples) / float64(sampleRate), nil
}

// SamplesToBytes serializes PCM-16 samples as little-endian bytes, the raw
// form the capture stage accumulates.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToSamples parses little-endian PCM-16 bytes into samples.
func BytesToSamples(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("PCM-16 data length must be even, got %d bytes", len(data))
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}
