// Package audio handles in-memory audio payloads for the capture pipeline.
// It implements per-session fragment buffering, conversion of raw PCM
// captures into the canonical WAV container, and RIFF/WAVE encoding,
// decoding, and validation.
package audio
