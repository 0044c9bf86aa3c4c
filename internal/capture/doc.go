// Package capture owns the microphone resource. It records one utterance
// per session into an in-memory fragment buffer and releases the device
// only after the final fragment has been flushed, so the last chunk is
// never truncated. Device acquisition is exclusive; a second Start while
// recording fails fast instead of opening a second stream.
package capture
