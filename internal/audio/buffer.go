package audio

import (
	"sync"
	"time"
)

// Buffer accumulates raw encoded audio fragments for a single recording
// session. Fragments are append-only and kept in arrival order; the buffer
// is flushed exactly once when the session's capture stops.
type Buffer struct {
	data      []byte
	fragments int
	maxBytes  int // 0 means unbounded
	truncated bool

	createdAt  time.Time
	lastUpdate time.Time

	mu sync.RWMutex
}

// BufferStats describes the accumulation state for monitoring.
type BufferStats struct {
	Fragments  int       `json:"fragments"`
	Bytes      int       `json:"bytes"`
	Truncated  bool      `json:"truncated"`
	CreatedAt  time.Time `json:"created_at"`
	LastUpdate time.Time `json:"last_update"`
}

// NewBuffer creates a session buffer. capacityHint pre-allocates storage in
// bytes; maxBytes caps accumulation (0 disables the cap). Audio past the cap
// is dropped and the buffer marked truncated rather than failing capture.
func NewBuffer(capacityHint, maxBytes int) *Buffer {
	if capacityHint < 0 {
		capacityHint = 0
	}
	now := time.Now()
	return &Buffer{
		data:       make([]byte, 0, capacityHint),
		maxBytes:   maxBytes,
		createdAt:  now,
		lastUpdate: now,
	}
}

// Append copies a fragment into the buffer. Zero-length fragments are
// counted but add no data.
func (b *Buffer) Append(fragment []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.fragments++
	b.lastUpdate = time.Now()

	if len(fragment) == 0 {
		return
	}

	if b.maxBytes > 0 {
		remaining := b.maxBytes - len(b.data)
		if remaining <= 0 {
			b.truncated = true
			return
		}
		if len(fragment) > remaining {
			fragment = fragment[:remaining]
			b.truncated = true
		}
	}

	b.data = append(b.data, fragment...)
}

// Flush returns the accumulated bytes and resets the buffer for reuse. The
// returned slice is owned by the caller.
func (b *Buffer) Flush() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := b.data
	b.data = make([]byte, 0, cap(data))
	b.fragments = 0
	b.truncated = false
	b.createdAt = time.Now()
	b.lastUpdate = b.createdAt

	return data
}

// Bytes returns a copy of the accumulated data without resetting.
func (b *Buffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Size returns the accumulated byte count.
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Fragments returns the number of fragments appended since the last flush.
func (b *Buffer) Fragments() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fragments
}

// Truncated reports whether the byte cap dropped audio this session.
func (b *Buffer) Truncated() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.truncated
}

// Duration estimates the buffered audio length for PCM-16 data at the given
// sample rate.
func (b *Buffer) Duration(sampleRate int) time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if sampleRate <= 0 {
		return 0
	}
	samples := len(b.data) / 2
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// Stats returns the current accumulation statistics.
func (b *Buffer) Stats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BufferStats{
		Fragments:  b.fragments,
		Bytes:      len(b.data),
		Truncated:  b.truncated,
		CreatedAt:  b.createdAt,
		LastUpdate: b.lastUpdate,
	}
}
