package capture

import (
	"sync"

	"github.com/gordonklaus/portaudio"
)

// The portaudio host is process-wide state: initialized lazily on first
// use, reused across sessions, and torn down only at process shutdown.
var (
	hostOnce sync.Once
	hostErr  error
	hostUp   bool
	hostMu   sync.Mutex
)

// ensureHost initializes the portaudio host exactly once.
func ensureHost() error {
	hostOnce.Do(func() {
		hostErr = portaudio.Initialize()
		if hostErr == nil {
			hostMu.Lock()
			hostUp = true
			hostMu.Unlock()
		}
	})
	return hostErr
}

// TerminateHost releases the portaudio host. Call once at process exit;
// it is a no-op if the host never came up.
func TerminateHost() {
	hostMu.Lock()
	defer hostMu.Unlock()

	if hostUp {
		portaudio.Terminate()
		hostUp = false
	}
}
