package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avatarspeech/capture-client/internal/audio"
	"github.com/avatarspeech/capture-client/internal/metrics"
	"github.com/avatarspeech/capture-client/internal/pipeline"
	"github.com/avatarspeech/capture-client/internal/upload"
)

// State names the controller's position in the pipeline.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateConverting State = "converting"
	StateUploading  State = "uploading"
)

// Capturer is the microphone-owning stage.
type Capturer interface {
	// Start acquires the device and begins accumulating audio.
	Start(ctx context.Context) error
	// Stop releases the device and returns the accumulated payload. The
	// flag is false when no capture was running.
	Stop() (audio.Payload, bool)
}

// Converter turns a captured payload into the canonical container.
type Converter interface {
	Convert(payload audio.Payload) (audio.Payload, error)
}

// Sender delivers a canonical payload to the speech endpoint.
type Sender interface {
	Send(ctx context.Context, payload audio.Payload, filename string) (*upload.Result, error)
}

// Config contains controller configuration.
type Config struct {
	// UploadTimeout bounds the network stage so a hung request cannot
	// leave the controller uploading forever. Zero means 30 seconds.
	UploadTimeout time.Duration
	// Filename is the upload filename, DefaultFilename when empty.
	Filename string
}

// Controller sequences capture, conversion, and upload for one session at a
// time and exposes the latest outcome to the UI and animation consumers.
// All stages of one session run on a single goroutine in order; stages
// never overlap, and once conversion has begun the session runs to its
// outcome without cancellation.
type Controller struct {
	capturer  Capturer
	converter Converter
	sender    Sender
	store     *Store
	logger    *slog.Logger
	metrics   *metrics.Metrics // optional, may be nil
	config    Config

	mu           sync.Mutex
	state        State
	lastErr      *pipeline.Error
	sessionStart time.Time

	// pipelineWG tracks the in-flight pipeline goroutine so tests and
	// shutdown can wait for the outcome.
	pipelineWG sync.WaitGroup
}

// Snapshot is the externally visible controller state.
type Snapshot struct {
	State        State          `json:"state"`
	IsRecording  bool           `json:"is_recording"`
	IsProcessing bool           `json:"is_processing"`
	Error        string         `json:"error,omitempty"`
	Result       *upload.Result `json:"result,omitempty"`
}

// NewController creates a controller in the idle state. metrics may be nil.
func NewController(capturer Capturer, converter Converter, sender Sender,
	logger *slog.Logger, m *metrics.Metrics, config Config) *Controller {

	if config.UploadTimeout <= 0 {
		config.UploadTimeout = 30 * time.Second
	}
	if config.Filename == "" {
		config.Filename = upload.DefaultFilename
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		capturer:  capturer,
		converter: converter,
		sender:    sender,
		store:     NewStore(),
		logger:    logger,
		metrics:   m,
		config:    config,
		state:     StateIdle,
	}
}

// Store returns the result store consumed by the animation layer.
func (c *Controller) Store() *Store {
	return c.store
}

// StartRecording handles the start gesture. A gesture received while a
// session is active is ignored, never queued. On a capture failure the
// controller stays idle with the classified error attached and returns it.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		c.logger.Debug("Ignoring start gesture, session already active",
			slog.String("state", string(c.state)),
		)
		return nil
	}

	// A new attempt must never show the previous outcome
	c.store.Clear()
	c.lastErr = nil

	if err := c.capturer.Start(ctx); err != nil {
		perr := pipeline.Classify(err)
		c.lastErr = perr
		c.observeFailure(perr)
		c.logger.Error("Failed to start capture",
			slog.String("kind", string(perr.Kind)),
			slog.String("error", perr.Message),
		)
		return perr
	}

	c.state = StateRecording
	c.sessionStart = time.Now()

	if c.metrics != nil {
		c.metrics.SessionsStarted.Inc()
		c.metrics.ActiveSession.Set(1)
	}

	c.logger.Info("Recording started")
	return nil
}

// StopRecording handles the stop gesture. A gesture received while not
// recording is ignored, which defends against a stray stop without a
// matching start. On a real stop the remaining stages run asynchronously;
// the outcome is observable via Snapshot, the store, and Wait.
func (c *Controller) StopRecording() {
	c.mu.Lock()

	if c.state != StateRecording {
		c.logger.Debug("Ignoring stop gesture, no recording in progress",
			slog.String("state", string(c.state)),
		)
		c.mu.Unlock()
		return
	}

	payload, ok := c.capturer.Stop()
	if !ok || payload.IsEmpty() {
		// Skip conversion and upload entirely
		perr := pipeline.NewError(pipeline.EmptyRecording, "recording contains no audio data")
		c.finishLocked(nil, perr)
		c.mu.Unlock()
		return
	}

	if c.metrics != nil {
		c.metrics.CaptureBytes.Observe(float64(payload.Size()))
	}

	c.state = StateConverting
	c.logger.Info("Recording stopped",
		slog.Int("captured_bytes", payload.Size()),
	)

	c.pipelineWG.Add(1)
	c.mu.Unlock()

	go c.runPipeline(payload)
}

// runPipeline executes the conversion and upload stages sequentially for
// one session. Each stage's failure short-circuits the remainder.
func (c *Controller) runPipeline(payload audio.Payload) {
	defer c.pipelineWG.Done()

	convertStart := time.Now()
	converted, err := c.converter.Convert(payload)
	if err != nil {
		c.finish(nil, pipeline.Classify(err))
		return
	}
	if c.metrics != nil {
		c.metrics.ConvertDuration.Observe(time.Since(convertStart).Seconds())
		c.metrics.UploadPayload.Observe(float64(converted.Size()))
	}

	c.setState(StateUploading)

	ctx, cancel := context.WithTimeout(context.Background(), c.config.UploadTimeout)
	defer cancel()

	uploadStart := time.Now()
	result, err := c.sender.Send(ctx, converted, c.config.Filename)
	if c.metrics != nil {
		c.metrics.UploadDuration.Observe(time.Since(uploadStart).Seconds())
	}
	if err != nil {
		c.finish(nil, pipeline.Classify(err))
		return
	}

	c.finish(result, nil)
}

// Wait blocks until any in-flight pipeline run has reached its outcome.
func (c *Controller) Wait() {
	c.pipelineWG.Wait()
}

// Snapshot returns the externally visible state for the UI layer.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:        c.state,
		IsRecording:  c.state == StateRecording,
		IsProcessing: c.state == StateConverting || c.state == StateUploading,
	}
	if c.lastErr != nil {
		snap.Error = c.lastErr.Message
	}
	if result, ok := c.store.Latest(); ok {
		snap.Result = result
	}
	return snap
}

// LastError returns the last session's classified error, nil after success.
func (c *Controller) LastError() *pipeline.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// finish records the session outcome and returns the controller to idle so
// a new gesture is accepted immediately.
func (c *Controller) finish(result *upload.Result, perr *pipeline.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishLocked(result, perr)
}

// finishLocked is finish for callers already holding the mutex.
func (c *Controller) finishLocked(result *upload.Result, perr *pipeline.Error) {
	if perr != nil {
		c.store.Clear()
		c.lastErr = perr
		c.observeFailure(perr)
		c.logger.Error("Session failed",
			slog.String("kind", string(perr.Kind)),
			slog.String("error", perr.Message),
		)
	} else {
		c.store.Set(result)
		c.lastErr = nil
		if c.metrics != nil {
			c.metrics.SessionsSucceeded.Inc()
		}
		c.logger.Info("Session succeeded",
			slog.Int("transcript_length", len(result.Transcript)),
			slog.Bool("has_visemes", !result.Visemes.IsEmpty()),
		)
	}

	if c.metrics != nil {
		c.metrics.ActiveSession.Set(0)
		if !c.sessionStart.IsZero() && c.state != StateIdle {
			c.metrics.SessionDuration.Observe(time.Since(c.sessionStart).Seconds())
		}
	}

	c.state = StateIdle
}

// observeFailure bumps the failure counter for the error kind.
func (c *Controller) observeFailure(perr *pipeline.Error) {
	if c.metrics != nil {
		c.metrics.SessionsFailed.WithLabelValues(string(perr.Kind)).Inc()
	}
}
