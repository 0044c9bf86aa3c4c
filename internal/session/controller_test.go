package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/avatarspeech/capture-client/internal/audio"
	"github.com/avatarspeech/capture-client/internal/pipeline"
	"github.com/avatarspeech/capture-client/internal/upload"
	"github.com/avatarspeech/capture-client/internal/viseme"
)

// fakeCapturer simulates the microphone stage.
type fakeCapturer struct {
	mu        sync.Mutex
	startErr  error
	payload   audio.Payload
	running   bool
	startHits int
}

func (f *fakeCapturer) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.startHits++
	if f.startErr != nil {
		return f.startErr
	}
	if f.running {
		return pipeline.NewError(pipeline.CaptureUnavailable, "capture already in progress")
	}
	f.running = true
	return nil
}

func (f *fakeCapturer) Stop() (audio.Payload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return audio.Payload{}, false
	}
	f.running = false
	return f.payload, true
}

// fakeConverter passes payloads through or fails on demand.
type fakeConverter struct {
	mu         sync.Mutex
	convertErr error
	hits       int
}

func (f *fakeConverter) Convert(payload audio.Payload) (audio.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hits++
	if f.convertErr != nil {
		return audio.Payload{}, f.convertErr
	}
	return audio.NewPayload(payload.Data, audio.MIMEWAV), nil
}

func (f *fakeConverter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

// fakeSender returns a canned result or error.
type fakeSender struct {
	mu      sync.Mutex
	result  *upload.Result
	sendErr error
	hits    int
}

func (f *fakeSender) Send(ctx context.Context, payload audio.Payload, filename string) (*upload.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hits++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.result, nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nonEmptyPayload() audio.Payload {
	return audio.NewPayload([]byte{1, 0, 2, 0, 3, 0, 4, 0}, audio.MIMEPCM16)
}

func newTestController(capturer *fakeCapturer, converter *fakeConverter, sender *fakeSender) *Controller {
	return NewController(capturer, converter, sender, testLogger(), nil, Config{
		UploadTimeout: 5 * time.Second,
	})
}

func TestSuccessfulSession(t *testing.T) {
	capturer := &fakeCapturer{payload: nonEmptyPayload()}
	converter := &fakeConverter{}
	sender := &fakeSender{result: &upload.Result{
		Transcript: "hello world",
		Visemes:    viseme.Timeline(`{"mouthCues":[{"start":0,"end":0.2,"value":"A"}]}`),
	}}

	controller := newTestController(capturer, converter, sender)

	if err := controller.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	snap := controller.Snapshot()
	if snap.State != StateRecording || !snap.IsRecording {
		t.Errorf("Expected recording state, got %+v", snap)
	}

	controller.StopRecording()
	controller.Wait()

	snap = controller.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("Expected idle after completion, got %s", snap.State)
	}
	if snap.Error != "" {
		t.Errorf("Expected no error, got %q", snap.Error)
	}

	result, ok := controller.Store().Latest()
	if !ok {
		t.Fatal("Expected a stored result")
	}
	if result.Transcript != "hello world" {
		t.Errorf("Expected transcript %q, got %q", "hello world", result.Transcript)
	}
}

func TestStartGestureIgnoredWhileActive(t *testing.T) {
	capturer := &fakeCapturer{payload: nonEmptyPayload()}
	controller := newTestController(capturer, &fakeConverter{}, &fakeSender{result: &upload.Result{}})

	if err := controller.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	// Second gesture while recording must not touch the device again
	if err := controller.StartRecording(context.Background()); err != nil {
		t.Errorf("Ignored gesture must not error, got %v", err)
	}
	if capturer.startHits != 1 {
		t.Errorf("Expected exactly 1 device acquisition, got %d", capturer.startHits)
	}

	controller.StopRecording()
	controller.Wait()
}

func TestStopGestureIgnoredWhileIdle(t *testing.T) {
	capturer := &fakeCapturer{payload: nonEmptyPayload()}
	converter := &fakeConverter{}
	sender := &fakeSender{result: &upload.Result{}}
	controller := newTestController(capturer, converter, sender)

	controller.StopRecording()
	controller.Wait()

	snap := controller.Snapshot()
	if snap.State != StateIdle || snap.Error != "" {
		t.Errorf("Stray stop must be a no-op, got %+v", snap)
	}
	if converter.callCount() != 0 || sender.callCount() != 0 {
		t.Error("Stray stop must not run the pipeline")
	}
}

func TestEmptyRecordingShortCircuits(t *testing.T) {
	capturer := &fakeCapturer{payload: audio.Payload{}} // stop yields no data
	converter := &fakeConverter{}
	sender := &fakeSender{result: &upload.Result{}}
	controller := newTestController(capturer, converter, sender)

	controller.StartRecording(context.Background())
	controller.StopRecording()
	controller.Wait()

	if kind := controller.LastError().Kind; kind != pipeline.EmptyRecording {
		t.Errorf("Expected %s, got %s", pipeline.EmptyRecording, kind)
	}
	if converter.callCount() != 0 {
		t.Error("Converter must never run for an empty capture")
	}
	if sender.callCount() != 0 {
		t.Error("Sender must never run for an empty capture")
	}
	if controller.Snapshot().State != StateIdle {
		t.Error("Controller must return to idle")
	}
}

func TestCaptureStartFailureStaysIdle(t *testing.T) {
	capturer := &fakeCapturer{
		startErr: pipeline.NewError(pipeline.PermissionDenied, "Microphone access denied by the user"),
	}
	controller := newTestController(capturer, &fakeConverter{}, &fakeSender{})

	err := controller.StartRecording(context.Background())
	if pipeline.KindOf(err) != pipeline.PermissionDenied {
		t.Errorf("Expected %s, got %v", pipeline.PermissionDenied, err)
	}

	snap := controller.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("Expected idle after denied start, got %s", snap.State)
	}
	if snap.Error == "" {
		t.Error("Expected the denial message to be attached")
	}
	if snap.IsRecording {
		t.Error("Controller must never enter recording on a denied start")
	}
}

func TestConversionFailureClearsStore(t *testing.T) {
	capturer := &fakeCapturer{payload: nonEmptyPayload()}
	converter := &fakeConverter{
		convertErr: pipeline.NewError(pipeline.ConversionFailure, "truncated stream"),
	}
	sender := &fakeSender{result: &upload.Result{Transcript: "stale"}}
	controller := newTestController(capturer, converter, sender)

	// Seed a previous success so staleness is observable
	controller.Store().Set(&upload.Result{Transcript: "previous"})

	controller.StartRecording(context.Background())
	controller.StopRecording()
	controller.Wait()

	if kind := controller.LastError().Kind; kind != pipeline.ConversionFailure {
		t.Errorf("Expected %s, got %s", pipeline.ConversionFailure, kind)
	}
	if _, ok := controller.Store().Latest(); ok {
		t.Error("Store must be cleared, not stale, after a conversion failure")
	}
	if sender.callCount() != 0 {
		t.Error("Upload must be skipped after a conversion failure")
	}

	// The controller accepts a new gesture immediately
	if err := controller.StartRecording(context.Background()); err != nil {
		t.Errorf("Expected controller to accept a new start, got %v", err)
	}
	controller.StopRecording()
	controller.Wait()
}

func TestUploadFailureAttachesError(t *testing.T) {
	capturer := &fakeCapturer{payload: nonEmptyPayload()}
	sender := &fakeSender{
		sendErr: pipeline.NewServerError(500, "Internal Server Error"),
	}
	controller := newTestController(capturer, &fakeConverter{}, sender)

	controller.StartRecording(context.Background())
	controller.StopRecording()
	controller.Wait()

	perr := controller.LastError()
	if perr == nil || perr.Kind != pipeline.ServerError {
		t.Errorf("Expected server error, got %v", perr)
	}
	if _, ok := controller.Store().Latest(); ok {
		t.Error("Store must stay empty after a failed upload")
	}
}

func TestSuccessClearsPreviousError(t *testing.T) {
	capturer := &fakeCapturer{payload: audio.Payload{}}
	converter := &fakeConverter{}
	sender := &fakeSender{result: &upload.Result{Transcript: "ok"}}
	controller := newTestController(capturer, converter, sender)

	// First attempt fails with an empty capture
	controller.StartRecording(context.Background())
	controller.StopRecording()
	controller.Wait()
	if controller.LastError() == nil {
		t.Fatal("Expected first session to fail")
	}

	// Second attempt succeeds and must clear the error
	capturer.payload = nonEmptyPayload()
	controller.StartRecording(context.Background())
	controller.StopRecording()
	controller.Wait()

	if controller.LastError() != nil {
		t.Errorf("Expected error cleared after success, got %v", controller.LastError())
	}
	if snap := controller.Snapshot(); snap.Error != "" {
		t.Errorf("Snapshot must not carry the old error, got %q", snap.Error)
	}
}

func TestStoreClearedOnNewStart(t *testing.T) {
	capturer := &fakeCapturer{payload: nonEmptyPayload()}
	controller := newTestController(capturer, &fakeConverter{}, &fakeSender{result: &upload.Result{Transcript: "first"}})

	controller.StartRecording(context.Background())
	controller.StopRecording()
	controller.Wait()

	if _, ok := controller.Store().Latest(); !ok {
		t.Fatal("Expected a stored result after success")
	}

	// Starting again must clear the previous result immediately
	controller.StartRecording(context.Background())
	if _, ok := controller.Store().Latest(); ok {
		t.Error("Stale result must not linger during a new attempt")
	}
	controller.StopRecording()
	controller.Wait()
}

func TestUntaggedFailureBecomesUnknown(t *testing.T) {
	capturer := &fakeCapturer{payload: nonEmptyPayload()}
	sender := &fakeSender{sendErr: errors.New("weird transport hiccup")}
	controller := newTestController(capturer, &fakeConverter{}, sender)

	controller.StartRecording(context.Background())
	controller.StopRecording()
	controller.Wait()

	perr := controller.LastError()
	if perr == nil || perr.Kind != pipeline.UnknownError {
		t.Errorf("Expected unknown error kind, got %v", perr)
	}
	if perr.Message != "weird transport hiccup" {
		t.Errorf("Message must not be dropped, got %q", perr.Message)
	}
}
