package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/joho/godotenv"
	"golang.design/x/hotkey"
	"golang.design/x/hotkey/mainthread"

	"github.com/avatarspeech/capture-client/internal/audio"
	"github.com/avatarspeech/capture-client/internal/capture"
	"github.com/avatarspeech/capture-client/internal/config"
	"github.com/avatarspeech/capture-client/internal/metrics"
	"github.com/avatarspeech/capture-client/internal/server"
	"github.com/avatarspeech/capture-client/internal/session"
	"github.com/avatarspeech/capture-client/internal/upload"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "speech-capture-client"
	serviceVersion    = "1.0.0"
)

func main() {
	// hotkey registration must run on the main OS thread
	mainthread.Init(run)
}

func run() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load .env overrides before reading configuration
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Environment overrides for deployment without editing the config file
	if endpoint := os.Getenv("SPEECH_ENDPOINT"); endpoint != "" {
		cfg.Upload.Endpoint = endpoint
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log client startup
	logger.Info("Client starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Capture.SampleRate),
		slog.Int("frames_per_buffer", cfg.Capture.FramesPerBuffer),
		slog.Float64("max_duration", cfg.Capture.MaxDuration),
		slog.String("upload_endpoint", cfg.Upload.Endpoint),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize the capture, conversion and upload stages
	recorder := capture.NewRecorder(capture.Config{
		SampleRate:      cfg.Capture.SampleRate,
		FramesPerBuffer: cfg.Capture.FramesPerBuffer,
		MaxDuration:     cfg.Capture.GetMaxDuration(),
	})
	defer capture.TerminateHost()

	converter := audio.NewConverter(cfg.Capture.SampleRate)

	uploader, err := upload.NewClient(upload.Config{
		Endpoint: cfg.Upload.Endpoint,
		Timeout:  cfg.Upload.GetTimeoutDuration(),
	})
	if err != nil {
		logger.Error("Failed to create upload client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize the recording controller
	controller := session.NewController(recorder, converter, uploader, logger, appMetrics, session.Config{
		UploadTimeout: cfg.Upload.GetTimeoutDuration(),
		Filename:      cfg.Upload.Filename,
	})
	logger.Info("Recording controller initialized",
		slog.String("upload_endpoint", cfg.Upload.Endpoint),
		slog.Duration("upload_timeout", cfg.Upload.GetTimeoutDuration()),
	)

	// Initialize HTTP status server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, controller, recorder, uploader, appMetrics)
		logger.Info("HTTP status server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)

		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Register the push-to-talk hotkey: hold Ctrl+Space to record
	hk := hotkey.New([]hotkey.Modifier{hotkey.ModCtrl}, hotkey.KeySpace)
	if err := hk.Register(); err != nil {
		logger.Error("Failed to register hotkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer hk.Unregister()

	go hotkeyLoop(ctx, hk, controller, logger)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Client started successfully, hold Ctrl+Space to record")

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")
	cancel()

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Finish any in-flight session before releasing the audio host
	controller.StopRecording()
	controller.Wait()

	// Get final statistics
	stats := uploader.GetStats()
	logger.Info("Final upload statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
	)

	logger.Info("Client stopped")
}

// hotkeyLoop translates hotkey press/release events into controller gestures.
func hotkeyLoop(ctx context.Context, hk *hotkey.Hotkey, controller *session.Controller, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hk.Keydown():
			if err := controller.StartRecording(ctx); err != nil {
				logger.Error("Failed to start recording", slog.String("error", err.Error()))
				notify("Recording failed", err.Error())
			}
		case <-hk.Keyup():
			controller.StopRecording()
			go notifyOutcome(controller)
		}
	}
}

// notifyOutcome waits for the pipeline to settle and raises a desktop notification.
func notifyOutcome(controller *session.Controller) {
	controller.Wait()

	if perr := controller.LastError(); perr != nil {
		notify("Recording failed", perr.Message)
		return
	}

	if result, ok := controller.Store().Latest(); ok {
		notify("Transcription ready", result.Transcript)
	}
}

func notify(title, message string) {
	_ = beeep.Notify(serviceName+": "+title, message, "")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
