package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/avatarspeech/capture-client/internal/audio"
	"github.com/avatarspeech/capture-client/internal/pipeline"
	"github.com/avatarspeech/capture-client/internal/viseme"
)

// DefaultFilename is used when the caller does not name the upload.
const DefaultFilename = "recording.wav"

// formField is the multipart field name the server expects.
const formField = "audio"

// Client sends canonical audio payloads to the speech-processing endpoint.
type Client struct {
	config     Config
	httpClient *http.Client

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64

	mu sync.RWMutex
}

// Config contains upload client configuration.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Result is the successful outcome of one upload: the transcript plus the
// viseme timeline, transported verbatim for the animation consumer.
type Result struct {
	Transcript string          `json:"transcript"`
	Visemes    viseme.Timeline `json:"viseme_data"`
}

// responseBody matches the server's success JSON. Unknown fields are
// ignored; transcript and viseme_data are extracted verbatim.
type responseBody struct {
	Transcript *string         `json:"transcript"`
	VisemeData viseme.Timeline `json:"viseme_data"`
}

// errorBody matches the server's structured error JSON.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// ClientStats represents client statistics for monitoring.
type ClientStats struct {
	TotalRequests   uint64  `json:"total_requests"`
	SuccessRequests uint64  `json:"success_requests"`
	FailedRequests  uint64  `json:"failed_requests"`
	SuccessRate     float64 `json:"success_rate"`
}

// NewClient creates an upload client.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// Send delivers the payload in a single multipart request and normalizes
// the response. Exactly one attempt is made per invocation: a transport
// failure maps to NetworkFailure, a non-2xx status to ServerError with the
// best available message, and an unparsable success body to
// MalformedResponse.
func (c *Client) Send(ctx context.Context, payload audio.Payload, filename string) (*Result, error) {
	if filename == "" {
		filename = DefaultFilename
	}

	c.incrementTotal()

	result, err := c.doRequest(ctx, payload, filename)
	if err != nil {
		c.incrementFailed()
		return nil, err
	}

	c.incrementSuccess()
	return result, nil
}

// doRequest performs the single HTTP request.
func (c *Client) doRequest(ctx context.Context, payload audio.Payload, filename string) (*Result, error) {
	body, contentType, err := buildMultipartBody(payload, filename)
	if err != nil {
		return nil, pipeline.WrapError(pipeline.UnknownError, "failed to build upload request: "+err.Error(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return nil, pipeline.WrapError(pipeline.UnknownError, "failed to create HTTP request: "+err.Error(), err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pipeline.WrapError(pipeline.NetworkFailure, "no response from server: "+err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipeline.WrapError(pipeline.NetworkFailure, "failed to read response body: "+err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, normalizeErrorResponse(resp.StatusCode, respBody)
	}

	var parsed responseBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, pipeline.WrapError(pipeline.MalformedResponse,
			"server returned success but the body could not be parsed: "+err.Error(), err)
	}
	if parsed.Transcript == nil {
		return nil, pipeline.NewError(pipeline.MalformedResponse, "server response is missing the transcript field")
	}

	return &Result{
		Transcript: *parsed.Transcript,
		Visemes:    parsed.VisemeData,
	}, nil
}

// buildMultipartBody creates the single-part form body: field "audio",
// payload bytes, part content-type set to the payload's media type.
func buildMultipartBody(payload audio.Payload, filename string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, formField, filename))
	header.Set("Content-Type", payload.MIME)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(payload.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// normalizeErrorResponse folds a non-2xx response into a single message.
// Preference order: the details field, then the error field, then a generic
// status message. A body that is not JSON degrades to its raw text; this
// fallback itself never fails.
func normalizeErrorResponse(status int, body []byte) *pipeline.Error {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Details != "":
			return pipeline.NewServerError(status, parsed.Details)
		case parsed.Error != "":
			return pipeline.NewServerError(status, parsed.Error)
		default:
			return pipeline.NewServerError(status, fmt.Sprintf("server returned status %d", status))
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return pipeline.NewServerError(status, fmt.Sprintf("server returned status %d", status))
	}
	return pipeline.NewServerError(status, fmt.Sprintf("server returned status %d: %s", status, text))
}

// Statistics methods

func (c *Client) incrementTotal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
	}
}
