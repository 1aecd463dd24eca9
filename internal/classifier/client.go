// Package classifier talks to the frame-classification inference service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"skysort/internal/services"
)

// Labels the inference service can assign to a frame.
const (
	LabelFreefall = "freefall"
	LabelCanopy   = "canopy"
	LabelInPlane  = "in_plane"
	LabelGround   = "ground"
)

const (
	defaultHTTPTimeout   = 30 * time.Second
	defaultWarmupTimeout = 2 * time.Minute
	defaultBatchSize     = 16

	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// Config captures the runtime settings required to talk to the service.
type Config struct {
	Endpoint             string
	TimeoutSeconds       int
	WarmupTimeoutSeconds int
	BatchSize            int
}

// Prediction is the label assigned to one frame.
type Prediction struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Client wraps the inference HTTP API. The model is loaded lazily on first
// use and at most once per process.
type Client struct {
	cfg        Config
	httpClient *http.Client

	warmupOnce sync.Once
	warmupErr  error

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryMaxAttempts = attempts
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewClient constructs a classifier client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")

	client := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("classifier request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// EnsureLoaded asks the service to load its model. The request is issued at
// most once per process; later calls return the recorded outcome.
func (c *Client) EnsureLoaded(ctx context.Context) error {
	c.warmupOnce.Do(func() {
		timeout := defaultWarmupTimeout
		if c.cfg.WarmupTimeoutSeconds > 0 {
			timeout = time.Duration(c.cfg.WarmupTimeoutSeconds) * time.Second
		}
		warmupCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(warmupCtx, http.MethodPost, c.cfg.Endpoint+"/v1/warmup", nil)
		if err != nil {
			c.warmupErr = services.Wrap(services.ErrConfiguration, "classify", "warmup", "build request", err)
			return
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.warmupErr = services.Wrap(services.ErrUnavailable, "classify", "warmup", "model load request", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			c.warmupErr = services.Wrap(services.ErrUnavailable, "classify", "warmup", "",
				&httpStatusError{StatusCode: resp.StatusCode, Body: string(body)})
		}
	})
	return c.warmupErr
}

// Classify labels the frames at the given image paths, preserving order.
// Requests are chunked by the configured batch size.
func (c *Client) Classify(ctx context.Context, framePaths []string) ([]Prediction, error) {
	if len(framePaths) == 0 {
		return nil, nil
	}
	if err := c.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	out := make([]Prediction, 0, len(framePaths))
	for start := 0; start < len(framePaths); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(framePaths) {
			end = len(framePaths)
		}
		predictions, err := c.classifyChunkWithRetry(ctx, framePaths[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, predictions...)
	}
	return out, nil
}

// HealthCheck verifies the service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"/healthz", nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "classify", "health", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "classify", "health", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrUnavailable, "classify", "health", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *Client) classifyChunkWithRetry(ctx context.Context, framePaths []string) ([]Prediction, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		predictions, err := c.classifyChunkOnce(ctx, framePaths)
		if err == nil {
			return predictions, nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.retryMaxAttempts {
			break
		}
		delay := c.retryBaseDelay << (attempt - 1)
		if delay > c.retryMaxDelay {
			delay = c.retryMaxDelay
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) classifyChunkOnce(ctx context.Context, framePaths []string) ([]Prediction, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for i, path := range framePaths {
		part, err := writer.CreateFormFile(fmt.Sprintf("frame_%d", i), filepath.Base(path))
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "classify", "request", "build multipart", err)
		}
		file, err := os.Open(path)
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, "classify", "request", "open frame", err)
		}
		_, copyErr := io.Copy(part, file)
		_ = file.Close()
		if copyErr != nil {
			return nil, services.Wrap(services.ErrTransient, "classify", "request", "read frame", copyErr)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "classify", "request", "finalize multipart", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/v1/classify", &body)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "classify", "request", "build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "classify", "request", "", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "classify", "request", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Body: string(payload)}
		marker := services.ErrExternalTool
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			marker = services.ErrUnavailable
		}
		return nil, services.Wrap(marker, "classify", "request", "", statusErr)
	}

	var decoded struct {
		Predictions []Prediction `json:"predictions"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "classify", "request", "decode response", err)
	}
	if len(decoded.Predictions) != len(framePaths) {
		return nil, services.Wrap(services.ErrExternalTool, "classify", "request",
			fmt.Sprintf("got %d predictions for %d frames", len(decoded.Predictions), len(framePaths)), nil)
	}
	for i := range decoded.Predictions {
		decoded.Predictions[i].Category = strings.ToLower(strings.TrimSpace(decoded.Predictions[i].Category))
	}
	return decoded.Predictions, nil
}

func retryable(err error) bool {
	if services.IsRetryable(err) {
		return true
	}
	return errors.Is(err, services.ErrTransient)
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if c.sleeper != nil {
		c.sleeper(delay)
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
