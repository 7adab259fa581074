package inpaint

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	Endpoint       string
	APIKey         string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// HTTPClient calls a remote image-inpainting service: photo and mask
// go out base64-encoded, the reconstructed photo comes back the same
// way. Transient failures are retried with capped exponential backoff;
// the caller's fallback chain handles anything terminal.
type HTTPClient struct {
	httpClient     *http.Client
	endpoint       string
	apiKey         string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type repairRequest struct {
	Image string `json:"image"`
	Mask  string `json:"mask"`
}

type repairResponse struct {
	ResultImage string `json:"result_image"`
	Error       string `json:"error,omitempty"`
}

func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 1 * time.Second
	}

	maxBackoff := cfg.MaxBackoff
	if maxBackoff < initialBackoff {
		maxBackoff = initialBackoff
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoint:       strings.TrimSpace(cfg.Endpoint),
		apiKey:         cfg.APIKey,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

func (c *HTTPClient) Repair(ctx context.Context, photoPNG, maskPNG []byte) ([]byte, error) {
	if c.endpoint == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(repairRequest{
		Image: base64.StdEncoding.EncodeToString(photoPNG),
		Mask:  base64.StdEncoding.EncodeToString(maskPNG),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal repair request: %w", err)
	}

	backoff := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, retryable, err := c.attempt(ctx, body)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !retryable || attempt == c.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = minDuration(backoff*2, c.maxBackoff)
	}

	return nil, fmt.Errorf("inpainting call failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *HTTPClient) attempt(ctx context.Context, body []byte) (result []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build repair request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("inpainting service returned status=%d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("inpainting service returned status=%d", resp.StatusCode)
	}

	var parsed repairResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, fmt.Errorf("decode repair response: %w", err)
	}
	if parsed.Error != "" {
		return nil, false, fmt.Errorf("inpainting service error: %s", parsed.Error)
	}
	if strings.TrimSpace(parsed.ResultImage) == "" {
		return nil, false, ErrNoResult
	}

	decoded, err := base64.StdEncoding.DecodeString(parsed.ResultImage)
	if err != nil {
		return nil, false, fmt.Errorf("decode result image: %w", err)
	}
	return decoded, false, nil
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
