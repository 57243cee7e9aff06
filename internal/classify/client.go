package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"neuroskip/internal/config"
)

const userAgent = "Neuroskip-Go/0.1.0"

// LabelAd is the sentinel the classifier returns for advertisement text.
const LabelAd = "1"

// Request carries one segment plus the rolling context from the batch.
// Pointer fields serialize as null when no context is available.
type Request struct {
	PreviousSegment *string `json:"previousSegment"`
	PreviousClass   *string `json:"previousClass"`
	CurrentSegment  string  `json:"currentSegment"`
	NextSegment     *string `json:"nextSegment"`
}

// Labeler abstracts the external classifier call for tests.
type Labeler interface {
	Classify(ctx context.Context, req Request) (string, error)
}

// Client posts transcript text to the advertisement classifier endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

var _ Labeler = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New builds a classifier client from configuration.
func New(cfg config.Classifier, opts ...Option) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, errors.New("classifier url is required")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Classify submits one segment and returns the label the service produced.
func (c *Client) Classify(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode classify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build classify request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("classifier returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode classifier response: %w", err)
	}
	return decoded.Response, nil
}
