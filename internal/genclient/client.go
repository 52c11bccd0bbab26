// Package genclient talks to the generation proxy and the asset backend on
// behalf of the studio.
package genclient

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

	"github.com/rs/zerolog"

	"genstudio/internal/clock"
)

const (
	DefaultMaxAttempts  = 3
	DefaultRetryBase    = time.Second
	DefaultPollInterval = 1500 * time.Millisecond
	DefaultPollTimeout  = 5 * time.Minute
)

// JobRegistry is the durable set of accepted job ids.
type JobRegistry interface {
	Add(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
}

// Options controls how the client is configured.
type Options struct {
	BaseURL      string
	Token        string
	HTTPClient   *http.Client
	Clock        clock.Clock
	Jobs         JobRegistry
	Logger       *zerolog.Logger
	MaxAttempts  int
	RetryBase    time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Client is safe for concurrent use by the sequencer and the recovery agent.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	clock        clock.Clock
	jobs         JobRegistry
	logger       zerolog.Logger
	maxAttempts  int
	retryBase    time.Duration
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// New constructs a client. Zero-valued options fall back to the package defaults.
func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("genclient: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	c := &Client{
		baseURL:      baseURL,
		token:        strings.TrimSpace(opts.Token),
		httpClient:   httpClient,
		clock:        clk,
		jobs:         opts.Jobs,
		logger:       logger,
		maxAttempts:  opts.MaxAttempts,
		retryBase:    opts.RetryBase,
		pollInterval: opts.PollInterval,
		pollTimeout:  opts.PollTimeout,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.retryBase <= 0 {
		c.retryBase = DefaultRetryBase
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.pollTimeout <= 0 {
		c.pollTimeout = DefaultPollTimeout
	}
	return c, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends the request and returns the status code with the fully read body.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	status, data, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if status < 200 || status >= 300 {
		return newStatusError(status, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		if msg := strings.TrimSpace(body.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(body.Error); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(string(data))
}
