package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Config for the OpenAI-compatible client. Zero values get defaults.
type Config struct {
	BaseURL     string        // e.g. "https://api.openai.com"; required
	APIKey      string        // sent as "Authorization: Bearer"; optional for local servers
	Model       string        // default "gpt-4o-mini"
	Timeout     time.Duration // per attempt; default 60s
	MaxRetries  int           // extra attempts after the first; default 2, negative disables
	BaseBackoff time.Duration // first retry delay, doubled per attempt; default 500ms
	MaxTokens   int           // optional cap on the reply length
}

// Client calls /v1/chat/completions.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	maxTokens   int
	httpClient  *http.Client
}

var _ Completer = (*Client)(nil)

// NewClient builds a Client with its own pooled transport.
func NewClient(cfg Config) (*Client, error) {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return NewClientWithHTTPClient(cfg, &http.Client{Transport: tr})
}

// NewClientWithHTTPClient is NewClient with a caller-supplied http.Client,
// used by tests.
func NewClientWithHTTPClient(cfg Config, httpClient *http.Client) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("llm: base URL required")
	}

	c := &Client{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		maxTokens:   cfg.MaxTokens,
		httpClient:  httpClient,
	}
	if c.model == "" {
		c.model = "gpt-4o-mini"
	}
	if c.timeout <= 0 {
		c.timeout = 60 * time.Second
	}
	switch {
	case c.maxRetries == 0:
		c.maxRetries = 2
	case c.maxRetries < 0:
		c.maxRetries = 0
	}
	if c.baseBackoff <= 0 {
		c.baseBackoff = 500 * time.Millisecond
	}
	return c, nil
}

type chatCompletionRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
}

// Complete sends messages and returns the first choice's text, which may be
// empty. Rate-limit and server errors are retried with exponential backoff;
// the caller's context bounds the whole exchange.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm: encoding request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		var resp chatCompletionResponse
		lastErr = c.post(ctx, "/v1/chat/completions", body, &resp)
		if lastErr == nil {
			return extractText(resp), nil
		}
		if !retryable(ctx, lastErr) {
			return "", lastErr
		}
	}
	return "", lastErr
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llm: decoding response: %w", err)
	}
	return nil
}

// retryable: 429 and 5xx answers, plus transport errors while the caller's
// context is still alive. 4xx answers and decode errors are final.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func extractText(resp chatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	if s := resp.Choices[0].Message.Content; s != "" {
		return s
	}
	return resp.Choices[0].Text
}
