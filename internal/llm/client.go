package llm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EndpointError is the terminal failure of a Call: either a
// non-retryable response or an exhausted retry budget.
type EndpointError struct {
	Class      ErrorClass
	Status     int
	Message    string
	RetryAfter string
}

func (e *EndpointError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("endpoint %s (status %d): %s", e.Class, e.Status, e.Message)
	}
	return fmt.Sprintf("endpoint %s: %s", e.Class, e.Message)
}

// Config holds the endpoint connection settings.
type Config struct {
	URL           string
	APIKey        string
	AuthHeader    string
	Model         string
	Timeout       time.Duration
	SkipTLSVerify bool
}

// Client issues multimodal chat-completions calls for single documents.
// One Call spans the whole transport-level attempt sequence; waits
// between attempts come from the injected BackoffPolicy.
type Client struct {
	cfg        Config
	policy     BackoffPolicy
	httpClient *http.Client
	log        *slog.Logger

	// sleep waits between attempts; overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client. A nil logger falls back to slog.Default().
func NewClient(cfg Config, policy BackoffPolicy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = "x-goog-api-key"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	transport := http.DefaultTransport
	if cfg.SkipTLSVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}
	return &Client{
		cfg:        cfg,
		policy:     policy,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		log:        logger,
		sleep:      sleepContext,
	}
}

// Chat-completions wire types, pared down to what we send and read.
type requestImage struct {
	URL string `json:"url"`
}

type requestContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *requestImage `json:"image_url,omitempty"`
}

type requestMessage struct {
	Role    string           `json:"role"`
	Content []requestContent `json:"content"`
}

type requestBody struct {
	Model    string           `json:"model"`
	Messages []requestMessage `json:"messages"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Call sends one document image with the instruction text and returns
// the model's raw text reply. Network errors, 5xx and 429 responses are
// retried per the backoff policy; anything else fails immediately.
func (c *Client) Call(ctx context.Context, image []byte, contentType, instruction string) (string, error) {
	reqID := uuid.New().String()

	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)
	body := requestBody{
		Model: c.cfg.Model,
		Messages: []requestMessage{{
			Role: "user",
			Content: []requestContent{
				{Type: "text", Text: instruction},
				{Type: "image_url", ImageURL: &requestImage{URL: dataURL}},
			},
		}},
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		text, attemptErr := c.attempt(ctx, reqID, attempt, bs)
		if attemptErr == nil {
			return text, nil
		}

		decision := c.policy.Decide(attemptErr.Class, attempt, attemptErr.RetryAfter)
		if !decision.Retry {
			if attemptErr.Class.Retryable() {
				c.log.Error("llm.call.exhausted",
					"req_id", reqID,
					"attempts", attempt+1,
					"class", attemptErr.Class.String(),
				)
			} else {
				c.log.Error("llm.call.non_retryable",
					"req_id", reqID,
					"class", attemptErr.Class.String(),
					"status", attemptErr.Status,
				)
			}
			return "", attemptErr
		}

		c.log.Warn("llm.call.retry",
			"req_id", reqID,
			"attempt", attempt+1,
			"max_attempts", c.policy.MaxAttempts,
			"class", attemptErr.Class.String(),
			"wait_ms", decision.Wait.Milliseconds(),
		)
		if err := c.sleep(ctx, decision.Wait); err != nil {
			return "", fmt.Errorf("retry wait aborted: %w", err)
		}
	}
}

// attempt performs one outbound request and classifies any failure.
func (c *Client) attempt(ctx context.Context, reqID string, attempt int, body []byte) (string, *EndpointError) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", &EndpointError{Class: ClassClientError, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(c.cfg.AuthHeader, c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &EndpointError{Class: ClassNetwork, Message: err.Error()}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("llm.http.body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	c.log.Info("llm.http.response",
		"req_id", reqID,
		"attempt", attempt+1,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &EndpointError{
			Class:      ClassRateLimited,
			Status:     resp.StatusCode,
			Message:    snippet(raw),
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	case resp.StatusCode >= 500:
		return "", &EndpointError{Class: ClassServerError, Status: resp.StatusCode, Message: snippet(raw)}
	case resp.StatusCode/100 != 2:
		return "", &EndpointError{Class: ClassClientError, Status: resp.StatusCode, Message: snippet(raw)}
	}

	var envelope responseBody
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", &EndpointError{
			Class:   ClassResponseShape,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("decode response envelope: %v", err),
		}
	}
	if len(envelope.Choices) == 0 || strings.TrimSpace(envelope.Choices[0].Message.Content) == "" {
		return "", &EndpointError{
			Class:   ClassResponseShape,
			Status:  resp.StatusCode,
			Message: "response is valid but missing expected content",
		}
	}
	return envelope.Choices[0].Message.Content, nil
}

// snippet bounds an error body for log/error messages.
func snippet(raw []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(raw))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
