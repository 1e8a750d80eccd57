// Package llm provides a chat-completions client for OpenAI compatible
// translation endpoints. Errors are classified into the categories the
// translation pipeline's retry policies distinguish.
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

const (
	// DefaultTimeout is the per-request timeout for chat completion calls
	DefaultTimeout = 120 * time.Second
	// DefaultTemperature keeps translations consistent across retries
	DefaultTemperature = 0.3
)

// ErrorKind classifies a service error for retry-policy selection.
type ErrorKind int

const (
	// KindService covers transient server-side failures (5xx and similar)
	KindService ErrorKind = iota
	// KindRateLimited is a rate-limit signal (HTTP 429)
	KindRateLimited
	// KindTimeout is a request timeout or deadline expiry
	KindTimeout
	// KindBadRequest is a rejected request (4xx other than 404/429),
	// including content-filter rejections; never retried
	KindBadRequest
	// KindNotFound means the configured model or deployment does not exist
	// (HTTP 404); fatal to the whole run
	KindNotFound
)

// String returns a short name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	default:
		return "service_error"
	}
}

// Error is a classified chat-service error.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("chat service %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("chat service %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf extracts the classification of err. Unclassified errors map to
// KindService, except context/network timeouts which map to KindTimeout.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindService
}

// Client is the chat-style translation collaborator: one system instruction,
// one user text, one text response.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatClientConfig holds configuration for creating a ChatClient
type ChatClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ChatClient calls an OpenAI compatible chat completions endpoint.
type ChatClient struct {
	apiKey  string
	apiURL  string
	model   string
	timeout time.Duration
	client  *http.Client
}

// NewChatClient creates a new ChatClient with the given configuration
func NewChatClient(cfg ChatClientConfig) *ChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ChatClient{
		apiKey:  cfg.APIKey,
		apiURL:  normalizeAPIURL(cfg.BaseURL),
		model:   cfg.Model,
		timeout: timeout,
		// Timeouts are enforced per request via context so a caller's
		// cancellation is observed during retries as well.
		client: &http.Client{},
	}
}

// normalizeAPIURL ensures the API URL ends with /chat/completions
func normalizeAPIURL(url string) string {
	if url == "" {
		return "https://api.openai.com/v1/chat/completions"
	}
	url = strings.TrimSuffix(url, "/")
	if strings.HasSuffix(url, "/chat/completions") {
		return url
	}
	return url + "/chat/completions"
}

// chatRequest is the request body for the chat completions API
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response body from the chat completions API
type chatResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Complete sends one chat completion request and returns the response text.
func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: DefaultTemperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", &Error{Kind: KindBadRequest, Message: "failed to marshal request body", Cause: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", &Error{Kind: KindBadRequest, Message: "failed to create HTTP request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	// Azure style endpoints authenticate with api-key instead; sending both
	// headers is accepted by either.
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return "", &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
		}
		return "", &Error{Kind: KindService, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindService, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(resp.StatusCode, body)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &Error{Kind: KindService, Message: "failed to parse response", Cause: err}
	}
	if chatResp.Error != nil {
		return "", &Error{Kind: KindService, Message: chatResp.Error.Message}
	}
	if len(chatResp.Choices) == 0 {
		return "", &Error{Kind: KindService, Message: "response contained no choices"}
	}

	return chatResp.Choices[0].Message.Content, nil
}

// classifyHTTPError maps an HTTP status to an error category
func classifyHTTPError(statusCode int, body []byte) *Error {
	detail := ""
	var errResp struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		detail = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, StatusCode: statusCode, Message: orDefault(detail, "rate limit exceeded")}
	case statusCode == http.StatusNotFound:
		return &Error{Kind: KindNotFound, StatusCode: statusCode, Message: orDefault(detail, "model or deployment not found")}
	case statusCode == http.StatusRequestTimeout:
		return &Error{Kind: KindTimeout, StatusCode: statusCode, Message: orDefault(detail, "request timed out")}
	case statusCode >= 400 && statusCode < 500:
		return &Error{Kind: KindBadRequest, StatusCode: statusCode, Message: orDefault(detail, "request rejected")}
	default:
		return &Error{Kind: KindService, StatusCode: statusCode, Message: orDefault(detail, "server error")}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
