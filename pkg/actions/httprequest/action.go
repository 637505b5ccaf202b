// Package httprequest provides the http action kind: a step's parameters are
// sent as JSON to a remote endpoint that performs the real work.
package httprequest

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

	"github.com/dukex/planflow/pkg/log"
	"github.com/dukex/planflow/pkg/protocol"
	"github.com/dukex/planflow/pkg/template"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrHTTPMethodInvalid is returned when the HTTP method is invalid.
	ErrHTTPMethodInvalid = errors.New("invalid HTTP method")
	// ErrHTTPURLInvalid is returned when the endpoint URL is missing or unparsable.
	ErrHTTPURLInvalid = errors.New("invalid HTTP request url")
	// ErrHTTPServerError is returned when the server keeps answering 5xx.
	ErrHTTPServerError = errors.New("server error during HTTP request")
	// ErrHTTPClientError is returned for 4xx responses, which are not retried.
	ErrHTTPClientError = errors.New("request rejected by server")
)

// RetryConfig defines retry behavior for HTTP requests.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// Action posts step parameters to URL. URL and header values are templates
// rendered with {{.parameters.*}} and {{.env.*}}.
type Action struct {
	ID      string
	Method  string
	URL     string
	Headers map[string]string
	Timeout time.Duration
	Retry   RetryConfig

	client *http.Client
}

// Option customizes an Action.
type Option func(*Action)

// WithClient sets the HTTP client, mostly for tests.
func WithClient(client *http.Client) Option {
	return func(a *Action) {
		a.client = client
	}
}

// WithRetry retries 5xx responses and transport errors.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(a *Action) {
		a.Retry = RetryConfig{Attempts: max(attempts, 1), Delay: delay}
	}
}

// WithMethod overrides the default POST.
func WithMethod(method string) Option {
	return func(a *Action) {
		a.Method = strings.ToUpper(method)
	}
}

// WithHeaders adds request headers.
func WithHeaders(headers map[string]string) Option {
	return func(a *Action) {
		for k, v := range headers {
			a.Headers[k] = v
		}
	}
}

// NewAction creates and validates an http action.
func NewAction(id, url string, opts ...Option) (*Action, error) {
	a := &Action{
		ID:      id,
		Method:  http.MethodPost,
		URL:     url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Timeout: defaultTimeout,
		Retry:   RetryConfig{Attempts: 1},
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.client == nil {
		a.client = &http.Client{Timeout: a.Timeout}
	}

	err := a.Validate()
	if err != nil {
		return nil, err
	}

	return a, nil
}

// Validate checks if the Action has valid configuration.
func (a *Action) Validate() error {
	switch a.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("%w: %q", ErrHTTPMethodInvalid, a.Method)
	}

	if a.URL == "" {
		return ErrHTTPURLInvalid
	}

	_, err := template.Parse(a.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHTTPURLInvalid, err)
	}

	for key, value := range a.Headers {
		_, err := template.Parse(value)
		if err != nil {
			return fmt.Errorf("invalid header '%s' template: %w", key, err)
		}
	}

	return nil
}

// Handle is the action handler registered for the action id.
func (a *Action) Handle(ctx context.Context, parameters map[string]any) (any, error) {
	logger := log.FromContext(ctx).With("action_kind", "http", "method", a.Method)

	body, err := json.Marshal(map[string]any{
		"action_id":  a.ID,
		"parameters": parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}

	data := template.Data(parameters)

	var lastErr error

	for attempt := 1; attempt <= a.Retry.Attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Retrying HTTP request", "attempt", attempt, "of", a.Retry.Attempts)

			select {
			case <-time.After(a.Retry.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, retry, err := a.do(ctx, data, body)
		if err == nil {
			logger.InfoContext(ctx, "HTTP action completed", "status_code", result["status_code"])

			return result, nil
		}

		lastErr = err

		if !retry {
			break
		}

		protocol.ReportProgress(ctx, float64(attempt)/float64(a.Retry.Attempts))
	}

	return nil, lastErr
}

// do performs one request; the bool reports whether a retry may help.
func (a *Action) do(ctx context.Context, data map[string]any, body []byte) (map[string]any, bool, error) {
	req, err := a.buildRequest(ctx, data, body)
	if err != nil {
		return nil, false, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	result, err := processResponse(resp)
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, true, fmt.Errorf("%w: status %d", ErrHTTPServerError, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, false, fmt.Errorf("%w: status %d: %v", ErrHTTPClientError, resp.StatusCode, result["body"])
	}

	return result, false, nil
}

func (a *Action) buildRequest(ctx context.Context, data map[string]any, body []byte) (*http.Request, error) {
	url, err := template.RenderString(a.URL, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render url: %w", err)
	}

	var reader io.Reader
	if a.Method != http.MethodGet {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, a.Method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	for key, value := range a.Headers {
		rendered, err := template.RenderString(value, data)
		if err != nil {
			return nil, fmt.Errorf("failed to render header '%s': %w", key, err)
		}

		req.Header.Set(key, rendered)
	}

	return req, nil
}

func processResponse(resp *http.Response) (map[string]any, error) {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any

	err = json.Unmarshal(bodyBytes, &body)
	if err != nil {
		body = string(bodyBytes)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
	}, nil
}
