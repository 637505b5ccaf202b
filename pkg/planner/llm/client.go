// Package llm implements the intent interpreter and plan generator on top of
// a language model. Model output is requested as JSON, checked against a JSON
// schema and only then decoded; anything else is a typed malformed-output error.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/time/rate"
)

var (
	errNoJSON    = errors.New("no JSON object in model output")
	errTransport = errors.New("model transport")
)

type client struct {
	model   llms.Model
	limiter *rate.Limiter
	logger  *slog.Logger
	options []llms.CallOption
}

// Option configures the model client shared by Interpreter and Generator.
type Option func(*client)

// WithRateLimit throttles model calls to perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithCallOptions appends langchaingo call options to every request.
func WithCallOptions(opts ...llms.CallOption) Option {
	return func(c *client) {
		c.options = append(c.options, opts...)
	}
}

func newClient(model llms.Model, logger *slog.Logger, opts ...Option) *client {
	c := &client{
		model:   model,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logger,
		options: []llms.CallOption{llms.WithTemperature(0), llms.WithJSONMode()},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// complete sends one prompt and returns the schema-checked JSON document.
func (c *client) complete(ctx context.Context, system, prompt string, schema gojsonschema.JSONLoader) (string, error) {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: rate limiter: %w", errTransport, err)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := c.model.GenerateContent(ctx, messages, c.options...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errTransport, err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}

	raw := resp.Choices[0].Content
	c.logger.DebugContext(ctx, "Model response", "content", raw)

	doc, err := extractJSON(raw)
	if err != nil {
		return "", err
	}

	err = validateSchema(schema, doc)
	if err != nil {
		return "", err
	}

	return doc, nil
}

// extractJSON strips markdown fences and surrounding prose from model output.
func extractJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	if start < 0 || end < start {
		return "", errNoJSON
	}

	return text[start : end+1], nil
}

func validateSchema(schema gojsonschema.JSONLoader, doc string) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("JSON schema validation failed: %s", strings.Join(messages, "; "))
	}

	return nil
}

func isTransport(err error) bool {
	return errors.Is(err, errTransport) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
