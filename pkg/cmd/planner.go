package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/planflow/pkg/planner"
	"github.com/dukex/planflow/pkg/planner/llm"
	"github.com/dukex/planflow/pkg/planner/rules"
	"github.com/dukex/planflow/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LLMConfig selects the interpreter and generator behind the planner.
type LLMConfig struct {
	Provider  string // "rules" or "openai"
	Model     string
	APIKey    string
	BaseURL   string
	Rate      float64 // requests per second, zero for unlimited
	MaxTokens int
}

// NewPlanner wires the planner to the rule-based or the LLM adapters.
func NewPlanner(logger *slog.Logger, reg *registry.Registry, validate *validator.Validate, cfg LLMConfig) (*planner.Planner, error) {
	switch cfg.Provider {
	case "", "rules":
		return planner.New(logger, rules.NewInterpreter(), rules.NewGenerator(), reg, planner.WithValidator(validate)), nil
	case "openai":
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}

		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}

		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}

		var llmOpts []llm.Option
		if cfg.Rate > 0 {
			llmOpts = append(llmOpts, llm.WithRateLimit(cfg.Rate, 1))
		}

		if cfg.MaxTokens > 0 {
			llmOpts = append(llmOpts, llm.WithCallOptions(llms.WithMaxTokens(cfg.MaxTokens)))
		}

		return planner.New(
			logger,
			llm.NewInterpreter(model, logger, llmOpts...),
			llm.NewGenerator(model, reg, logger, llmOpts...),
			reg,
			planner.WithValidator(validate),
		), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
