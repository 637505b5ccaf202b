package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/planflow/pkg/cmd"
	"github.com/dukex/planflow/pkg/eventbus"
	"github.com/dukex/planflow/pkg/executor"
	"github.com/dukex/planflow/pkg/otelhelper"
	"github.com/dukex/planflow/pkg/persistence"
	"github.com/dukex/planflow/pkg/persistence/memory"
	"github.com/dukex/planflow/pkg/registry"
	"github.com/dukex/planflow/pkg/services"
	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"
)

// engineFlags configure the components shared by serve and run.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "actions-file",
			Usage:   "YAML action catalog (built-in catalog when empty)",
			Sources: cli.EnvVars("ACTIONS_FILE"),
		},
		&cli.StringFlag{
			Name:    "archive-url",
			Usage:   "Durable archive for finished plans (file://, postgres://, redis://, none)",
			Value:   "none",
			Sources: cli.EnvVars("ARCHIVE_URL"),
		},
		&cli.StringFlag{
			Name:    "llm-provider",
			Usage:   "Intent interpreter and plan generator (rules, openai)",
			Value:   "rules",
			Sources: cli.EnvVars("LLM_PROVIDER"),
		},
		&cli.StringFlag{
			Name:    "llm-model",
			Usage:   "Model name for the llm provider",
			Value:   "gpt-4o-mini",
			Sources: cli.EnvVars("LLM_MODEL"),
		},
		&cli.StringFlag{
			Name:    "llm-api-key",
			Usage:   "API key for the llm provider",
			Sources: cli.EnvVars("LLM_API_KEY", "OPENAI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "llm-base-url",
			Usage:   "Base URL of an OpenAI-compatible endpoint",
			Sources: cli.EnvVars("LLM_BASE_URL"),
		},
		&cli.FloatFlag{
			Name:    "llm-rate",
			Usage:   "Maximum model requests per second (0 for unlimited)",
			Sources: cli.EnvVars("LLM_RATE"),
		},
		&cli.IntFlag{
			Name:    "llm-max-tokens",
			Usage:   "Token limit per model response (0 for the provider default)",
			Sources: cli.EnvVars("LLM_MAX_TOKENS"),
		},
		&cli.IntFlag{
			Name:    "subscriber-buffer",
			Usage:   "Progress events buffered per subscriber before the oldest is dropped",
			Value:   eventbus.DefaultBufferSize,
			Sources: cli.EnvVars("SUBSCRIBER_BUFFER"),
		},
		&cli.StringFlag{
			Name:    "service-name",
			Usage:   "Service name for tracing and the Kafka consumer group",
			Value:   "planflow",
			Sources: cli.EnvVars("SERVICE_NAME"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP/HTTP (configured by OTEL_EXPORTER_OTLP_* variables)",
			Sources: cli.EnvVars("TRACING"),
		},
	}
}

// engine holds the wired components of one process.
type engine struct {
	logger      *slog.Logger
	validate    *validator.Validate
	registry    *registry.Registry
	sink        persistence.ArchiveSink
	store       *memory.Store
	broadcaster *eventbus.Broadcaster
	executor    *executor.Executor
	plans       *services.Plans
	shutdown    otelhelper.ShutdownFunc
}

func newEngine(ctx context.Context, command *cli.Command, logger *slog.Logger) (*engine, error) {
	e := &engine{
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	reg, err := cmd.NewRegistry(logger, command.String("actions-file"), e.validate)
	if err != nil {
		return nil, fmt.Errorf("failed to load actions: %w", err)
	}

	e.registry = reg

	creator, err := cmd.NewPlanner(logger, reg, e.validate, cmd.LLMConfig{
		Provider:  command.String("llm-provider"),
		Model:     command.String("llm-model"),
		APIKey:    command.String("llm-api-key"),
		BaseURL:   command.String("llm-base-url"),
		Rate:      command.Float("llm-rate"),
		MaxTokens: command.Int("llm-max-tokens"),
	})
	if err != nil {
		return nil, err
	}

	sink, err := cmd.NewArchiveSink(ctx, logger, command.String("archive-url"))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	var storeOpts []memory.Option
	if sink != nil {
		e.sink = sink
		storeOpts = append(storeOpts, memory.WithArchiveSink(sink))
	}

	e.store = memory.NewStore(logger, storeOpts...)
	e.broadcaster = eventbus.NewBroadcaster(logger, eventbus.WithBufferSize(command.Int("subscriber-buffer")))

	executorOpts := []executor.Option{executor.WithPublisher(e.broadcaster)}

	if command.Bool("tracing") {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, command.String("service-name"))
		if err != nil {
			e.Close(ctx)

			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}

		e.shutdown = shutdown
		executorOpts = append(executorOpts, executor.WithTracer(tracer))
	}

	e.executor = executor.New(logger, e.store, reg, executorOpts...)
	e.plans = services.NewPlans(logger, creator, e.store, e.executor)

	return e, nil
}

// Close releases the broadcaster, the archive and the tracer.
func (e *engine) Close(ctx context.Context) {
	if e.broadcaster != nil {
		e.broadcaster.Close()
	}

	if e.sink != nil {
		err := e.sink.Close(ctx)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to close archive", "error", err)
		}
	}

	if e.shutdown != nil {
		err := e.shutdown(ctx)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
		}
	}
}
