package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dukex/planflow/pkg/log"
	"github.com/dukex/planflow/pkg/models"
	cli "github.com/urfave/cli/v3"
)

var (
	errNoRequest     = errors.New("a request text is required")
	errPlanFailed    = errors.New("plan failed")
	errPlanCancelled = errors.New("plan cancelled")
)

func NewRunCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Print the draft plan without executing it",
		},
	}

	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Plan a request, approve it and execute it in the foreground",
		ArgsUsage: "<request text>",
		Flags:     append(flags, engineFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			text := strings.TrimSpace(strings.Join(command.Args().Slice(), " "))
			if text == "" {
				return errNoRequest
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := log.WithModule("run")

			eng, err := newEngine(ctx, command, logger)
			if err != nil {
				return err
			}

			defer eng.Close(context.WithoutCancel(ctx))

			out := command.Root().Writer

			plan, err := eng.plans.Create(ctx, text, nil)
			if err != nil {
				return err
			}

			printPlan(out, plan)

			if command.Bool("dry-run") {
				return nil
			}

			_, err = eng.plans.Approve(ctx, plan.ID)
			if err != nil {
				return err
			}

			final, err := eng.executor.Execute(ctx, plan.ID, func(event models.ProgressEvent) {
				printEvent(out, event)
			})
			if err != nil {
				return err
			}

			return outcomeError(final)
		},
	}
}

// outcomeError gives the exit status of a finished plan: nil only when it
// completed.
func outcomeError(plan *models.Plan) error {
	switch plan.Status {
	case models.PlanStatusFailed:
		return fmt.Errorf("%w: %s", errPlanFailed, plan.ID)
	case models.PlanStatusCancelled:
		return fmt.Errorf("%w: %s", errPlanCancelled, plan.ID)
	case models.PlanStatusCompleted:
		return nil
	default:
		return fmt.Errorf("plan %s stopped in status %s", plan.ID, plan.Status)
	}
}

func printPlan(w io.Writer, plan *models.Plan) {
	fmt.Fprintf(w, "Plan %s: %s\n", plan.ID, plan.Title)

	if plan.Fallback {
		fmt.Fprintln(w, "  (fallback plan)")
	}

	for _, warning := range plan.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}

	for i, step := range plan.Steps {
		fmt.Fprintf(w, "  %d. %s [%s, ~%s]\n", i+1, step.Title, step.ActionID, step.EstimatedDuration)
	}
}

func printEvent(w io.Writer, event models.ProgressEvent) {
	if event.Summary != nil {
		s := event.Summary
		fmt.Fprintf(w, "[%3.0f%%] %s: %d completed, %d failed, %d skipped, %d pending\n",
			event.PlanProgress*100, s.Status, s.Completed, s.Failed, s.Skipped, s.Pending)

		return
	}

	fmt.Fprintf(w, "[%3.0f%%] step %d %s: %s\n", event.PlanProgress*100, event.StepIndex+1, event.Status, event.Message)
}
