// Package protocol defines the contracts between the engine and its external collaborators.
package protocol

import (
	"context"

	"github.com/dukex/planflow/pkg/models"
)

// ActionHandler performs the domain operation behind an action id. It must
// return once its work is done or ctx is cancelled.
type ActionHandler func(ctx context.Context, parameters map[string]any) (any, error)

// Interpreter turns free text into a structured intent.
type Interpreter interface {
	Interpret(ctx context.Context, text string, hints map[string]any) (*models.StructuredIntent, error)
}

// Generator turns a structured intent into ordered step specifications.
type Generator interface {
	Generate(ctx context.Context, intent *models.StructuredIntent) ([]models.StepSpec, error)
}

// ProgressFunc receives progress events synchronously from the executor.
type ProgressFunc func(event models.ProgressEvent)

// ProgressReporter receives a running step's completion fraction.
type ProgressReporter func(fraction float64)

type progressKey struct{}

// WithProgressReporter returns a context whose handler progress goes to report.
func WithProgressReporter(ctx context.Context, report ProgressReporter) context.Context {
	return context.WithValue(ctx, progressKey{}, report)
}

// ReportProgress lets a handler report how far its step has come, in [0,1].
// Values below the last report are ignored. Outside a running step it does
// nothing.
func ReportProgress(ctx context.Context, fraction float64) {
	report, ok := ctx.Value(progressKey{}).(ProgressReporter)
	if ok && report != nil {
		report(fraction)
	}
}
