package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/planflow/pkg/registry"
)

type outcome struct {
	result any
	err    error
}

// invoke calls the action handler. Without a timeout the call happens on the
// plan goroutine; with one, the handler runs on its own goroutine so a
// handler that ignores ctx cannot hold the plan past the deadline.
func invoke(ctx context.Context, action registry.Action, parameters map[string]any) (any, error) {
	if action.Timeout <= 0 {
		res := call(ctx, action, parameters)

		return res.result, res.err
	}

	ctx, cancel := context.WithTimeout(ctx, action.Timeout)
	defer cancel()

	done := make(chan outcome, 1)

	go func() {
		done <- call(ctx, action, parameters)
	}()

	timer := time.NewTimer(action.Timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.result, res.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrTimeout, action.Timeout)
	}
}

func call(ctx context.Context, action registry.Action, parameters map[string]any) (res outcome) {
	defer func() {
		if r := recover(); r != nil {
			res = outcome{err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
		}
	}()

	result, err := action.Handler(ctx, parameters)

	return outcome{result: result, err: err}
}
