package runtime

import (
	"errors"
	"fmt"
	"reflect"
	goruntime "runtime"
	"strings"
	"time"

	"batchflow/logger"
)

type taskConfig struct {
	description string
}

// TaskOption configures the Task wrapper.
type TaskOption func(*taskConfig)

// WithTaskDescription overrides the task name derived from the wrapped
// function. Meant for tasks invoked dynamically, where the function name
// alone does not identify the work.
func WithTaskDescription(desc string) TaskOption {
	return func(c *taskConfig) { c.description = desc }
}

// Task wraps one unit of transform work. It brackets the call with start and
// completion messages, times it, and records the task name on the context
// for the duration of the call.
//
// A failure is captured as a typed StepError and returned to the enclosing
// flow, which applies the log-and-terminate policy exactly once at the
// outermost boundary. Tasks have no partial-success semantics, so nothing
// here attempts recovery.
func Task(fn StepFunc, opts ...TaskOption) StepFunc {
	cfg := taskConfig{description: funcName(fn)}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx *Context) error {
		log := ctx.Logger()
		log.Info(fmt.Sprintf("Beginning task: %s", cfg.description))
		ctx.SetCurrentTask(cfg.description)

		start := time.Now()
		if err := runStep(ctx, fn); err != nil {
			var stepErr *StepError
			if errors.As(err, &stepErr) {
				return err
			}
			return &StepError{Step: cfg.description, Err: err}
		}

		logger.Success(log, fmt.Sprintf("Completed task: %s (%s)", cfg.description, FormatDuration(start, time.Now())))
		return nil
	}
}

// funcName extracts a readable name from a function value, e.g.
// "main.transformData" becomes "transformData". Anonymous functions keep
// their compiler-assigned suffix.
func funcName(fn StepFunc) string {
	if fn == nil {
		return "task"
	}
	full := goruntime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	if i := strings.LastIndex(full, "."); i >= 0 {
		full = full[i+1:]
	}
	return full
}
