package runtime

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"runtime/debug"
	"strings"
	"time"

	"batchflow/logger"
)

// StepFunc is the shape every wrapped step takes: the run context in, an
// error out. Wrappers compose, so a flow body calls other wrapped steps.
type StepFunc func(*Context) error

// exitProcess is the single point where a failed flow terminates the
// process. Tests swap it to observe the exit without dying.
var exitProcess = os.Exit

type flowConfig struct {
	id string
}

// FlowOption configures the Flow wrapper.
type FlowOption func(*flowConfig)

// WithFlowID overrides the flow id derived from the defining file's name.
func WithFlowID(id string) FlowOption {
	return func(c *flowConfig) { c.id = id }
}

// Flow wraps the top-level function of a pipeline. On invocation it records
// the flow id and release spec on the context, logs the start banner, times
// the body, and logs a success banner on return.
//
// Any error or panic escaping the body is reported exactly once here - the
// error, the failing source line when one can be extracted, and a dump of
// the current data references - and then the process terminates. Errors
// never propagate above the flow boundary: an external scheduler running
// independent flows treats each invocation as an isolated unit and scans
// the output for the failure report.
func Flow(fn StepFunc, opts ...FlowOption) StepFunc {
	cfg := flowConfig{id: callerFileID()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx *Context) error {
		ctx.SetFlowID(cfg.id)
		if s, err := ctx.Settings(); err == nil {
			if r, ok := s.(ReleaseSpecifier); ok {
				ctx.SetReleaseSpecName(r.ReleaseSpec())
			}
		}

		log := ctx.Logger()
		log.Info(fmt.Sprintf("Beginning flow: %s", cfg.id))
		if spec := ctx.ReleaseSpecName(); spec != "" {
			log.Info(fmt.Sprintf("Release spec: %s", spec))
		}

		start := time.Now()
		err := runStep(ctx, fn)
		if err != nil {
			reportFlowFailure(ctx, err)
			exitProcess(1)
			// Reached only under a test exit hook.
			return err
		}

		logger.Success(log, fmt.Sprintf("Completed flow: %s (%s)", cfg.id, FormatDuration(start, time.Now())))
		return nil
	}
}

// runStep invokes fn, converting a panic into a StepError carrying the
// failing source line from the panic stack.
func runStep(ctx *Context, fn StepFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StepError{
				Step: ctx.CurrentTask(),
				Line: offendingLine(debug.Stack()),
				Err:  fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return fn(ctx)
}

// reportFlowFailure emits the failure report the flow boundary owns: the
// error, the offending line when known, and the reference store dump.
func reportFlowFailure(ctx *Context, err error) {
	log := ctx.Logger()
	log.Error(fmt.Sprintf("Flow failed: %s: %v", ctx.FlowID(), err))

	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Line != "" {
		log.Error(fmt.Sprintf("  at %s", stepErr.Line))
	}
	ctx.LogDataReferences()
}

// offendingLine scans a panic stack for the first frame outside this package
// and the Go runtime, returning it as "file.go:line". Best effort; returns
// "" when nothing qualifies.
func offendingLine(stack []byte) string {
	lines := strings.Split(string(stack), "\n")
	for i := 0; i < len(lines)-1; i++ {
		fn := strings.TrimSpace(lines[i])
		loc := strings.TrimSpace(lines[i+1])
		if !strings.Contains(loc, ".go:") {
			continue
		}
		if strings.HasPrefix(fn, "panic(") || strings.HasPrefix(fn, "runtime.") || strings.HasPrefix(fn, "runtime/") {
			continue
		}
		// The recover frame installed by runStep sits above the user code.
		if strings.Contains(fn, ".runStep") {
			continue
		}
		if cut := strings.LastIndex(loc, " +0x"); cut > 0 {
			loc = loc[:cut]
		}
		return filepath.Base(loc)
	}
	return ""
}

// callerFileID derives a flow id from the file that called Flow, matching
// the convention that one file defines one flow.
func callerFileID() string {
	_, file, _, ok := goruntime.Caller(2)
	if !ok {
		return "flow"
	}
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
