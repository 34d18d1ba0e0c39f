package runtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"batchflow/logger"
)

// OutputManifestFunc produces the output manifest for an emit step.
type OutputManifestFunc func(*Context) (OutputManifest, error)

type outputConfig struct {
	analyze  bool
	parallel bool
	workers  int
}

// OutputOption configures the OutputData wrapper.
type OutputOption func(*outputConfig)

// WithOutputAnalyze toggles the analyze-asset hook for this step.
func WithOutputAnalyze(v bool) OutputOption {
	return func(c *outputConfig) { c.analyze = v }
}

// WithOutputParallel runs each (asset, format) emission on its own worker,
// bounded by the pool size, joining before the step returns.
func WithOutputParallel() OutputOption {
	return func(c *outputConfig) { c.parallel = true }
}

// WithOutputWorkers sets the parallel pool size.
func WithOutputWorkers(n int) OutputOption {
	return func(c *outputConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

type outputAsset struct {
	group   string
	key     string
	format  string
	payload any
	options map[string]any
}

// OutputData wraps a manifest-producing function into an emit step. For each
// declared output it resolves the source payload through the context's
// reference resolver - the Data field when present (name, list, or pattern),
// otherwise the output key itself - then calls the output handler once per
// requested format with the manifest options passed through verbatim.
//
// Resolution failures surface as the resolver's own conditions and are fatal
// at the enclosing flow boundary. A format that fails mid-list leaves the
// formats already written as-is; there is no rollback.
func OutputData(fn OutputManifestFunc, opts ...OutputOption) StepFunc {
	cfg := outputConfig{analyze: true, workers: defaultWorkers}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx *Context) error {
		settings, err := ctx.Settings()
		if err != nil {
			return &StepError{Step: "output", Err: err}
		}

		manifest, err := fn(ctx)
		if err != nil {
			return &StepError{Step: "output", Err: err}
		}

		assets, err := flattenOutputManifest(ctx, manifest)
		if err != nil {
			return &StepError{Step: "output", Err: err}
		}

		if cfg.parallel {
			err = emitAssetsParallel(ctx, settings, assets, cfg)
		} else {
			for _, a := range assets {
				if err = emitAsset(ctx, settings, a, cfg); err != nil {
					break
				}
			}
		}
		if err != nil {
			return &StepError{Step: "output", Err: err}
		}
		return nil
	}
}

// flattenOutputManifest validates every entry, resolves its payload, and
// expands the format fan-out into one unit of work per (asset, format).
// Order is deterministic: groups sorted, keys within a group sorted, formats
// in declaration order.
func flattenOutputManifest(ctx *Context, manifest OutputManifest) ([]outputAsset, error) {
	groups := make([]string, 0, len(manifest))
	for group := range manifest {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	var assets []outputAsset
	for _, group := range groups {
		keys := make([]string, 0, len(manifest[group]))
		for key := range manifest[group] {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			spec := manifest[group][key]
			if err := validateOutputSpec(key, spec); err != nil {
				return nil, err
			}

			ref := spec.Data
			if ref == nil {
				ref = key
			}
			payload, err := ctx.ResolveReference(ref)
			if err != nil {
				return nil, fmt.Errorf("output %s: %w", key, err)
			}

			for _, format := range spec.Formats {
				assets = append(assets, outputAsset{
					group:   group,
					key:     key,
					format:  format,
					payload: payload,
					options: spec.Options,
				})
			}
		}
	}
	return assets, nil
}

func emitAssetsParallel(ctx *Context, settings Settings, assets []outputAsset, cfg outputConfig) error {
	sem := make(chan struct{}, cfg.workers)
	errs := make([]error, len(assets))

	var wg sync.WaitGroup
	for i, a := range assets {
		wg.Add(1)
		go func(i int, a outputAsset) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			errs[i] = emitAsset(ctx, settings, a, cfg)
		}(i, a)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func emitAsset(ctx *Context, settings Settings, a outputAsset, cfg outputConfig) error {
	start := time.Now()
	if err := settings.OutputHandler(a.group, a.key, a.format, a.payload, a.options); err != nil {
		return fmt.Errorf("%w: writing %s.%s: %w", ErrHandlerFailure, a.key, a.format, err)
	}

	duration := FormatDuration(start, time.Now())
	msg := fmt.Sprintf("Finished output: %s.%s (%s)", a.key, a.format, duration)
	if cfg.analyze {
		if analyzer, ok := settings.(AssetAnalyzer); ok {
			if custom := analyzer.AnalyzeAsset(a.group, a.key, a.format, a.payload, duration, OpOutput); custom != "" {
				msg = custom
			}
		}
	}
	logger.Success(ctx.Logger(), msg)
	return nil
}
