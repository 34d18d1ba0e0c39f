package runtime

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"batchflow/logger"
)

// defaultWorkers bounds the parallel input mode. Manifests rarely exceed a
// handful of assets, so a small pool keeps handler pressure predictable even
// for large generated manifests.
const defaultWorkers = 4

// InputManifestFunc produces the input manifest for a load step. The
// function body is user code; it runs before any asset is touched.
type InputManifestFunc func(*Context) (InputManifest, error)

type inputConfig struct {
	base     AssetSpec
	analyze  bool
	parallel bool
	workers  int
}

// InputOption configures the InputData wrapper.
type InputOption func(*inputConfig)

// WithOptional marks every bare-string asset in the manifest optional.
func WithOptional() InputOption {
	return func(c *inputConfig) { c.base.Optional = true }
}

// WithFilters declares filters applied to every asset that does not declare
// its own.
func WithFilters(filters ...Filter) InputOption {
	return func(c *inputConfig) { c.base.Filters = filters }
}

// WithDefault sets the fallback payload stored for absent optional assets
// that do not declare their own.
func WithDefault(payload map[string]any) InputOption {
	return func(c *inputConfig) { c.base.Default = payload }
}

// WithAnalyze toggles the analyze-asset hook for this step. Defaults to on;
// the hook only fires when the settings binding implements AssetAnalyzer.
func WithAnalyze(v bool) InputOption {
	return func(c *inputConfig) { c.analyze = v }
}

// WithParallel loads each asset on its own worker, bounded by the pool size,
// with a join-all barrier before the step returns. Every asset writes a
// distinct reference name, so workers never contend on a key.
func WithParallel() InputOption {
	return func(c *inputConfig) { c.parallel = true }
}

// WithWorkers sets the parallel pool size.
func WithWorkers(n int) InputOption {
	return func(c *inputConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

type inputAsset struct {
	group string
	name  string
	spec  AssetSpec
}

// InputData wraps a manifest-producing function into a load step. For each
// declared asset it checks existence, loads through the settings binding's
// input handler, applies filters in order, and stores the payload under the
// asset's reference name. Absent assets fail with ErrMissingAsset unless
// marked optional, in which case a declared default payload is stored
// without any handler call; an optional asset with no default is
// ErrConfiguration.
func InputData(fn InputManifestFunc, opts ...InputOption) StepFunc {
	cfg := inputConfig{analyze: true, workers: defaultWorkers}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx *Context) error {
		settings, err := ctx.Settings()
		if err != nil {
			return &StepError{Step: "input", Err: err}
		}

		manifest, err := fn(ctx)
		if err != nil {
			return &StepError{Step: "input", Err: err}
		}

		assets, err := flattenInputManifest(manifest, cfg.base)
		if err != nil {
			return &StepError{Step: "input", Err: err}
		}

		if cfg.parallel {
			err = loadAssetsParallel(ctx, settings, assets, cfg)
		} else {
			for _, a := range assets {
				if err = loadAsset(ctx, settings, a, cfg); err != nil {
					break
				}
			}
		}
		if err != nil {
			return &StepError{Step: "input", Err: err}
		}
		return nil
	}
}

// flattenInputManifest normalizes every entry and fixes a deterministic
// order: groups sorted, then names within each group.
func flattenInputManifest(manifest InputManifest, base AssetSpec) ([]inputAsset, error) {
	groups := make([]string, 0, len(manifest))
	for group := range manifest {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	var assets []inputAsset
	for _, group := range groups {
		names := make([]string, 0, len(manifest[group]))
		for name := range manifest[group] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			spec, err := normalizeAsset(name, manifest[group][name], base)
			if err != nil {
				return nil, err
			}
			assets = append(assets, inputAsset{group: group, name: name, spec: spec})
		}
	}
	return assets, nil
}

func loadAssetsParallel(ctx *Context, settings Settings, assets []inputAsset, cfg inputConfig) error {
	sem := make(chan struct{}, cfg.workers)
	errs := make([]error, len(assets))

	var wg sync.WaitGroup
	for i, a := range assets {
		wg.Add(1)
		go func(i int, a inputAsset) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			errs[i] = loadAsset(ctx, settings, a, cfg)
		}(i, a)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func loadAsset(ctx *Context, settings Settings, a inputAsset, cfg inputConfig) error {
	log := ctx.Logger()
	assetPath := path.Join(a.group, a.spec.File)

	if !assetExists(settings, a.group, a.spec.File) {
		if !a.spec.Optional {
			return fmt.Errorf("%w: %s", ErrMissingAsset, assetPath)
		}
		if len(a.spec.Default) == 0 {
			return fmt.Errorf("%w: optional asset %s is absent and has no default payload", ErrConfiguration, a.name)
		}
		ctx.SetDataReference(a.name, a.spec.Default)
		log.Info(fmt.Sprintf("Used default payload for absent optional asset: %s", a.name))
		return nil
	}

	start := time.Now()
	payload, err := settings.InputHandler(a.group, a.spec.File)
	if err != nil {
		return fmt.Errorf("%w: loading %s: %w", ErrHandlerFailure, assetPath, err)
	}

	payload, err = applyFilters(payload, a.spec.Filters)
	if err != nil {
		return fmt.Errorf("asset %s: %w", a.name, err)
	}

	ctx.SetDataReference(a.name, payload)

	duration := FormatDuration(start, time.Now())
	msg := fmt.Sprintf("Loaded asset: %s (%s)", a.spec.File, duration)
	if cfg.analyze {
		if analyzer, ok := settings.(AssetAnalyzer); ok {
			if custom := analyzer.AnalyzeAsset(a.group, a.spec.File, "", payload, duration, OpInput); custom != "" {
				msg = custom
			}
		}
	}
	logger.Success(log, msg)
	return nil
}

// assetExists gates every input asset. A settings binding that loads from
// somewhere other than the local file system overrides this via AssetLocator.
func assetExists(settings Settings, group, file string) bool {
	if locator, ok := settings.(AssetLocator); ok {
		return locator.AssetExists(group, file)
	}
	info, err := os.Stat(path.Join(group, file))
	return err == nil && !info.IsDir()
}
