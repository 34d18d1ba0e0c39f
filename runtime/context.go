package runtime

import (
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"

	"batchflow/logger"
)

// Context carries the state of a single flow run: the data reference store
// that moves intermediate results between steps, run metadata, and the
// settings binding supplying the asset handlers.
//
// Construct one per process and pass it by reference into wrapped steps.
// There is no hidden package-level instance; test isolation is an explicit
// ClearDataReferences call on the context under test.
type Context struct {
	mu   sync.RWMutex
	refs map[string]any

	runID           string
	flowID          string
	currentTask     string
	releaseSpecName string
	noLogging       bool

	settings Settings
	log      *slog.Logger
}

// ContextOption configures a Context at construction.
type ContextOption func(*Context)

// WithSettings binds the settings collaborator for the run.
func WithSettings(s Settings) ContextOption {
	return func(c *Context) { c.settings = s }
}

// WithLogger overrides the styled console logger for the run.
func WithLogger(l *slog.Logger) ContextOption {
	return func(c *Context) { c.log = l }
}

// NewContext returns a run context with an empty reference store and a fresh
// run id.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		refs:  make(map[string]any),
		runID: uuid.New().String(),
		log:   logger.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) RunID() string { return c.runID }

func (c *Context) FlowID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flowID
}

func (c *Context) SetFlowID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flowID = id
}

func (c *Context) CurrentTask() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentTask
}

// SetCurrentTask records the task now executing. Used for logging context
// only; it is forward-set and never cleared between tasks.
func (c *Context) SetCurrentTask(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTask = name
}

func (c *Context) ReleaseSpecName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.releaseSpecName
}

func (c *Context) SetReleaseSpecName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseSpecName = name
}

func (c *Context) NoLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.noLogging
}

// SetNoLogging suppresses all diagnostics output for the run when true.
func (c *Context) SetNoLogging(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.noLogging = v
}

// Logger returns the run's diagnostics sink, or a discard logger while
// no-logging is set.
func (c *Context) Logger() *slog.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.noLogging {
		return logger.Discard()
	}
	return c.log
}

// SetSettings binds the settings collaborator after construction.
func (c *Context) SetSettings(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
}

// Settings returns the bound settings collaborator, or ErrMissingSettings
// when none was provided.
func (c *Context) Settings() (Settings, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.settings == nil {
		return nil, fmt.Errorf("%w: provide one with WithSettings or SetSettings", ErrMissingSettings)
	}
	return c.settings, nil
}

// SetDataReference stores payload under name, replacing any prior value.
// Safe for concurrent use; parallel input workers write distinct keys.
func (c *Context) SetDataReference(name string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[name] = payload
}

// GetDataReference resolves a single reference name.
//
// An exact key match always wins and returns the stored payload as-is.
// Otherwise the name is compiled as a regular expression anchored to the full
// key, and every matching key is collected into a map[string]any. Zero
// matches is ErrReferenceNotFound. Because exact match takes precedence,
// a reference literally named with pattern metacharacters shadows the
// pattern interpretation of that name.
func (c *Context) GetDataReference(name string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, _, err := c.resolveOne(name)
	return v, err
}

// resolveOne additionally reports whether the result is a multi-match map
// assembled from a pattern, as opposed to a payload stored under the exact
// name. List merging branches on that, never on the payload's own type: a
// map payload stored under an exact name stays one entry.
func (c *Context) resolveOne(name string) (any, bool, error) {
	if v, ok := c.refs[name]; ok && v != nil {
		return v, false, nil
	}

	re, err := regexp.Compile("^(?:" + name + ")$")
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", ErrReferenceNotFound, name)
	}

	matches := make(map[string]any)
	for k, v := range c.refs {
		if v == nil {
			continue
		}
		if re.MatchString(k) {
			matches[k] = v
		}
	}
	if len(matches) == 0 {
		return nil, false, fmt.Errorf("%w: %s (was it loaded by an input step?)", ErrReferenceNotFound, name)
	}
	return matches, true, nil
}

// ResolveReference resolves a reference key of any supported shape:
// a string (exact or pattern, per GetDataReference), or a list of strings
// whose individual results are merged into one map. List elements resolving
// to a single payload are inserted under their own name; elements resolving
// through a pattern are merged key-wise, last writer wins. Lists never
// nest. Any other shape is ErrInvalidReferenceKey.
func (c *Context) ResolveReference(key any) (any, error) {
	switch k := key.(type) {
	case string:
		return c.GetDataReference(k)
	case []string:
		elems := make([]any, len(k))
		for i, s := range k {
			elems[i] = s
		}
		return c.resolveList(elems)
	case []any:
		return c.resolveList(k)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidReferenceKey, key)
	}
}

func (c *Context) resolveList(elems []any) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	merged := make(map[string]any)
	for _, e := range elems {
		name, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("%w: list element of type %T", ErrInvalidReferenceKey, e)
		}
		v, fromPattern, err := c.resolveOne(name)
		if err != nil {
			return nil, err
		}
		if fromPattern {
			maps.Copy(merged, v.(map[string]any))
		} else {
			merged[name] = v
		}
	}
	return merged, nil
}

// ClearDataReferences empties the reference store. Meant for isolating test
// runs, not for use during a flow.
func (c *Context) ClearDataReferences() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs = make(map[string]any)
}

// DataReferences returns a copy of the reference store for observability.
func (c *Context) DataReferences() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.refs))
	maps.Copy(out, c.refs)
	return out
}

// LogDataReferences dumps the current reference names and payload types to
// the diagnostics sink.
func (c *Context) LogDataReferences() {
	refs := c.DataReferences()
	log := c.Logger()

	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)

	log.Info(fmt.Sprintf("Data references (%d):", len(names)))
	for _, name := range names {
		log.Info(fmt.Sprintf("  %s: %T", name, refs[name]))
	}
}
