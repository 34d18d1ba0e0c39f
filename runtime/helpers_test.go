package runtime

import (
	"fmt"
	"sync"

	"batchflow/logger"
)

// quietContext returns a context whose diagnostics go nowhere, so test
// output stays readable.
func quietContext(opts ...ContextOption) *Context {
	opts = append([]ContextOption{WithLogger(logger.Discard())}, opts...)
	return NewContext(opts...)
}

type inputCall struct {
	group string
	file  string
}

type outputCall struct {
	group   string
	key     string
	format  string
	payload any
	opts    map[string]any
}

// fakeSettings is a fully capable settings binding: it locates assets from
// an in-memory map, records every handler call, and implements all optional
// capabilities.
type fakeSettings struct {
	mu sync.Mutex

	payloads map[string]any // "group/file" -> payload returned by InputHandler
	release  string
	analyze  func(group, name, format string, payload any, duration string, op Operation) string

	inputErr  error
	outputErr error

	inputs  []inputCall
	outputs []outputCall
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{payloads: make(map[string]any)}
}

func (s *fakeSettings) InputHandler(group, file string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, inputCall{group: group, file: file})
	if s.inputErr != nil {
		return nil, s.inputErr
	}
	return s.payloads[group+"/"+file], nil
}

func (s *fakeSettings) OutputHandler(group, key, format string, payload any, opts map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, outputCall{group: group, key: key, format: format, payload: payload, opts: opts})
	return s.outputErr
}

func (s *fakeSettings) AssetExists(group, file string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.payloads[group+"/"+file]
	return ok
}

func (s *fakeSettings) ReleaseSpec() string {
	return s.release
}

func (s *fakeSettings) AnalyzeAsset(group, name, format string, payload any, duration string, op Operation) string {
	if s.analyze == nil {
		return ""
	}
	return s.analyze(group, name, format, payload, duration, op)
}

func (s *fakeSettings) inputCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

func (s *fakeSettings) outputCalls() []outputCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]outputCall, len(s.outputs))
	copy(out, s.outputs)
	return out
}

// bareSettings implements only the required Settings contract, for tests
// exercising the absence of the optional capabilities.
type bareSettings struct {
	payload any
	err     error
}

func (s *bareSettings) InputHandler(group, file string) (any, error) {
	return s.payload, s.err
}

func (s *bareSettings) OutputHandler(group, key, format string, payload any, opts map[string]any) error {
	return s.err
}

var _ Settings = (*fakeSettings)(nil)
var _ AssetLocator = (*fakeSettings)(nil)
var _ ReleaseSpecifier = (*fakeSettings)(nil)
var _ AssetAnalyzer = (*fakeSettings)(nil)
var _ Settings = (*bareSettings)(nil)

func payloadKey(group, file string) string {
	return fmt.Sprintf("%s/%s", group, file)
}
