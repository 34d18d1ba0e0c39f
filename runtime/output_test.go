package runtime

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestOutputData_FormatFanOut(t *testing.T) {
	settings := newFakeSettings()
	ctx := quietContext(WithSettings(settings))
	ctx.SetDataReference("complete_labs", "dataset")

	step := OutputData(func(*Context) (OutputManifest, error) {
		return OutputManifest{
			"out": {
				"complete_labs": {Formats: []string{"csv", "sql"}, Options: map[string]any{}},
			},
		}, nil
	})

	if err := step(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := settings.outputCalls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 handler calls, got %d", len(calls))
	}
	formats := map[string]bool{}
	for _, c := range calls {
		formats[c.format] = true
		if c.payload != "dataset" {
			t.Errorf("call %s.%s payload = %v, expected resolved payload", c.key, c.format, c.payload)
		}
		if c.group != "out" || c.key != "complete_labs" {
			t.Errorf("unexpected call target %s/%s", c.group, c.key)
		}
	}
	if !formats["csv"] || !formats["sql"] {
		t.Errorf("expected one call per format, got %v", formats)
	}
}

func TestOutputData_KeyIsDefaultReference(t *testing.T) {
	settings := newFakeSettings()
	ctx := quietContext(WithSettings(settings))
	ctx.SetDataReference("meds", 7)

	step := OutputData(func(*Context) (OutputManifest, error) {
		return OutputManifest{"out": {"meds": {Formats: []string{"csv"}}}}, nil
	})

	if err := step(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := settings.outputCalls(); len(calls) != 1 || calls[0].payload != 7 {
		t.Errorf("calls = %+v", calls)
	}
}

func TestOutputData_DataOverride(t *testing.T) {
	settings := newFakeSettings()
	ctx := quietContext(WithSettings(settings))
	ctx.SetDataReference("labs_ongoing", 1)
	ctx.SetDataReference("labs_historical", 2)

	step := OutputData(func(*Context) (OutputManifest, error) {
		return OutputManifest{
			"out": {
				"bundle": {Formats: []string{"json"}, Data: "labs_.*"},
			},
		}, nil
	})

	if err := step(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := settings.outputCalls()
	expected := map[string]any{"labs_ongoing": 1, "labs_historical": 2}
	if len(calls) != 1 || !reflect.DeepEqual(calls[0].payload, expected) {
		t.Errorf("calls = %+v, expected merged pattern payload", calls)
	}
}

func TestOutputData_DataOverrideList(t *testing.T) {
	settings := newFakeSettings()
	ctx := quietContext(WithSettings(settings))
	ctx.SetDataReference("meds", "m")
	ctx.SetDataReference("labs", "l")

	step := OutputData(func(*Context) (OutputManifest, error) {
		return OutputManifest{
			"out": {
				"bundle": {Formats: []string{"json"}, Data: []string{"meds", "labs"}},
			},
		}, nil
	})

	if err := step(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := settings.outputCalls()
	expected := map[string]any{"meds": "m", "labs": "l"}
	if len(calls) != 1 || !reflect.DeepEqual(calls[0].payload, expected) {
		t.Errorf("calls = %+v, expected merged list payload", calls)
	}
}

func TestOutputData_UnresolvedReferenceFails(t *testing.T) {
	settings := newFakeSettings()
	ctx := quietContext(WithSettings(settings))

	step := OutputData(func(*Context) (OutputManifest, error) {
		return OutputManifest{"out": {"ghost": {Formats: []string{"csv"}}}}, nil
	})

	err := step(ctx)
	if !errors.Is(err, ErrReferenceNotFound) {
		t.Fatalf("expected ErrReferenceNotFound, got %v", err)
	}
	if len(settings.outputCalls()) != 0 {
		t.Error("no handler call should happen for an unresolved reference")
	}
}

func TestOutputData_EmptyFormatsFails(t *testing.T) {
	settings := newFakeSettings()
	ctx := quietContext(WithSettings(settings))
	ctx.SetDataReference("meds", 1)

	step := OutputData(func(*Context) (OutputManifest, error) {
		return OutputManifest{"out": {"meds": {}}}, nil
	})

	if err := step(ctx); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestOutputData_OptionsPassThrough(t *testing.T) {
	settings := newFakeSettings()
	ctx := quietContext(WithSettings(settings))
	ctx.SetDataReference("meds", 1)

	opts := map[string]any{"sep": "\t", "chunk_size": 1000}
	step := OutputData(func(*Context) (OutputManifest, error) {
		return OutputManifest{"out": {"meds": {Formats: []string{"csv"}, Options: opts}}}, nil
	})

	if err := step(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := settings.outputCalls()
	if len(calls) != 1 || !reflect.DeepEqual(calls[0].opts, opts) {
		t.Errorf("options not passed through verbatim: %+v", calls)
	}
}

func TestOutputData_HandlerFailure(t *testing.T) {
	settings := newFakeSettings()
	settings.outputErr = fmt.Errorf("disk full")
	ctx := quietContext(WithSettings(settings))
	ctx.SetDataReference("meds", 1)

	step := OutputData(func(*Context) (OutputManifest, error) {
		return OutputManifest{"out": {"meds": {Formats: []string{"csv"}}}}, nil
	})

	if err := step(ctx); !errors.Is(err, ErrHandlerFailure) {
		t.Errorf("expected ErrHandlerFailure, got %v", err)
	}
}

func TestOutputData_AnalyzeHook(t *testing.T) {
	settings := newFakeSettings()
	var gotFormat string
	var gotOp Operation
	settings.analyze = func(group, name, format string, payload any, duration string, op Operation) string {
		gotFormat = format
		gotOp = op
		return ""
	}
	ctx := quietContext(WithSettings(settings))
	ctx.SetDataReference("meds", 1)

	step := OutputData(func(*Context) (OutputManifest, error) {
		return OutputManifest{"out": {"meds": {Formats: []string{"sql"}}}}, nil
	})

	if err := step(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFormat != "sql" || gotOp != OpOutput {
		t.Errorf("analyze hook saw format=%q op=%q", gotFormat, gotOp)
	}
}

func TestOutputData_Parallel(t *testing.T) {
	settings := newFakeSettings()
	ctx := quietContext(WithSettings(settings))
	ctx.SetDataReference("meds", 1)
	ctx.SetDataReference("labs", 2)

	step := OutputData(func(*Context) (OutputManifest, error) {
		return OutputManifest{
			"out": {
				"meds": {Formats: []string{"csv", "sql"}},
				"labs": {Formats: []string{"csv"}},
			},
		}, nil
	}, WithOutputParallel(), WithOutputWorkers(2))

	if err := step(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := settings.outputCalls(); len(calls) != 3 {
		t.Errorf("expected 3 calls after join, got %d", len(calls))
	}
}
