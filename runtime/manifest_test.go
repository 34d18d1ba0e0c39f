package runtime

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalizeAsset_BareStringTakesWrapperDefaults(t *testing.T) {
	base := AssetSpec{
		Optional: true,
		Default:  map[string]any{"rows": 0},
	}

	spec, err := normalizeAsset("labs", "labs.csv", base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spec.File != "labs.csv" {
		t.Errorf("File = %q", spec.File)
	}
	if !spec.Optional {
		t.Error("bare string should inherit wrapper-level Optional")
	}
	if !reflect.DeepEqual(spec.Default, base.Default) {
		t.Errorf("Default = %v, expected wrapper default", spec.Default)
	}
}

func TestNormalizeAsset_SpecKeepsOwnFields(t *testing.T) {
	base := AssetSpec{Optional: true, Default: map[string]any{"rows": 0}}
	declared := AssetSpec{
		File:    "labs.csv",
		Default: map[string]any{"rows": 1},
	}

	spec, err := normalizeAsset("labs", declared, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Optional {
		t.Error("descriptor's own Optional=false must not be overridden")
	}
	if spec.Default["rows"] != 1 {
		t.Errorf("Default = %v, expected descriptor's own", spec.Default)
	}
}

func TestNormalizeAsset_MapDescriptor(t *testing.T) {
	raw := map[string]any{
		"file":     "labs.csv",
		"optional": true,
		"default":  map[string]any{"rows": 0},
	}

	spec, err := normalizeAsset("labs", raw, AssetSpec{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.File != "labs.csv" || !spec.Optional {
		t.Errorf("decoded spec = %+v", spec)
	}
	if len(spec.Default) != 1 {
		t.Errorf("Default = %v", spec.Default)
	}
}

func TestNormalizeAsset_MissingFileFails(t *testing.T) {
	testCases := []any{
		AssetSpec{Optional: true},
		map[string]any{"optional": true},
		"",
	}
	for _, raw := range testCases {
		if _, err := normalizeAsset("labs", raw, AssetSpec{}); !errors.Is(err, ErrConfiguration) {
			t.Errorf("normalizeAsset(%v) expected ErrConfiguration, got %v", raw, err)
		}
	}
}

func TestNormalizeAsset_UnsupportedShapeFails(t *testing.T) {
	if _, err := normalizeAsset("labs", 42, AssetSpec{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestValidateOutputSpec(t *testing.T) {
	if err := validateOutputSpec("labs", OutputSpec{Formats: []string{"csv"}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateOutputSpec("labs", OutputSpec{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("empty formats expected ErrConfiguration, got %v", err)
	}
}
