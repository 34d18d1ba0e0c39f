package runtime

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// InputManifest maps a group (a directory or connection root) to the assets
// to load from it. Each asset value is one of:
//
//   - a bare file name string,
//   - an AssetSpec,
//   - a map[string]any descriptor with "file", "optional" and "default" keys
//     (handy when a manifest is assembled dynamically).
//
// Filters cannot be expressed in the map form; declare them on an AssetSpec
// or at the wrapper level with WithFilters.
type InputManifest map[string]map[string]any

// AssetSpec is the normalized shape every input manifest entry reduces to
// before processing.
type AssetSpec struct {
	// File is the asset's file name within its group.
	File string `mapstructure:"file" validate:"required"`

	// Optional marks an asset whose absence is tolerated. A missing optional
	// asset must carry a non-empty Default.
	Optional bool `mapstructure:"optional"`

	// Filters are applied to the loaded payload in order.
	Filters []Filter `mapstructure:"-"`

	// Default is the payload stored when an optional asset is absent.
	Default map[string]any `mapstructure:"default"`
}

// OutputManifest maps a group to the assets to emit into it, keyed by output
// name. By convention the output key doubles as the data reference name;
// OutputSpec.Data overrides that.
type OutputManifest map[string]map[string]OutputSpec

// OutputSpec describes one output asset.
type OutputSpec struct {
	// Formats lists the format tags to emit, one output handler call each.
	Formats []string `validate:"required,min=1"`

	// Options passes through to the output handler verbatim.
	Options map[string]any

	// Data names the reference(s) to emit: a reference name, a list of
	// names, or a pattern string. Nil falls back to the output key.
	Data any
}

var validate = validator.New()

// normalizeAsset reduces a manifest entry to an AssetSpec, layering the
// wrapper-level defaults under whatever the entry declares. Bare strings
// take every wrapper default; descriptors keep their own fields.
func normalizeAsset(name string, raw any, base AssetSpec) (AssetSpec, error) {
	var spec AssetSpec

	switch v := raw.(type) {
	case string:
		spec = base
		spec.File = v
	case AssetSpec:
		spec = v
		if len(spec.Filters) == 0 {
			spec.Filters = base.Filters
		}
		if spec.Default == nil {
			spec.Default = base.Default
		}
	case map[string]any:
		spec = base
		if err := decodeAssetMap(v, &spec); err != nil {
			return AssetSpec{}, fmt.Errorf("%w: asset %s: %w", ErrConfiguration, name, err)
		}
	default:
		return AssetSpec{}, fmt.Errorf("%w: asset %s has unsupported descriptor type %T", ErrConfiguration, name, raw)
	}

	if err := defaults.Set(&spec); err != nil {
		return AssetSpec{}, fmt.Errorf("%w: asset %s: %w", ErrConfiguration, name, err)
	}
	if err := validate.Struct(spec); err != nil {
		return AssetSpec{}, fmt.Errorf("%w: asset %s: %w", ErrConfiguration, name, err)
	}
	return spec, nil
}

func decodeAssetMap(m map[string]any, spec *AssetSpec) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           spec,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("decoding descriptor: %w", err)
	}
	return nil
}

// validateOutputSpec checks an output manifest entry before any handler call.
func validateOutputSpec(key string, spec OutputSpec) error {
	if err := validate.Struct(spec); err != nil {
		return fmt.Errorf("%w: output %s: %w", ErrConfiguration, key, err)
	}
	return nil
}
