package handlers

import (
	"fmt"
	"os"

	"github.com/Jeffail/gabs/v2"
)

// ReadJSONFile parses a JSON asset into a gabs container, the payload type
// JSON-shaped references carry between steps.
func ReadJSONFile(path string) (*gabs.Container, error) {
	c, err := gabs.ParseJSONFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

// WriteJSONFile renders a payload to path as indented JSON. Accepts a gabs
// container or any JSON-marshalable value.
func WriteJSONFile(path string, payload any) error {
	var data []byte
	switch v := payload.(type) {
	case *gabs.Container:
		data = v.BytesIndent("", "  ")
	default:
		data = gabs.Wrap(v).BytesIndent("", "  ")
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
