package baseline

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ReadFile decodes a YAML dataset and validates it. Grades outside the
// domain are written as .nan.
func ReadFile(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &ds, nil
}

func WriteFile(path string, ds *Dataset) error {
	b, err := Marshal(ds)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func Marshal(ds *Dataset) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ds); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
