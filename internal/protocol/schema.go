package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var schemas = map[string]*jsonschema.Schema{
	TypeRun:     mustCompile("run.schema.json"),
	TypePresets: mustCompile("presets.schema.json"),
}

func mustCompile(name string) *jsonschema.Schema {
	b, err := schemaFS.ReadFile(path.Join("schemas", name))
	if err != nil {
		panic(err)
	}
	return jsonschema.MustCompileString(name, string(b))
}

// Validate checks a client message against the schema for its type. Types
// without a schema are rejected.
func Validate(msgType string, raw []byte) error {
	s, ok := schemas[msgType]
	if !ok {
		return fmt.Errorf("unsupported message type %q", msgType)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

// DecodeRun validates raw as a RUN message and decodes it.
func DecodeRun(raw []byte) (RunMsg, error) {
	var m RunMsg
	if err := Validate(TypeRun, raw); err != nil {
		return m, err
	}
	err := json.Unmarshal(raw, &m)
	return m, err
}
