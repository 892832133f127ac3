package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalid is returned when a configuration document fails validation.
var ErrInvalid = errors.New("invalid configuration")

const schemaID = "resources.schema.json"

//go:embed schema.json
var schemaJSON []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func resourceSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("failed to unmarshal configuration schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaID, doc); err != nil {
			compileErr = fmt.Errorf("failed to add configuration schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(schemaID)
	})
	return compiled, compileErr
}

// Validate checks a decoded configuration document against the embedded
// schema. The document is round-tripped through JSON so YAML scalars take
// their JSON form.
func Validate(doc any) error {
	sch, err := resourceSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Schema returns the embedded configuration schema.
func Schema() []byte {
	return append([]byte(nil), schemaJSON...)
}
