// Package sessionschema validates raw session input documents against the
// published JSON Schema before they reach the pipeline. Schema validation
// catches malformed uploads with a precise error; the pipeline's own
// Validate covers the semantic invariants the schema cannot express.
package sessionschema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed session-input-v1.schema.json
var schemaJSON string

const schemaURL = "https://fairplay.dev/schema/session-input-v1.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// Schema returns the compiled session input schema.
func Schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// Validate checks a raw session document against the schema.
func Validate(data []byte) error {
	schema, err := Schema()
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("session document is not valid JSON: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("session document rejected: %w", err)
	}
	return nil
}
