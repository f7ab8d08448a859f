// Package schema implements the envelope validator: a fixed envelope schema
// that gets key-merged with a method's request or response fragment and
// recompiled for every single validation call. The pristine envelope schema
// is a constant; the merged, compiled schema is discarded immediately after
// use rather than cached, matching the validator's documented behavior.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tenzoki/meshd/internal/paradigm"
)

// coreSchemaJSON is the invariant top-level envelope shape: id/paradigm/
// method, nothing else, unless a method fragment adds more properties.
const coreSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"required": ["id", "paradigm", "method"],
	"properties": {
		"id": {
			"type": "object",
			"additionalProperties": false,
			"required": ["uuid", "to", "from", "kind"],
			"properties": {
				"uuid": {"type": "string"},
				"to": {"type": "string"},
				"from": {"type": "string"},
				"kind": {"type": "string", "enum": ["req", "rep"]}
			}
		},
		"paradigm": {"type": "string"},
		"method": {"type": "string"}
	}
}`

// Side identifies which half of an exchange a fragment belongs to.
type Side int

const (
	RequestSide Side = iota
	ResponseSide
)

// ValidationError tags a failure as a schema/lookup problem rather than a
// handler failure, so Request.Process can classify it as VALIDATION_ERROR.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validator composes the core envelope schema with method fragments drawn
// from a registry and validates candidate documents against the result.
type Validator struct {
	registry *paradigm.Registry
}

// NewValidator returns a validator backed by registry. The registry must
// already be fully populated; Validator never mutates it.
func NewValidator(registry *paradigm.Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate checks raw (a decoded top-level JSON object) against the merged
// envelope+fragment schema for (paradigmName, methodName, side). An unknown
// paradigm or an unknown method on a known paradigm is itself a validation
// failure, naming the offender and the available choices.
func (v *Validator) Validate(side Side, paradigmName, methodName string, raw map[string]json.RawMessage) error {
	method, ok := v.registry.Lookup(paradigmName, methodName)
	if !ok {
		return &ValidationError{Message: v.registry.UnknownMessage(paradigmName, methodName)}
	}

	fragment := method.RequestFragment
	if side == ResponseSide {
		fragment = method.ResponseFragment
	}

	merged, err := mergeSchema(fragment)
	if err != nil {
		return fmt.Errorf("schema: composing schema for %s/%s: %w", paradigmName, methodName, err)
	}

	compiled, err := compile(merged)
	if err != nil {
		return fmt.Errorf("schema: compiling schema for %s/%s: %w", paradigmName, methodName, err)
	}

	doc, err := toDoc(raw)
	if err != nil {
		return fmt.Errorf("schema: decoding candidate: %w", err)
	}

	if err := compiled.Validate(doc); err != nil {
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

// mergeSchema key-merges fragment's properties and required names into a
// fresh copy of the core envelope schema, preserving additionalProperties:
// false at the top level.
func mergeSchema(fragment paradigm.Fragment) ([]byte, error) {
	var core map[string]interface{}
	if err := json.Unmarshal([]byte(coreSchemaJSON), &core); err != nil {
		return nil, err
	}

	props, _ := core["properties"].(map[string]interface{})
	for k, val := range fragment.Properties {
		props[k] = val
	}
	core["properties"] = props

	required, _ := core["required"].([]interface{})
	seen := make(map[string]bool, len(required))
	for _, r := range required {
		if s, ok := r.(string); ok {
			seen[s] = true
		}
	}
	for _, r := range fragment.Required {
		if !seen[r] {
			required = append(required, r)
			seen[r] = true
		}
	}
	core["required"] = required

	return json.Marshal(core)
}

// compile builds a brand-new compiler and resource for merged so that
// nothing about this schema survives past the call that needed it.
func compile(merged []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	const resourceName = "meshd://envelope"
	if err := compiler.AddResource(resourceName, bytes.NewReader(merged)); err != nil {
		return nil, err
	}
	return compiler.Compile(resourceName)
}

func toDoc(raw map[string]json.RawMessage) (interface{}, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
