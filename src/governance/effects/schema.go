package effects

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaBase = "https://bandgov.schemas.local/effects/"

// envelopeSchema describes the stored shape of a proposal's effect list.
const envelopeSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["type", "payload"],
    "properties": {
      "type":    {"type": "string", "minLength": 1},
      "payload": {"type": "object"},
      "order":   {"type": "integer"}
    }
  }
}`

var envelope = mustCompile("envelope", envelopeSchema)

func compileSchema(name, src string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("%s%s.schema.json", schemaBase, strings.ToLower(name))
	if err := c.AddResource(url, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("effect schema %s load failed: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("effect schema %s compile failed: %w", name, err)
	}
	return compiled, nil
}

func mustCompile(name, src string) *jsonschema.Schema {
	s, err := compileSchema(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

// validateAgainst checks raw JSON against a compiled schema and returns one
// message per failing leaf.
func validateAgainst(schema *jsonschema.Schema, raw json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return []string{"payload is not valid JSON"}
	}
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	collectLeaves(ve, &out)
	if len(out) == 0 {
		out = append(out, ve.Message)
	}
	return out
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, fmt.Sprintf("payload %s %s", loc, ve.Message))
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}

// DecodePayload narrows a raw payload into a handler's typed shape. Unknown
// fields are rejected.
func DecodePayload[T any](payload json.RawMessage) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("invalid payload: %w", err)
	}
	return v, nil
}
