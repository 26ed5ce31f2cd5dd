package portability

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema/payload.schema.json
var payloadSchemaJSON string

const payloadSchemaURL = "screen_package.schema.json"

var (
	payloadSchemaOnce sync.Once
	payloadSchema     *jsonschema.Schema
	payloadSchemaErr  error
)

func compiledPayloadSchema() (*jsonschema.Schema, error) {
	payloadSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(payloadSchemaURL, strings.NewReader(payloadSchemaJSON)); err != nil {
			payloadSchemaErr = fmt.Errorf("failed to add payload schema: %w", err)
			return
		}
		payloadSchema, payloadSchemaErr = compiler.Compile(payloadSchemaURL)
	})
	return payloadSchema, payloadSchemaErr
}

// SchemaError lists the envelope violations of a rejected payload.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "payload does not match schema: " + strings.Join(e.Violations, "; ")
}

func (e *SchemaError) Unwrap() error { return ErrInvalidPayload }

// DecodePayload reads a JSON payload and checks it against the payload schema.
// Numbers inside attributes are kept as json.Number.
func DecodePayload(r io.Reader) (*Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	var doc any
	if err := decodeJSONNumbers(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	schema, err := compiledPayloadSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return nil, &SchemaError{Violations: schemaViolations(verr)}
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var p Payload
	if err := decodeJSONNumbers(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &p, nil
}

// DecodePayloadYAML reads a YAML payload. It is converted to JSON and then
// handled exactly like DecodePayload.
func DecodePayloadYAML(r io.Reader) (*Payload, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return DecodePayload(bytes.NewReader(data))
}

// EncodePayload writes p as indented JSON.
func EncodePayload(w io.Writer, p *Payload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	return nil
}

// EncodePayloadYAML writes p as block-style YAML with the same field order as the JSON form.
func EncodePayloadYAML(w io.Writer, p *Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("failed to convert payload to yaml: %w", err)
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	return enc.Close()
}

// blockStyle turns the flow mappings and sequences parsed from JSON into
// block style and drops the JSON quoting of strings. The encoder quotes a
// string again when it would otherwise read back as another type.
func blockStyle(n *yaml.Node) {
	switch {
	case n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode:
		n.Style &^= yaml.FlowStyle
	case n.Kind == yaml.ScalarNode && n.Tag == "!!str":
		n.Style = 0
	}
	for _, child := range n.Content {
		blockStyle(child)
	}
}

func decodeJSONNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func schemaViolations(err *jsonschema.ValidationError) []string {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{fmt.Sprintf("%s: %s", loc, err.Message)}
	}
	var out []string
	for _, cause := range err.Causes {
		out = append(out, schemaViolations(cause)...)
	}
	return out
}
