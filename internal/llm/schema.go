// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

// Schema describes the JSON object a structured call must return.
type Schema struct {
	// Name identifies the schema to providers that require one.
	Name string

	// Definition is the JSON schema of the object.
	Definition *jsonschema.Schema
}

var (
	reflector = &jsonschema.Reflector{DoNotReference: true, Anonymous: true}

	schemaMu    sync.Mutex
	schemaCache = map[reflect.Type]*Schema{}
)

// SchemaFor reflects the JSON schema of v's type. Fields without omitempty
// are required. Schemas are cached per type.
func SchemaFor(v any) *Schema {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[t]; ok {
		return s
	}
	def := reflector.ReflectFromType(t)
	def.Version = ""
	def.ID = ""
	def.Definitions = nil
	s := &Schema{Name: schemaName(t), Definition: def}
	schemaCache[t] = s
	return s
}

func schemaName(t reflect.Type) string {
	var b strings.Builder
	for i, r := range t.Name() {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "response"
	}
	return strings.ToLower(b.String())
}

// validate checks that the object in raw carries every required key of s
// with a non-null value.
func (s *Schema) validate(raw []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("model output is not a JSON object: %w", err)
	}
	var missing []string
	for _, key := range s.Definition.Required {
		v, ok := fields[key]
		if !ok || string(v) == "null" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("model output does not match schema %s: missing %s", s.Name, strings.Join(missing, ", "))
	}
	return nil
}

// jsonMap renders the schema as a generic JSON value.
func (s *Schema) jsonMap() map[string]any {
	data, err := json.Marshal(s.Definition)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// geminiKeys lists the schema keywords the Gemini responseSchema accepts.
var geminiKeys = map[string]bool{
	"type": true, "format": true, "description": true, "nullable": true,
	"enum": true, "items": true, "properties": true, "required": true,
}

// geminiSchema converts a JSON schema to the OpenAPI subset Gemini accepts:
// unsupported keywords are dropped and type names are upper-cased.
func geminiSchema(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			if !geminiKeys[k] {
				continue
			}
			switch k {
			case "type":
				if name, ok := val.(string); ok {
					out[k] = strings.ToUpper(name)
				}
			case "properties":
				props, ok := val.(map[string]any)
				if !ok {
					continue
				}
				conv := make(map[string]any, len(props))
				for name, p := range props {
					conv[name] = geminiSchema(p)
				}
				out[k] = conv
			case "items":
				out[k] = geminiSchema(val)
			default:
				out[k] = val
			}
		}
		return out
	default:
		return v
	}
}
