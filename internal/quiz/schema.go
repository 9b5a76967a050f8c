package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// quizFileSchema checks the shape of the quiz file envelope. The token
// grammar and cross-field rules are checked by BuildDefinition.
var quizFileSchema = map[string]any{
	"type":     "object",
	"required": []any{"title", "description", "version", "table", "patterns"},
	"properties": map[string]any{
		"$schema":     map[string]any{"type": "string"},
		"title":       map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"version":     map[string]any{"type": "integer"},
		"color":       map[string]any{"type": "string"},
		"table": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id"},
				"properties": map[string]any{
					"id": map[string]any{"type": "string"},
				},
			},
		},
		"patterns": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"tokens"},
				"properties": map[string]any{
					"id":          map[string]any{"type": "string"},
					"label":       map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"tokens":      map[string]any{"type": "array"},
					"filter":      map[string]any{"type": "object"},
					"tips": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []any{"tokens"},
							"properties": map[string]any{
								"tokens": map[string]any{"type": "array"},
							},
						},
					},
				},
			},
		},
	},
}

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// validateSchema checks raw against the quiz file schema and converts the
// first failure into a ValidationError.
func validateSchema(raw any) error {
	compiled, err := getCompiledSchema("quiz-file", quizFileSchema)
	if err != nil {
		return fmt.Errorf("compile quiz file schema: %w", err)
	}
	err = compiled.Validate(raw)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("schema validation: %w", err)
	}
	at, msg := deepestSchemaError(ve)
	verr := at.errorf("%s", msg)
	verr.Err = err
	return verr
}

// deepestSchemaError picks the most specific failure from the basic output.
func deepestSchemaError(ve *jsonschema.ValidationError) (path, string) {
	out := ve.BasicOutput()
	var best path
	msg := "does not match the quiz file schema"
	bestDepth := -1
	for _, u := range out.Errors {
		if u.Error == nil {
			continue
		}
		p := pointerToPath(u.InstanceLocation)
		if len(p) > bestDepth {
			best, bestDepth, msg = p, len(p), u.Error.String()
		}
	}
	return best, msg
}

// pointerToPath converts a JSON pointer such as /patterns/0/tokens.
func pointerToPath(ptr string) path {
	var p path
	for _, part := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
		if i, err := strconv.Atoi(part); err == nil {
			p = append(p, i)
			continue
		}
		p = append(p, part)
	}
	return p
}

// getCompiledSchema returns a cached compiled schema or compiles and caches it.
func getCompiledSchema(name string, def map[string]any) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler wants the encoding/json data model, so round-trip the
	// Go literal.
	defBytes, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", name)
	if err := c.AddResource(schemaURL, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(name, compiled)
	return compiled, nil
}
