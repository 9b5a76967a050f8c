package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bem130/rubyquiz/internal/jsonloc"
)

// Format is the encoding of a quiz file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the format by file extension; JSON is the default.
func FormatFromPath(p string) Format {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// NormalizeFileKey turns a file path into the key used to namespace ids:
// backslashes become slashes, a leading "./" and the extension are removed.
func NormalizeFileKey(p string) string {
	key := strings.ReplaceAll(p, `\`, "/")
	for strings.HasPrefix(key, "./") {
		key = key[2:]
	}
	lower := strings.ToLower(key)
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		if strings.HasSuffix(lower, ext) {
			key = key[:len(key)-len(ext)]
			break
		}
	}
	return key
}

// LoadFile reads and builds the quiz file at p.
func LoadFile(p string) (*Definition, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read quiz file: %w", err)
	}
	def, err := Load(data, NormalizeFileKey(p), FormatFromPath(p))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p, err)
	}
	return def, nil
}

// Load builds a Definition from encoded quiz file contents. For JSON input,
// validation errors carry the line and column of the offending value.
func Load(data []byte, fileKey string, format Format) (*Definition, error) {
	if format == FormatYAML {
		raw, err := decodeYAML(data)
		if err != nil {
			return nil, err
		}
		return BuildDefinition(raw, fileKey)
	}

	root, err := jsonloc.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	def, err := BuildDefinition(root.Interface(), fileKey)
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.locate(root)
	}
	return def, err
}

// Decode returns the encoding/json data model of a quiz file, used by the
// package tracker to hash rows.
func Decode(data []byte, format Format) (any, error) {
	if format == FormatYAML {
		return decodeYAML(data)
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return raw, nil
}

// decodeYAML parses YAML and normalises it to the encoding/json data model
// so both encodings share one validator.
func decodeYAML(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalise yaml: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("normalise yaml: %w", err)
	}
	return out, nil
}
