package template

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/protocolqc/protocolqc/internal/domain"
)

// Format is the serialization of a template file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	default:
		return "", false
	}
}

// Entry is one key/value pair of a Mapping.
type Entry struct {
	Key   string
	Value any
}

// Mapping is a decoded object that keeps its keys in document order.
// Acquisition order drives the ordering check and field order drives log
// output, so templates are never decoded into Go maps.
type Mapping []Entry

// Get returns the value stored under key.
func (m Mapping) Get(key string) (any, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in document order.
func (m Mapping) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}

// Parse decodes a template document. JSON is decoded through the YAML
// parser, which accepts it as a subset, after a strict syntax check.
// Numbers decode to float64, lists to []any and objects to Mapping.
func Parse(data []byte, format Format) (Mapping, error) {
	if format == FormatJSON && !json.Valid(data) {
		return nil, domain.NewTemplateError("file is not valid JSON")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, domain.NewTemplateError("cannot parse %s: %v", format, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, domain.NewTemplateError("template is empty")
	}

	v, err := convert(doc.Content[0])
	if err != nil {
		return nil, err
	}
	m, ok := v.(Mapping)
	if !ok {
		return nil, domain.NewTemplateError("top level of template must be an object")
	}
	return m, nil
}

func convert(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.MappingNode:
		m := make(Mapping, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, domain.NewTemplateError("line %d: object keys must be strings", key.Line)
			}
			v, err := convert(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m = append(m, Entry{Key: key.Value, Value: v})
		}
		return m, nil

	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := convert(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, domain.NewTemplateError("line %d: %v", n.Line, err)
		}
		return normalizeScalar(v), nil

	case yaml.AliasNode:
		return convert(n.Alias)

	default:
		return nil, domain.NewTemplateError("line %d: unsupported node", n.Line)
	}
}

func normalizeScalar(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return v
	}
}

// plain converts nested Mappings into map[string]any. Comparators reject
// object references, and the conversion keeps that rejection reachable.
func plain(v any) any {
	switch x := v.(type) {
	case Mapping:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = plain(e.Value)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}

// asMapping returns v as a Mapping or a configuration error naming what.
func asMapping(v any, what string) (Mapping, error) {
	m, ok := v.(Mapping)
	if !ok {
		return nil, domain.NewTemplateError("%s must be an object, got %s", what, describe(v))
	}
	return m, nil
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case Mapping:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
