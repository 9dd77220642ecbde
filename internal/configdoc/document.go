// Package configdoc turns JSON and YAML configuration files into flat,
// editable form fields and renders edited fields back into file content.
// Content that does not parse as an object, or whose keys contain the path
// separator, falls back to raw-text editing.
package configdoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomek7667/devconsole/internal/flatten"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatText
}

var errNotObject = errors.New("top-level value is not an object")

// Document is a config file prepared for editing. When Structured is false
// only Raw is editable and ParseError says why.
type Document struct {
	Path       string          `json:"path"`
	Format     Format          `json:"format"`
	Raw        string          `json:"raw"`
	Structured bool            `json:"structured"`
	ParseError string          `json:"parseError,omitempty"`
	Fields     []flatten.Field `json:"fields"`
	flat       flatten.FlatMap
}

// Parse decodes raw according to the format implied by path. Parse never
// fails; content that is not an object yields an unstructured document.
func Parse(path, raw string) *Document {
	doc := &Document{
		Path:   path,
		Format: FormatOf(path),
		Raw:    raw,
		Fields: []flatten.Field{},
	}
	obj, err := decode(doc.Format, raw)
	if err == nil {
		err = flatten.CheckKeys(obj)
	}
	if err != nil {
		doc.ParseError = err.Error()
		return doc
	}
	doc.Structured = true
	doc.flat = flatten.Flatten(obj, "")
	doc.Fields = flatten.Fields(doc.flat)
	return doc
}

// Flat returns a copy of the flattened fields.
func (d *Document) Flat() flatten.FlatMap {
	out := make(flatten.FlatMap, len(d.flat))
	for k, v := range d.flat {
		out[k] = v
	}
	return out
}

// Apply parses the textual edits against the current field kinds and
// renders the resulting file content.
func (d *Document) Apply(edits map[string]string) (string, error) {
	if !d.Structured {
		return "", fmt.Errorf("%s cannot be edited as fields: %s", d.Path, d.ParseError)
	}
	flat, err := flatten.Apply(d.flat, edits)
	if err != nil {
		return "", err
	}
	b, err := Render(d.Format, flat)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode(format Format, raw string) (map[string]any, error) {
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, errors.New("invalid JSON: trailing data")
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, errNotObject
		}
		return obj, nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		if v == nil {
			return map[string]any{}, nil
		}
		obj, ok := normalizeYAML(v).(map[string]any)
		if !ok {
			return nil, errNotObject
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// normalizeYAML rewrites non-string map keys and timestamps into the shapes
// the flattener and the JSON encoder understand.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	}
	return v
}

// Render rebuilds the nested document from flat and encodes it.
func Render(format Format, flat flatten.FlatMap) ([]byte, error) {
	obj, err := flatten.Unflatten(flat)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(obj); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(numbersForYAML(obj)); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// numbersForYAML converts json.Number leaves into ints or floats; yaml.v3
// would otherwise quote them as strings.
func numbersForYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = numbersForYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = numbersForYAML(val)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return v
}
