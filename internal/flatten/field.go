package flatten

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the shape of a leaf value.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindNumber
	KindArray
	KindObject
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindNull:
		return "null"
	default:
		return "string"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Widget names the edit control used for a kind of leaf.
type Widget string

const (
	WidgetText   Widget = "text"
	WidgetSwitch Widget = "switch"
	WidgetNumber Widget = "number"
	WidgetJSON   Widget = "json"
)

var widgets = map[Kind]Widget{
	KindString: WidgetText,
	KindBool:   WidgetSwitch,
	KindNumber: WidgetNumber,
	KindArray:  WidgetJSON,
	KindObject: WidgetJSON,
	KindNull:   WidgetText,
}

func (k Kind) Widget() Widget {
	if w, ok := widgets[k]; ok {
		return w
	}
	return WidgetText
}

// KindOf classifies a decoded JSON or YAML leaf.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case json.Number, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindNumber
	case []any:
		return KindArray
	case map[string]any, map[any]any:
		return KindObject
	default:
		return KindString
	}
}

// Field is one editable leaf of a flattened document.
type Field struct {
	Path   string `json:"path"`
	Kind   Kind   `json:"kind"`
	Widget Widget `json:"widget"`
	Value  any    `json:"value"`
	Text   string `json:"text"`
}

// Fields returns the form fields for flat, ordered by path.
func Fields(flat FlatMap) []Field {
	out := make([]Field, 0, len(flat))
	for _, path := range flat.Keys() {
		v := flat[path]
		k := KindOf(v)
		out = append(out, Field{
			Path:   path,
			Kind:   k,
			Widget: k.Widget(),
			Value:  v,
			Text:   FormatValue(v),
		})
	}
	return out
}

// FormatValue renders a leaf as the text shown in its edit control.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// ParseInput converts edit-control text back into a leaf of the given kind.
// Numbers come back as json.Number so no precision is lost before encoding.
func ParseInput(kind Kind, text string) (any, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("not a boolean: %q", text)
		}
		return b, nil
	case KindNumber:
		// Only JSON number syntax survives rendering back to JSON.
		s := strings.TrimSpace(text)
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("not a number: %q", text)
		}
		v, err := decodeJSON(s)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", text)
		}
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("not a number: %q", text)
		}
		if f, err := n.Float64(); err != nil || math.IsInf(f, 0) {
			return nil, fmt.Errorf("number out of range: %q", text)
		}
		return n, nil
	case KindArray:
		v, err := decodeJSON(text)
		if err != nil {
			return nil, err
		}
		if _, ok := v.([]any); !ok {
			return nil, fmt.Errorf("not a JSON array: %q", text)
		}
		return v, nil
	case KindObject:
		v, err := decodeJSON(text)
		if err != nil {
			return nil, err
		}
		if _, ok := v.(map[string]any); !ok {
			return nil, fmt.Errorf("not a JSON object: %q", text)
		}
		return v, nil
	case KindNull:
		s := strings.TrimSpace(text)
		if s == "" || s == "null" {
			return nil, nil
		}
		return text, nil
	default:
		return text, nil
	}
}

func decodeJSON(text string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}

// ErrInvalidValue is wrapped by Apply when edit text does not parse as the
// kind of the value it replaces.
var ErrInvalidValue = errors.New("invalid value")

// UnknownFieldError is returned by Apply for an edit whose path is not a
// field of the document.
type UnknownFieldError struct {
	Path string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Path)
}

// Apply returns a copy of flat with the textual edits parsed according to the
// kind of the value they replace. Paths absent from edits keep their value.
func Apply(flat FlatMap, edits map[string]string) (FlatMap, error) {
	out := make(FlatMap, len(flat))
	for k, v := range flat {
		out[k] = v
	}
	for path, text := range edits {
		cur, ok := flat[path]
		if !ok {
			return nil, &UnknownFieldError{Path: path}
		}
		v, err := ParseInput(KindOf(cur), text)
		if err != nil {
			return nil, fmt.Errorf("%w for field %s: %v", ErrInvalidValue, path, err)
		}
		out[path] = v
	}
	return out, nil
}
