package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

const fence = "```"

// Payload is a decoded model reply. Numbers are kept as json.Number.
type Payload map[string]any

// Extract trims the model reply, strips one surrounding fenced block if
// present and decodes the remaining text as a single JSON object.
func Extract(raw string) (Payload, error) {
	stripped := stripFence(strings.TrimSpace(raw))

	fail := func(err error) error {
		return &ParseError{Raw: raw, Stripped: stripped, Err: err}
	}

	if stripped == "" {
		return nil, fail(errors.New("empty response"))
	}

	dec := json.NewDecoder(strings.NewReader(stripped))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fail(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fail(errors.New("unexpected data after JSON document"))
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fail(fmt.Errorf("top-level value is %s, want object", jsonKind(v)))
	}
	return Payload(obj), nil
}

// stripFence removes an opening fence with optional language tag and the
// last closing fence. Text without both fences is returned unchanged.
func stripFence(s string) string {
	if !strings.HasPrefix(s, fence) {
		return s
	}
	body := s[len(fence):]
	end := strings.LastIndex(body, fence)
	if end < 0 {
		return s
	}
	inner := strings.TrimLeftFunc(body[:end], func(r rune) bool {
		return !unicode.IsSpace(r) && r != '{' && r != '['
	})
	return strings.TrimSpace(inner)
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
