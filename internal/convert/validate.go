package convert

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"swedify/internal/recipe"
)

// Validate checks a decoded payload against the recipe shape and fills in
// provenance from the input. It has no side effects.
func Validate(p Payload, in Input) (*recipe.Recipe, error) {
	title, ok := p["title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return nil, invalid(MissingTitle, "title is absent or empty")
	}

	r := &recipe.Recipe{Title: strings.TrimSpace(title)}

	var err error
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"originalTitle", &r.OriginalTitle},
		{"servings", &r.Servings},
		{"prepTime", &r.PrepTime},
		{"cookTime", &r.CookTime},
	} {
		if *f.dst, err = optionalString(p, f.name); err != nil {
			return nil, err
		}
	}
	for _, f := range []struct {
		name string
		dst  *[]string
	}{
		{"ingredients", &r.Ingredients},
		{"instructions", &r.Instructions},
		{"notes", &r.Notes},
	} {
		if *f.dst, err = stringList(p, f.name); err != nil {
			return nil, err
		}
	}

	if u, ok := in.(URLInput); ok {
		r.OriginalURL = strings.TrimSpace(u.URL)
	}
	return r, nil
}

func shapeError(p Payload, format string, args ...any) error {
	raw, _ := json.Marshal(p)
	return &ParseError{Raw: string(raw), Stripped: string(raw), Err: fmt.Errorf(format, args...)}
}

// optionalString accepts a string, a number (models like to emit
// "servings": 4) or null.
func optionalString(p Payload, field string) (string, error) {
	switch v := p[field].(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", shapeError(p, "field %q is %s, want string", field, jsonKind(v))
	}
}

// stringList treats an absent or null field as empty. Anything other than
// an array of strings is rejected.
func stringList(p Payload, field string) ([]string, error) {
	switch v := p[field].(type) {
	case nil:
		return []string{}, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, shapeError(p, "%s[%d] is %s, want string", field, i, jsonKind(item))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, shapeError(p, "field %q is %s, want array of strings", field, jsonKind(v))
	}
}
