package resolver

import (
	"encoding/json"
	"fmt"
	"strings"
)

// IsHelperKey reports whether key is an internal helper key
// (underscore prefix and containing "helper"). Helper keys are never sent.
func IsHelperKey(key string) bool {
	return strings.HasPrefix(key, "_") && strings.Contains(key, "helper")
}

// Normalize converts raw values into the shapes the API accepts for each
// field. Helper keys and keys unknown to the schema are dropped.
func (r *Resolver) Normalize(raw map[string]any, descriptors []FieldDescriptor) map[string]any {
	fields := index(descriptors)
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		if IsHelperKey(key) {
			continue
		}
		d, ok := fields[key]
		if !ok {
			continue
		}
		out[key] = r.NormalizeValue(value, d)
	}
	return out
}

// NormalizeValue applies the per-field policy; the first matching rule wins:
//  1. string-set JSON fields become a JSON array string
//  2. non-blank strings: localized "{...}" becomes an object, list fields
//     become arrays, other "{"/"[" strings are parsed when they are valid JSON
//  3. everything else passes through
func (r *Resolver) NormalizeValue(value any, d FieldDescriptor) any {
	if d.Encoding == EncodingStringSet {
		return encodeStringSet(value)
	}

	s, ok := value.(string)
	if !ok {
		return value
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return value
	}

	switch {
	case d.Localized && strings.HasPrefix(trimmed, "{"):
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return obj
		}
		return value
	case isListKind(d.Kind):
		if strings.HasPrefix(trimmed, "[") {
			var list []any
			if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
				return list
			}
			return value
		}
		return []any{s}
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		if r.opts.StrictEncoding && d.Encoding == EncodingScalar {
			return value
		}
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed
		}
		return value
	default:
		return value
	}
}

func isListKind(k Kind) bool {
	return k == KindRelationMany || k == KindFileMany || k == KindEnumList
}

// encodeStringSet turns a scalar, array or JSON array literal into an
// indented JSON array of strings
func encodeStringSet(value any) any {
	if value == nil {
		return nil
	}

	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			items = []any{}
			break
		}
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
				break
			}
		}
		items = []any{v}
	default:
		items = []any{v}
	}

	values := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			values = append(values, s)
			continue
		}
		values = append(values, fmt.Sprint(item))
	}

	encoded, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return value
	}
	return string(encoded)
}
