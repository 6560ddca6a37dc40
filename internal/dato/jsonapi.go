package dato

import (
	"encoding/json"
	"fmt"
)

// resource is a JSON:API resource object
type resource struct {
	ID            string                     `json:"id,omitempty"`
	Type          string                     `json:"type"`
	Attributes    map[string]any             `json:"attributes,omitempty"`
	Relationships map[string]json.RawMessage `json:"relationships,omitempty"`
	Meta          map[string]any             `json:"meta,omitempty"`
}

type relationship struct {
	Data any `json:"data"`
}

// Ref points at another resource by type and ID
type Ref struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type singleDocument struct {
	Data resource `json:"data"`
}

type listDocument struct {
	Data []resource `json:"data"`
	Meta struct {
		TotalCount int `json:"total_count"`
	} `json:"meta"`
}

// flatten turns a resource into the plain record shape callers work with:
// id, type, every attribute, every relationship's data and meta at top level.
func flatten(r resource) map[string]any {
	out := make(map[string]any, len(r.Attributes)+len(r.Relationships)+3)
	for k, v := range r.Attributes {
		out[k] = v
	}
	for k, raw := range r.Relationships {
		var rel struct {
			Data any `json:"data"`
		}
		if err := json.Unmarshal(raw, &rel); err == nil {
			out[k] = rel.Data
		}
	}
	if r.Meta != nil {
		out["meta"] = r.Meta
	}
	out["id"] = r.ID
	out["type"] = r.Type
	return out
}

func flattenAll(rs []resource) []map[string]any {
	out := make([]map[string]any, 0, len(rs))
	for _, r := range rs {
		out = append(out, flatten(r))
	}
	return out
}

// document builds a request body for a single resource
func document(typ, id string, attributes map[string]any, relationships map[string]any) map[string]any {
	data := map[string]any{"type": typ}
	if id != "" {
		data["id"] = id
	}
	if attributes != nil {
		data["attributes"] = attributes
	}
	if len(relationships) > 0 {
		rels := make(map[string]any, len(relationships))
		for k, v := range relationships {
			rels[k] = relationship{Data: v}
		}
		data["relationships"] = rels
	}
	return map[string]any{"data": data}
}

// decodeFlat converts a flattened record into a typed struct
func decodeFlat(record map[string]any, v any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

// RefID extracts the ID of a flattened relationship value
func RefID(v any) string {
	switch ref := v.(type) {
	case map[string]any:
		id, _ := ref["id"].(string)
		return id
	case Ref:
		return ref.ID
	case *Ref:
		if ref != nil {
			return ref.ID
		}
	}
	return ""
}
