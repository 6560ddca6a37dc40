package resolver

import (
	"fmt"
	"strings"

	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// Filter operators
const (
	OpEq     = "eq"
	OpNeq    = "neq"
	OpGt     = "gt"
	OpGte    = "gte"
	OpLt     = "lt"
	OpLte    = "lte"
	OpIn     = "in"
	OpNotIn  = "notIn"
	OpExists = "exists"
)

var operators = map[string]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true,
	OpLte: true, OpIn: true, OpNotIn: true, OpExists: true,
}

// CompileFilter builds the remote filter object
// {"type": itemType, "fields": {field: {op: value}}}.
// exists ignores the value; in and notIn split the value on commas.
// Several conditions on one field are merged into one operator object.
func CompileFilter(itemType string, conditions []types.FilterCondition) (map[string]any, error) {
	filter := map[string]any{}
	if itemType != "" {
		filter["type"] = itemType
	}

	fields := map[string]any{}
	for i, c := range conditions {
		field := strings.TrimSpace(c.Field)
		if field == "" {
			return nil, &ValidationError{Field: "filters", Message: fmt.Sprintf("condition %d has no field", i+1)}
		}
		if !operators[c.Operator] {
			return nil, &ValidationError{Field: field, Message: fmt.Sprintf("unknown filter operator %q", c.Operator)}
		}

		ops, _ := fields[field].(map[string]any)
		if ops == nil {
			ops = map[string]any{}
			fields[field] = ops
		}

		switch c.Operator {
		case OpExists:
			ops[OpExists] = true
		case OpIn, OpNotIn:
			ops[c.Operator] = splitList(c.Value)
		default:
			ops[c.Operator] = c.Value
		}
	}

	if len(fields) > 0 {
		filter["fields"] = fields
	}
	return filter, nil
}

// splitList splits on commas and trims each part; commas cannot be escaped
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
