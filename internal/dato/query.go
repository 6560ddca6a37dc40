package dato

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// encodeQuery writes a nested value as bracketed query keys,
// e.g. filter[fields][sku][eq]=A1. Arrays are comma-joined.
func encodeQuery(values url.Values, prefix string, v any) {
	switch val := v.(type) {
	case nil:
		return
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			encodeQuery(values, prefix+"["+k+"]", val[k])
		}
	case map[string]string:
		for k, s := range val {
			values.Set(prefix+"["+k+"]", s)
		}
	case []string:
		values.Set(prefix, strings.Join(val, ","))
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, scalarString(item))
		}
		values.Set(prefix, strings.Join(parts, ","))
	default:
		values.Set(prefix, scalarString(val))
	}
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// ItemQuery selects records
type ItemQuery struct {
	// Filter is a compiled filter object, usually {"type": ..., "fields": {...}}
	Filter  map[string]any
	Version string // "current" includes drafts, "published" only published
	Locale  string
	OrderBy string
	Limit   int
	Offset  int
}

func (q ItemQuery) values() url.Values {
	values := url.Values{}
	if len(q.Filter) > 0 {
		encodeQuery(values, "filter", q.Filter)
	}
	if q.Version != "" {
		values.Set("version", q.Version)
	}
	if q.Locale != "" {
		values.Set("locale", q.Locale)
	}
	if q.OrderBy != "" {
		values.Set("order_by", q.OrderBy)
	}
	setPage(values, q.Limit, q.Offset)
	return values
}

// UploadQuery selects uploads
type UploadQuery struct {
	Filter map[string]any
	Limit  int
	Offset int
}

func (q UploadQuery) values() url.Values {
	values := url.Values{}
	if len(q.Filter) > 0 {
		encodeQuery(values, "filter", q.Filter)
	}
	setPage(values, q.Limit, q.Offset)
	return values
}

func setPage(values url.Values, limit, offset int) {
	if limit > 0 {
		values.Set("page[limit]", strconv.Itoa(limit))
	}
	if offset > 0 {
		values.Set("page[offset]", strconv.Itoa(offset))
	}
}
