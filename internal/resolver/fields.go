// Package resolver reconciles caller-supplied field values with a DatoCMS
// model schema and resolves upserts against existing records.
package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/philippherzig/datocms-mcp/internal/dato"
)

// Kind is the normalized type of a field
type Kind string

const (
	KindText           Kind = "text"
	KindNumber         Kind = "number"
	KindBoolean        Kind = "boolean"
	KindDateTime       Kind = "datetime"
	KindJSON           Kind = "json"
	KindRelationSingle Kind = "relation-single"
	KindRelationMany   Kind = "relation-many"
	KindFileSingle     Kind = "file-single"
	KindFileMany       Kind = "file-many"
	KindEnum           Kind = "enum"
	KindEnumList       Kind = "enum-list"
	KindBlockList      Kind = "block-list"
	KindStructured     Kind = "structured"
)

// Encoding tells normalization how the API expects a value to be shaped
type Encoding string

const (
	// EncodingScalar is a plain string, number, boolean or date
	EncodingScalar Encoding = "scalar"
	// EncodingStringSet is a set of strings stored as a JSON array string
	EncodingStringSet Encoding = "string-set"
	// EncodingList is a native array of IDs or values
	EncodingList Encoding = "list"
	// EncodingLocalized is an object keyed by locale
	EncodingLocalized Encoding = "localized"
	// EncodingStructured is an object or array with a field specific shape
	EncodingStructured Encoding = "structured"
)

// Editor hints that change how a value is stored
const (
	EditorCheckboxGroup = "string_checkbox_group"
	EditorMultiSelect   = "string_multi_select"
)

// FieldDescriptor is one field of a model schema
type FieldDescriptor struct {
	Key        string
	Label      string
	FieldType  string // remote field type, e.g. "links"
	Kind       Kind
	Encoding   Encoding
	Localized  bool
	Required   bool
	Unique     bool
	URL        bool
	EnumValues []string
	Editor     string
	Position   int
}

// Remote is the part of the Content Management API the resolver needs
type Remote interface {
	ListFields(ctx context.Context, itemTypeID string) ([]dato.Field, error)
	ListItems(ctx context.Context, q dato.ItemQuery) ([]map[string]any, error)
	CreateItem(ctx context.Context, itemTypeID string, fields map[string]any) (map[string]any, error)
	UpdateItem(ctx context.Context, id string, fields map[string]any) (map[string]any, error)
	PublishItem(ctx context.Context, id string) (map[string]any, error)
}

// Options tunes normalization
type Options struct {
	// StrictEncoding keeps strings of scalar fields verbatim even when they look like JSON
	StrictEncoding bool
}

// Resolver reconciles field values and resolves upserts
type Resolver struct {
	remote Remote
	opts   Options
}

// New creates a resolver backed by remote
func New(remote Remote, opts Options) *Resolver {
	return &Resolver{remote: remote, opts: opts}
}

// FetchFields loads the schema of a model, sorted by position.
// The schema is fetched on every call.
func (r *Resolver) FetchFields(ctx context.Context, itemTypeID string) ([]FieldDescriptor, error) {
	if strings.TrimSpace(itemTypeID) == "" {
		return nil, &ConfigurationError{Message: "no model selected"}
	}

	fields, err := r.remote.ListFields(ctx, itemTypeID)
	if err != nil {
		return nil, remote("fetch fields", err)
	}

	descriptors := make([]FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		descriptors = append(descriptors, Describe(f))
	}
	sort.SliceStable(descriptors, func(i, j int) bool {
		return descriptors[i].Position < descriptors[j].Position
	})
	return descriptors, nil
}

// Describe converts a remote field definition into a descriptor
func Describe(f dato.Field) FieldDescriptor {
	d := FieldDescriptor{
		Key:        f.APIKey,
		Label:      f.Label,
		FieldType:  f.FieldType,
		Localized:  f.Localized,
		Required:   f.Required(),
		Unique:     f.Unique(),
		URL:        f.IsURL(),
		EnumValues: f.EnumValues(),
		Editor:     f.Appearance.Editor,
		Position:   f.Position,
	}
	d.Kind = kindOf(f.FieldType, d.Editor, len(d.EnumValues) > 0)
	d.Encoding = encodingOf(d)
	return d
}

func kindOf(fieldType, editor string, hasEnum bool) Kind {
	switch fieldType {
	case "string":
		if hasEnum {
			return KindEnum
		}
		return KindText
	case "text", "slug":
		return KindText
	case "integer", "float":
		return KindNumber
	case "boolean":
		return KindBoolean
	case "date", "date_time":
		return KindDateTime
	case "json":
		if editor == EditorMultiSelect {
			return KindEnumList
		}
		return KindJSON
	case "link":
		return KindRelationSingle
	case "links":
		return KindRelationMany
	case "file":
		return KindFileSingle
	case "gallery":
		return KindFileMany
	case "modular_content":
		return KindBlockList
	default:
		// seo, lat_lon, color, video, structured_text, single_block, rich_text
		return KindStructured
	}
}

func encodingOf(d FieldDescriptor) Encoding {
	switch {
	case d.Kind == KindJSON && d.Editor == EditorCheckboxGroup:
		return EncodingStringSet
	case d.Localized:
		return EncodingLocalized
	case d.Kind == KindRelationMany || d.Kind == KindFileMany || d.Kind == KindEnumList:
		return EncodingList
	case d.Kind == KindText || d.Kind == KindNumber || d.Kind == KindBoolean ||
		d.Kind == KindDateTime || d.Kind == KindEnum || d.Kind == KindRelationSingle:
		return EncodingScalar
	default:
		return EncodingStructured
	}
}

// index maps descriptors by key
func index(descriptors []FieldDescriptor) map[string]FieldDescriptor {
	m := make(map[string]FieldDescriptor, len(descriptors))
	for _, d := range descriptors {
		m[d.Key] = d
	}
	return m
}
