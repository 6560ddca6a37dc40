package resolver

// MapperField describes a field for a column-mapping UI
type MapperField struct {
	ID               string         `json:"id"`
	DisplayName      string         `json:"displayName"`
	Type             string         `json:"type"`
	Required         bool           `json:"required"`
	DefaultMatch     bool           `json:"defaultMatch"`
	CanBeUsedToMatch bool           `json:"canBeUsedToMatch"`
	Display          bool           `json:"display"`
	Options          []MapperOption `json:"options,omitempty"`
}

// MapperOption is one allowed value of an enum field
type MapperOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var uiTypes = map[string]string{
	"string":          "string",
	"text":            "string",
	"slug":            "string",
	"color":           "string",
	"json":            "string",
	"lat_lon":         "string",
	"seo":             "string",
	"structured_text": "string",
	"link":            "string",
	"file":            "string",
	"single_block":    "string",
	"integer":         "number",
	"float":           "number",
	"boolean":         "boolean",
	"date":            "dateTime",
	"date_time":       "dateTime",
	"links":           "array",
	"gallery":         "array",
	"modular_content": "array",
}

var systemKeys = map[string]bool{"id": true, "created_at": true, "updated_at": true}

var matchableTypes = map[string]bool{"string": true, "slug": true, "integer": true}

// MapperFields lists the fields of a model for column mapping.
// The first unique field is the default match.
func MapperFields(descriptors []FieldDescriptor) []MapperField {
	out := make([]MapperField, 0, len(descriptors))
	defaultSet := false
	for _, d := range descriptors {
		if systemKeys[d.Key] {
			continue
		}

		uiType, ok := uiTypes[d.FieldType]
		if !ok {
			uiType = "string"
		}
		if d.URL {
			uiType = "url"
		}
		if d.Localized {
			uiType = "string"
		}

		name := d.Label
		if name == "" {
			name = d.Key
		}
		if d.Unique {
			name += " (Unique)"
		}
		if d.Localized {
			name += " (Localized)"
		}

		f := MapperField{
			ID:               d.Key,
			DisplayName:      name,
			Type:             uiType,
			Required:         d.Required,
			CanBeUsedToMatch: d.Unique || matchableTypes[d.FieldType],
			Display:          true,
		}
		if d.Unique && !defaultSet {
			f.DefaultMatch = true
			defaultSet = true
		}
		for _, v := range d.EnumValues {
			f.Options = append(f.Options, MapperOption{Name: v, Value: v})
		}
		out = append(out, f)
	}
	return out
}

// FilterableField is a field that can appear in a record filter
type FilterableField struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

var systemFilterFields = []FilterableField{
	{Name: "ID", Value: "id", Description: "Record ID"},
	{Name: "Created At", Value: "_created_at", Description: "Record creation timestamp"},
	{Name: "Updated At", Value: "_updated_at", Description: "Record last update timestamp"},
	{Name: "Published At", Value: "_published_at", Description: "Record publication timestamp"},
	{Name: "First Published At", Value: "_first_published_at", Description: "Record first publication timestamp"},
	{Name: "Status", Value: "_status", Description: "Record status (draft or published)"},
	{Name: "Is Valid", Value: "_is_valid", Description: "Whether the record is valid"},
}

// FilterableFields lists system fields followed by the model's own fields.
// Block lists and structured text cannot be filtered on.
func FilterableFields(descriptors []FieldDescriptor) []FilterableField {
	out := make([]FilterableField, 0, len(systemFilterFields)+len(descriptors))
	out = append(out, systemFilterFields...)
	for _, d := range descriptors {
		if d.FieldType == "modular_content" || d.FieldType == "structured_text" {
			continue
		}
		name := d.Label
		if name == "" {
			name = d.Key
		}
		desc := name
		if d.Localized {
			desc += " (Localized)"
		}
		if d.Unique {
			desc += " (Unique)"
		}
		out = append(out, FilterableField{Name: name, Value: d.Key, Description: desc})
	}
	return out
}
