package dato

import (
	"context"
	"net/url"
)

// Field is a field definition of a model or block
type Field struct {
	ID           string          `json:"id"`
	Label        string          `json:"label"`
	FieldType    string          `json:"field_type"`
	APIKey       string          `json:"api_key"`
	Hint         string          `json:"hint"`
	Localized    bool            `json:"localized"`
	Position     int             `json:"position"`
	Validators   map[string]any  `json:"validators"`
	Appearance   FieldAppearance `json:"appearance"`
	DefaultValue any             `json:"default_value"`
}

// FieldAppearance describes how the editor renders a field
type FieldAppearance struct {
	Editor     string         `json:"editor"`
	Parameters map[string]any `json:"parameters"`
}

// Required reports whether the field carries a required validator
func (f Field) Required() bool {
	_, ok := f.Validators["required"]
	return ok
}

// Unique reports whether the field carries a unique validator
func (f Field) Unique() bool {
	_, ok := f.Validators["unique"]
	return ok
}

// EnumValues returns the allowed values of an enum validator
func (f Field) EnumValues() []string {
	enum, ok := f.Validators["enum"].(map[string]any)
	if !ok {
		return nil
	}
	raw, _ := enum["values"].([]any)
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

// IsURL reports whether the field is constrained to the predefined url format
func (f Field) IsURL() bool {
	format, ok := f.Validators["format"].(map[string]any)
	if !ok {
		return false
	}
	return format["predefined_pattern"] == "url"
}

// ListFields returns the fields of a model or block in API order
func (c *Client) ListFields(ctx context.Context, itemTypeID string) ([]Field, error) {
	var doc listDocument
	if err := c.do(ctx, "GET", "/item-types/"+url.PathEscape(itemTypeID)+"/fields", nil, nil, &doc); err != nil {
		c.logError("list_fields", err)
		return nil, err
	}

	fields := make([]Field, 0, len(doc.Data))
	for _, r := range doc.Data {
		var f Field
		if err := decodeFlat(flatten(r), &f); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	c.logAccess("schema", "list_fields", map[string]any{"item_type": itemTypeID})
	return fields, nil
}

// ItemType is a model or, when ModularBlock is set, a block
type ItemType struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	APIKey       string `json:"api_key"`
	ModularBlock bool   `json:"modular_block"`
	Singleton    bool   `json:"singleton"`
	Sortable     bool   `json:"sortable"`
	Tree         bool   `json:"tree"`
	DraftMode    bool   `json:"draft_mode_active"`

	// Raw holds every attribute and relationship as returned by the API
	Raw map[string]any `json:"-"`
}

func decodeItemType(r resource) (ItemType, error) {
	flat := flatten(r)
	var it ItemType
	if err := decodeFlat(flat, &it); err != nil {
		return ItemType{}, err
	}
	it.Raw = flat
	return it, nil
}

// ListItemTypes returns every model and block of the environment
func (c *Client) ListItemTypes(ctx context.Context) ([]ItemType, error) {
	var doc listDocument
	if err := c.do(ctx, "GET", "/item-types", nil, nil, &doc); err != nil {
		c.logError("list_item_types", err)
		return nil, err
	}

	out := make([]ItemType, 0, len(doc.Data))
	for _, r := range doc.Data {
		it, err := decodeItemType(r)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// FindItemType returns a model or block by ID or API key
func (c *Client) FindItemType(ctx context.Context, idOrAPIKey string) (ItemType, error) {
	var doc singleDocument
	if err := c.do(ctx, "GET", "/item-types/"+url.PathEscape(idOrAPIKey), nil, nil, &doc); err != nil {
		c.logError("find_item_type", err)
		return ItemType{}, err
	}
	return decodeItemType(doc.Data)
}

// UploadCollection groups uploads in the media area
type UploadCollection struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}

// ListUploadCollections returns every upload collection
func (c *Client) ListUploadCollections(ctx context.Context) ([]UploadCollection, error) {
	var doc listDocument
	if err := c.do(ctx, "GET", "/upload-collections", nil, nil, &doc); err != nil {
		c.logError("list_upload_collections", err)
		return nil, err
	}

	out := make([]UploadCollection, 0, len(doc.Data))
	for _, r := range doc.Data {
		var uc UploadCollection
		if err := decodeFlat(flatten(r), &uc); err != nil {
			return nil, err
		}
		out = append(out, uc)
	}
	return out, nil
}

// Site is the project the token belongs to
type Site struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	InternalDomain string   `json:"internal_domain"`
	Locales        []string `json:"locales"`
}

// FindSite returns the project settings. It doubles as a credential check.
func (c *Client) FindSite(ctx context.Context) (Site, error) {
	var doc singleDocument
	if err := c.do(ctx, "GET", "/site", nil, nil, &doc); err != nil {
		c.logger.LogAuth(false, c.profile, map[string]any{"environment": c.environment})
		return Site{}, err
	}

	var site Site
	if err := decodeFlat(flatten(doc.Data), &site); err != nil {
		return Site{}, err
	}
	return site, nil
}
