package node

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/philippherzig/datocms-mcp/internal/resolver"
)

var (
	// Locator patterns
	prefixPattern    = regexp.MustCompile(`^(id|api_key):(.*)$`)
	editorURLPattern = regexp.MustCompile(`^https?://[^/]+/.*?item_types/([A-Za-z0-9_-]+)`)
	idPattern        = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// LocatorMode tells how a model reference was given
type LocatorMode string

const (
	LocatorID     LocatorMode = "id"
	LocatorAPIKey LocatorMode = "api_key"
	LocatorURL    LocatorMode = "url"
)

// Locator is a parsed model reference
type Locator struct {
	Mode  LocatorMode
	Value string
}

// ParseLocator parses a model reference: a raw ID, "id:<id>",
// "api_key:<key>" or an editor URL containing "/item_types/<id>".
func ParseLocator(ref string) (Locator, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Locator{}, &resolver.ConfigurationError{Message: "no model selected"}
	}

	if m := prefixPattern.FindStringSubmatch(ref); m != nil {
		value := strings.TrimSpace(m[2])
		if value == "" {
			return Locator{}, &resolver.ValidationError{Field: "item_type", Message: fmt.Sprintf("%s reference has no value", m[1])}
		}
		return Locator{Mode: LocatorMode(m[1]), Value: value}, nil
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		m := editorURLPattern.FindStringSubmatch(ref)
		if m == nil {
			return Locator{}, &resolver.ValidationError{Field: "item_type", Message: "URL does not point at a model"}
		}
		return Locator{Mode: LocatorURL, Value: m[1]}, nil
	}

	if !idPattern.MatchString(ref) {
		return Locator{}, &resolver.ValidationError{Field: "item_type", Message: fmt.Sprintf("invalid model reference %q", ref)}
	}
	return Locator{Mode: LocatorID, Value: ref}, nil
}

// ResolveItemType turns a model reference into a model ID.
// API keys are looked up in the list of models.
func (n *Node) ResolveItemType(ctx context.Context, ref string) (string, error) {
	loc, err := ParseLocator(ref)
	if err != nil {
		return "", err
	}
	if loc.Mode != LocatorAPIKey {
		return loc.Value, nil
	}

	itemTypes, err := n.remote.ListItemTypes(ctx)
	if err != nil {
		return "", &resolver.RemoteError{Operation: "list models", Err: err}
	}
	for _, it := range itemTypes {
		if it.APIKey == loc.Value {
			return it.ID, nil
		}
	}
	return "", &resolver.ValidationError{Field: "item_type", Message: fmt.Sprintf("no model with API key %q", loc.Value)}
}
