package node

import (
	"context"
	"strings"

	"github.com/philippherzig/datocms-mcp/internal/audit"
	"github.com/philippherzig/datocms-mcp/internal/dato"
	"github.com/philippherzig/datocms-mcp/internal/resolver"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// Option is an entry of a searchable list
type Option struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

const (
	noCollection           = "(None)"
	noCollectionAccessible = "(None - Upload Collections Not Accessible)"
)

func (n *Node) runItemType(ctx context.Context, req *types.Request, blocks bool) (map[string]any, error) {
	switch req.Operation {
	case types.OperationGetAll:
		all, err := n.listItemTypes(ctx, blocks)
		if err != nil {
			return nil, err
		}
		if !req.ReturnAll {
			limit := listLimit(req.Limit, 0)
			if len(all) > limit {
				all = all[:limit]
			}
		}
		query := map[string]any{"returnAll": req.ReturnAll}
		if !req.ReturnAll {
			query["limit"] = listLimit(req.Limit, 0)
		}
		return envelope(all, query), nil
	case types.OperationGet:
		ref := req.ItemType
		if ref == "" {
			ref = req.RecordID
		}
		id, err := n.ResolveItemType(ctx, ref)
		if err != nil {
			return nil, err
		}
		it, err := n.remote.FindItemType(ctx, id)
		n.audit(audit.EventSchemaRead, id, err, nil)
		if err != nil {
			return nil, &resolver.RemoteError{Operation: "get model", Err: err}
		}
		if it.ModularBlock != blocks {
			kind := "model"
			if blocks {
				kind = "block"
			}
			return nil, &resolver.ValidationError{Field: "item_type", Message: id + " is not a " + kind}
		}
		return it.Raw, nil
	default:
		return nil, unsupported(req)
	}
}

// listItemTypes returns models, or blocks when blocks is set
func (n *Node) listItemTypes(ctx context.Context, blocks bool) ([]map[string]any, error) {
	itemTypes, err := n.remote.ListItemTypes(ctx)
	n.audit(audit.EventSchemaRead, "item_types", err, nil)
	if err != nil {
		return nil, &resolver.RemoteError{Operation: "list models", Err: err}
	}
	out := make([]map[string]any, 0, len(itemTypes))
	for _, it := range itemTypes {
		if it.ModularBlock == blocks {
			out = append(out, it.Raw)
		}
	}
	return out, nil
}

// SearchItemTypes lists models and blocks whose name contains filter, ignoring case
func (n *Node) SearchItemTypes(ctx context.Context, filter string) ([]Option, error) {
	itemTypes, err := n.remote.ListItemTypes(ctx)
	if err != nil {
		return nil, &resolver.RemoteError{Operation: "load models", Err: err}
	}
	needle := strings.ToLower(filter)
	out := []Option{}
	for _, it := range itemTypes {
		if needle == "" || strings.Contains(strings.ToLower(it.Name), needle) {
			out = append(out, Option{Name: it.Name, Value: it.ID})
		}
	}
	return out, nil
}

// SearchUploadCollections lists upload collections whose label contains filter,
// preceded by a "(None)" entry. A token without access to collections gets
// only a placeholder entry so uploads keep working.
func (n *Node) SearchUploadCollections(ctx context.Context, filter string) ([]Option, error) {
	collections, err := n.remote.ListUploadCollections(ctx)
	if err != nil {
		if dato.IsPermissionDenied(err) {
			return []Option{{Name: noCollectionAccessible, Value: ""}}, nil
		}
		return nil, &resolver.RemoteError{Operation: "load upload collections", Err: err}
	}

	needle := strings.ToLower(filter)
	out := []Option{{Name: noCollection, Value: ""}}
	for _, c := range collections {
		if needle == "" || strings.Contains(strings.ToLower(c.Label), needle) {
			out = append(out, Option{Name: c.Label, Value: c.ID})
		}
	}
	return out, nil
}

// SiteLocales returns the locales of the project, primary locale first
func (n *Node) SiteLocales(ctx context.Context) ([]string, error) {
	site, err := n.remote.FindSite(ctx)
	if err != nil {
		return nil, &resolver.RemoteError{Operation: "load site", Err: err}
	}
	return site.Locales, nil
}

// MapperFields describes the fields of a model for column mapping
func (n *Node) MapperFields(ctx context.Context, ref string) ([]resolver.MapperField, error) {
	id, err := n.ResolveItemType(ctx, ref)
	if err != nil {
		return nil, err
	}
	descriptors, err := n.resolver.FetchFields(ctx, id)
	if err != nil {
		return nil, err
	}
	return resolver.MapperFields(descriptors), nil
}

// FilterableFields lists the fields a record filter of the model can use
func (n *Node) FilterableFields(ctx context.Context, ref string) ([]resolver.FilterableField, error) {
	id, err := n.ResolveItemType(ctx, ref)
	if err != nil {
		return nil, err
	}
	descriptors, err := n.resolver.FetchFields(ctx, id)
	if err != nil {
		return nil, err
	}
	return resolver.FilterableFields(descriptors), nil
}
