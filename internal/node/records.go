package node

import (
	"context"
	"fmt"

	"github.com/philippherzig/datocms-mcp/internal/audit"
	"github.com/philippherzig/datocms-mcp/internal/dato"
	"github.com/philippherzig/datocms-mcp/internal/resolver"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

const defaultListLimit = 50

func (n *Node) runRecord(ctx context.Context, req *types.Request, item map[string]any) (map[string]any, error) {
	switch req.Operation {
	case types.OperationCreate:
		return n.createRecord(ctx, req, item)
	case types.OperationGet:
		if err := requireID(req.RecordID, "record_id"); err != nil {
			return nil, err
		}
		rec, err := n.remote.FindItem(ctx, req.RecordID)
		n.audit(audit.EventRecordRead, req.RecordID, err, nil)
		if err != nil {
			return nil, &resolver.RemoteError{Operation: "get record", Err: err}
		}
		return rec, nil
	case types.OperationGetAll:
		return n.listRecords(ctx, req)
	case types.OperationUpdate:
		return n.updateRecord(ctx, req, item)
	case types.OperationUpsert:
		return n.upsertRecord(ctx, req, item)
	case types.OperationDelete:
		return n.recordAction(ctx, req, audit.EventRecordDelete, "delete record", n.remote.DeleteItem)
	case types.OperationPublish:
		return n.recordAction(ctx, req, audit.EventRecordPublish, "publish record", n.remote.PublishItem)
	case types.OperationUnpublish:
		return n.recordAction(ctx, req, audit.EventRecordUnpublish, "unpublish record", n.remote.UnpublishItem)
	default:
		return nil, unsupported(req)
	}
}

// recordFields produces the payload for create and update.
// Both mapping modes are normalized against the schema.
func (n *Node) recordFields(ctx context.Context, req *types.Request, itemType string, item map[string]any) (map[string]any, error) {
	var raw map[string]any
	switch req.MappingMode {
	case "", types.MappingDefineBelow:
		raw = req.Fields
	case types.MappingAutoMap:
		raw = item
	default:
		return nil, &resolver.ConfigurationError{Message: fmt.Sprintf("unknown mapping mode %q", req.MappingMode)}
	}

	descriptors, err := n.resolver.FetchFields(ctx, itemType)
	if err != nil {
		return nil, err
	}
	return n.resolver.Normalize(raw, descriptors), nil
}

func (n *Node) createRecord(ctx context.Context, req *types.Request, item map[string]any) (map[string]any, error) {
	itemType, err := n.ResolveItemType(ctx, req.ItemType)
	if err != nil {
		return nil, err
	}
	fields, err := n.recordFields(ctx, req, itemType, item)
	if err != nil {
		return nil, err
	}

	rec, err := n.remote.CreateItem(ctx, itemType, fields)
	n.audit(audit.EventRecordCreate, itemType, err, map[string]any{"fields": len(fields)})
	if err != nil {
		return nil, &resolver.RemoteError{Operation: "create record", Err: err}
	}
	if req.AutoPublish {
		return n.publishAfterWrite(ctx, rec)
	}
	return rec, nil
}

func (n *Node) updateRecord(ctx context.Context, req *types.Request, item map[string]any) (map[string]any, error) {
	if err := requireID(req.RecordID, "record_id"); err != nil {
		return nil, err
	}

	// The model of an existing record can be read from the record itself.
	var itemType string
	if req.ItemType != "" {
		resolved, err := n.ResolveItemType(ctx, req.ItemType)
		if err != nil {
			return nil, err
		}
		itemType = resolved
	} else {
		existing, err := n.remote.FindItem(ctx, req.RecordID)
		if err != nil {
			return nil, &resolver.RemoteError{Operation: "get record", Err: err}
		}
		itemType = dato.RefID(existing["item_type"])
	}

	fields, err := n.recordFields(ctx, req, itemType, item)
	if err != nil {
		return nil, err
	}

	rec, err := n.remote.UpdateItem(ctx, req.RecordID, fields)
	n.audit(audit.EventRecordUpdate, req.RecordID, err, map[string]any{"fields": len(fields)})
	if err != nil {
		return nil, &resolver.RemoteError{Operation: "update record", Err: err}
	}
	if req.AutoPublish {
		return n.publishAfterWrite(ctx, rec)
	}
	return rec, nil
}

// publishAfterWrite publishes a record that was just written.
// The write stays in place when publishing fails.
func (n *Node) publishAfterWrite(ctx context.Context, rec map[string]any) (map[string]any, error) {
	id, _ := rec["id"].(string)
	published, err := n.remote.PublishItem(ctx, id)
	n.audit(audit.EventRecordPublish, id, err, nil)
	if err != nil {
		return nil, &resolver.RemoteError{Operation: "publish record", Err: err}
	}
	return published, nil
}

func (n *Node) upsertRecord(ctx context.Context, req *types.Request, item map[string]any) (map[string]any, error) {
	itemType, err := n.ResolveItemType(ctx, req.ItemType)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch req.MappingMode {
	case "", types.MappingDefineBelow:
		raw = req.Fields
	case types.MappingAutoMap:
		raw = item
	default:
		return nil, &resolver.ConfigurationError{Message: fmt.Sprintf("unknown mapping mode %q", req.MappingMode)}
	}

	res, err := n.resolver.Upsert(ctx, resolver.UpsertRequest{
		ItemType:         itemType,
		Fields:           raw,
		MatchingFields:   req.MatchingColumns,
		CreateIfNotFound: req.ShouldCreateIfNotFound(),
		AutoPublish:      req.AutoPublish,
	})

	op := audit.EventRecordUpdate
	if res != nil && res.Action == resolver.ActionCreated {
		op = audit.EventRecordCreate
	}
	details := map[string]any{"upsert": true}
	if res != nil {
		details["state"] = string(res.State)
		details["matched"] = res.Matched
	}
	n.audit(op, itemType, err, details)

	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

type recordCall func(ctx context.Context, id string) (map[string]any, error)

func (n *Node) recordAction(ctx context.Context, req *types.Request, op audit.EventType, name string, call recordCall) (map[string]any, error) {
	if err := requireID(req.RecordID, "record_id"); err != nil {
		return nil, err
	}
	rec, err := call(ctx, req.RecordID)
	n.audit(op, req.RecordID, err, nil)
	if err != nil {
		return nil, &resolver.RemoteError{Operation: name, Err: err}
	}
	return rec, nil
}

func (n *Node) listRecords(ctx context.Context, req *types.Request) (map[string]any, error) {
	itemType, err := n.ResolveItemType(ctx, req.ItemType)
	if err != nil {
		return nil, err
	}
	filter, err := resolver.CompileFilter(itemType, req.Filters)
	if err != nil {
		return nil, err
	}

	q := dato.ItemQuery{Filter: filter}
	var results []map[string]any
	if req.ReturnAll {
		results, err = dato.Collect(n.remote.ItemsPaged(ctx, q))
	} else {
		q.Limit = listLimit(req.Limit, dato.MaxItemsPerPage)
		results, err = n.remote.ListItems(ctx, q)
	}
	n.audit(audit.EventRecordRead, itemType, err, map[string]any{"count": len(results)})
	if err != nil {
		return nil, &resolver.RemoteError{Operation: "list records", Err: err}
	}

	filters := req.Filters
	if filters == nil {
		filters = []types.FilterCondition{}
	}
	query := map[string]any{
		"itemType":  itemType,
		"filters":   filters,
		"returnAll": req.ReturnAll,
	}
	if !req.ReturnAll {
		query["limit"] = listLimit(req.Limit, 0)
	}
	return envelope(results, query), nil
}

// listLimit applies the default page size and, when ceiling > 0, the API cap
func listLimit(limit, ceiling int) int {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if ceiling > 0 && limit > ceiling {
		return ceiling
	}
	return limit
}
