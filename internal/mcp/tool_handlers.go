package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/philippherzig/datocms-mcp/internal/node"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// run dispatches one request on the active profile and unwraps the single output
func (s *Server) run(ctx context.Context, req *types.Request, item map[string]any) (any, error) {
	d, _, err := s.currentDispatcher()
	if err != nil {
		return nil, err
	}
	out, err := d.Run(ctx, req, item)
	if err != nil {
		return nil, err
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

func (s *Server) requiredID(args map[string]any, key string) (string, error) {
	id := argString(args, key)
	if id == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	if err := s.validator.ValidateID(id); err != nil {
		return "", fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}

func (s *Server) requiredItemType(args map[string]any) (string, error) {
	ref := argString(args, "item_type")
	if ref == "" {
		return "", fmt.Errorf("item_type is required")
	}
	if key, ok := strings.CutPrefix(strings.TrimSpace(ref), "api_key:"); ok {
		if err := s.validator.ValidateAPIKey(strings.TrimSpace(key)); err != nil {
			return "", fmt.Errorf("invalid item_type: %w", err)
		}
	}
	return ref, nil
}

// Records

func (s *Server) executeListRecords(ctx context.Context, args map[string]any) (any, error) {
	itemType, err := s.requiredItemType(args)
	if err != nil {
		return nil, err
	}
	filters, err := argFilters(args, "filters")
	if err != nil {
		return nil, err
	}
	limit, err := argInt(args, "limit")
	if err != nil {
		return nil, err
	}
	return s.run(ctx, &types.Request{
		Resource:  types.ResourceRecord,
		Operation: types.OperationGetAll,
		ItemType:  itemType,
		Filters:   filters,
		ReturnAll: argBool(args, "return_all"),
		Limit:     limit,
	}, nil)
}

func (s *Server) executeGetRecord(ctx context.Context, args map[string]any) (any, error) {
	id, err := s.requiredID(args, "record_id")
	if err != nil {
		return nil, err
	}
	return s.run(ctx, &types.Request{
		Resource:  types.ResourceRecord,
		Operation: types.OperationGet,
		RecordID:  id,
	}, nil)
}

// recordWrite collects the arguments shared by create and update
func (s *Server) recordWrite(args map[string]any, op types.Operation) (*types.Request, map[string]any, error) {
	fields, err := argObject(args, "fields")
	if err != nil {
		return nil, nil, err
	}
	input, err := argObject(args, "input")
	if err != nil {
		return nil, nil, err
	}
	if err := s.validator.ValidateFieldKeys(fields); err != nil {
		return nil, nil, err
	}
	return &types.Request{
		Resource:    types.ResourceRecord,
		Operation:   op,
		ItemType:    argString(args, "item_type"),
		MappingMode: types.MappingMode(argString(args, "mapping_mode")),
		Fields:      fields,
		AutoPublish: argBool(args, "auto_publish"),
	}, input, nil
}

func (s *Server) executeCreateRecord(ctx context.Context, args map[string]any) (any, error) {
	if _, err := s.requiredItemType(args); err != nil {
		return nil, err
	}
	req, input, err := s.recordWrite(args, types.OperationCreate)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, req, input)
}

func (s *Server) executeUpdateRecord(ctx context.Context, args map[string]any) (any, error) {
	id, err := s.requiredID(args, "record_id")
	if err != nil {
		return nil, err
	}
	req, input, err := s.recordWrite(args, types.OperationUpdate)
	if err != nil {
		return nil, err
	}
	req.RecordID = id
	return s.run(ctx, req, input)
}

func (s *Server) executeUpsertRecord(ctx context.Context, args map[string]any) (any, error) {
	itemType, err := s.requiredItemType(args)
	if err != nil {
		return nil, err
	}
	fields, err := argObject(args, "fields")
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateFieldKeys(fields); err != nil {
		return nil, err
	}
	columns, err := argStrings(args, "matching_columns")
	if err != nil {
		return nil, err
	}
	return s.run(ctx, &types.Request{
		Resource:         types.ResourceRecord,
		Operation:        types.OperationUpsert,
		ItemType:         itemType,
		Fields:           fields,
		MatchingColumns:  columns,
		CreateIfNotFound: argBoolPtr(args, "create_if_not_found"),
		AutoPublish:      argBool(args, "auto_publish"),
	}, nil)
}

func (s *Server) recordAction(ctx context.Context, args map[string]any, op types.Operation) (any, error) {
	id, err := s.requiredID(args, "record_id")
	if err != nil {
		return nil, err
	}
	return s.run(ctx, &types.Request{
		Resource:  types.ResourceRecord,
		Operation: op,
		RecordID:  id,
	}, nil)
}

func (s *Server) executeDeleteRecord(ctx context.Context, args map[string]any) (any, error) {
	return s.recordAction(ctx, args, types.OperationDelete)
}

func (s *Server) executePublishRecord(ctx context.Context, args map[string]any) (any, error) {
	return s.recordAction(ctx, args, types.OperationPublish)
}

func (s *Server) executeUnpublishRecord(ctx context.Context, args map[string]any) (any, error) {
	return s.recordAction(ctx, args, types.OperationUnpublish)
}

func (s *Server) describeRecordAction(verb, warning string) describeFunc {
	return func(args map[string]any) (string, string, error) {
		id, err := s.requiredID(args, "record_id")
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("%s %s", verb, id), warning, nil
	}
}

// Uploads

func (s *Server) executeListUploads(ctx context.Context, args map[string]any) (any, error) {
	limit, err := argInt(args, "limit")
	if err != nil {
		return nil, err
	}
	req := &types.Request{
		Resource:  types.ResourceUpload,
		Operation: types.OperationGetAll,
		ReturnAll: argBool(args, "return_all"),
		Limit:     limit,
	}
	if collection := argString(args, "collection"); collection != "" {
		req.Upload = &types.UploadParams{Collection: collection}
	}
	return s.run(ctx, req, nil)
}

func (s *Server) executeGetUpload(ctx context.Context, args map[string]any) (any, error) {
	id, err := s.requiredID(args, "upload_id")
	if err != nil {
		return nil, err
	}
	return s.run(ctx, &types.Request{
		Resource:  types.ResourceUpload,
		Operation: types.OperationGet,
		UploadID:  id,
	}, nil)
}

func (s *Server) executeCreateUpload(ctx context.Context, args map[string]any) (any, error) {
	p := &types.UploadParams{
		URL:                         argString(args, "url"),
		FilePath:                    argString(args, "file_path"),
		Filename:                    argString(args, "filename"),
		Collection:                  argString(args, "collection"),
		SkipCreationIfAlreadyExists: argBool(args, "skip_creation_if_already_exists"),
		IncludeOtherInputFields:     argBool(args, "include_other_input_fields"),
	}
	if p.URL != "" {
		if err := s.validator.ValidateURL(p.URL); err != nil {
			return nil, err
		}
	}
	if p.FilePath != "" {
		if err := s.validator.ValidateFilePath(p.FilePath); err != nil {
			return nil, err
		}
	}
	input, err := argObject(args, "input")
	if err != nil {
		return nil, err
	}
	return s.run(ctx, &types.Request{
		Resource:  types.ResourceUpload,
		Operation: types.OperationCreate,
		Upload:    p,
	}, input)
}

func (s *Server) executeDeleteUpload(ctx context.Context, args map[string]any) (any, error) {
	id, err := s.requiredID(args, "upload_id")
	if err != nil {
		return nil, err
	}
	return s.run(ctx, &types.Request{
		Resource:  types.ResourceUpload,
		Operation: types.OperationDelete,
		UploadID:  id,
	}, nil)
}

func (s *Server) describeUploadDelete(args map[string]any) (string, string, error) {
	id, err := s.requiredID(args, "upload_id")
	if err != nil {
		return "", "", err
	}
	return "Delete upload " + id, "Records that reference this upload lose the file.", nil
}

func (s *Server) executeBulkUpload(ctx context.Context, args map[string]any) (any, error) {
	input, err := argObject(args, "input")
	if err != nil {
		return nil, err
	}
	if input == nil {
		return nil, fmt.Errorf("input is required")
	}
	source := argString(args, "source")
	if err := s.validator.ValidateExpression(source); err != nil {
		return nil, fmt.Errorf("invalid source: %w", err)
	}
	concurrency, err := argInt(args, "concurrency")
	if err != nil {
		return nil, err
	}

	d, _, err := s.currentDispatcher()
	if err != nil {
		return nil, err
	}
	return d.BulkUpload(ctx, &types.BulkUploadParams{
		Source:                      source,
		OutputField:                 argString(args, "output_field"),
		Concurrency:                 concurrency,
		SkipCreationIfAlreadyExists: argBool(args, "skip_creation_if_already_exists"),
		Collection:                  argString(args, "collection"),
	}, input)
}

// Schema

func (s *Server) executeListItemTypes(blocks bool) toolFunc {
	resource := types.ResourceItemType
	if blocks {
		resource = types.ResourceBlock
	}
	return func(ctx context.Context, args map[string]any) (any, error) {
		limit, err := argInt(args, "limit")
		if err != nil {
			return nil, err
		}
		return s.run(ctx, &types.Request{
			Resource:  resource,
			Operation: types.OperationGetAll,
			ReturnAll: argBool(args, "return_all"),
			Limit:     limit,
		}, nil)
	}
}

func (s *Server) executeGetItemType(blocks bool) toolFunc {
	resource := types.ResourceItemType
	if blocks {
		resource = types.ResourceBlock
	}
	return func(ctx context.Context, args map[string]any) (any, error) {
		itemType, err := s.requiredItemType(args)
		if err != nil {
			return nil, err
		}
		return s.run(ctx, &types.Request{
			Resource:  resource,
			Operation: types.OperationGet,
			ItemType:  itemType,
		}, nil)
	}
}

func optionsResult(options []node.Option) map[string]any {
	if options == nil {
		options = []node.Option{}
	}
	return map[string]any{"options": options, "count": len(options)}
}

func (s *Server) executeSearchItemTypes(ctx context.Context, args map[string]any) (any, error) {
	filter := argString(args, "filter")
	if err := s.validator.ValidateSearchQuery(filter); err != nil {
		return nil, err
	}
	d, _, err := s.currentDispatcher()
	if err != nil {
		return nil, err
	}
	options, err := d.SearchItemTypes(ctx, filter)
	if err != nil {
		return nil, err
	}
	return optionsResult(options), nil
}

func (s *Server) executeSearchUploadCollections(ctx context.Context, args map[string]any) (any, error) {
	filter := argString(args, "filter")
	if err := s.validator.ValidateSearchQuery(filter); err != nil {
		return nil, err
	}
	d, _, err := s.currentDispatcher()
	if err != nil {
		return nil, err
	}
	options, err := d.SearchUploadCollections(ctx, filter)
	if err != nil {
		return nil, err
	}
	return optionsResult(options), nil
}

func (s *Server) executeGetSiteLocales(ctx context.Context, _ map[string]any) (any, error) {
	d, _, err := s.currentDispatcher()
	if err != nil {
		return nil, err
	}
	locales, err := d.SiteLocales(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"locales": locales}, nil
}

func (s *Server) executeGetModelFields(ctx context.Context, args map[string]any) (any, error) {
	itemType, err := s.requiredItemType(args)
	if err != nil {
		return nil, err
	}
	d, _, err := s.currentDispatcher()
	if err != nil {
		return nil, err
	}
	fields, err := d.MapperFields(ctx, itemType)
	if err != nil {
		return nil, err
	}
	return map[string]any{"fields": fields, "count": len(fields)}, nil
}

func (s *Server) executeGetFilterableFields(ctx context.Context, args map[string]any) (any, error) {
	itemType, err := s.requiredItemType(args)
	if err != nil {
		return nil, err
	}
	d, _, err := s.currentDispatcher()
	if err != nil {
		return nil, err
	}
	fields, err := d.FilterableFields(ctx, itemType)
	if err != nil {
		return nil, err
	}
	return map[string]any{"fields": fields, "count": len(fields)}, nil
}

// Generic dispatch

func (s *Server) executeRunOperation(ctx context.Context, args map[string]any) (any, error) {
	req, err := decodeRequest(args, "request")
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateFieldKeys(req.Fields); err != nil {
		return nil, err
	}
	input, err := argObject(args, "input")
	if err != nil {
		return nil, err
	}
	return s.run(ctx, req, input)
}

func (s *Server) describeOperation(args map[string]any) (string, string, error) {
	req, err := decodeRequest(args, "request")
	if err != nil {
		return "", "", err
	}
	target := req.RecordID
	if req.Resource == types.ResourceUpload {
		target = req.UploadID
	}
	switch req.Operation {
	case types.OperationDelete:
		return fmt.Sprintf("Delete %s %s", req.Resource, target), "This cannot be undone.", nil
	case types.OperationUnpublish:
		return fmt.Sprintf("Unpublish %s %s", req.Resource, target), "", nil
	default:
		return "", "", nil
	}
}
