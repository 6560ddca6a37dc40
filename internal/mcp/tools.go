package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/philippherzig/datocms-mcp/internal/audit"
)

// toolFunc runs a tool on its decoded arguments and returns a JSON-serializable result
type toolFunc func(ctx context.Context, args map[string]any) (any, error)

// describeFunc validates the arguments of a destructive tool and describes
// what it would do. An empty action means no confirmation is needed.
type describeFunc func(args map[string]any) (action, warning string, err error)

func (s *Server) registerTools() {
	s.registerRecordTools()
	s.registerUploadTools()
	s.registerSchemaTools()
	s.registerSessionTools()
}

func (s *Server) registerRecordTools() {
	s.addTool(mcp.NewTool("list_records",
		mcp.WithDescription("List records of a model. Filters are combined with AND; several conditions on the same field are merged."),
		mcp.WithString("item_type", mcp.Required(),
			mcp.Description("Model reference: ID, 'id:<id>', 'api_key:<key>' or a DatoCMS editor URL")),
		mcp.WithArray("filters",
			mcp.Description("Filter rows: [{\"field\":\"sku\",\"operator\":\"eq\",\"value\":\"A1\"}]. Use get_filterable_fields for field names."),
			mcp.Items(map[string]any{"type": "object"})),
		mcp.WithBoolean("return_all", mcp.Description("Walk every page instead of returning up to limit records")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records (default 50, at most 500)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeListRecords)

	s.addTool(mcp.NewTool("get_record",
		mcp.WithDescription("Get a single record by ID"),
		mcp.WithString("record_id", mcp.Required(), mcp.Description("Record ID")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeGetRecord)

	s.addTool(mcp.NewTool("create_record",
		mcp.WithDescription("Create a record. Field values are normalized against the model schema: localized values may be JSON objects keyed by locale, lists may be comma separated."),
		mcp.WithString("item_type", mcp.Required(), mcp.Description("Model reference")),
		mcp.WithObject("fields", mcp.Description("Field values keyed by field API key")),
		mcp.WithString("mapping_mode", mcp.Enum("defineBelow", "autoMapInputData"),
			mcp.Description("defineBelow takes values from fields, autoMapInputData from input")),
		mcp.WithObject("input", mcp.Description("Input record used by autoMapInputData")),
		mcp.WithBoolean("auto_publish", mcp.Description("Publish the record after writing it")),
	), s.executeCreateRecord)

	s.addTool(mcp.NewTool("update_record",
		mcp.WithDescription("Update fields of an existing record. Without item_type the model is read from the record."),
		mcp.WithString("record_id", mcp.Required(), mcp.Description("Record ID")),
		mcp.WithString("item_type", mcp.Description("Model reference")),
		mcp.WithObject("fields", mcp.Description("Field values keyed by field API key")),
		mcp.WithString("mapping_mode", mcp.Enum("defineBelow", "autoMapInputData")),
		mcp.WithObject("input", mcp.Description("Input record used by autoMapInputData")),
		mcp.WithBoolean("auto_publish", mcp.Description("Publish the record after writing it")),
	), s.executeUpdateRecord)

	s.addTool(mcp.NewTool("upsert_record",
		mcp.WithDescription("Create or update a record matched by the values of the matching fields. Several matches are an error; the record is never duplicated."),
		mcp.WithString("item_type", mcp.Required(), mcp.Description("Model reference")),
		mcp.WithObject("fields", mcp.Required(), mcp.Description("Field values keyed by field API key")),
		mcp.WithArray("matching_columns", mcp.Required(),
			mcp.Description("Field API keys whose values identify the record"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithBoolean("create_if_not_found", mcp.Description("Create the record when nothing matches (default true)")),
		mcp.WithBoolean("auto_publish", mcp.Description("Publish the record after writing it")),
	), s.executeUpsertRecord)

	s.addDestructiveTool(mcp.NewTool("delete_record",
		mcp.WithDescription("Delete a record. Requires confirmation unless the server runs in batch or auto-approve mode."),
		mcp.WithString("record_id", mcp.Required(), mcp.Description("Record ID")),
		mcp.WithDestructiveHintAnnotation(true),
	), s.describeRecordAction("Delete record", "The record and its history are removed permanently."), s.executeDeleteRecord)

	s.addTool(mcp.NewTool("publish_record",
		mcp.WithDescription("Publish the current version of a record"),
		mcp.WithString("record_id", mcp.Required(), mcp.Description("Record ID")),
	), s.executePublishRecord)

	s.addDestructiveTool(mcp.NewTool("unpublish_record",
		mcp.WithDescription("Unpublish a record. Requires confirmation unless the server runs in batch or auto-approve mode."),
		mcp.WithString("record_id", mcp.Required(), mcp.Description("Record ID")),
		mcp.WithDestructiveHintAnnotation(true),
	), s.describeRecordAction("Unpublish record", "The record disappears from the delivery API until it is published again."), s.executeUnpublishRecord)
}

func (s *Server) registerUploadTools() {
	s.addTool(mcp.NewTool("list_uploads",
		mcp.WithDescription("List uploads of the media area"),
		mcp.WithString("collection", mcp.Description("Only uploads in this upload collection ID")),
		mcp.WithBoolean("return_all", mcp.Description("Walk every page")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of uploads (default 50, at most 50 per page)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeListUploads)

	s.addTool(mcp.NewTool("get_upload",
		mcp.WithDescription("Get a single upload by ID"),
		mcp.WithString("upload_id", mcp.Required(), mcp.Description("Upload ID")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeGetUpload)

	s.addTool(mcp.NewTool("create_upload",
		mcp.WithDescription("Upload a file from a URL or a local path to the media area"),
		mcp.WithString("url", mcp.Description("Remote file URL")),
		mcp.WithString("file_path", mcp.Description("Local file path")),
		mcp.WithString("filename", mcp.Description("Override the stored file name")),
		mcp.WithString("collection", mcp.Description("Upload collection ID")),
		mcp.WithBoolean("skip_creation_if_already_exists", mcp.Description("Return an existing upload with the same content instead of creating one")),
		mcp.WithBoolean("include_other_input_fields", mcp.Description("Merge input into the result")),
		mcp.WithObject("input", mcp.Description("Input record merged with include_other_input_fields")),
	), s.executeCreateUpload)

	s.addDestructiveTool(mcp.NewTool("delete_upload",
		mcp.WithDescription("Delete an upload. Requires confirmation unless the server runs in batch or auto-approve mode."),
		mcp.WithString("upload_id", mcp.Required(), mcp.Description("Upload ID")),
		mcp.WithDestructiveHintAnnotation(true),
	), s.describeUploadDelete, s.executeDeleteUpload)

	s.addTool(mcp.NewTool("bulk_upload",
		mcp.WithDescription("Upload every URL selected from an input record by a jq expression and write the upload references back into the record"),
		mcp.WithObject("input", mcp.Required(), mcp.Description("Input record")),
		mcp.WithString("source", mcp.Required(),
			mcp.Description("jq expression selecting a URL, a list of URLs or a list of objects with a url key, e.g. '.images'")),
		mcp.WithString("output_field", mcp.Description("Key receiving the upload references (default 'uploads')")),
		mcp.WithNumber("concurrency", mcp.Description("Uploads per wave, 1 to 20")),
		mcp.WithBoolean("skip_creation_if_already_exists"),
		mcp.WithString("collection", mcp.Description("Upload collection ID")),
	), s.executeBulkUpload)
}

func (s *Server) registerSchemaTools() {
	s.addTool(mcp.NewTool("list_models",
		mcp.WithDescription("List the models of the project"),
		mcp.WithBoolean("return_all"),
		mcp.WithNumber("limit"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeListItemTypes(false))

	s.addTool(mcp.NewTool("get_model",
		mcp.WithDescription("Get a model by reference"),
		mcp.WithString("item_type", mcp.Required(), mcp.Description("Model reference")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeGetItemType(false))

	s.addTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List the block models of the project"),
		mcp.WithBoolean("return_all"),
		mcp.WithNumber("limit"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeListItemTypes(true))

	s.addTool(mcp.NewTool("get_block",
		mcp.WithDescription("Get a block model by reference"),
		mcp.WithString("item_type", mcp.Required(), mcp.Description("Block model reference")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeGetItemType(true))

	s.addTool(mcp.NewTool("search_item_types",
		mcp.WithDescription("Search models by name"),
		mcp.WithString("filter", mcp.Description("Case-insensitive name substring")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeSearchItemTypes)

	s.addTool(mcp.NewTool("search_upload_collections",
		mcp.WithDescription("Search upload collections by label"),
		mcp.WithString("filter", mcp.Description("Case-insensitive label substring")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeSearchUploadCollections)

	s.addTool(mcp.NewTool("get_site_locales",
		mcp.WithDescription("List the locales of the project"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeGetSiteLocales)

	s.addTool(mcp.NewTool("get_model_fields",
		mcp.WithDescription("Describe the writable fields of a model, with their types and allowed values"),
		mcp.WithString("item_type", mcp.Required(), mcp.Description("Model reference")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeGetModelFields)

	s.addTool(mcp.NewTool("get_filterable_fields",
		mcp.WithDescription("List the field names usable in list_records filters"),
		mcp.WithString("item_type", mcp.Required(), mcp.Description("Model reference")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeGetFilterableFields)

	s.addDestructiveTool(mcp.NewTool("run_operation",
		mcp.WithDescription("Run any supported operation from a full request object, e.g. "+
			"{\"resource\":\"record\",\"operation\":\"upsert\",\"item_type\":\"api_key:product\",\"fields\":{...},\"matching_columns\":[\"sku\"]}. "+
			"Deleting and unpublishing require confirmation."),
		mcp.WithObject("request", mcp.Required(), mcp.Description("Operation request")),
		mcp.WithObject("input", mcp.Description("Input record for autoMapInputData, include_other_input_fields and bulk uploads")),
	), s.describeOperation, s.executeRunOperation)
}

func (s *Server) registerSessionTools() {
	s.addTool(mcp.NewTool("list_profiles",
		mcp.WithDescription("List the configured credential profiles and the active one"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeListProfiles)

	s.addTool(mcp.NewTool("switch_profile",
		mcp.WithDescription("Connect to the project of another credential profile"),
		mcp.WithString("profile", mcp.Required(), mcp.Description("Profile name")),
	), s.executeSwitchProfile)

	s.addTool(mcp.NewTool("end_session",
		mcp.WithDescription("Drop the connection of a loaded profile that is not active"),
		mcp.WithString("profile", mcp.Required(), mcp.Description("Profile name")),
	), s.executeEndSession)

	s.addTool(mcp.NewTool("health_check",
		mcp.WithDescription("Report server, profile and API connection health"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.executeHealthCheck)

	s.addTool(mcp.NewTool("execute_confirmed_action",
		mcp.WithDescription("Run or cancel an action that answered with status 'confirmation_required', after the user decided"),
		mcp.WithString("original_tool_name", mcp.Required()),
		mcp.WithString("original_tool_args_json", mcp.Required()),
		mcp.WithString("user_decision", mcp.Required(), mcp.Enum("approve", "deny")),
	), s.executeConfirmedAction)
}

// addTool registers a tool behind the rate limiter and the request timeout
func (s *Server) addTool(tool mcp.Tool, fn toolFunc) {
	h := s.wrap(tool.Name, fn)
	s.handlers[tool.Name] = h
	s.mcpServer.AddTool(tool, h)
}

// addDestructiveTool registers a tool that asks for confirmation first.
// execute_confirmed_action runs fn once the user approved.
func (s *Server) addDestructiveTool(tool mcp.Tool, describe describeFunc, fn toolFunc) {
	name := tool.Name
	confirmed := func(ctx context.Context, args map[string]any) (any, error) {
		if _, _, err := describe(args); err != nil {
			return nil, err
		}
		return fn(ctx, args)
	}
	s.confirmed[name] = confirmed

	s.addTool(tool, func(ctx context.Context, args map[string]any) (any, error) {
		action, warning, err := describe(args)
		if err != nil {
			return nil, err
		}
		if action == "" || !s.needsConfirmation() {
			return fn(ctx, args)
		}
		return s.confirmationRequired(name, args, action, warning)
	})
}

func (s *Server) wrap(name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		profile := s.profileName()
		callID := uuid.NewString()
		if !s.rateLimiter.Allow(name) {
			s.logger.LogWithCorrelation(audit.AccessEvent("tool", name, profile, false, map[string]any{"reason": "rate limit exceeded"}), callID)
			return mcp.NewToolResultError("rate limit exceeded, try again later"), nil
		}
		s.logger.LogWithCorrelation(audit.AccessEvent("tool", name, profile, true, map[string]any{"session_id": s.sessionID}), callID)

		if s.options.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.options.Timeout)
			defer cancel()
		}

		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		result, err := fn(ctx, args)
		if err != nil {
			s.logger.LogWithCorrelation(audit.ErrorEvent("mcp", err, map[string]any{"tool": name, "session_id": s.sessionID}), callID)
			return mcp.NewToolResultError(s.validator.SanitizeString(err.Error())), nil
		}
		return marshalToolResult(result)
	}
}

func (s *Server) profileName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentProfile
}

func marshalToolResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) logSystem(event audit.EventType, message string, details map[string]any) {
	s.logger.LogSystem(event, message, details)
}
