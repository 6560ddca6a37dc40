package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philippherzig/datocms-mcp/internal/testing/mock"
)

func TestCreateAndGetRecord(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)

	created := callJSON(t, s, "create_record", map[string]any{
		"item_type": "api_key:product",
		"fields": map[string]any{
			"sku":         "A1",
			"title":       "Shoe",
			"price":       "19.5",
			"description": `{"en":"Nice","de":"Schön"}`,
		},
		"auto_publish": true,
	})
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "A1", created["sku"])
	assert.Equal(t, "19.5", created["price"])
	assert.Equal(t, map[string]any{"en": "Nice", "de": "Schön"}, created["description"])

	rec, ok := srv.Record(id)
	require.True(t, ok)
	assert.Equal(t, "published", rec.Status)

	got := callJSON(t, s, "get_record", map[string]any{"record_id": id})
	assert.Equal(t, "Shoe", got["title"])
}

func TestCreateRecordAutoMap(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)

	created := callJSON(t, s, "create_record", map[string]any{
		"item_type":    "model-product",
		"mapping_mode": "autoMapInputData",
		"input":        map[string]any{"sku": "B2", "title": "Boot", "unknown": "dropped"},
	})
	assert.Equal(t, "B2", created["sku"])
	assert.NotContains(t, created, "unknown")
}

func TestUpdateRecordReadsModelFromRecord(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)
	id := srv.AddRecord("model-product", map[string]any{"sku": "A1", "title": "Old"})

	updated := callJSON(t, s, "update_record", map[string]any{
		"record_id": id,
		"fields":    map[string]any{"title": "New"},
	})
	assert.Equal(t, "New", updated["title"])
	assert.Equal(t, "A1", updated["sku"])
}

func TestUpsertRecordTool(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)
	id := srv.AddRecord("model-product", map[string]any{"sku": "A1", "title": "Old"})

	updated := callJSON(t, s, "upsert_record", map[string]any{
		"item_type":        "api_key:product",
		"fields":           map[string]any{"sku": "A1", "title": "Updated"},
		"matching_columns": []any{"sku"},
	})
	assert.Equal(t, id, updated["id"])
	assert.Equal(t, 1, srv.RecordCount())

	created := callJSON(t, s, "upsert_record", map[string]any{
		"item_type":        "api_key:product",
		"fields":           map[string]any{"sku": "Z9", "title": "Fresh"},
		"matching_columns": "sku",
	})
	assert.NotEqual(t, id, created["id"])
	assert.Equal(t, 2, srv.RecordCount())

	msg := callError(t, s, "upsert_record", map[string]any{
		"item_type":           "api_key:product",
		"fields":              map[string]any{"sku": "none", "title": "x"},
		"matching_columns":    []any{"sku"},
		"create_if_not_found": false,
	})
	assert.NotEmpty(t, msg)
	assert.Equal(t, 2, srv.RecordCount())
}

func TestListRecordsWithFilters(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)
	srv.AddRecord("model-product", map[string]any{"sku": "A1", "title": "One"})
	srv.AddRecord("model-product", map[string]any{"sku": "B2", "title": "Two"})

	out := callJSON(t, s, "list_records", map[string]any{
		"item_type": "api_key:product",
		"filters":   []any{map[string]any{"field": "sku", "operator": "eq", "value": "B2"}},
	})
	assert.EqualValues(t, 1, out["count"])
	results := out["results"].([]any)
	assert.Equal(t, "Two", results[0].(map[string]any)["title"])

	query := out["query"].(map[string]any)
	assert.Equal(t, "model-product", query["itemType"])
	assert.EqualValues(t, 50, query["limit"])

	all := callJSON(t, s, "list_records", map[string]any{"item_type": "model-product", "return_all": true})
	assert.EqualValues(t, 2, all["count"])

	assert.Contains(t, callError(t, s, "list_records", map[string]any{
		"item_type": "model-product",
		"filters":   "not a list",
	}), "filters")
}

func TestDeleteRecordConfirmation(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)
	id := srv.AddRecord("model-product", map[string]any{"sku": "A1"})

	pending := callJSON(t, s, "delete_record", map[string]any{"record_id": id})
	assert.Equal(t, "confirmation_required", pending["status"])
	_, exists := srv.Record(id)
	assert.True(t, exists, "nothing is deleted before confirmation")

	details := pending["confirmation_details"].(map[string]any)
	assert.Equal(t, confirmPromptName, details["prompt_name"])
	promptArgs := details["prompt_arguments"].(map[string]any)
	assert.Equal(t, "delete_record", promptArgs["original_tool_name"])
	assert.Equal(t, "Delete record "+id, promptArgs["action_description"])

	denied := callJSON(t, s, "execute_confirmed_action", map[string]any{
		"original_tool_name":      "delete_record",
		"original_tool_args_json": promptArgs["original_tool_args_json"],
		"user_decision":           "deny",
	})
	assert.Equal(t, "cancelled", denied["status"])
	_, exists = srv.Record(id)
	assert.True(t, exists)

	deleted := callJSON(t, s, "execute_confirmed_action", map[string]any{
		"original_tool_name":      "delete_record",
		"original_tool_args_json": promptArgs["original_tool_args_json"],
		"user_decision":           "approve",
	})
	assert.Equal(t, id, deleted["id"])
	_, exists = srv.Record(id)
	assert.False(t, exists)
}

func TestExecuteConfirmedActionRejectsUnknownTools(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"not destructive", map[string]any{"original_tool_name": "get_record", "original_tool_args_json": "{}", "user_decision": "approve"}, "does not take confirmation"},
		{"bad json", map[string]any{"original_tool_name": "delete_record", "original_tool_args_json": "{", "user_decision": "approve"}, "invalid original_tool_args_json"},
		{"bad decision", map[string]any{"original_tool_name": "delete_record", "original_tool_args_json": `{"record_id":"1"}`, "user_decision": "maybe"}, "user_decision"},
		{"args revalidated", map[string]any{"original_tool_name": "delete_record", "original_tool_args_json": `{"record_id":"../x"}`, "user_decision": "approve"}, "invalid record_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, callError(t, s, "execute_confirmed_action", tt.args), tt.want)
		})
	}
}

func TestBatchModeSkipsConfirmation(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, func(o *ServerOptions) { o.BatchMode = true })
	id := srv.AddRecord("model-product", map[string]any{"sku": "A1"})

	callJSON(t, s, "publish_record", map[string]any{"record_id": id})
	rec, _ := srv.Record(id)
	assert.Equal(t, "published", rec.Status)

	out := callJSON(t, s, "unpublish_record", map[string]any{"record_id": id})
	assert.NotEqual(t, "confirmation_required", out["status"])
	rec, _ = srv.Record(id)
	assert.Equal(t, "draft", rec.Status)
}

func TestUploadTools(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, func(o *ServerOptions) { o.AutoApprove = true })
	fileURL := srv.ServeFile("cat.png", []byte("meow"))

	created := callJSON(t, s, "create_upload", map[string]any{
		"url":                        fileURL,
		"collection":                 "col-1",
		"include_other_input_fields": true,
		"input":                      map[string]any{"row": float64(7)},
	})
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.EqualValues(t, 7, created["row"])

	listed := callJSON(t, s, "list_uploads", map[string]any{"collection": "col-1"})
	assert.EqualValues(t, 1, listed["count"])

	got := callJSON(t, s, "get_upload", map[string]any{"upload_id": id})
	assert.Equal(t, id, got["id"])

	callJSON(t, s, "delete_upload", map[string]any{"upload_id": id})
	assert.Equal(t, 0, srv.UploadCount())
}

func TestBulkUploadTool(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)
	a := srv.ServeFile("a.jpg", []byte("a"))
	b := srv.ServeFile("b.jpg", []byte("b"))

	out := callJSON(t, s, "bulk_upload", map[string]any{
		"input":        map[string]any{"sku": "A1", "images": []any{a, b, a}},
		"source":       ".images",
		"output_field": "gallery",
		"concurrency":  float64(2),
	})
	assert.Equal(t, "A1", out["sku"])
	gallery := out["gallery"].([]any)
	require.Len(t, gallery, 3)
	assert.Equal(t, gallery[0], gallery[2])
	assert.Equal(t, 2, srv.UploadCount())

	assert.Contains(t, callError(t, s, "bulk_upload", map[string]any{
		"input":       map[string]any{"images": []any{a}},
		"source":      ".images",
		"concurrency": float64(21),
	}), "concurrency")
	assert.Contains(t, callError(t, s, "bulk_upload", map[string]any{"source": ".images"}), "input is required")
}

func TestSchemaTools(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)

	models := callJSON(t, s, "list_models", map[string]any{"return_all": true})
	assert.EqualValues(t, 1, models["count"])

	blocks := callJSON(t, s, "list_blocks", nil)
	assert.EqualValues(t, 1, blocks["count"])

	model := callJSON(t, s, "get_model", map[string]any{"item_type": "api_key:product"})
	assert.Equal(t, "model-product", model["id"])
	assert.Contains(t, callError(t, s, "get_block", map[string]any{"item_type": "model-product"}), "not a block")

	found := callJSON(t, s, "search_item_types", map[string]any{"filter": "PROD"})
	assert.EqualValues(t, 1, found["count"])

	collections := callJSON(t, s, "search_upload_collections", nil)
	options := collections["options"].([]any)
	assert.Equal(t, "(None)", options[0].(map[string]any)["name"])

	locales := callJSON(t, s, "get_site_locales", nil)
	assert.Equal(t, []any{"en", "de"}, locales["locales"])

	fields := callJSON(t, s, "get_model_fields", map[string]any{"item_type": "model-product"})
	assert.Positive(t, fields["count"])

	filterable := callJSON(t, s, "get_filterable_fields", map[string]any{"item_type": "model-product"})
	names := map[string]bool{}
	for _, f := range filterable["fields"].([]any) {
		names[f.(map[string]any)["value"].(string)] = true
	}
	assert.True(t, names["sku"])
	assert.True(t, names["_status"])
}

func TestRunOperation(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)
	id := srv.AddRecord("model-product", map[string]any{"sku": "A1"})

	out := callJSON(t, s, "run_operation", map[string]any{
		"request": map[string]any{
			"resource":  "record",
			"operation": "get",
			"record_id": id,
		},
	})
	assert.Equal(t, "A1", out["sku"])

	raw, err := json.Marshal(map[string]any{"resource": "record", "operation": "delete", "record_id": id})
	require.NoError(t, err)
	pending := callJSON(t, s, "run_operation", map[string]any{"request": string(raw)})
	assert.Equal(t, "confirmation_required", pending["status"])
	_, exists := srv.Record(id)
	assert.True(t, exists)

	assert.Contains(t, callError(t, s, "run_operation", map[string]any{
		"request": map[string]any{"resource": "widget", "operation": "get"},
	}), "unknown resource")
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"n":     float64(3),
		"frac":  1.5,
		"list":  []any{"a", "b"},
		"csv":   "a, b,,c",
		"mixed": []any{"a", float64(1)},
		"obj":   `{"k":"v"}`,
		"flag":  "true",
	}

	n, err := argInt(args, "n")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = argInt(args, "frac")
	assert.Error(t, err)

	list, err := argStrings(args, "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)
	csv, err := argStrings(args, "csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, csv)
	_, err = argStrings(args, "mixed")
	assert.Error(t, err)

	obj, err := argObject(args, "obj")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, obj)

	assert.True(t, argBool(args, "flag"))
	assert.Nil(t, argBoolPtr(args, "missing"))
}
