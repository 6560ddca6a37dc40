package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/philippherzig/datocms-mcp/internal/dato"
	"github.com/philippherzig/datocms-mcp/internal/resolver"
	"github.com/philippherzig/datocms-mcp/internal/testing/mock"
	"github.com/philippherzig/datocms-mcp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T, srv *mock.CMAServer, opts Options) *Node {
	t.Helper()
	profile := &types.Profile{
		Name: "test",
		Config: map[string]string{
			types.ConfigAPIToken: mock.Token,
			types.ConfigBaseURL:  srv.URL,
		},
	}
	client, err := dato.NewClient(profile, nil, dato.WithPollInterval(time.Millisecond), dato.WithMaxRetries(0))
	require.NoError(t, err)
	return New(client, nil, opts)
}

func fixed(req *types.Request) RequestFunc {
	return func(int, map[string]any) (*types.Request, error) {
		return req, nil
	}
}

func boolPtr(b bool) *bool { return &b }

func TestCreateRecordNormalizesFields(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	n := newTestNode(t, srv, Options{})

	out, err := n.Run(context.Background(), &types.Request{
		Resource:  types.ResourceRecord,
		Operation: types.OperationCreate,
		ItemType:  "api_key:product",
		Fields: map[string]any{
			"sku":            "A1",
			"title":          "Shoe",
			"tags":           []any{"red", "blue"},
			"related":        "99",
			"description":    `{"en":"Nice","de":"Schön"}`,
			"_mapper_helper": "dropped",
		},
		AutoPublish: true,
	}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	id := out[0]["id"].(string)
	rec, ok := srv.Record(id)
	require.True(t, ok)
	assert.Equal(t, "model-product", rec.ItemType)
	assert.Equal(t, "published", rec.Status)
	assert.Equal(t, "[\n  \"red\",\n  \"blue\"\n]", rec.Attributes["tags"])
	assert.Equal(t, []any{"99"}, rec.Attributes["related"])
	assert.Equal(t, map[string]any{"en": "Nice", "de": "Schön"}, rec.Attributes["description"])
	assert.NotContains(t, rec.Attributes, "_mapper_helper")
}

func TestCreateRecordAutoMap(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	n := newTestNode(t, srv, Options{})

	out, err := n.Run(context.Background(), &types.Request{
		Resource:    types.ResourceRecord,
		Operation:   types.OperationCreate,
		ItemType:    "model-product",
		MappingMode: types.MappingAutoMap,
	}, map[string]any{"sku": "B2", "title": "Boot", "not_a_field": 1})
	require.NoError(t, err)

	rec, ok := srv.Record(out[0]["id"].(string))
	require.True(t, ok)
	assert.Equal(t, "B2", rec.Attributes["sku"])
	assert.NotContains(t, rec.Attributes, "not_a_field")
}

func TestUpdateRecordReadsModelFromRecord(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	id := srv.AddRecord("model-product", map[string]any{"sku": "A1", "title": "Old"})
	n := newTestNode(t, srv, Options{})

	out, err := n.Run(context.Background(), &types.Request{
		Resource:  types.ResourceRecord,
		Operation: types.OperationUpdate,
		RecordID:  id,
		Fields:    map[string]any{"title": "New", "related": `["5","6"]`},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "New", out[0]["title"])

	rec, _ := srv.Record(id)
	assert.Equal(t, []any{"5", "6"}, rec.Attributes["related"])
	assert.Len(t, srv.CallsTo("GET", "/item-types/model-product/fields"), 1)
}

func TestUpsertRecord(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	existing := srv.AddRecord("model-product", map[string]any{"sku": "rec_1", "price": 1.0})
	n := newTestNode(t, srv, Options{})
	ctx := context.Background()

	req := &types.Request{
		Resource:        types.ResourceRecord,
		Operation:       types.OperationUpsert,
		ItemType:        "model-product",
		Fields:          map[string]any{"sku": "rec_1", "price": "9.99"},
		MatchingColumns: []string{"sku"},
	}

	out, err := n.Run(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, existing, out[0]["id"])
	assert.Equal(t, 1, srv.RecordCount())

	req.Fields = map[string]any{"sku": "A1", "price": "9.99"}
	out, err = n.Run(ctx, req, nil)
	require.NoError(t, err)
	assert.NotEqual(t, existing, out[0]["id"])
	assert.Equal(t, "9.99", out[0]["price"])
	assert.Equal(t, 2, srv.RecordCount())

	req.Fields = map[string]any{"sku": "C3"}
	req.CreateIfNotFound = boolPtr(false)
	_, err = n.Run(ctx, req, nil)
	assert.True(t, resolver.IsNotFound(err))
	assert.Equal(t, 2, srv.RecordCount())
}

func TestUpsertAutoMapNeedsMatchingColumns(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	n := newTestNode(t, srv, Options{})

	_, err := n.Run(context.Background(), &types.Request{
		Resource:    types.ResourceRecord,
		Operation:   types.OperationUpsert,
		ItemType:    "model-product",
		MappingMode: types.MappingAutoMap,
	}, map[string]any{"sku": "A1"})
	assert.True(t, resolver.IsConfiguration(err))
	assert.Empty(t, srv.CallsTo("GET", "/items"))
}

func TestListRecords(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	for _, sku := range []string{"A", "B", "C"} {
		srv.AddRecord("model-product", map[string]any{"sku": sku, "title": "t"})
	}
	n := newTestNode(t, srv, Options{})

	out, err := n.Run(context.Background(), &types.Request{
		Resource:  types.ResourceRecord,
		Operation: types.OperationGetAll,
		ItemType:  "model-product",
		Filters:   []types.FilterCondition{{Field: "sku", Operator: "in", Value: "A, C"}},
		Limit:     1000,
	}, nil)
	require.NoError(t, err)

	env := out[0]
	assert.Equal(t, 2, env["count"])
	query := env["query"].(map[string]any)
	assert.Equal(t, "model-product", query["itemType"])
	assert.Equal(t, 1000, query["limit"])

	calls := srv.CallsTo("GET", "/items")
	require.Len(t, calls, 1)
	assert.Equal(t, "500", calls[0].Query.Get("page[limit]"))
	assert.Equal(t, "A,C", calls[0].Query.Get("filter[fields][sku][in]"))
}

func TestListRecordsReturnAllEmpty(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	n := newTestNode(t, srv, Options{})

	out, err := n.Run(context.Background(), &types.Request{
		Resource:  types.ResourceRecord,
		Operation: types.OperationGetAll,
		ItemType:  "model-product",
		ReturnAll: true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out[0]["count"])
	assert.Equal(t, []map[string]any{}, out[0]["results"])
	assert.NotContains(t, out[0]["query"], "limit")
}

func TestRecordActions(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	id := srv.AddRecord("model-product", map[string]any{"sku": "A"})
	n := newTestNode(t, srv, Options{})
	ctx := context.Background()

	run := func(op types.Operation) map[string]any {
		out, err := n.Run(ctx, &types.Request{Resource: types.ResourceRecord, Operation: op, RecordID: id}, nil)
		require.NoError(t, err)
		return out[0]
	}

	assert.Equal(t, id, run(types.OperationGet)["id"])
	assert.Equal(t, "published", run(types.OperationPublish)["meta"].(map[string]any)["status"])
	assert.Equal(t, "draft", run(types.OperationUnpublish)["meta"].(map[string]any)["status"])
	run(types.OperationDelete)
	assert.Equal(t, 0, srv.RecordCount())

	_, err := n.Run(ctx, &types.Request{Resource: types.ResourceRecord, Operation: types.OperationGet}, nil)
	assert.True(t, resolver.IsValidation(err))
}

func TestRunRejectsUnknownRequests(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	n := newTestNode(t, srv, Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  *types.Request
	}{
		{"nil request", nil},
		{"unknown resource", &types.Request{Resource: "plugin", Operation: types.OperationGet}},
		{"unknown operation", &types.Request{Resource: types.ResourceRecord, Operation: "archive"}},
		{"bulk on records", &types.Request{Resource: types.ResourceRecord, Operation: types.OperationBulk}},
		{"no model", &types.Request{Resource: types.ResourceRecord, Operation: types.OperationCreate}},
		{"unknown mapping mode", &types.Request{Resource: types.ResourceRecord, Operation: types.OperationCreate, ItemType: "model-product", MappingMode: "guess"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Run(ctx, tt.req, nil)
			assert.True(t, resolver.IsConfiguration(err), "got %v", err)
		})
	}
}

func TestExecuteContinueOnFail(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	var progress [][2]int
	n := newTestNode(t, srv, Options{
		ContinueOnFail: true,
		Progress:       func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})

	items := []map[string]any{{"sku": "A"}, {"sku": ""}, {"sku": "C"}}
	results, err := n.Execute(context.Background(), items, func(i int, item map[string]any) (*types.Request, error) {
		return &types.Request{
			Resource:        types.ResourceRecord,
			Operation:       types.OperationUpsert,
			ItemType:        "model-product",
			MappingMode:     types.MappingAutoMap,
			MatchingColumns: []string{"sku"},
		}, nil
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.True(t, resolver.IsValidation(results[1].Err))
	assert.Contains(t, results[1].Outputs[0]["error"], "sku")
	assert.False(t, results[2].Failed())
	assert.Equal(t, 2, srv.RecordCount())

	outputs := Outputs(results)
	require.Len(t, outputs, 3)
	assert.Equal(t, 1, outputs[1].PairedItem)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress, "failed items count as done")
}

func TestExecuteAbortsOnFirstFailure(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	n := newTestNode(t, srv, Options{})

	items := []map[string]any{{"id": "1"}, {"id": "2"}, {"id": "3"}}
	requestErr := errors.New("bad parameters")
	results, err := n.Execute(context.Background(), items, func(i int, item map[string]any) (*types.Request, error) {
		if i == 1 {
			return nil, requestErr
		}
		return &types.Request{Resource: types.ResourceItemType, Operation: types.OperationGetAll}, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, requestErr)
	require.Len(t, results, 2)
	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.Len(t, srv.CallsTo("GET", "/item-types"), 1, "third item never runs")
}

func TestItemTypesAndBlocks(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	n := newTestNode(t, srv, Options{})
	ctx := context.Background()

	out, err := n.Run(ctx, &types.Request{Resource: types.ResourceItemType, Operation: types.OperationGetAll, ReturnAll: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, out[0]["count"])

	out, err = n.Run(ctx, &types.Request{Resource: types.ResourceBlock, Operation: types.OperationGetAll}, nil)
	require.NoError(t, err)
	results := out[0]["results"].([]map[string]any)
	require.Len(t, results, 1)
	assert.Equal(t, "gallery_block", results[0]["api_key"])

	out, err = n.Run(ctx, &types.Request{Resource: types.ResourceItemType, Operation: types.OperationGet, ItemType: "api_key:product"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Product", out[0]["name"])

	_, err = n.Run(ctx, &types.Request{Resource: types.ResourceBlock, Operation: types.OperationGet, ItemType: "model-product"}, nil)
	assert.True(t, resolver.IsValidation(err))
}

func TestSearchHelpers(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	n := newTestNode(t, srv, Options{})
	ctx := context.Background()

	models, err := n.SearchItemTypes(ctx, "PROD")
	require.NoError(t, err)
	assert.Equal(t, []Option{{Name: "Product", Value: "model-product"}}, models)

	collections, err := n.SearchUploadCollections(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []Option{{Name: "(None)", Value: ""}, {Name: "Product images", Value: "col-1"}}, collections)

	srv.Fail("GET", "/upload-collections", 403, "INSUFFICIENT_PERMISSIONS", 1)
	collections, err = n.SearchUploadCollections(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []Option{{Name: "(None - Upload Collections Not Accessible)", Value: ""}}, collections)

	locales, err := n.SiteLocales(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "de"}, locales)

	fields, err := n.MapperFields(ctx, "model-product")
	require.NoError(t, err)
	assert.Equal(t, "sku", fields[0].ID)
	assert.True(t, fields[0].DefaultMatch)

	filterable, err := n.FilterableFields(ctx, "api_key:product")
	require.NoError(t, err)
	for _, f := range filterable {
		assert.NotEqual(t, "body", f.Value, "structured text is not filterable")
	}
}
