package mcp

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philippherzig/datocms-mcp/internal/testing/mock"
)

func TestToolInputValidation(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, func(o *ServerOptions) { o.AutoApprove = true })

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"injection in record id", "get_record", map[string]any{"record_id": "'; DROP TABLE items; --"}, "invalid record_id"},
		{"traversal in upload id", "delete_upload", map[string]any{"upload_id": "../../etc"}, "invalid upload_id"},
		{"missing record id", "publish_record", map[string]any{}, "record_id is required"},
		{"path traversal", "create_upload", map[string]any{"file_path": "../../../etc/passwd"}, "file path"},
		{"command in path", "create_upload", map[string]any{"file_path": "/tmp/a.png; rm -rf /"}, "invalid characters"},
		{"non http url", "create_upload", map[string]any{"url": "file:///etc/passwd"}, "http or https"},
		{"header injection in url", "create_upload", map[string]any{"url": "https://example.com/\r\nX-Evil: 1"}, "invalid characters"},
		{"command in search", "search_item_types", map[string]any{"filter": "test; rm -rf /"}, "invalid characters"},
		{"bad field key", "create_record", map[string]any{"item_type": "model-product", "fields": map[string]any{"title|x": "a"}}, "field key"},
		{"missing item type", "get_model_fields", map[string]any{}, "item_type is required"},
		{"malformed model api key", "list_records", map[string]any{"item_type": "api_key:Blog Post"}, "invalid item_type"},
		{"empty jq source", "bulk_upload", map[string]any{"input": map[string]any{}, "source": " "}, "invalid source"},
		{"fractional limit", "list_uploads", map[string]any{"limit": 2.5}, "integer"},
		{"fields not an object", "update_record", map[string]any{"record_id": "1", "fields": float64(3)}, "fields must be an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := callError(t, s, tt.tool, tt.args)
			assert.Contains(t, msg, tt.want)
		})
	}
	assert.Empty(t, srv.CallsTo("DELETE", "/uploads"), "rejected calls never reach the API")
}

func TestErrorMessagesAreSanitized(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)

	msg := callError(t, s, "get_model", map[string]any{"item_type": "api_key:missing\x07model"})
	assert.NotContains(t, msg, "\x07")
}

func TestConfirmationPayloadKeepsArguments(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)
	id := srv.AddRecord("model-product", map[string]any{"sku": "A1"})

	out := callJSON(t, s, "unpublish_record", map[string]any{"record_id": id})
	args := out["confirmation_details"].(map[string]any)["prompt_arguments"].(map[string]any)
	assert.JSONEq(t, `{"record_id":"`+id+`"}`, args["original_tool_args_json"].(string))
	assert.Contains(t, out["message"], "unpublish record "+id)
	assert.Empty(t, srv.CallsTo("PUT", "/items/"+id+"/unpublish"))
}

func TestConcurrentToolCalls(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	s := newTestServer(t, srv, nil)

	var wg sync.WaitGroup
	errs := make(chan string, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tool := "get_site_locales"
			if i%2 == 0 {
				tool = "list_profiles"
			}
			result, err := s.handlers[tool](context.Background(), mcp.CallToolRequest{})
			switch {
			case err != nil:
				errs <- err.Error()
			case result.IsError:
				errs <- tool + " failed"
			}
		}()
	}
	wg.Wait()
	close(errs)

	var failures []string
	for e := range errs {
		failures = append(failures, e)
	}
	require.Empty(t, failures, strings.Join(failures, "\n"))
}
