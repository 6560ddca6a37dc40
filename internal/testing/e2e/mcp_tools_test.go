package e2e

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philippherzig/datocms-mcp/internal/audit"
	"github.com/philippherzig/datocms-mcp/internal/dato"
	"github.com/philippherzig/datocms-mcp/internal/mcp"
	"github.com/philippherzig/datocms-mcp/internal/storage"
	"github.com/philippherzig/datocms-mcp/internal/testing/mock"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// TestHarness drives the server through JSON-RPC messages, the way a client would
type TestHarness struct {
	server *mcp.Server
	cma    *mock.CMAServer
	nextID atomic.Int64
}

func NewTestHarness(t *testing.T, configure func(*mcp.ServerOptions)) *TestHarness {
	t.Helper()
	cma := mock.NewCMAServer()
	t.Cleanup(cma.Close)

	store := storage.NewMemoryProfileStore()
	store.AddProfile(&types.Profile{
		Name: "e2e",
		Config: map[string]string{
			types.ConfigAPIToken: mock.Token,
			types.ConfigBaseURL:  cma.URL,
		},
	})

	logger, err := audit.NewLogger(audit.Config{FilePath: filepath.Join(t.TempDir(), "audit.log")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	options := &mcp.ServerOptions{
		Timeout:     30 * time.Second,
		ProfileName: "e2e",
		ClientOptions: []dato.Option{
			dato.WithPollInterval(time.Millisecond),
			dato.WithMaxRetries(0),
		},
	}
	if configure != nil {
		configure(options)
	}

	server := mcp.NewServer(store, logger, options)
	require.NoError(t, server.SwitchProfile(context.Background(), "e2e"))

	h := &TestHarness{server: server, cma: cma}
	h.SendRequest(t, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "e2e", "version": "1.0.0"},
	})
	return h
}

// SendRequest sends one JSON-RPC request and returns the decoded response
func (h *TestHarness) SendRequest(t *testing.T, method string, params any) map[string]any {
	t.Helper()
	request := map[string]any{
		"jsonrpc": "2.0",
		"id":      h.nextID.Add(1),
		"method":  method,
		"params":  params,
	}
	raw, err := json.Marshal(request)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	reply := h.server.MCPServer().HandleMessage(ctx, raw)
	require.NotNil(t, reply, "no response to %s", method)

	data, err := json.Marshal(reply)
	require.NoError(t, err)
	var response map[string]any
	require.NoError(t, json.Unmarshal(data, &response))
	return response
}

// CallTool calls a tool and returns its text and error flag
func (h *TestHarness) CallTool(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()
	response := h.SendRequest(t, "tools/call", map[string]any{"name": name, "arguments": args})
	require.Nil(t, response["error"], "protocol error calling %s", name)
	return extractToolResult(t, response)
}

// CallJSON calls a tool that must succeed and decodes its JSON text
func (h *TestHarness) CallJSON(t *testing.T, name string, args map[string]any) map[string]any {
	t.Helper()
	text, isError := h.CallTool(t, name, args)
	require.False(t, isError, "%s failed: %s", name, text)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func extractToolResult(t *testing.T, response map[string]any) (string, bool) {
	t.Helper()
	result, ok := response["result"].(map[string]any)
	require.True(t, ok, "response has no result: %v", response)
	isError, _ := result["isError"].(bool)

	content, ok := result["content"].([]any)
	require.True(t, ok && len(content) > 0, "result has no content")
	first := content[0].(map[string]any)
	return first["text"].(string), isError
}

func TestToolsList(t *testing.T) {
	h := NewTestHarness(t, nil)

	response := h.SendRequest(t, "tools/list", map[string]any{})
	tools := response["result"].(map[string]any)["tools"].([]any)

	byName := map[string]map[string]any{}
	for _, tool := range tools {
		m := tool.(map[string]any)
		byName[m["name"].(string)] = m
	}
	for _, name := range []string{"upsert_record", "bulk_upload", "get_model_fields", "execute_confirmed_action"} {
		assert.Contains(t, byName, name)
	}

	deleteTool := byName["delete_record"]
	require.NotNil(t, deleteTool)
	annotations := deleteTool["annotations"].(map[string]any)
	assert.Equal(t, true, annotations["destructiveHint"])

	schema := byName["upsert_record"]["inputSchema"].(map[string]any)
	assert.Contains(t, schema["required"], "item_type")
}

func TestRecordTools(t *testing.T) {
	h := NewTestHarness(t, nil)

	t.Run("CreateWithSchemaNormalization", func(t *testing.T) {
		created := h.CallJSON(t, "create_record", map[string]any{
			"item_type": "api_key:product",
			"fields": map[string]any{
				"title": "Chair",
				"sku":   "CH-1",
			},
		})
		id := created["id"].(string)
		rec, ok := h.cma.Record(id)
		require.True(t, ok)
		assert.Equal(t, "Chair", rec.Attributes["title"])
	})

	t.Run("UpsertMatchesExisting", func(t *testing.T) {
		before := h.cma.RecordCount()
		out := h.CallJSON(t, "upsert_record", map[string]any{
			"item_type":        "api_key:product",
			"fields":           map[string]any{"sku": "CH-1", "title": "Armchair"},
			"matching_columns": []any{"sku"},
		})
		assert.Equal(t, "Armchair", out["title"])
		assert.Equal(t, before, h.cma.RecordCount())
	})

	t.Run("InvalidRecordID", func(t *testing.T) {
		text, isError := h.CallTool(t, "get_record", map[string]any{"record_id": "../etc"})
		assert.True(t, isError)
		assert.Contains(t, text, "invalid record_id")
	})
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	h := NewTestHarness(t, nil)
	id := h.cma.AddRecord("model-product", map[string]any{"sku": "DEL-1"})

	pending := h.CallJSON(t, "delete_record", map[string]any{"record_id": id})
	require.Equal(t, "confirmation_required", pending["status"])
	assert.Equal(t, 1, h.cma.RecordCount())

	details := pending["confirmation_details"].(map[string]any)
	promptArgs := details["prompt_arguments"].(map[string]any)

	// the client renders the prompt before asking the user
	prompt := h.SendRequest(t, "prompts/get", map[string]any{
		"name":      details["prompt_name"],
		"arguments": promptArgs,
	})
	messages := prompt["result"].(map[string]any)["messages"].([]any)
	require.Len(t, messages, 1)
	text := messages[0].(map[string]any)["content"].(map[string]any)["text"].(string)
	assert.Contains(t, text, "Confirmation Required")

	denied := h.CallJSON(t, "execute_confirmed_action", map[string]any{
		"original_tool_name":      promptArgs["original_tool_name"],
		"original_tool_args_json": promptArgs["original_tool_args_json"],
		"user_decision":           "deny",
	})
	assert.Equal(t, "cancelled", denied["status"])
	assert.Equal(t, 1, h.cma.RecordCount())

	h.CallJSON(t, "execute_confirmed_action", map[string]any{
		"original_tool_name":      promptArgs["original_tool_name"],
		"original_tool_args_json": promptArgs["original_tool_args_json"],
		"user_decision":           "approve",
	})
	assert.Equal(t, 0, h.cma.RecordCount())
}

func TestBulkUploadTool(t *testing.T) {
	h := NewTestHarness(t, nil)
	first := h.cma.ServeFile("a.png", []byte("first image"))
	second := h.cma.ServeFile("b.png", []byte("second image"))

	out := h.CallJSON(t, "bulk_upload", map[string]any{
		"input":  map[string]any{"gallery": []any{first, second}, "name": "Set"},
		"source": ".gallery",
	})
	uploads := out["uploads"].([]any)
	require.Len(t, uploads, 2)
	assert.Equal(t, first, uploads[0].(map[string]any)["url"])
	assert.Equal(t, "Set", out["name"])
	assert.Equal(t, 2, h.cma.UploadCount())
}

func TestSchemaTools(t *testing.T) {
	h := NewTestHarness(t, nil)

	fields := h.CallJSON(t, "get_model_fields", map[string]any{"item_type": "api_key:product"})
	assert.NotZero(t, fields["count"])

	locales := h.CallJSON(t, "get_site_locales", nil)
	assert.Equal(t, []any{"en", "de"}, locales["locales"])
}

func TestUnknownTool(t *testing.T) {
	h := NewTestHarness(t, nil)

	response := h.SendRequest(t, "tools/call", map[string]any{"name": "get_secret", "arguments": map[string]any{}})
	assert.NotNil(t, response["error"])
}

func TestE2EScenario(t *testing.T) {
	h := NewTestHarness(t, func(o *mcp.ServerOptions) { o.BatchMode = true })

	health := h.CallJSON(t, "health_check", nil)
	assert.Equal(t, "healthy", health["status"])

	models := h.CallJSON(t, "search_item_types", map[string]any{"filter": "prod"})
	assert.NotZero(t, models["count"])

	created := h.CallJSON(t, "create_record", map[string]any{
		"item_type":    "api_key:product",
		"fields":       map[string]any{"title": "Lamp", "sku": "LA-1"},
		"auto_publish": true,
	})
	id := created["id"].(string)
	rec, _ := h.cma.Record(id)
	assert.Equal(t, "published", rec.Status)

	// batch mode skips the confirmation round trip
	h.CallJSON(t, "unpublish_record", map[string]any{"record_id": id})
	rec, _ = h.cma.Record(id)
	assert.Equal(t, "draft", rec.Status)

	h.CallJSON(t, "delete_record", map[string]any{"record_id": id})
	_, exists := h.cma.Record(id)
	assert.False(t, exists)
}
