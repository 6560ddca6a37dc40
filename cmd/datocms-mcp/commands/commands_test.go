package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philippherzig/datocms-mcp/internal/audit"
	"github.com/philippherzig/datocms-mcp/internal/config"
	"github.com/philippherzig/datocms-mcp/internal/node"
	"github.com/philippherzig/datocms-mcp/internal/storage"
	"github.com/philippherzig/datocms-mcp/internal/testing/mock"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// setupWorkspace writes a config with a "test" profile pointing at srv
func setupWorkspace(t *testing.T, srv *mock.CMAServer) string {
	t.Helper()
	dir := t.TempDir()

	oldConfig, oldProfile := configFile, profile
	t.Cleanup(func() {
		configFile, profile = oldConfig, oldProfile
		runFile, runContinueOnFail, runYes, runStrict = "", false, false, false
		runOutput = os.Stdout
	})
	configFile = filepath.Join(dir, "config.yaml")
	profile = ""

	cfg := config.DefaultConfig()
	cfg.Logging.File = filepath.Join(dir, "audit.log")
	cfg.Profiles.Default = "test"
	cfg.DatoCMS.MaxRetries = 0
	require.NoError(t, cfg.Save(configFile))

	store := storage.NewProfileStore(dir)
	require.NoError(t, store.CreateProfile("test", map[string]string{
		types.ConfigAPIToken: mock.Token,
		types.ConfigBaseURL:  srv.URL,
	}))
	require.NoError(t, store.Close())
	return dir
}

func writeBatch(t *testing.T, dir string, batch any) string {
	t.Helper()
	data, err := json.Marshal(batch)
	require.NoError(t, err)
	path := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestReadBatch(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		items   int
		wantErr string
	}{
		{"valid", `{"request":{"resource":"record","operation":"get"},"items":[{"id":"1"},{"id":"2"}]}`, 2, ""},
		{"no items runs once", `{"request":{"resource":"itemType","operation":"getAll"}}`, 1, ""},
		{"missing operation", `{"request":{"resource":"record"}}`, 0, "resource and an operation"},
		{"not json", `{request`, 0, "invalid batch file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			batch, err := readBatch(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, batch.Items, tt.items)
		})
	}

	_, err := readBatch(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestBatchRequestFor(t *testing.T) {
	batch := &Batch{
		Request: types.Request{Resource: types.ResourceRecord, Operation: types.OperationDelete},
		IDField: "record",
	}

	req, err := batch.requestFor(0, map[string]any{"record": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", req.RecordID)
	assert.Empty(t, batch.Request.RecordID, "the shared request is not modified")

	req, err = batch.requestFor(1, map[string]any{"record": float64(42)})
	require.NoError(t, err)
	assert.Equal(t, "42", req.RecordID)

	req, err = batch.requestFor(2, map[string]any{"record": map[string]any{"id": "r9", "type": "item"}})
	require.NoError(t, err)
	assert.Equal(t, "r9", req.RecordID)

	_, err = batch.requestFor(3, map[string]any{})
	assert.Error(t, err)

	batch.Request.Resource = types.ResourceUpload
	req, err = batch.requestFor(0, map[string]any{"record": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", req.UploadID)
	assert.Empty(t, req.RecordID)

	assert.Equal(t, []string{"upload u1", "upload "}, (&Batch{
		Request: batch.Request,
		IDField: "record",
		Items:   []map[string]any{{"record": "u1"}, {}},
	}).describe())
}

func TestRunUpsertBatch(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	dir := setupWorkspace(t, srv)
	existing := srv.AddRecord("model-product", map[string]any{"sku": "A1", "title": "Old"})

	runFile = writeBatch(t, dir, map[string]any{
		"request": map[string]any{
			"resource":         "record",
			"operation":        "upsert",
			"item_type":        "api_key:product",
			"mapping_mode":     "autoMapInputData",
			"matching_columns": []string{"sku"},
		},
		"items": []map[string]any{
			{"sku": "A1", "title": "Chair"},
			{"sku": "B2", "title": "Desk"},
		},
	})
	var out bytes.Buffer
	runOutput = &out

	require.NoError(t, runRun(runCmd, nil))

	var outputs []node.Output
	require.NoError(t, json.Unmarshal(out.Bytes(), &outputs))
	require.Len(t, outputs, 2)
	assert.Equal(t, existing, outputs[0].JSON["id"])
	assert.Equal(t, 1, outputs[1].PairedItem)
	assert.Equal(t, 2, srv.RecordCount())
}

func TestRunDeleteBatch(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	dir := setupWorkspace(t, srv)
	first := srv.AddRecord("model-product", map[string]any{"sku": "A1"})
	second := srv.AddRecord("model-product", map[string]any{"sku": "B2"})

	runFile = writeBatch(t, dir, map[string]any{
		"request":  map[string]any{"resource": "record", "operation": "delete"},
		"id_field": "id",
		"items":    []map[string]any{{"id": first}, {"id": "missing"}, {"id": second}},
	})
	runYes = true
	runContinueOnFail = true
	var out bytes.Buffer
	runOutput = &out

	require.NoError(t, runRun(runCmd, nil))

	var outputs []node.Output
	require.NoError(t, json.Unmarshal(out.Bytes(), &outputs))
	require.Len(t, outputs, 3)
	assert.Contains(t, outputs[1].JSON, "error")
	assert.Equal(t, 0, srv.RecordCount())
}

func TestRunStopsOnFirstFailure(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	dir := setupWorkspace(t, srv)

	runFile = writeBatch(t, dir, map[string]any{
		"request":  map[string]any{"resource": "record", "operation": "get"},
		"id_field": "id",
		"items":    []map[string]any{{"id": "missing"}, {"id": "other"}},
	})
	var out bytes.Buffer
	runOutput = &out

	err := runRun(runCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 0")
	assert.Len(t, srv.CallsTo("GET", "/items/"), 1)
}

func TestOpenStoreWithMasterPassword(t *testing.T) {
	dir := t.TempDir()
	oldConfig := configFile
	t.Cleanup(func() { configFile = oldConfig })
	configFile = filepath.Join(dir, "config.yaml")
	t.Setenv(MasterPasswordEnvVar, "correct-horse-battery")

	sealed, err := storage.NewProfileStoreWithPassword(dir, "correct-horse-battery")
	require.NoError(t, err)
	require.NoError(t, sealed.CreateProfile("prod", map[string]string{types.ConfigAPIToken: mock.Token}))

	cfg := config.DefaultConfig()
	cfg.Security.ProtectionPasswordHash = sealed.PasswordCheck()
	require.NoError(t, sealed.Close())

	store, err := openStore(cfg)
	require.NoError(t, err)
	defer store.Close()
	assert.True(t, store.IsSealed())
	assert.True(t, store.ProfileExists("prod"))

	t.Setenv(MasterPasswordEnvVar, "wrong-password-entirely")
	_, err = openStore(cfg)
	assert.ErrorIs(t, err, storage.ErrWrongMasterPassword)
}

func TestResolveProfile(t *testing.T) {
	old := profile
	t.Cleanup(func() { profile = old })

	cfg := config.DefaultConfig()
	cfg.Profiles.Default = "main"

	profile = ""
	name, err := resolveProfile(cfg)
	require.NoError(t, err)
	assert.Equal(t, "main", name)

	profile = "other"
	name, err = resolveProfile(cfg)
	require.NoError(t, err)
	assert.Equal(t, "other", name)

	profile = ""
	cfg.Profiles.Default = ""
	_, err = resolveProfile(cfg)
	assert.Error(t, err)
}

func TestWithDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DatoCMS.Environment = "staging"
	cfg.DatoCMS.BaseURL = "https://cma.example.com"

	p := withDefaults(&types.Profile{Name: "a", Config: map[string]string{types.ConfigAPIToken: "x"}}, cfg)
	assert.Equal(t, "staging", p.Environment())
	assert.Equal(t, "https://cma.example.com", p.BaseURL())

	own := withDefaults(&types.Profile{Name: "b", Config: map[string]string{types.ConfigEnvironment: "main-copy"}}, cfg)
	assert.Equal(t, "main-copy", own.Environment(), "profile values win")

	assert.Nil(t, withDefaults(nil, cfg))
}

func TestClientOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Len(t, clientOptions(cfg), 3)

	cfg.DatoCMS.RequestTimeout = 0
	cfg.DatoCMS.RequestsPerSecond = 0
	assert.Len(t, clientOptions(cfg), 1)
}

func TestMaskSensitive(t *testing.T) {
	assert.Equal(t, "********", maskSensitive("short"))
	assert.Equal(t, "abcd...wxyz", maskSensitive("abcdefghijklmnopqrstuvwxyz"))
}

func TestTestConnection(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	cfg := config.DefaultConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	site, err := testConnection(ctx, &types.Profile{
		Name:   "t",
		Config: map[string]string{types.ConfigAPIToken: mock.Token, types.ConfigBaseURL: srv.URL},
	}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "de"}, site.Locales)

	_, err = testConnection(ctx, &types.Profile{
		Name:   "t",
		Config: map[string]string{types.ConfigAPIToken: "bad-token-bad-token-bad", types.ConfigBaseURL: srv.URL},
	}, cfg)
	assert.Error(t, err)
}

func TestInitReplacesExistingProfile(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	dir := setupWorkspace(t, srv)
	t.Cleanup(func() {
		initProfile, initToken, initEnvironment, initBaseURL = "", "", "", ""
		initNoMasterPassword, initSkipTest, initOverwrite = false, false, false
	})

	initProfile = "test"
	initToken = "replacement-token-0123456789"
	initEnvironment = "staging"
	initNoMasterPassword = true
	initSkipTest = true
	initOverwrite = true

	require.NoError(t, runInit(initCmd, nil))

	store := storage.NewProfileStore(dir)
	defer store.Close()
	p, err := store.GetProfile("test")
	require.NoError(t, err)
	assert.Equal(t, "replacement-token-0123456789", p.APIToken())
	assert.Equal(t, "staging", p.Environment())
	assert.Empty(t, p.BaseURL(), "replaced profiles do not keep old values")
}

func TestAuditSearch(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	dir := setupWorkspace(t, srv)
	t.Cleanup(func() {
		auditTypes, auditCorrelationID, auditLimit, auditJSON = nil, "", 50, false
		auditOutput = os.Stdout
	})

	logger, err := audit.NewLogger(audit.Config{FilePath: filepath.Join(dir, "audit.log")})
	require.NoError(t, err)
	logger.LogAccess("tool", "get_record", "test", true, nil)
	logger.LogAccess("tool", "delete_record", "test", false, map[string]any{"reason": "rate limit exceeded"})
	logger.LogWithCorrelation(audit.ErrorEvent("mcp", errors.New("record not found"), nil), "call-7")
	require.NoError(t, logger.Close())

	var out bytes.Buffer
	auditOutput = &out
	auditTypes = []string{"access_denied"}
	require.NoError(t, runAudit(auditCmd, nil))
	assert.Contains(t, out.String(), "delete_record")
	assert.NotContains(t, out.String(), "get_record")

	out.Reset()
	auditTypes = nil
	auditCorrelationID = "call-7"
	auditJSON = true
	require.NoError(t, runAudit(auditCmd, nil))
	var event audit.AuditEvent
	require.NoError(t, json.Unmarshal(out.Bytes(), &event))
	assert.Equal(t, "record not found", event.Error)

	out.Reset()
	auditCorrelationID = ""
	auditJSON = false
	auditLimit = 1
	require.NoError(t, runAudit(auditCmd, nil))
	assert.Contains(t, out.String(), string(audit.EventShutdown), "only the newest event is shown")
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 2)
}
