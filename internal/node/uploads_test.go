package node

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/philippherzig/datocms-mcp/internal/resolver"
	"github.com/philippherzig/datocms-mcp/internal/testing/mock"
	"github.com/philippherzig/datocms-mcp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUploadFromURL(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	fileURL := srv.ServeFile("photo.jpg", []byte("jpeg bytes"))
	n := newTestNode(t, srv, Options{})

	out, err := n.Run(context.Background(), &types.Request{
		Resource:  types.ResourceUpload,
		Operation: types.OperationCreate,
		Upload: &types.UploadParams{
			URL:                     fileURL,
			Collection:              "col-1",
			IncludeOtherInputFields: true,
		},
	}, map[string]any{"sku": "A1", "id": "input-id"})
	require.NoError(t, err)

	up := out[0]
	assert.Equal(t, "A1", up["sku"], "input fields are merged")
	assert.NotEqual(t, "input-id", up["id"], "upload fields win over input fields")
	assert.Equal(t, "photo.jpg", up["filename"])
	assert.Equal(t, "col-1", up["upload_collection"].(map[string]any)["id"])
}

func TestCreateUploadFromFile(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	n := newTestNode(t, srv, Options{})

	path := filepath.Join(t.TempDir(), "manual.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))

	req := &types.Request{
		Resource:  types.ResourceUpload,
		Operation: types.OperationCreate,
		Upload:    &types.UploadParams{FilePath: path, Filename: "guide.pdf", SkipCreationIfAlreadyExists: true},
	}
	first, err := n.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "guide.pdf", first[0]["filename"])
	assert.NotContains(t, first[0], "sku")

	second, err := n.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, first[0]["id"], second[0]["id"])
	assert.Equal(t, 1, srv.UploadCount())
}

func TestCreateUploadValidation(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	n := newTestNode(t, srv, Options{})

	tests := []struct {
		name   string
		params *types.UploadParams
	}{
		{"no parameters", nil},
		{"no source", &types.UploadParams{}},
		{"both sources", &types.UploadParams{URL: "https://x/a.jpg", FilePath: "/tmp/a.jpg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Run(context.Background(), &types.Request{
				Resource: types.ResourceUpload, Operation: types.OperationCreate, Upload: tt.params,
			}, nil)
			assert.True(t, resolver.IsValidation(err))
		})
	}
	assert.Empty(t, srv.Calls())
}

func TestListUploadsByCollection(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	inCollection := srv.AddUpload("a.jpg", []byte("a"), "col-1")
	srv.AddUpload("b.jpg", []byte("b"), "")
	srv.AddUpload("c.jpg", []byte("c"), "col-2")
	n := newTestNode(t, srv, Options{})
	ctx := context.Background()

	out, err := n.Run(ctx, &types.Request{
		Resource:  types.ResourceUpload,
		Operation: types.OperationGetAll,
		ReturnAll: true,
		Upload:    &types.UploadParams{Collection: "col-1"},
	}, nil)
	require.NoError(t, err)
	env := out[0]
	assert.Equal(t, 1, env["count"])
	assert.Equal(t, inCollection, env["results"].([]map[string]any)[0]["id"])
	assert.Equal(t, "col-1", env["query"].(map[string]any)["filterByCollection"])

	out, err = n.Run(ctx, &types.Request{
		Resource:  types.ResourceUpload,
		Operation: types.OperationGetAll,
		Limit:     80,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, out[0]["count"])
	assert.Nil(t, out[0]["query"].(map[string]any)["filterByCollection"])

	calls := srv.CallsTo("GET", "/uploads")
	assert.Equal(t, "50", calls[len(calls)-1].Query.Get("page[limit]"))
}

func TestGetAndDeleteUpload(t *testing.T) {
	srv := mock.NewCMAServer()
	defer srv.Close()
	id := srv.AddUpload("a.jpg", []byte("a"), "")
	n := newTestNode(t, srv, Options{})
	ctx := context.Background()

	out, err := n.Run(ctx, &types.Request{Resource: types.ResourceUpload, Operation: types.OperationGet, UploadID: id}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", out[0]["filename"])

	_, err = n.Run(ctx, &types.Request{Resource: types.ResourceUpload, Operation: types.OperationDelete, UploadID: id}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, srv.UploadCount())

	_, err = n.Run(ctx, &types.Request{Resource: types.ResourceUpload, Operation: types.OperationGet, UploadID: id}, nil)
	assert.True(t, resolver.IsRemote(err))
}
