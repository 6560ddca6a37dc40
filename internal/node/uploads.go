package node

import (
	"context"
	"iter"
	"maps"

	"github.com/philippherzig/datocms-mcp/internal/audit"
	"github.com/philippherzig/datocms-mcp/internal/dato"
	"github.com/philippherzig/datocms-mcp/internal/resolver"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

func (n *Node) runUpload(ctx context.Context, req *types.Request, item map[string]any) (map[string]any, error) {
	switch req.Operation {
	case types.OperationCreate:
		return n.createUpload(ctx, req, item)
	case types.OperationGet:
		if err := requireID(req.UploadID, "upload_id"); err != nil {
			return nil, err
		}
		up, err := n.remote.FindUpload(ctx, req.UploadID)
		n.audit(audit.EventUploadRead, req.UploadID, err, nil)
		if err != nil {
			return nil, &resolver.RemoteError{Operation: "get upload", Err: err}
		}
		return up, nil
	case types.OperationGetAll:
		return n.listUploads(ctx, req)
	case types.OperationDelete:
		if err := requireID(req.UploadID, "upload_id"); err != nil {
			return nil, err
		}
		up, err := n.remote.DeleteUpload(ctx, req.UploadID)
		n.audit(audit.EventUploadDelete, req.UploadID, err, nil)
		if err != nil {
			return nil, &resolver.RemoteError{Operation: "delete upload", Err: err}
		}
		return up, nil
	case types.OperationBulk:
		return n.BulkUpload(ctx, req.Bulk, item)
	default:
		return nil, unsupported(req)
	}
}

func (n *Node) createUpload(ctx context.Context, req *types.Request, item map[string]any) (map[string]any, error) {
	p := req.Upload
	if p == nil {
		return nil, &resolver.ValidationError{Field: "upload", Message: "upload parameters are required"}
	}

	opts := dato.UploadOptions{
		Filename:                    p.Filename,
		SkipCreationIfAlreadyExists: p.SkipCreationIfAlreadyExists,
		CollectionID:                p.Collection,
	}

	var (
		up     map[string]any
		err    error
		source string
	)
	switch {
	case p.URL != "" && p.FilePath != "":
		return nil, &resolver.ValidationError{Field: "upload", Message: "set either a URL or a file path, not both"}
	case p.URL != "":
		source = p.URL
		up, err = n.remote.CreateUploadFromURL(ctx, p.URL, opts)
	case p.FilePath != "":
		source = p.FilePath
		up, err = n.remote.CreateUploadFromFile(ctx, p.FilePath, opts)
	default:
		return nil, &resolver.ValidationError{Field: "upload", Message: "invalid upload source: a URL or a file path is required"}
	}
	n.audit(audit.EventUploadCreate, source, err, map[string]any{"collection": p.Collection})
	if err != nil {
		return nil, &resolver.RemoteError{Operation: "create upload", Err: err}
	}

	if p.IncludeOtherInputFields {
		merged := make(map[string]any, len(item)+len(up))
		maps.Copy(merged, item)
		maps.Copy(merged, up)
		return merged, nil
	}
	return up, nil
}

// listUploads lists uploads. The API cannot filter by collection,
// so the collection filter is applied to each returned page.
func (n *Node) listUploads(ctx context.Context, req *types.Request) (map[string]any, error) {
	var collection string
	if req.Upload != nil {
		collection = req.Upload.Collection
	}

	var (
		seq iter.Seq2[map[string]any, error]
		err error
	)
	if req.ReturnAll {
		seq = n.remote.UploadsPaged(ctx, dato.UploadQuery{})
	} else {
		var page []map[string]any
		page, err = n.remote.ListUploads(ctx, dato.UploadQuery{Limit: listLimit(req.Limit, dato.MaxUploadsPerPage)})
		seq = func(yield func(map[string]any, error) bool) {
			for _, up := range page {
				if !yield(up, nil) {
					return
				}
			}
		}
	}

	results := []map[string]any{}
	if err == nil {
		for up, iterErr := range seq {
			if iterErr != nil {
				err = iterErr
				break
			}
			if collection == "" || dato.RefID(up["upload_collection"]) == collection {
				results = append(results, up)
			}
		}
	}
	n.audit(audit.EventUploadRead, "uploads", err, map[string]any{"count": len(results)})
	if err != nil {
		return nil, &resolver.RemoteError{Operation: "list uploads", Err: err}
	}

	query := map[string]any{
		"filterByCollection": nil,
		"returnAll":          req.ReturnAll,
	}
	if collection != "" {
		query["filterByCollection"] = collection
	}
	if !req.ReturnAll {
		query["limit"] = listLimit(req.Limit, 0)
	}
	return envelope(results, query), nil
}
