package dato

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// UploadOptions controls how a new upload is created
type UploadOptions struct {
	// Filename overrides the name derived from the path or URL
	Filename string
	// SkipCreationIfAlreadyExists returns an existing upload with the same MD5 instead of creating one
	SkipCreationIfAlreadyExists bool
	CollectionID                string
	Author                      string
	Copyright                   string
	Tags                        []string
	DefaultFieldMetadata        map[string]any
}

// FindUpload returns one upload
func (c *Client) FindUpload(ctx context.Context, id string) (map[string]any, error) {
	var doc singleDocument
	if err := c.do(ctx, "GET", "/uploads/"+url.PathEscape(id), nil, nil, &doc); err != nil {
		c.logError("find_upload", err)
		return nil, err
	}
	c.logAccess("upload", "get", map[string]any{"upload_id": id})
	return flatten(doc.Data), nil
}

// ListUploads returns a single page of uploads
func (c *Client) ListUploads(ctx context.Context, q UploadQuery) ([]map[string]any, error) {
	if q.Limit > MaxUploadsPerPage {
		q.Limit = MaxUploadsPerPage
	}
	uploads, _, err := c.listUploadsPage(ctx, q)
	if err != nil {
		c.logError("list_uploads", err)
		return nil, err
	}
	return uploads, nil
}

// UploadsPaged iterates over every upload matching q
func (c *Client) UploadsPaged(ctx context.Context, q UploadQuery) iter.Seq2[map[string]any, error] {
	return paged(ctx, MaxUploadsPerPage, func(ctx context.Context, limit, offset int) ([]map[string]any, int, error) {
		page := q
		page.Limit = limit
		page.Offset = offset
		return c.listUploadsPage(ctx, page)
	})
}

func (c *Client) listUploadsPage(ctx context.Context, q UploadQuery) ([]map[string]any, int, error) {
	var doc listDocument
	if err := c.do(ctx, "GET", "/uploads", q.values(), nil, &doc); err != nil {
		return nil, 0, err
	}
	return flattenAll(doc.Data), doc.Meta.TotalCount, nil
}

// DeleteUpload destroys an upload and returns its last state
func (c *Client) DeleteUpload(ctx context.Context, id string) (map[string]any, error) {
	return c.itemAction(ctx, "DELETE", "/uploads/"+url.PathEscape(id), "delete_upload")
}

// CreateUploadFromURL downloads a remote file and uploads it to the media area
func (c *Client) CreateUploadFromURL(ctx context.Context, rawURL string, opts UploadOptions) (map[string]any, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid upload URL %q", rawURL)
	}
	if opts.Filename == "" {
		opts.Filename = path.Base(u.Path)
		if opts.Filename == "" || opts.Filename == "/" || opts.Filename == "." {
			opts.Filename = "file"
		}
	}

	tmp, err := os.CreateTemp("", "datocms-upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to download %s: %s", rawURL, resp.Status)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	return c.CreateUploadFromFile(ctx, tmp.Name(), opts)
}

// CreateUploadFromFile uploads a local file to the media area.
// The file is sent to the signed storage URL, then the upload is created
// through an async job that is polled until it completes.
func (c *Client) CreateUploadFromFile(ctx context.Context, filePath string, opts UploadOptions) (map[string]any, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	if opts.Filename == "" {
		opts.Filename = filepath.Base(filePath)
	}

	if opts.SkipCreationIfAlreadyExists {
		sum := md5.Sum(content)
		existing, err := c.findUploadByMD5(ctx, hex.EncodeToString(sum[:]))
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	storagePath, err := c.putToStorage(ctx, opts.Filename, content)
	if err != nil {
		c.logError("upload_file", err)
		return nil, err
	}

	attrs := map[string]any{"path": storagePath}
	if opts.Author != "" {
		attrs["author"] = opts.Author
	}
	if opts.Copyright != "" {
		attrs["copyright"] = opts.Copyright
	}
	if len(opts.Tags) > 0 {
		attrs["tags"] = opts.Tags
	}
	if len(opts.DefaultFieldMetadata) > 0 {
		attrs["default_field_metadata"] = opts.DefaultFieldMetadata
	}
	var rels map[string]any
	if opts.CollectionID != "" {
		rels = map[string]any{"upload_collection": Ref{Type: "upload_collection", ID: opts.CollectionID}}
	}

	_, data, err := c.send(ctx, "POST", "/uploads", nil, document("upload", "", attrs, rels))
	if err != nil {
		c.logError("create_upload", err)
		return nil, err
	}
	var doc singleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("POST /uploads: failed to decode response: %w", err)
	}
	if doc.Data.Type == "job" {
		return c.waitForJob(ctx, doc.Data.ID)
	}
	return flatten(doc.Data), nil
}

func (c *Client) findUploadByMD5(ctx context.Context, sum string) (map[string]any, error) {
	uploads, _, err := c.listUploadsPage(ctx, UploadQuery{
		Filter: map[string]any{"fields": map[string]any{"md5": map[string]any{"eq": sum}}},
		Limit:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing upload: %w", err)
	}
	if len(uploads) == 0 {
		return nil, nil
	}
	return uploads[0], nil
}

// putToStorage obtains a signed URL and PUTs the file content to it.
// It returns the storage path used to create the upload.
func (c *Client) putToStorage(ctx context.Context, filename string, content []byte) (string, error) {
	var doc singleDocument
	body := document("upload_request", "", map[string]any{"filename": filename}, nil)
	if err := c.do(ctx, "POST", "/upload-requests", nil, body, &doc); err != nil {
		return "", err
	}

	signedURL, _ := doc.Data.Attributes["url"].(string)
	if signedURL == "" {
		return "", errors.New("upload request returned no storage URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to build storage request: %w", err)
	}
	if headers, ok := doc.Data.Attributes["request_headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}
	req.ContentLength = int64(len(content))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to storage: %w", filename, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("failed to upload %s to storage: %s %s", filename, resp.Status, strings.TrimSpace(string(msg)))
	}

	return doc.Data.ID, nil
}

type jobResult struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status  int             `json:"status"`
			Payload json.RawMessage `json:"payload"`
		} `json:"attributes"`
	} `json:"data"`
}

// waitForJob polls an async job until its result is available
func (c *Client) waitForJob(ctx context.Context, jobID string) (map[string]any, error) {
	jobPath := "/job-results/" + url.PathEscape(jobID)
	for polls := 1; ; polls++ {
		_, data, err := c.send(ctx, "GET", jobPath, nil, nil)
		if IsNotFound(err) {
			if polls >= c.maxJobPolls {
				return nil, fmt.Errorf("job %s: %w after %d polls", jobID, ErrJobPending, polls)
			}
			if err := sleep(ctx, c.pollInterval); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		var result jobResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("GET %s: failed to decode response: %w", jobPath, err)
		}
		status := result.Data.Attributes.Status
		payload := result.Data.Attributes.Payload
		if status >= 300 {
			return nil, newAPIError("JOB", jobPath, status, payload)
		}

		var doc singleDocument
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &doc); err != nil {
				return nil, fmt.Errorf("GET %s: failed to decode job payload: %w", jobPath, err)
			}
		}
		return flatten(doc.Data), nil
	}
}
