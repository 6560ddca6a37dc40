package node

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/itchyny/gojq"
	"golang.org/x/sync/errgroup"

	"github.com/philippherzig/datocms-mcp/internal/audit"
	"github.com/philippherzig/datocms-mcp/internal/dato"
	"github.com/philippherzig/datocms-mcp/internal/resolver"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// Bulk upload limits
const (
	DefaultUploadConcurrency = 5
	MaxUploadConcurrency     = 20
	defaultOutputField       = "uploads"
)

// ExtractionMode is the shape of the value a bulk upload source selected
type ExtractionMode string

const (
	// ExtractSingle is one URL string
	ExtractSingle ExtractionMode = "single"
	// ExtractList is a list of URL strings
	ExtractList ExtractionMode = "list"
	// ExtractObjects is a list of objects carrying a "url" key
	ExtractObjects ExtractionMode = "objects"
)

// Extraction is what a source expression selected from an input item.
// It is handed to Replace unchanged.
type Extraction struct {
	Mode   ExtractionMode
	Source any
	// URLs are unique, in first-seen order
	URLs []string
}

// Extract evaluates the jq expression against item and classifies the result
func Extract(expression string, item map[string]any) (*Extraction, error) {
	if expression == "" {
		return nil, &resolver.ValidationError{Field: "source", Message: "a jq expression selecting the URLs is required"}
	}
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, &resolver.ValidationError{Field: "source", Message: fmt.Sprintf("invalid expression %q: %v", expression, err)}
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, &resolver.ValidationError{Field: "source", Message: fmt.Sprintf("failed to compile expression %q: %v", expression, err)}
	}

	input, err := normalizeForJQ(item)
	if err != nil {
		return nil, err
	}

	var values []any
	it := code.Run(input)
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, &resolver.ValidationError{Field: "source", Message: fmt.Sprintf("expression error: %v", err)}
		}
		values = append(values, v)
	}

	var selected any
	switch len(values) {
	case 0:
		return nil, &resolver.ValidationError{Field: "source", Message: "expression selected nothing"}
	case 1:
		selected = values[0]
	default:
		selected = values
	}
	return classify(selected)
}

func classify(v any) (*Extraction, error) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil, &resolver.ValidationError{Field: "source", Message: "selected URL is empty"}
		}
		return &Extraction{Mode: ExtractSingle, Source: val, URLs: []string{val}}, nil
	case []any:
		return classifyList(val)
	default:
		return nil, &resolver.ValidationError{Field: "source", Message: fmt.Sprintf("expected a URL, a list of URLs or a list of objects with a url key, got %T", v)}
	}
}

func classifyList(list []any) (*Extraction, error) {
	ext := &Extraction{Mode: ExtractList, Source: list}
	seen := make(map[string]bool, len(list))
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			ext.URLs = append(ext.URLs, u)
		}
	}

	for i, entry := range list {
		switch e := entry.(type) {
		case string:
			if i > 0 && ext.Mode != ExtractList {
				return nil, mixedList()
			}
			add(e)
		case map[string]any:
			if i > 0 && ext.Mode != ExtractObjects {
				return nil, mixedList()
			}
			ext.Mode = ExtractObjects
			u, ok := e["url"].(string)
			if !ok {
				return nil, &resolver.ValidationError{Field: "source", Message: fmt.Sprintf("entry %d has no url", i)}
			}
			add(u)
		default:
			return nil, &resolver.ValidationError{Field: "source", Message: fmt.Sprintf("entry %d is a %T, not a URL", i, entry)}
		}
	}
	return ext, nil
}

func mixedList() error {
	return &resolver.ValidationError{Field: "source", Message: "list mixes URLs and objects"}
}

// Replace substitutes every URL in the extracted value with a reference to
// its upload. Object entries keep their other keys.
func Replace(ext *Extraction, uploads map[string]map[string]any) any {
	switch ext.Mode {
	case ExtractSingle:
		return uploadRef(ext.Source.(string), uploads)
	case ExtractList:
		list := ext.Source.([]any)
		out := make([]any, 0, len(list))
		for _, entry := range list {
			out = append(out, uploadRef(entry.(string), uploads))
		}
		return out
	case ExtractObjects:
		list := ext.Source.([]any)
		out := make([]any, 0, len(list))
		for _, entry := range list {
			obj := maps.Clone(entry.(map[string]any))
			u, _ := obj["url"].(string)
			if up, ok := uploads[u]; ok {
				obj["upload_id"] = up["id"]
			}
			out = append(out, obj)
		}
		return out
	}
	return nil
}

func uploadRef(u string, uploads map[string]map[string]any) map[string]any {
	ref := map[string]any{"url": u, "upload_id": nil}
	if up, ok := uploads[u]; ok {
		ref["upload_id"] = up["id"]
	}
	return ref
}

// UploadConcurrency validates a requested concurrency; zero or less selects the fallback
func UploadConcurrency(requested, fallback int) (int, error) {
	if requested > MaxUploadConcurrency {
		return 0, &resolver.ValidationError{Field: "concurrency", Message: fmt.Sprintf("must be at most %d", MaxUploadConcurrency)}
	}
	if requested > 0 {
		return requested, nil
	}
	if fallback > 0 {
		return min(fallback, MaxUploadConcurrency), nil
	}
	return DefaultUploadConcurrency, nil
}

// BulkUpload uploads every URL the source expression selects from item and
// writes upload references to the output field of a copy of item.
// URLs are uploaded in waves of the configured concurrency; a wave finishes
// before the next one starts.
func (n *Node) BulkUpload(ctx context.Context, p *types.BulkUploadParams, item map[string]any) (map[string]any, error) {
	if p == nil {
		return nil, &resolver.ValidationError{Field: "bulk", Message: "bulk upload parameters are required"}
	}
	concurrency, err := UploadConcurrency(p.Concurrency, n.opts.UploadConcurrency)
	if err != nil {
		return nil, err
	}
	ext, err := Extract(p.Source, item)
	if err != nil {
		return nil, err
	}

	opts := dato.UploadOptions{
		SkipCreationIfAlreadyExists: p.SkipCreationIfAlreadyExists,
		CollectionID:                p.Collection,
	}
	uploads := make(map[string]map[string]any, len(ext.URLs))
	for start := 0; start < len(ext.URLs); start += concurrency {
		wave := ext.URLs[start:min(start+concurrency, len(ext.URLs))]
		results, err := n.uploadWave(ctx, wave, opts)
		if err != nil {
			return nil, err
		}
		for i, u := range wave {
			uploads[u] = results[i]
		}
	}

	outputField := p.OutputField
	if outputField == "" {
		outputField = defaultOutputField
	}
	out := maps.Clone(item)
	if out == nil {
		out = map[string]any{}
	}
	out[outputField] = Replace(ext, uploads)
	return out, nil
}

func (n *Node) uploadWave(ctx context.Context, wave []string, opts dato.UploadOptions) ([]map[string]any, error) {
	results := make([]map[string]any, len(wave))
	// a failed upload does not cancel its siblings; they may be mid-way through
	// the storage PUT and must finish with their POST /uploads
	var g errgroup.Group
	for i, u := range wave {
		g.Go(func() error {
			up, err := n.remote.CreateUploadFromURL(ctx, u, opts)
			n.audit(audit.EventUploadCreate, u, err, map[string]any{"bulk": true})
			if err != nil {
				return &resolver.RemoteError{Operation: "upload " + u, Err: err}
			}
			results[i] = up
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// normalizeForJQ converts input into the plain JSON types gojq accepts
func normalizeForJQ(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input item: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode input item: %w", err)
	}
	return out, nil
}
