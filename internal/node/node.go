// Package node executes DatoCMS operations for batches of input records.
package node

import (
	"context"
	"fmt"
	"iter"

	"github.com/philippherzig/datocms-mcp/internal/audit"
	"github.com/philippherzig/datocms-mcp/internal/dato"
	"github.com/philippherzig/datocms-mcp/internal/resolver"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// Remote is the Content Management API surface the dispatcher uses.
// *dato.Client implements it.
type Remote interface {
	resolver.Remote

	FindItem(ctx context.Context, id string) (map[string]any, error)
	ItemsPaged(ctx context.Context, q dato.ItemQuery) iter.Seq2[map[string]any, error]
	DeleteItem(ctx context.Context, id string) (map[string]any, error)
	UnpublishItem(ctx context.Context, id string) (map[string]any, error)

	FindUpload(ctx context.Context, id string) (map[string]any, error)
	ListUploads(ctx context.Context, q dato.UploadQuery) ([]map[string]any, error)
	UploadsPaged(ctx context.Context, q dato.UploadQuery) iter.Seq2[map[string]any, error]
	DeleteUpload(ctx context.Context, id string) (map[string]any, error)
	CreateUploadFromFile(ctx context.Context, filePath string, opts dato.UploadOptions) (map[string]any, error)
	CreateUploadFromURL(ctx context.Context, rawURL string, opts dato.UploadOptions) (map[string]any, error)

	ListItemTypes(ctx context.Context) ([]dato.ItemType, error)
	FindItemType(ctx context.Context, idOrAPIKey string) (dato.ItemType, error)
	ListUploadCollections(ctx context.Context) ([]dato.UploadCollection, error)
	FindSite(ctx context.Context) (dato.Site, error)
}

// Options configures a Node
type Options struct {
	// ContinueOnFail records item errors as outputs instead of aborting the batch
	ContinueOnFail bool
	// StrictEncoding keeps JSON-looking strings of scalar fields verbatim
	StrictEncoding bool
	// UploadConcurrency is used by bulk uploads that do not set their own
	UploadConcurrency int
	// Profile names the credential profile in audit events
	Profile string
	// Progress, when set, is called after every finished item of Execute
	Progress func(done, total int)
}

// Node dispatches operation requests to the remote API
type Node struct {
	remote   Remote
	resolver *resolver.Resolver
	logger   *audit.Logger
	opts     Options
}

// New creates a dispatcher. logger may be nil.
func New(remote Remote, logger *audit.Logger, opts Options) *Node {
	return &Node{
		remote:   remote,
		resolver: resolver.New(remote, resolver.Options{StrictEncoding: opts.StrictEncoding}),
		logger:   logger,
		opts:     opts,
	}
}

// Resolver exposes the field resolver bound to the same remote
func (n *Node) Resolver() *resolver.Resolver {
	return n.resolver
}

// ItemResult is the outcome of one input item: outputs on success, Err otherwise.
// With ContinueOnFail a failed item also carries an {"error": msg} output.
type ItemResult struct {
	Index   int
	Outputs []map[string]any
	Err     error
}

// Failed reports whether the item ended in an error
func (r ItemResult) Failed() bool {
	return r.Err != nil
}

// Output is one output record paired with the input item it came from
type Output struct {
	JSON       map[string]any `json:"json"`
	PairedItem int            `json:"pairedItem"`
}

// RequestFunc builds the request for input item i
type RequestFunc func(i int, item map[string]any) (*types.Request, error)

// Execute runs one request per input item, strictly in order.
// Without ContinueOnFail the first failure stops the batch; the results
// gathered so far are returned together with the error.
func (n *Node) Execute(ctx context.Context, items []map[string]any, requestFor RequestFunc) ([]ItemResult, error) {
	results := make([]ItemResult, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := ItemResult{Index: i}
		req, err := requestFor(i, item)
		if err == nil {
			res.Outputs, err = n.Run(ctx, req, item)
		}
		if err != nil {
			res.Err = err
			res.Outputs = nil
			if !n.opts.ContinueOnFail {
				results = append(results, res)
				return results, fmt.Errorf("item %d: %w", i, err)
			}
			res.Outputs = []map[string]any{{"error": err.Error()}}
		}
		results = append(results, res)
		if n.opts.Progress != nil {
			n.opts.Progress(i+1, len(items))
		}
	}
	return results, nil
}

// Outputs flattens item results into paired output records
func Outputs(results []ItemResult) []Output {
	var out []Output
	for _, r := range results {
		for _, o := range r.Outputs {
			out = append(out, Output{JSON: o, PairedItem: r.Index})
		}
	}
	return out
}

// Run executes a single request for one input item
func (n *Node) Run(ctx context.Context, req *types.Request, item map[string]any) ([]map[string]any, error) {
	if req == nil {
		return nil, &resolver.ConfigurationError{Message: "no operation configured"}
	}

	var (
		out map[string]any
		err error
	)
	switch req.Resource {
	case types.ResourceRecord:
		out, err = n.runRecord(ctx, req, item)
	case types.ResourceUpload:
		out, err = n.runUpload(ctx, req, item)
	case types.ResourceItemType:
		out, err = n.runItemType(ctx, req, false)
	case types.ResourceBlock:
		out, err = n.runItemType(ctx, req, true)
	default:
		return nil, &resolver.ConfigurationError{Message: fmt.Sprintf("unknown resource %q", req.Resource)}
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return []map[string]any{out}, nil
}

func unsupported(req *types.Request) error {
	return &resolver.ConfigurationError{Message: fmt.Sprintf("operation %q is not supported for %s", req.Operation, req.Resource)}
}

func requireID(value, name string) error {
	if value == "" {
		return &resolver.ValidationError{Field: name, Message: "is required"}
	}
	return nil
}

// envelope wraps list results with the query that produced them
func envelope(results []map[string]any, query map[string]any) map[string]any {
	if results == nil {
		results = []map[string]any{}
	}
	return map[string]any{
		"results": results,
		"count":   len(results),
		"query":   query,
	}
}

func (n *Node) audit(op audit.EventType, target string, err error, details map[string]any) {
	n.logger.LogOperation(op, target, n.opts.Profile, err, details)
}
