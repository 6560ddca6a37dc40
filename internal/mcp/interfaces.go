package mcp

import (
	"context"

	"github.com/philippherzig/datocms-mcp/internal/audit"
	"github.com/philippherzig/datocms-mcp/internal/node"
	"github.com/philippherzig/datocms-mcp/internal/resolver"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// Dispatcher defines the operations a profile session exposes to tools.
// *node.Node implements it.
type Dispatcher interface {
	Run(ctx context.Context, req *types.Request, item map[string]any) ([]map[string]any, error)
	BulkUpload(ctx context.Context, p *types.BulkUploadParams, item map[string]any) (map[string]any, error)

	SearchItemTypes(ctx context.Context, filter string) ([]node.Option, error)
	SearchUploadCollections(ctx context.Context, filter string) ([]node.Option, error)
	SiteLocales(ctx context.Context) ([]string, error)
	MapperFields(ctx context.Context, ref string) ([]resolver.MapperField, error)
	FilterableFields(ctx context.Context, ref string) ([]resolver.FilterableField, error)
}

// RemoteFactory builds the CMA client for a profile
type RemoteFactory func(profile *types.Profile, logger *audit.Logger) (node.Remote, error)

var _ Dispatcher = (*node.Node)(nil)
