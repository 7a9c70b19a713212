package mcp

import (
	"context"
	"fmt"

	"github.com/deixis/pkgxmcp/internal/metrics"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs.
const (
	ProgramsURI = "pkgx://programs/list"
	ScriptsURI  = "pkgx://mash/list"
)

func registerResources(s *mcp.Server, h *handler) {
	s.AddResource(&mcp.Resource{
		Name:        "list-runnable-programs",
		URI:         ProgramsURI,
		Description: "Programs known to pkgx, as printed by `pkgx -Q`.",
		MIMEType:    "text/plain",
	}, h.readResource("list-runnable-programs", "text/plain", h.catalog.Programs))

	s.AddResource(&mcp.Resource{
		Name:        "list-mash-scripts",
		URI:         ScriptsURI,
		Description: "The mash script index.",
		MIMEType:    "application/json",
	}, h.readResource("list-mash-scripts", "application/json", h.catalog.Scripts))
}

// readResource adapts a listing func into a resource handler.
func (h *handler) readResource(name, mimeType string, list func(context.Context) (string, error)) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		text, err := list(ctx)
		if err != nil {
			h.metrics.ObserveResourceRead(name, metrics.OutcomeError)
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		h.metrics.ObserveResourceRead(name, metrics.OutcomeSuccess)
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: mimeType,
				Text:     text,
			}},
		}, nil
	}
}
