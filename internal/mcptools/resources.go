package mcptools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/model"
)

// registerResources exposes one readable resource, engram://memories/default,
// listing up to 1000 of the default namespace's memories as JSON. No
// resource is registered for any other namespace.
func registerResources(s *server.MCPServer, a *app.App, tenantID string) {
	resource := mcp.NewResource(
		"engram://memories/default",
		"All memories (default namespace)",
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		namespace := namespaceFromURI(req.Params.URI)
		st, err := a.Store(ctx, tenantID, namespace)
		if err != nil {
			return nil, err
		}
		entries, err := st.List(ctx, model.ListFilter{Namespace: namespace, Limit: 1000})
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(entries)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(body),
			},
		}, nil
	})
}

// namespaceFromURI parses "engram://memories/{namespace}", defaulting to
// "default" for a bare "engram://memories" URI.
func namespaceFromURI(uri string) string {
	rest := strings.TrimPrefix(uri, "engram://memories")
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return "default"
	}
	return rest
}
