package mcptools

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/engram-memory/engram/internal/app"
)

// NewServer builds an MCP server exposing every memory_* tool against a,
// scoped to the single tenant this stdio process was started for (MCP's
// stdio transport carries no per-request auth header, unlike the HTTP
// adapter's Authorization/X-API-Key headers).
func NewServer(a *app.App, tenantID string) *server.MCPServer {
	s := server.NewMCPServer(
		"engram", "1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	registerMemoryTools(s, a, tenantID)
	registerSearchTools(s, a, tenantID)
	registerSessionTools(s, a, tenantID)
	registerLinkTools(s, a, tenantID)
	registerAutoSaveTools(s, a, tenantID)
	registerResources(s, a, tenantID)

	return s
}
