package mcptools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// jsonResult marshals v as the tool call's text content, matching the
// original server's json.dumps(result, default=str) response shape.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError wraps a core error the way the original server's call_tool
// catches exceptions into a "Error: {exc}" text response, rather than
// failing the MCP call itself.
func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf("Error: %s", err)), nil
}
