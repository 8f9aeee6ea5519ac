package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/eventhub"
	"github.com/engram-memory/engram/internal/model"
)

func registerLinkTools(s *server.MCPServer, a *app.App, tenantID string) {
	s.AddTool(mcp.NewTool("memory_link",
		mcp.WithDescription("Create a directed link between two memories. Example: mem.link(bug_id, fix_id, 'caused_by'). Relations: related, caused_by, depends_on, supersedes, contradicts, derived_from, follow_up."),
		mcp.WithNumber("source_id", mcp.Required(), mcp.Description("Source memory ID (the 'from' side)")),
		mcp.WithNumber("target_id", mcp.Required(), mcp.Description("Target memory ID (the 'to' side)")),
		mcp.WithString("relation", mcp.Description("Relation type"), mcp.DefaultString("related")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return linkMemories(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_unlink",
		mcp.WithDescription("Remove a link between memories by link ID."),
		mcp.WithNumber("link_id", mcp.Required(), mcp.Description("The link ID to remove")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return unlinkMemories(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_links",
		mcp.WithDescription("Get all links for a memory. Shows what other memories are connected and how."),
		mcp.WithNumber("memory_id", mcp.Required(), mcp.Description("The memory ID to get links for")),
		mcp.WithString("direction", mcp.Description("Filter direction: outgoing, incoming, or both"), mcp.DefaultString("both"), mcp.Enum("outgoing", "incoming", "both")),
		mcp.WithString("relation", mcp.Description("Filter by relation type (optional)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return listLinks(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_graph",
		mcp.WithDescription("Traverse the memory graph starting from a memory. BFS traversal returns all connected nodes and edges. Use this to find everything related to a bug, decision, or topic."),
		mcp.WithNumber("memory_id", mcp.Required(), mcp.Description("Starting memory ID for traversal")),
		mcp.WithNumber("max_depth", mcp.Description("Maximum traversal depth (1-5)"), mcp.DefaultNumber(2), mcp.Min(1), mcp.Max(5)),
		mcp.WithString("relation", mcp.Description("Filter edges by relation type (optional)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return buildGraph(ctx, a, tenantID, req)
	})
}

func linkMemories(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := a.Registry.CheckFeature(tenantID, "links"); err != nil {
		return toolError(err)
	}
	args := arguments(req)
	relation := model.LinkRelation(argString(args, "relation", string(model.RelRelated)))
	if !relation.Valid() {
		return toolError(errString("invalid relation"))
	}
	namespace := argNamespace(args)
	st, err := a.Store(ctx, tenantID, namespace)
	if err != nil {
		return toolError(err)
	}
	sourceID, targetID := int64(argInt(args, "source_id", 0)), int64(argInt(args, "target_id", 0))
	id, duplicate, err := st.Link(ctx, sourceID, targetID, relation, nil)
	if err != nil {
		return toolError(err)
	}
	if !duplicate {
		_ = a.Hub.Broadcast(ctx, eventhub.Event{
			Name: eventhub.LinkCreated, Namespace: namespace,
			Data: map[string]any{"id": id, "source_id": sourceID, "target_id": targetID, "relation": relation},
		})
	}
	return jsonResult(map[string]any{"id": id, "duplicate": duplicate})
}

func unlinkMemories(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := a.Registry.CheckFeature(tenantID, "links"); err != nil {
		return toolError(err)
	}
	args := arguments(req)
	namespace := argNamespace(args)
	st, err := a.Store(ctx, tenantID, namespace)
	if err != nil {
		return toolError(err)
	}
	linkID := int64(argInt(args, "link_id", 0))
	found, err := st.Unlink(ctx, linkID)
	if err != nil {
		return toolError(err)
	}
	if found {
		_ = a.Hub.Broadcast(ctx, eventhub.Event{
			Name: eventhub.LinkDeleted, Namespace: namespace, Data: map[string]any{"id": linkID},
		})
	}
	return jsonResult(map[string]any{"unlinked": found})
}

func listLinks(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := a.Registry.CheckFeature(tenantID, "links"); err != nil {
		return toolError(err)
	}
	args := arguments(req)
	st, err := a.Store(ctx, tenantID, argNamespace(args))
	if err != nil {
		return toolError(err)
	}
	direction := model.Direction(argString(args, "direction", string(model.DirBoth)))
	relation := model.LinkRelation(argString(args, "relation", ""))
	linked, err := st.Links(ctx, int64(argInt(args, "memory_id", 0)), direction, relation)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"links": linked})
}

func buildGraph(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := a.Registry.CheckFeature(tenantID, "links"); err != nil {
		return toolError(err)
	}
	args := arguments(req)
	st, err := a.Store(ctx, tenantID, argNamespace(args))
	if err != nil {
		return toolError(err)
	}
	relation := model.LinkRelation(argString(args, "relation", ""))
	graph, err := st.Graph(ctx, int64(argInt(args, "memory_id", 0)), argInt(args, "max_depth", 2), relation)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(graph)
}
