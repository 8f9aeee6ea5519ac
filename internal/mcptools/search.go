package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/contextbuilder"
)

func registerSearchTools(s *server.MCPServer, a *app.App, tenantID string) {
	s.AddTool(mcp.NewTool("memory_search",
		mcp.WithDescription("Search memories using full-text search (FTS5)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("limit", mcp.Description("Max results"), mcp.DefaultNumber(10)),
		mcp.WithString("namespace", mcp.Description("Namespace to search in")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return searchMemories(ctx, a, tenantID, req, false)
	})

	s.AddTool(mcp.NewTool("memory_semantic_search",
		mcp.WithDescription("Search memories using semantic similarity (embeddings). Finds conceptually related memories even without exact keyword matches."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language search query")),
		mcp.WithNumber("limit", mcp.Description("Max results"), mcp.DefaultNumber(10)),
		mcp.WithString("namespace", mcp.Description("Namespace to search in")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return searchMemories(ctx, a, tenantID, req, true)
	})

	s.AddTool(mcp.NewTool("memory_recall",
		mcp.WithDescription("Retrieve highest-priority memories for context injection."),
		mcp.WithNumber("limit", mcp.Description("Max memories to recall"), mcp.DefaultNumber(20)),
		mcp.WithString("namespace", mcp.Description("Namespace")),
		mcp.WithNumber("min_importance", mcp.Description("Minimum importance threshold"), mcp.DefaultNumber(7)),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return recallMemories(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_context",
		mcp.WithDescription("Smart Context Builder — auto-select the most relevant memories for a given prompt and pack them into a token budget. Combines text search, semantic search, and priority recall."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("The prompt or topic to find relevant context for")),
		mcp.WithNumber("max_tokens", mcp.Description("Maximum token budget for the context"), mcp.DefaultNumber(2000), mcp.Min(100), mcp.Max(16000)),
		mcp.WithString("namespace", mcp.Description("Namespace to search in")),
		mcp.WithNumber("min_importance", mcp.Description("Minimum importance threshold for priority recall"), mcp.DefaultNumber(3), mcp.Min(1), mcp.Max(10)),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return buildContext(ctx, a, tenantID, req)
	})
}

func searchMemories(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest, semantic bool) (*mcp.CallToolResult, error) {
	args := arguments(req)
	query := argString(args, "query", "")
	limit := argInt(args, "limit", 10)
	namespace := argNamespace(args)

	if semantic {
		if err := a.Registry.CheckFeature(tenantID, "semantic_search"); err != nil {
			return toolError(err)
		}
	}

	st, err := a.Store(ctx, tenantID, namespace)
	if err != nil {
		return toolError(err)
	}

	if semantic {
		if a.Embedder == nil {
			return toolError(errString("no embedder configured"))
		}
		vectors, err := a.Embedder.EmbedTexts(ctx, []string{query})
		if err != nil || len(vectors) != 1 {
			return toolError(errString("failed to embed query"))
		}
		results, err := st.SearchVector(ctx, vectors[0], namespace, limit)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(map[string]any{"results": results, "count": len(results)})
	}

	results, err := st.SearchText(ctx, query, namespace, limit)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"results": results, "count": len(results)})
}

func recallMemories(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	namespace := argNamespace(args)
	limit := argInt(args, "limit", 20)
	minImportance := argInt(args, "min_importance", 7)

	st, err := a.Store(ctx, tenantID, namespace)
	if err != nil {
		return toolError(err)
	}
	memories, err := st.GetPriority(ctx, namespace, limit, minImportance)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"memories": memories, "count": len(memories)})
}

func buildContext(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	namespace := argNamespace(args)
	st, err := a.Store(ctx, tenantID, namespace)
	if err != nil {
		return toolError(err)
	}
	result, err := contextbuilder.Build(ctx, st, a.Embedder, argString(args, "prompt", ""), contextbuilder.Options{
		MaxTokens:     argInt(args, "max_tokens", 2000),
		Namespace:     namespace,
		MinImportance: argInt(args, "min_importance", 3),
	})
	if err != nil {
		return toolError(err)
	}
	return jsonResult(result)
}
