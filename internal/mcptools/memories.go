package mcptools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/eventhub"
	"github.com/engram-memory/engram/internal/extractor"
	"github.com/engram-memory/engram/internal/model"
)

func registerMemoryTools(s *server.MCPServer, a *app.App, tenantID string) {
	s.AddTool(mcp.NewTool("memory_store",
		mcp.WithDescription("Store a memory. Deduplicates automatically via content hash."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The memory content to store")),
		mcp.WithString("type", mcp.Description("Memory type: fact, preference, decision, error_fix, pattern, workflow, summary, custom"), mcp.DefaultString("fact")),
		mcp.WithNumber("importance", mcp.Description("Importance 1-10 (10 = critical)"), mcp.DefaultNumber(5), mcp.Min(1), mcp.Max(10)),
		mcp.WithArray("tags", mcp.Description("Searchable tags"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("namespace", mcp.Description("Memory namespace (default: 'default')")),
		mcp.WithNumber("ttl_days", mcp.Description("Auto-expire after N days (optional)"), mcp.Min(1)),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return storeMemory(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_delete",
		mcp.WithDescription("Delete a memory by its ID."),
		mcp.WithNumber("memory_id", mcp.Required(), mcp.Description("The memory ID to delete")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return deleteMemory(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_stats",
		mcp.WithDescription("Get memory statistics (total count, by type, average importance)."),
		mcp.WithString("namespace", mcp.Description("Namespace to get stats for")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return memoryStats(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_backfill_embeddings",
		mcp.WithDescription("Generate embeddings for memories stored before semantic search was enabled. Run this once to enable semantic search on existing memories."),
		mcp.WithString("namespace", mcp.Description("Namespace to backfill (default: 'default')")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return backfillEmbeddings(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_cleanup_expired",
		mcp.WithDescription("Permanently remove memories that have passed their expiry date."),
		mcp.WithString("namespace", mcp.Description("Namespace to clean up")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return cleanupExpired(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_extract",
		mcp.WithDescription("Scan free-form text (e.g. a conversation transcript) for memory-worthy sentences and store each as its own memory."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The text to scan")),
		mcp.WithString("namespace", mcp.Description("Namespace to store extracted memories under (default: 'default')")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return extractMemories(ctx, a, tenantID, req)
	})
}

func storeMemory(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	content := argString(args, "content", "")
	if content == "" {
		return toolError(errString("content is required"))
	}
	memType := model.MemoryType(argString(args, "type", string(model.TypeFact)))
	if !memType.Valid() {
		return toolError(errString("invalid memory type"))
	}
	importance := argInt(args, "importance", 5)
	if importance < 1 || importance > 10 {
		return toolError(errString("importance must be between 1 and 10"))
	}
	namespace := argNamespace(args)

	st, err := a.Store(ctx, tenantID, namespace)
	if err != nil {
		return toolError(err)
	}
	if err := a.Registry.CheckMemoryLimit(ctx, st, tenantID, namespace); err != nil {
		return toolError(err)
	}
	if err := a.Registry.CheckNamespaceLimit(ctx, st, tenantID, namespace); err != nil {
		return toolError(err)
	}

	m := model.Memory{
		Content:    content,
		MemoryType: memType,
		Importance: importance,
		Namespace:  namespace,
		Tags:       argStringSlice(args, "tags"),
	}
	if ttlDays := argInt(args, "ttl_days", 0); ttlDays > 0 {
		expires := time.Now().Add(time.Duration(ttlDays) * 24 * time.Hour)
		m.ExpiresAt = &expires
	}
	if a.Embedder != nil {
		vectors, err := a.Embedder.EmbedTexts(ctx, []string{content})
		if err == nil && len(vectors) == 1 {
			m.Embedding = vectors[0]
		}
	}

	id, duplicate, err := st.Store(ctx, m)
	if err != nil {
		return toolError(err)
	}
	a.Registry.InvalidateNamespaceCache(ctx, tenantID)
	_ = a.Hub.Broadcast(ctx, eventhub.Event{
		Name: eventhub.MemoryStored, Namespace: namespace, Data: map[string]any{"id": id},
	})

	return jsonResult(map[string]any{"id": id, "duplicate": duplicate, "status": "stored"})
}

func deleteMemory(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	id := int64(argInt(args, "memory_id", 0))
	namespace := argNamespace(args)
	st, err := a.Store(ctx, tenantID, namespace)
	if err != nil {
		return toolError(err)
	}
	if err := st.Delete(ctx, id); err != nil {
		return jsonResult(map[string]any{"deleted": false, "memory_id": id})
	}
	_ = a.Hub.Broadcast(ctx, eventhub.Event{
		Name: eventhub.MemoryDeleted, Namespace: namespace, Data: map[string]any{"id": id},
	})
	return jsonResult(map[string]any{"deleted": true, "memory_id": id})
}

func memoryStats(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	namespace := argNamespace(args)
	st, err := a.Store(ctx, tenantID, namespace)
	if err != nil {
		return toolError(err)
	}
	stats, err := st.Stats(ctx, namespace)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(stats)
}

func backfillEmbeddings(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if a.Embedder == nil {
		return toolError(errString("no embedder configured"))
	}
	args := arguments(req)
	namespace := argNamespace(args)
	st, err := a.Store(ctx, tenantID, namespace)
	if err != nil {
		return toolError(err)
	}
	pending, err := st.ListWithoutEmbeddings(ctx, namespace, 500)
	if err != nil {
		return toolError(err)
	}
	updated := 0
	for _, m := range pending {
		vectors, err := a.Embedder.EmbedTexts(ctx, []string{m.Content})
		if err != nil || len(vectors) != 1 {
			continue
		}
		if err := st.UpdateEmbedding(ctx, m.ID, vectors[0]); err == nil {
			updated++
		}
	}
	return jsonResult(map[string]any{"updated": updated})
}

func extractMemories(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	text := argString(args, "text", "")
	if text == "" {
		return toolError(errString("text is required"))
	}
	namespace := argNamespace(args)

	st, err := a.Store(ctx, tenantID, namespace)
	if err != nil {
		return toolError(err)
	}

	candidates := extractor.Extract(text, namespace)
	ids := make([]int64, 0, len(candidates))
	stored := 0
	for _, c := range candidates {
		if err := a.Registry.CheckMemoryLimit(ctx, st, tenantID, namespace); err != nil {
			break
		}
		m := model.Memory{
			Content:    c.Content,
			MemoryType: c.Type,
			Importance: c.Importance,
			Namespace:  namespace,
		}
		if a.Embedder != nil {
			vectors, err := a.Embedder.EmbedTexts(ctx, []string{c.Content})
			if err == nil && len(vectors) == 1 {
				m.Embedding = vectors[0]
			}
		}
		id, duplicate, err := st.Store(ctx, m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		if !duplicate {
			stored++
			_ = a.Hub.Broadcast(ctx, eventhub.Event{
				Name: eventhub.MemoryStored, Namespace: namespace, Data: map[string]any{"id": id},
			})
		}
	}
	if stored > 0 {
		a.Registry.InvalidateNamespaceCache(ctx, tenantID)
	}

	return jsonResult(map[string]any{"candidates": len(candidates), "stored": stored, "ids": ids})
}

func cleanupExpired(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	namespace := argNamespace(args)
	st, err := a.Store(ctx, tenantID, namespace)
	if err != nil {
		return toolError(err)
	}
	n, err := st.CleanupExpired(ctx, namespace)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"removed": n})
}
