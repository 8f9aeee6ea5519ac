// Package memories implements the /v1/memories HTTP surface, using the
// shared MountRoutes(r, deps...) convention every route package follows.
package memories

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/eventhub"
	"github.com/engram-memory/engram/internal/httperr"
	"github.com/engram-memory/engram/internal/model"
	storereg "github.com/engram-memory/engram/internal/registry/store"
	"github.com/engram-memory/engram/internal/security"
)

// MountRoutes mounts the memory CRUD, search, stats and maintenance
// endpoints under /v1, behind auth middleware.
func MountRoutes(r *gin.Engine, a *app.App, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)

	g.POST("/memories", func(c *gin.Context) { storeMemory(c, a) })
	g.GET("/memories/:id", func(c *gin.Context) { getMemory(c, a) })
	g.PUT("/memories/:id", func(c *gin.Context) { updateMemory(c, a) })
	g.DELETE("/memories/:id", func(c *gin.Context) { deleteMemory(c, a) })
	g.GET("/memories", func(c *gin.Context) { listMemories(c, a) })

	g.GET("/stats", func(c *gin.Context) { getStats(c, a) })
	g.GET("/usage", func(c *gin.Context) { getUsage(c, a) })
	g.GET("/analytics", func(c *gin.Context) { getAnalytics(c, a) })

	g.POST("/export", func(c *gin.Context) { exportMemories(c, a) })
	g.POST("/import", func(c *gin.Context) { importMemories(c, a) })
	g.POST("/backfill-embeddings", func(c *gin.Context) { backfillEmbeddings(c, a) })
	g.POST("/cleanup-expired", func(c *gin.Context) { cleanupExpired(c, a) })
}

type storeRequest struct {
	Content    string         `json:"content"`
	MemoryType string         `json:"memory_type"`
	Importance int            `json:"importance"`
	Tags       []string       `json:"tags"`
	Metadata   map[string]any `json:"metadata"`
	TTLSeconds int            `json:"ttl_seconds"`
}

func storeMemory(c *gin.Context, a *app.App) {
	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err.Error())
		return
	}
	if req.Content == "" {
		httperr.BadRequest(c, "content is required")
		return
	}
	memType := model.MemoryType(req.MemoryType)
	if memType == "" {
		memType = model.TypeFact
	}
	if !memType.Valid() {
		httperr.BadRequest(c, "invalid memory_type")
		return
	}
	importance := req.Importance
	if importance == 0 {
		importance = 5
	}
	if importance < 1 || importance > 10 {
		httperr.BadRequest(c, "importance must be between 1 and 10")
		return
	}

	tenantID := security.GetTenantID(c)
	namespace := security.GetNamespace(c)

	st, err := a.Store(c.Request.Context(), tenantID, namespace)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	if err := a.Registry.CheckMemoryLimit(c.Request.Context(), st, tenantID, namespace); err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	if err := a.Registry.CheckNamespaceLimit(c.Request.Context(), st, tenantID, namespace); err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}

	m := model.Memory{
		Content:    req.Content,
		MemoryType: memType,
		Importance: importance,
		Namespace:  namespace,
		Tags:       req.Tags,
		Metadata:   req.Metadata,
	}
	if req.TTLSeconds > 0 {
		expires := nowPlusSeconds(req.TTLSeconds)
		m.ExpiresAt = &expires
	}

	if a.Embedder != nil {
		vectors, err := a.Embedder.EmbedTexts(c.Request.Context(), []string{req.Content})
		if err == nil && len(vectors) == 1 {
			m.Embedding = vectors[0]
		}
	}

	id, duplicate, err := st.Store(c.Request.Context(), m)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	a.Registry.InvalidateNamespaceCache(c.Request.Context(), tenantID)
	_ = a.Hub.Broadcast(c.Request.Context(), eventhub.Event{
		Name: eventhub.MemoryStored, Namespace: namespace, Data: map[string]any{"id": id},
	})

	c.JSON(http.StatusOK, gin.H{"id": id, "duplicate": duplicate})
}

func getMemory(c *gin.Context, a *app.App) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), security.GetNamespace(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	m, err := st.Get(c.Request.Context(), id)
	if err != nil {
		httperr.Write(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, m)
}

func updateMemory(c *gin.Context, a *app.App) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		httperr.BadRequest(c, err.Error())
		return
	}

	patch := storereg.UpdateFields{}
	if v, ok := raw["content"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			httperr.BadRequest(c, "invalid content")
			return
		}
		patch.Content = &s
	}
	if v, ok := raw["memory_type"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			httperr.BadRequest(c, "invalid memory_type")
			return
		}
		mt := model.MemoryType(s)
		if !mt.Valid() {
			httperr.BadRequest(c, "invalid memory_type")
			return
		}
		patch.MemoryType = &mt
	}
	if v, ok := raw["importance"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil || n < 1 || n > 10 {
			httperr.BadRequest(c, "importance must be between 1 and 10")
			return
		}
		patch.Importance = &n
	}
	if v, ok := raw["tags"]; ok {
		var tags []string
		if err := json.Unmarshal(v, &tags); err != nil {
			httperr.BadRequest(c, "invalid tags")
			return
		}
		patch.Tags = tags
		patch.TagsSet = true
	}
	if v, ok := raw["metadata"]; ok {
		var meta map[string]any
		if err := json.Unmarshal(v, &meta); err != nil {
			httperr.BadRequest(c, "invalid metadata")
			return
		}
		patch.Metadata = meta
		patch.MetaSet = true
	}

	namespace := security.GetNamespace(c)
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), namespace)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	if err := st.Update(c.Request.Context(), id, patch); err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	_ = a.Hub.Broadcast(c.Request.Context(), eventhub.Event{
		Name: eventhub.MemoryUpdated, Namespace: namespace, Data: map[string]any{"id": id},
	})
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func deleteMemory(c *gin.Context, a *app.App) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	namespace := security.GetNamespace(c)
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), namespace)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	if err := st.Delete(c.Request.Context(), id); err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	_ = a.Hub.Broadcast(c.Request.Context(), eventhub.Event{
		Name: eventhub.MemoryDeleted, Namespace: namespace, Data: map[string]any{"id": id},
	})
	c.Status(http.StatusNoContent)
}

func listMemories(c *gin.Context, a *app.App) {
	limit := queryInt(c, "limit", 50)
	if limit < 1 || limit > 500 {
		httperr.BadRequest(c, "limit must be between 1 and 500")
		return
	}
	filter := model.ListFilter{
		Namespace:     security.GetNamespace(c),
		MemoryType:    model.MemoryType(c.Query("type")),
		MinImportance: queryInt(c, "min_importance", 0),
		Limit:         limit,
		Offset:        queryInt(c, "offset", 0),
	}
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), security.GetNamespace(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	list, err := st.List(c.Request.Context(), filter)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": list})
}

func getStats(c *gin.Context, a *app.App) {
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), security.GetNamespace(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	stats, err := st.Stats(c.Request.Context(), security.GetNamespace(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func getUsage(c *gin.Context, a *app.App) {
	tenantID := security.GetTenantID(c)
	namespace := security.GetNamespace(c)
	st, err := a.Store(c.Request.Context(), tenantID, namespace)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	stats, err := st.Stats(c.Request.Context(), "")
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	limits := a.Registry.Tier(tenantID)
	c.JSON(http.StatusOK, gin.H{
		"tier":           limits.Name,
		"total_memories": stats.TotalMemories,
		"max_memories":   limits.MaxMemories,
		"storage_bytes":  stats.StorageBytes,
		"max_storage_mb": limits.MaxStorageMB,
	})
}

func getAnalytics(c *gin.Context, a *app.App) {
	tenantID := security.GetTenantID(c)
	if err := a.Registry.CheckFeature(tenantID, "analytics"); err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	namespace := security.GetNamespace(c)
	st, err := a.Store(c.Request.Context(), tenantID, namespace)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	analytics, err := st.Analytics(c.Request.Context(), namespace)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func backfillEmbeddings(c *gin.Context, a *app.App) {
	if a.Embedder == nil {
		httperr.BadRequest(c, "no embedder configured")
		return
	}
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), security.GetNamespace(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	ctx := c.Request.Context()
	namespace := security.GetNamespace(c)
	pending, err := st.ListWithoutEmbeddings(ctx, namespace, 500)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
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
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func cleanupExpired(c *gin.Context, a *app.App) {
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), security.GetNamespace(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	n, err := st.CleanupExpired(c.Request.Context(), security.GetNamespace(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

func exportMemories(c *gin.Context, a *app.App) {
	var req struct {
		Format string `json:"format"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Format == "" {
		req.Format = "json"
	}
	if req.Format != "json" && req.Format != "markdown" {
		httperr.BadRequest(c, "format must be json or markdown")
		return
	}
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), security.GetNamespace(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	list, err := st.List(c.Request.Context(), model.ListFilter{Namespace: security.GetNamespace(c), Limit: 10000})
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	if req.Format == "markdown" {
		c.String(http.StatusOK, renderMarkdown(list))
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": list})
}

func importMemories(c *gin.Context, a *app.App) {
	var req struct {
		Data string `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err.Error())
		return
	}
	var payload struct {
		Memories []model.Memory `json:"memories"`
	}
	if err := json.Unmarshal([]byte(req.Data), &payload); err != nil {
		httperr.BadRequest(c, "data must be a JSON object with a memories array")
		return
	}

	tenantID := security.GetTenantID(c)
	namespace := security.GetNamespace(c)
	st, err := a.Store(c.Request.Context(), tenantID, namespace)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}

	imported, duplicates := 0, 0
	for _, m := range payload.Memories {
		m.Namespace = namespace
		_, dup, err := st.Store(c.Request.Context(), m)
		if err != nil {
			continue
		}
		if dup {
			duplicates++
		} else {
			imported++
		}
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported, "duplicates": duplicates})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httperr.BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
