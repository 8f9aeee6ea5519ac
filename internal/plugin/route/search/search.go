// Package search implements /v1/search, /v1/recall and /v1/context,
// dispatching to Store.SearchText/SearchVector and the
// contextbuilder package.
package search

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/contextbuilder"
	"github.com/engram-memory/engram/internal/httperr"
	"github.com/engram-memory/engram/internal/security"
)

// MountRoutes mounts the search/recall/context endpoints under /v1.
func MountRoutes(r *gin.Engine, a *app.App, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)
	g.POST("/search", func(c *gin.Context) { doSearch(c, a) })
	g.POST("/recall", func(c *gin.Context) { doRecall(c, a) })
	g.POST("/context", func(c *gin.Context) { doContext(c, a) })
}

type searchRequest struct {
	Query    string `json:"query"`
	Semantic bool   `json:"semantic"`
	Limit    int    `json:"limit"`
}

func doSearch(c *gin.Context, a *app.App) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err.Error())
		return
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}

	tenantID := security.GetTenantID(c)
	namespace := security.GetNamespace(c)

	if req.Semantic {
		if err := a.Registry.CheckFeature(tenantID, "semantic_search"); err != nil {
			httperr.Write(c, err, http.StatusConflict)
			return
		}
	}

	st, err := a.Store(c.Request.Context(), tenantID, namespace)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}

	if req.Semantic {
		if a.Embedder == nil {
			httperr.BadRequest(c, "no embedder configured")
			return
		}
		vectors, err := a.Embedder.EmbedTexts(c.Request.Context(), []string{req.Query})
		if err != nil || len(vectors) != 1 {
			httperr.BadRequest(c, "failed to embed query")
			return
		}
		results, err := st.SearchVector(c.Request.Context(), vectors[0], namespace, req.Limit)
		if err != nil {
			httperr.Write(c, err, http.StatusConflict)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
		return
	}

	results, err := st.SearchText(c.Request.Context(), req.Query, namespace, req.Limit)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type recallRequest struct {
	Limit         int `json:"limit"`
	MinImportance int `json:"min_importance"`
}

func doRecall(c *gin.Context, a *app.App) {
	var req recallRequest
	_ = c.ShouldBindJSON(&req)
	if req.Limit <= 0 {
		req.Limit = 20
	}
	namespace := security.GetNamespace(c)
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), namespace)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	results, err := st.GetPriority(c.Request.Context(), namespace, req.Limit, req.MinImportance)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": results})
}

type contextRequest struct {
	Prompt        string `json:"prompt"`
	MaxTokens     int    `json:"max_tokens"`
	MinImportance int    `json:"min_importance"`
}

func doContext(c *gin.Context, a *app.App) {
	var req contextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err.Error())
		return
	}
	namespace := security.GetNamespace(c)
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), namespace)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	result, err := contextbuilder.Build(c.Request.Context(), st, a.Embedder, req.Prompt, contextbuilder.Options{
		MaxTokens:     req.MaxTokens,
		Namespace:     namespace,
		MinImportance: req.MinImportance,
	})
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, result)
}
