// Package links implements /v1/links, /v1/memories/{id}/links and
// /v1/graph, gating on the tenant's "links" tier flag.
package links

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/eventhub"
	"github.com/engram-memory/engram/internal/httperr"
	"github.com/engram-memory/engram/internal/model"
	storereg "github.com/engram-memory/engram/internal/registry/store"
	"github.com/engram-memory/engram/internal/security"
)

// MountRoutes mounts the link-graph endpoints under /v1.
func MountRoutes(r *gin.Engine, a *app.App, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth, gateLinks(a))
	g.POST("/links", func(c *gin.Context) { createLink(c, a) })
	g.DELETE("/links/:id", func(c *gin.Context) { deleteLink(c, a) })
	g.GET("/memories/:id/links", func(c *gin.Context) { listLinks(c, a) })
	g.POST("/graph", func(c *gin.Context) { buildGraph(c, a) })
}

func gateLinks(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Registry.CheckFeature(security.GetTenantID(c), "links"); err != nil {
			httperr.Write(c, err, http.StatusForbidden)
			return
		}
		c.Next()
	}
}

type createLinkRequest struct {
	SourceID int64          `json:"source_id"`
	TargetID int64          `json:"target_id"`
	Relation string         `json:"relation"`
	Metadata map[string]any `json:"metadata"`
}

func createLink(c *gin.Context, a *app.App) {
	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err.Error())
		return
	}
	relation := model.LinkRelation(req.Relation)
	if !relation.Valid() {
		httperr.BadRequest(c, "invalid relation")
		return
	}
	namespace := security.GetNamespace(c)
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), namespace)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	id, duplicate, err := st.Link(c.Request.Context(), req.SourceID, req.TargetID, relation, req.Metadata)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	if duplicate {
		c.JSON(http.StatusConflict, gin.H{"detail": "link already exists", "id": id})
		return
	}
	_ = a.Hub.Broadcast(c.Request.Context(), eventhub.Event{
		Name: eventhub.LinkCreated, Namespace: namespace,
		Data: map[string]any{"id": id, "source_id": req.SourceID, "target_id": req.TargetID, "relation": relation},
	})
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func deleteLink(c *gin.Context, a *app.App) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httperr.BadRequest(c, "invalid id")
		return
	}
	namespace := security.GetNamespace(c)
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), namespace)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	found, err := st.Unlink(c.Request.Context(), id)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	if !found {
		httperr.Write(c, storereg.NotFoundError{Resource: "link", ID: id}, http.StatusConflict)
		return
	}
	_ = a.Hub.Broadcast(c.Request.Context(), eventhub.Event{
		Name: eventhub.LinkDeleted, Namespace: namespace, Data: map[string]any{"id": id},
	})
	c.Status(http.StatusNoContent)
}

func listLinks(c *gin.Context, a *app.App) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httperr.BadRequest(c, "invalid id")
		return
	}
	direction := model.Direction(c.DefaultQuery("direction", string(model.DirBoth)))
	relation := model.LinkRelation(c.Query("relation"))

	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), security.GetNamespace(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	linked, err := st.Links(c.Request.Context(), id, direction, relation)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": linked})
}

type graphRequest struct {
	Root     int64  `json:"root"`
	MaxDepth int    `json:"max_depth"`
	Relation string `json:"relation"`
}

func buildGraph(c *gin.Context, a *app.App) {
	var req graphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err.Error())
		return
	}
	st, err := a.Store(c.Request.Context(), security.GetTenantID(c), security.GetNamespace(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	graph, err := st.Graph(c.Request.Context(), req.Root, req.MaxDepth, model.LinkRelation(req.Relation))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, graph)
}
