// Package sessions implements /v1/sessions/*, gated on the
// tenant's "sessions" tier flag.
package sessions

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/eventhub"
	"github.com/engram-memory/engram/internal/httperr"
	sessionreg "github.com/engram-memory/engram/internal/registry/session"
	"github.com/engram-memory/engram/internal/security"
)

// MountRoutes mounts the session checkpoint endpoints under /v1.
func MountRoutes(r *gin.Engine, a *app.App, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth, gateSessions(a))
	g.POST("/sessions/save", func(c *gin.Context) { saveCheckpoint(c, a) })
	g.GET("/sessions/latest", func(c *gin.Context) { latestCheckpoint(c, a) })
	g.GET("/sessions", func(c *gin.Context) { listSessions(c, a) })
	g.POST("/sessions/recover", func(c *gin.Context) { recoverCheckpoint(c, a) })
}

func gateSessions(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Registry.CheckFeature(security.GetTenantID(c), "sessions"); err != nil {
			httperr.Write(c, err, http.StatusForbidden)
			return
		}
		c.Next()
	}
}

type saveRequest struct {
	Project       string   `json:"project"`
	Summary       string   `json:"summary"`
	KeyFacts      []string `json:"key_facts"`
	OpenTasks     []string `json:"open_tasks"`
	FilesModified []string `json:"files_modified"`
}

func saveCheckpoint(c *gin.Context, a *app.App) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err.Error())
		return
	}
	store, err := a.Sessions(c.Request.Context(), security.GetTenantID(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	cp, sess, err := store.SaveCheckpoint(c.Request.Context(), sessionreg.CheckpointInput{
		Project:       req.Project,
		Summary:       req.Summary,
		KeyFacts:      req.KeyFacts,
		OpenTasks:     req.OpenTasks,
		FilesModified: req.FilesModified,
	})
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	_ = a.Hub.Broadcast(c.Request.Context(), eventhub.Event{
		Name: eventhub.CheckpointCreated, Namespace: security.GetNamespace(c),
		Data: map[string]any{"session_id": cp.SessionID, "checkpoint_num": cp.CheckpointNum},
	})
	c.JSON(http.StatusOK, gin.H{"checkpoint": cp, "session": sess})
}

func latestCheckpoint(c *gin.Context, a *app.App) {
	store, err := a.Sessions(c.Request.Context(), security.GetTenantID(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	cp, sess, err := store.LoadCheckpoint(c.Request.Context(), "", c.Query("project"))
	if err != nil {
		httperr.Write(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkpoint": cp, "session": sess})
}

func listSessions(c *gin.Context, a *app.App) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	store, err := a.Sessions(c.Request.Context(), security.GetTenantID(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	list, err := store.ListSessions(c.Request.Context(), c.Query("project"), limit)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

type recoverRequest struct {
	SessionID string `json:"session_id"`
	Project   string `json:"project"`
}

func recoverCheckpoint(c *gin.Context, a *app.App) {
	var req recoverRequest
	_ = c.ShouldBindJSON(&req)
	store, err := a.Sessions(c.Request.Context(), security.GetTenantID(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	cp, sess, err := store.LoadCheckpoint(c.Request.Context(), req.SessionID, req.Project)
	if err != nil {
		httperr.Write(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkpoint": cp, "session": sess})
}
