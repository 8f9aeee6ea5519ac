// Package autosave implements /v1/autosave/*, gated on the
// tenant's "autosave" tier flag.
package autosave

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/engram-memory/engram/internal/app"
	saver "github.com/engram-memory/engram/internal/autosave"
	"github.com/engram-memory/engram/internal/eventhub"
	"github.com/engram-memory/engram/internal/httperr"
	"github.com/engram-memory/engram/internal/security"
)

// MountRoutes mounts the autosave configuration/status/checkpoint/restore
// endpoints under /v1.
func MountRoutes(r *gin.Engine, a *app.App, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth, gateAutoSave(a))
	g.POST("/autosave/configure", func(c *gin.Context) { configure(c, a) })
	g.GET("/autosave/status", func(c *gin.Context) { status(c, a) })
	g.POST("/autosave/checkpoint", func(c *gin.Context) { checkpoint(c, a) })
	g.POST("/autosave/restore", func(c *gin.Context) { restore(c, a) })
}

func gateAutoSave(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Registry.CheckFeature(security.GetTenantID(c), "autosave"); err != nil {
			httperr.Write(c, err, http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func project(c *gin.Context) string {
	if p := c.Query("project"); p != "" {
		return p
	}
	return c.GetHeader("X-Project")
}

type configureRequest struct {
	Enabled          *bool    `json:"enabled"`
	IntervalSeconds  *int     `json:"interval_seconds"`
	MessageThreshold *int     `json:"message_threshold"`
	RAMThresholdPct  *float64 `json:"ram_threshold_pct"`
	OnSessionEnd     *bool    `json:"on_session_end"`
}

func configure(c *gin.Context, a *app.App) {
	var req configureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err.Error())
		return
	}
	as, err := a.AutoSaver(c.Request.Context(), security.GetTenantID(c), project(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	updates := saver.Config{}
	set := map[string]bool{}
	if req.Enabled != nil {
		updates.Enabled = *req.Enabled
		set["enabled"] = true
	}
	if req.IntervalSeconds != nil {
		updates.IntervalSeconds = *req.IntervalSeconds
		set["interval_seconds"] = true
	}
	if req.MessageThreshold != nil {
		updates.MessageThreshold = *req.MessageThreshold
		set["message_threshold"] = true
	}
	if req.RAMThresholdPct != nil {
		updates.RAMThresholdPct = *req.RAMThresholdPct
		set["ram_threshold_pct"] = true
	}
	if req.OnSessionEnd != nil {
		updates.OnSessionEnd = *req.OnSessionEnd
		set["on_session_end"] = true
	}
	c.JSON(http.StatusOK, as.Configure(updates, set))
}

func status(c *gin.Context, a *app.App) {
	as, err := a.AutoSaver(c.Request.Context(), security.GetTenantID(c), project(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, as.Status())
}

type checkpointRequest struct {
	Reason string `json:"reason"`
}

func checkpoint(c *gin.Context, a *app.App) {
	var req checkpointRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual"
	}
	as, err := a.AutoSaver(c.Request.Context(), security.GetTenantID(c), project(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	result, err := as.Checkpoint(c.Request.Context(), req.Reason)
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	_ = a.Hub.Broadcast(c.Request.Context(), eventhub.Event{
		Name: eventhub.CheckpointCreated, Namespace: security.GetNamespace(c),
		Data: map[string]any{"session_id": result.Checkpoint.SessionID, "checkpoint_num": result.Checkpoint.CheckpointNum},
	})
	c.JSON(http.StatusOK, result)
}

type restoreRequest struct {
	SessionID string `json:"session_id"`
}

func restore(c *gin.Context, a *app.App) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err.Error())
		return
	}
	as, err := a.AutoSaver(c.Request.Context(), security.GetTenantID(c), project(c))
	if err != nil {
		httperr.Write(c, err, http.StatusConflict)
		return
	}
	cp, sess, err := as.Restore(c.Request.Context(), req.SessionID)
	if err != nil {
		httperr.Write(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkpoint": cp, "session": sess})
}
