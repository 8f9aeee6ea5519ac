package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/engram-memory/engram/internal/app"
	saver "github.com/engram-memory/engram/internal/autosave"
	"github.com/engram-memory/engram/internal/eventhub"
	"github.com/engram-memory/engram/internal/security"
)

func registerAutoSaveTools(s *server.MCPServer, a *app.App, tenantID string) {
	s.AddTool(mcp.NewTool("memory_checkpoint",
		mcp.WithDescription("Save an incremental checkpoint with delta tracking. Use before ending a session or when you want to preserve progress. Only saves what changed since the last checkpoint."),
		mcp.WithString("reason", mcp.Description("Why this checkpoint was triggered: manual, timer, message_threshold, ram_threshold, session_end"), mcp.DefaultString("manual")),
		mcp.WithString("project", mcp.Description("Project name to group checkpoints")),
		mcp.WithString("summary", mcp.Description("Optional summary of what was accomplished")),
		mcp.WithArray("key_facts", mcp.Description("Important facts from this session"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("open_tasks", mcp.Description("Tasks that still need to be done"), mcp.Items(map[string]any{"type": "string"})),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return autosaveCheckpoint(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_autosave_configure",
		mcp.WithDescription("Configure automatic save triggers for the current session. Set thresholds for RAM usage, message count, and timer interval."),
		mcp.WithString("project", mcp.Description("Project name")),
		mcp.WithBoolean("enabled", mcp.Description("Enable or disable autosave"), mcp.DefaultBool(true)),
		mcp.WithNumber("interval_minutes", mcp.Description("Auto-save interval in minutes"), mcp.DefaultNumber(30), mcp.Min(1), mcp.Max(1440)),
		mcp.WithNumber("message_threshold", mcp.Description("Save after N messages exchanged"), mcp.DefaultNumber(500), mcp.Min(10)),
		mcp.WithNumber("ram_threshold_pct", mcp.Description("Save when RAM usage exceeds this percentage"), mcp.DefaultNumber(85.0), mcp.Min(50.0), mcp.Max(99.0)),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return autosaveConfigure(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_autosave_status",
		mcp.WithDescription("Get current autosave status including delta (unsaved changes), message count, time since last save, and trigger configuration."),
		mcp.WithString("project", mcp.Description("Project name")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return autosaveStatus(ctx, a, tenantID, req)
	})
}

func autosaveCheckpoint(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	if err := a.Registry.CheckFeature(tenantID, "autosave"); err != nil {
		return toolError(err)
	}
	as, err := a.AutoSaver(ctx, tenantID, argString(args, "project", ""))
	if err != nil {
		return toolError(err)
	}
	reason := argString(args, "reason", "manual")
	result, err := as.Checkpoint(ctx, reason)
	if err != nil {
		return toolError(err)
	}
	_ = a.Hub.Broadcast(ctx, eventhub.Event{
		Name: eventhub.CheckpointCreated, Namespace: security.DefaultNamespace,
		Data: map[string]any{"session_id": result.Checkpoint.SessionID, "checkpoint_num": result.Checkpoint.CheckpointNum},
	})
	return jsonResult(result)
}

func autosaveConfigure(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	if err := a.Registry.CheckFeature(tenantID, "autosave"); err != nil {
		return toolError(err)
	}
	as, err := a.AutoSaver(ctx, tenantID, argString(args, "project", ""))
	if err != nil {
		return toolError(err)
	}

	updates := saver.Config{}
	set := map[string]bool{}
	if _, ok := args["enabled"]; ok {
		updates.Enabled = argBool(args, "enabled", true)
		set["enabled"] = true
	}
	if _, ok := args["interval_minutes"]; ok {
		updates.IntervalSeconds = argInt(args, "interval_minutes", 30) * 60
		set["interval_seconds"] = true
	}
	if _, ok := args["message_threshold"]; ok {
		updates.MessageThreshold = argInt(args, "message_threshold", 500)
		set["message_threshold"] = true
	}
	if _, ok := args["ram_threshold_pct"]; ok {
		updates.RAMThresholdPct = argFloat(args, "ram_threshold_pct", 85.0)
		set["ram_threshold_pct"] = true
	}
	return jsonResult(as.Configure(updates, set))
}

func autosaveStatus(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	if err := a.Registry.CheckFeature(tenantID, "autosave"); err != nil {
		return toolError(err)
	}
	as, err := a.AutoSaver(ctx, tenantID, argString(args, "project", ""))
	if err != nil {
		return toolError(err)
	}
	return jsonResult(as.Status())
}
