package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/eventhub"
	"github.com/engram-memory/engram/internal/model"
	sessionreg "github.com/engram-memory/engram/internal/registry/session"
	"github.com/engram-memory/engram/internal/security"
)

func registerSessionTools(s *server.MCPServer, a *app.App, tenantID string) {
	s.AddTool(mcp.NewTool("memory_session_save",
		mcp.WithDescription("Save a session checkpoint with summary, key facts, and open tasks. Use this before ending a conversation to preserve state."),
		mcp.WithString("summary", mcp.Required(), mcp.Description("Summary of what was accomplished in this session")),
		mcp.WithString("project", mcp.Description("Project name to group sessions")),
		mcp.WithArray("key_facts", mcp.Description("Important facts from this session"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("open_tasks", mcp.Description("Tasks that still need to be done"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("files_modified", mcp.Description("Files that were changed in this session"), mcp.Items(map[string]any{"type": "string"})),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return sessionSave(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_session_load",
		mcp.WithDescription("Load the most recent session checkpoint. Use this at the start of a conversation to recover context."),
		mcp.WithString("project", mcp.Description("Load checkpoint for a specific project")),
		mcp.WithString("session_id", mcp.Description("Load a specific session by ID")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return sessionLoad(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_session_list",
		mcp.WithDescription("List recent sessions with their checkpoints and status."),
		mcp.WithString("project", mcp.Description("Filter by project name")),
		mcp.WithNumber("limit", mcp.Description("Max sessions to return"), mcp.DefaultNumber(10)),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return sessionList(ctx, a, tenantID, req)
	})

	s.AddTool(mcp.NewTool("memory_recover",
		mcp.WithDescription("Recover context from the last session. Returns a formatted summary of where you left off, including key facts and open tasks."),
		mcp.WithString("project", mcp.Description("Recover context for a specific project")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return sessionRecover(ctx, a, tenantID, req)
	})
}

func sessionSave(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	store, err := a.Sessions(ctx, tenantID)
	if err != nil {
		return toolError(err)
	}
	cp, sess, err := store.SaveCheckpoint(ctx, sessionreg.CheckpointInput{
		Project:       argString(args, "project", ""),
		Summary:       argString(args, "summary", ""),
		KeyFacts:      argStringSlice(args, "key_facts"),
		OpenTasks:     argStringSlice(args, "open_tasks"),
		FilesModified: argStringSlice(args, "files_modified"),
	})
	if err != nil {
		return toolError(err)
	}
	_ = a.Hub.Broadcast(ctx, eventhub.Event{
		Name: eventhub.CheckpointCreated, Namespace: security.DefaultNamespace,
		Data: map[string]any{"session_id": cp.SessionID, "checkpoint_num": cp.CheckpointNum},
	})
	return jsonResult(map[string]any{"checkpoint": cp, "session": sess})
}

func sessionLoad(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	store, err := a.Sessions(ctx, tenantID)
	if err != nil {
		return toolError(err)
	}
	cp, sess, err := store.LoadCheckpoint(ctx, argString(args, "session_id", ""), argString(args, "project", ""))
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"checkpoint": cp, "session": sess})
}

func sessionList(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	store, err := a.Sessions(ctx, tenantID)
	if err != nil {
		return toolError(err)
	}
	list, err := store.ListSessions(ctx, argString(args, "project", ""), argInt(args, "limit", 10))
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"sessions": list})
}

func sessionRecover(ctx context.Context, a *app.App, tenantID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	store, err := a.Sessions(ctx, tenantID)
	if err != nil {
		return toolError(err)
	}
	cp, sess, err := store.LoadCheckpoint(ctx, "", argString(args, "project", ""))
	if err != nil {
		return mcp.NewToolResultText("No previous session found. This is a fresh start."), nil
	}
	return mcp.NewToolResultText(formatRecovery(cp, sess)), nil
}

// formatRecovery renders a checkpoint as a readable recovery summary,
// grounded on original_source's Sessions.recover_context.
func formatRecovery(cp model.Checkpoint, sess model.Session) string {
	project := sess.Project
	if project == "" {
		project = "General"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Session Recovery\n\n")
	fmt.Fprintf(&b, "**Last checkpoint:** %s\n", cp.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Project:** %s\n", project)
	fmt.Fprintf(&b, "**Checkpoint #%d**\n\n", cp.CheckpointNum)
	b.WriteString("### Summary\n")
	b.WriteString(cp.Summary)

	if len(cp.KeyFacts) > 0 {
		b.WriteString("\n\n### Key Facts\n")
		for _, fact := range cp.KeyFacts {
			fmt.Fprintf(&b, "- %s\n", fact)
		}
	}
	if len(cp.OpenTasks) > 0 {
		b.WriteString("\n### Open Tasks\n")
		for _, task := range cp.OpenTasks {
			fmt.Fprintf(&b, "- [ ] %s\n", task)
		}
	}
	if len(cp.FilesModified) > 0 {
		b.WriteString("\n### Files Modified\n")
		for _, f := range cp.FilesModified {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}
