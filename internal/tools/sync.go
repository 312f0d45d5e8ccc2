package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/websines/codegraph-mcp/internal/app"
	"github.com/websines/codegraph-mcp/internal/learning"
)

// SyncLearningsTool handles sync_learnings.
type SyncLearningsTool struct {
	app *app.App
}

// NewSyncLearningsTool creates a SyncLearningsTool.
func NewSyncLearningsTool(a *app.App) *SyncLearningsTool {
	return &SyncLearningsTool{app: a}
}

// Definition returns the MCP tool definition for sync_learnings.
func (t *SyncLearningsTool) Definition() mcp.Tool {
	return mcp.NewTool("sync_learnings",
		mcp.WithDescription(
			"Export high-confidence patterns and failures to patterns.json and "+
				"failures.json under .codegraph/. Files are written atomically and "+
				"overwrite external edits. The database itself is not modified.",
		),
	)
}

// Handle processes the sync_learnings tool call.
func (t *SyncLearningsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	stats, err := learning.Sync(t.app.Config().Dir, t.app.Patterns, t.app.Failures)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sync learnings: %v", err)), nil
	}
	return jsonResult(stats), nil
}
