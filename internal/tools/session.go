package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/websines/codegraph-mcp/internal/app"
	"github.com/websines/codegraph-mcp/internal/session"
)

// StartSessionTool handles start_session.
type StartSessionTool struct {
	app *app.App
}

// NewStartSessionTool creates a StartSessionTool.
func NewStartSessionTool(a *app.App) *StartSessionTool {
	return &StartSessionTool{app: a}
}

// Definition returns the MCP tool definition for start_session.
func (t *StartSessionTool) Definition() mcp.Tool {
	return mcp.NewTool("start_session",
		mcp.WithDescription(
			"Start a working session, destructively replacing any prior one. "+
				"Subtasks begin as pending. Session state survives restarts.",
		),
		mcp.WithString("title", mcp.Required(),
			mcp.Description("Short session title"),
		),
		mcp.WithString("task", mcp.Required(),
			mcp.Description("Free-text task description"),
		),
		mcp.WithArray("subtasks",
			mcp.Description("Ordered subtask texts"),
			mcp.Items(stringItems()),
		),
	)
}

// Handle processes the start_session tool call.
func (t *StartSessionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	title := req.GetString("title", "")
	task := req.GetString("task", "")
	if title == "" || task == "" {
		return mcp.NewToolResultError("'title' and 'task' are required"), nil
	}

	s, err := t.app.Session.Start(title, task, stringListArg(req, "subtasks"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("start session: %v", err)), nil
	}
	return jsonResult(s), nil
}

// GetSessionTool handles get_session.
type GetSessionTool struct {
	app *app.App
}

// NewGetSessionTool creates a GetSessionTool.
func NewGetSessionTool(a *app.App) *GetSessionTool {
	return &GetSessionTool{app: a}
}

// Definition returns the MCP tool definition for get_session.
func (t *GetSessionTool) Definition() mcp.Tool {
	return mcp.NewTool("get_session",
		mcp.WithDescription("Return the full active session document."),
	)
}

// Handle processes the get_session tool call.
func (t *GetSessionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	s, err := t.app.Session.Get()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load session: %v", err)), nil
	}
	if s == nil {
		return mcp.NewToolResultText("No active session. Use start_session first."), nil
	}
	return jsonResult(s), nil
}

// UpdateTaskTool handles update_task.
type UpdateTaskTool struct {
	app *app.App
}

// NewUpdateTaskTool creates an UpdateTaskTool.
func NewUpdateTaskTool(a *app.App) *UpdateTaskTool {
	return &UpdateTaskTool{app: a}
}

// Definition returns the MCP tool definition for update_task.
func (t *UpdateTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("update_task",
		mcp.WithDescription(
			"Partially mutate the subtask list: change one subtask's status or blocker, "+
				"and/or append new subtasks. A done subtask cannot return to pending.",
		),
		mcp.WithNumber("item_index",
			mcp.Description("Zero-based subtask index for status/blocker changes"),
		),
		mcp.WithString("status",
			mcp.Description("New status: pending, in_progress, blocked, or done"),
		),
		mcp.WithString("blocker",
			mcp.Description("Blocker note for the selected subtask"),
		),
		mcp.WithArray("add_items",
			mcp.Description("Subtask texts to append"),
			mcp.Items(stringItems()),
		),
	)
}

// Handle processes the update_task tool call.
func (t *UpdateTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	in := session.UpdateTaskInput{
		Status:   req.GetString("status", ""),
		Blocker:  req.GetString("blocker", ""),
		AddItems: stringListArg(req, "add_items"),
	}
	if _, hasIndex := req.GetArguments()["item_index"]; hasIndex {
		i := intArg(req, "item_index", 0)
		in.ItemIndex = &i
	}

	s, err := t.app.Session.UpdateTask(in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("update task: %v", err)), nil
	}
	return jsonResult(s), nil
}

// AddDecisionTool handles add_decision.
type AddDecisionTool struct {
	app *app.App
}

// NewAddDecisionTool creates an AddDecisionTool.
func NewAddDecisionTool(a *app.App) *AddDecisionTool {
	return &AddDecisionTool{app: a}
}

// Definition returns the MCP tool definition for add_decision.
func (t *AddDecisionTool) Definition() mcp.Tool {
	return mcp.NewTool("add_decision",
		mcp.WithDescription(
			"Append a decision to the session log with a UTC timestamp. "+
				"Record what was decided and why, optionally naming related symbols.",
		),
		mcp.WithString("text", mcp.Required(),
			mcp.Description("What was decided"),
		),
		mcp.WithString("reasoning",
			mcp.Description("Why"),
		),
		mcp.WithArray("symbols",
			mcp.Description("Related symbol ids"),
			mcp.Items(stringItems()),
		),
	)
}

// Handle processes the add_decision tool call.
func (t *AddDecisionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}

	d, err := t.app.Session.AddDecision(text, req.GetString("reasoning", ""), stringListArg(req, "symbols"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add decision: %v", err)), nil
	}
	return jsonResult(d), nil
}

// SetContextTool handles set_context.
type SetContextTool struct {
	app *app.App
}

// NewSetContextTool creates a SetContextTool.
func NewSetContextTool(a *app.App) *SetContextTool {
	return &SetContextTool{app: a}
}

// Definition returns the MCP tool definition for set_context.
func (t *SetContextTool) Definition() mcp.Tool {
	return mcp.NewTool("set_context",
		mcp.WithDescription(
			"Replace the named working-context sub-fields. Send the full desired "+
				"value for each field you include — fields are replaced, not merged.",
		),
		mcp.WithArray("files",
			mcp.Description("Complete set of files being worked on"),
			mcp.Items(stringItems()),
		),
		mcp.WithArray("symbols",
			mcp.Description("Complete set of symbol ids being worked on"),
			mcp.Items(stringItems()),
		),
		mcp.WithString("notes",
			mcp.Description("Free-text working notes"),
		),
	)
}

// Handle processes the set_context tool call.
func (t *SetContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	in := session.SetContextInput{
		Files:   stringListArg(req, "files"),
		Symbols: stringListArg(req, "symbols"),
	}
	if _, hasNotes := req.GetArguments()["notes"]; hasNotes {
		notes := req.GetString("notes", "")
		in.Notes = &notes
	}

	s, err := t.app.Session.SetContext(in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("set context: %v", err)), nil
	}
	return jsonResult(s.Context), nil
}

// SmartContextTool handles smart_context.
type SmartContextTool struct {
	app *app.App
}

// NewSmartContextTool creates a SmartContextTool.
func NewSmartContextTool(a *app.App) *SmartContextTool {
	return &SmartContextTool{app: a}
}

// Definition returns the MCP tool definition for smart_context.
func (t *SmartContextTool) Definition() mcp.Tool {
	return mcp.NewTool("smart_context",
		mcp.WithDescription(
			"Return the compact restoration document: task, k/n progress, the current "+
				"in-progress subtask, the last 5 decisions, and the working context. "+
				"Call this first after a context compaction.",
		),
	)
}

// Handle processes the smart_context tool call.
func (t *SmartContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	sc, err := t.app.Session.SmartContext()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("smart context: %v", err)), nil
	}
	return jsonResult(sc), nil
}
