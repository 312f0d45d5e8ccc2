package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/websines/codegraph-mcp/internal/app"
	"github.com/websines/codegraph-mcp/internal/learning"
)

// RecordAttemptTool handles record_attempt.
type RecordAttemptTool struct {
	app *app.App
}

// NewRecordAttemptTool creates a RecordAttemptTool.
func NewRecordAttemptTool(a *app.App) *RecordAttemptTool {
	return &RecordAttemptTool{app: a}
}

// Definition returns the MCP tool definition for record_attempt.
func (t *RecordAttemptTool) Definition() mcp.Tool {
	return mcp.NewTool("record_attempt",
		mcp.WithDescription(
			"Open a solution record before starting work. Returns the solution id; "+
				"finalize it with record_outcome. Chain retries via parent.",
		),
		mcp.WithString("task", mcp.Required(),
			mcp.Description("What is being attempted"),
		),
		mcp.WithString("plan", mcp.Required(),
			mcp.Description("The plan for this attempt"),
		),
		mcp.WithString("approach",
			mcp.Description("Named approach, if any"),
		),
		mcp.WithString("parent",
			mcp.Description("Parent solution id when retrying a prior attempt"),
		),
	)
}

// Handle processes the record_attempt tool call.
func (t *RecordAttemptTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	task := req.GetString("task", "")
	plan := req.GetString("plan", "")
	if task == "" || plan == "" {
		return mcp.NewToolResultError("'task' and 'plan' are required"), nil
	}

	s, err := t.app.Lineage.RecordAttempt(task, plan,
		req.GetString("approach", ""), req.GetString("parent", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("record attempt: %v", err)), nil
	}
	return jsonResult(s), nil
}

// RecordOutcomeTool handles record_outcome.
type RecordOutcomeTool struct {
	app *app.App
}

// NewRecordOutcomeTool creates a RecordOutcomeTool.
func NewRecordOutcomeTool(a *app.App) *RecordOutcomeTool {
	return &RecordOutcomeTool{app: a}
}

// Definition returns the MCP tool definition for record_outcome.
func (t *RecordOutcomeTool) Definition() mcp.Tool {
	return mcp.NewTool("record_outcome",
		mcp.WithDescription(
			"Finalize an attempt with its outcome. A finalized solution accepts no "+
				"further mutation. Optionally attach metrics and the files/symbols touched.",
		),
		mcp.WithString("solution_id", mcp.Required(),
			mcp.Description("Solution id from record_attempt"),
		),
		mcp.WithString("outcome", mcp.Required(),
			mcp.Description("success, failure, or partial"),
		),
		mcp.WithObject("metrics",
			mcp.Description("Arbitrary scalar metrics, e.g. {\"tests_fixed\": 3}"),
			mcp.Properties(map[string]any{}),
		),
		mcp.WithArray("files",
			mcp.Description("Files modified"),
			mcp.Items(stringItems()),
		),
		mcp.WithArray("symbols",
			mcp.Description("Symbol ids modified"),
			mcp.Items(stringItems()),
		),
	)
}

// Handle processes the record_outcome tool call.
func (t *RecordOutcomeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	id := req.GetString("solution_id", "")
	outcome := req.GetString("outcome", "")
	if id == "" || outcome == "" {
		return mcp.NewToolResultError("'solution_id' and 'outcome' are required"), nil
	}

	s, err := t.app.Lineage.RecordOutcome(id, outcome,
		metricsArg(req, "metrics"),
		stringListArg(req, "files"),
		stringListArg(req, "symbols"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("record outcome: %v", err)), nil
	}
	return jsonResult(s), nil
}

// QueryLineageTool handles query_lineage.
type QueryLineageTool struct {
	app *app.App
}

// NewQueryLineageTool creates a QueryLineageTool.
func NewQueryLineageTool(a *app.App) *QueryLineageTool {
	return &QueryLineageTool{app: a}
}

// Definition returns the MCP tool definition for query_lineage.
func (t *QueryLineageTool) Definition() mcp.Tool {
	return mcp.NewTool("query_lineage",
		mcp.WithDescription(
			"Walk the retry chains of every solution whose task contains the given "+
				"substring. Returns (solution, depth) pairs from each chain root down.",
		),
		mcp.WithString("task", mcp.Required(),
			mcp.Description("Task substring to match (case-insensitive)"),
		),
	)
}

// Handle processes the query_lineage tool call.
func (t *QueryLineageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	task := req.GetString("task", "")
	if task == "" {
		return mcp.NewToolResultError("'task' is required"), nil
	}

	entries, err := t.app.Lineage.QueryLineage(task)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query lineage: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No solutions match this task."), nil
	}
	return jsonResult(entries), nil
}

// SuggestApproachTool handles suggest_approach.
type SuggestApproachTool struct {
	app *app.App
}

// NewSuggestApproachTool creates a SuggestApproachTool.
func NewSuggestApproachTool(a *app.App) *SuggestApproachTool {
	return &SuggestApproachTool{app: a}
}

// Definition returns the MCP tool definition for suggest_approach.
func (t *SuggestApproachTool) Definition() mcp.Tool {
	return mcp.NewTool("suggest_approach",
		mcp.WithDescription(
			"Fuse the learning store into a recommendation for a task: top patterns "+
				"by effective confidence, failures to avoid, and the most recent prior "+
				"success on a similar task. The textual approach is a deterministic "+
				"template over those records.",
		),
		mcp.WithString("task", mcp.Required(),
			mcp.Description("The task to suggest an approach for"),
		),
		mcp.WithObject("scope",
			mcp.Description("Query scope: file paths/globs and tags"),
			mcp.Properties(scopeProperties()),
		),
	)
}

// Handle processes the suggest_approach tool call.
func (t *SuggestApproachTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	task := req.GetString("task", "")
	if task == "" {
		return mcp.NewToolResultError("'task' is required"), nil
	}

	s, err := learning.SuggestApproach(task, queryArg(req, "scope"),
		t.app.Patterns, t.app.Failures, t.app.Lineage,
		t.app.Config().Settings.Learning.DecayHalfLife)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("suggest approach: %v", err)), nil
	}
	return jsonResult(s), nil
}
