package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/websines/codegraph-mcp/internal/app"
	"github.com/websines/codegraph-mcp/internal/learning"
)

// RecallPatternsTool handles recall_patterns.
type RecallPatternsTool struct {
	app *app.App
}

// NewRecallPatternsTool creates a RecallPatternsTool.
func NewRecallPatternsTool(a *app.App) *RecallPatternsTool {
	return &RecallPatternsTool{app: a}
}

// Definition returns the MCP tool definition for recall_patterns.
func (t *RecallPatternsTool) Definition() mcp.Tool {
	return mcp.NewTool("recall_patterns",
		mcp.WithDescription(
			"Recall stored patterns matching a scope, ranked by effective confidence "+
				"(time-decayed, momentum-adjusted). Drifting patterns are flagged.",
		),
		mcp.WithObject("scope",
			mcp.Description("Query scope: file paths/globs and tags"),
			mcp.Properties(scopeProperties()),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10)"),
		),
	)
}

// Handle processes the recall_patterns tool call.
func (t *RecallPatternsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	patterns, err := t.app.Patterns.Recall(
		queryArg(req, "scope"),
		intArg(req, "limit", 10),
		t.app.Config().Settings.Learning.DecayHalfLife,
	)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recall patterns: %v", err)), nil
	}
	if len(patterns) == 0 {
		return mcp.NewToolResultText("No patterns match this scope."), nil
	}
	return jsonResult(patterns), nil
}

// RecallFailuresTool handles recall_failures.
type RecallFailuresTool struct {
	app *app.App
}

// NewRecallFailuresTool creates a RecallFailuresTool.
func NewRecallFailuresTool(a *app.App) *RecallFailuresTool {
	return &RecallFailuresTool{app: a}
}

// Definition returns the MCP tool definition for recall_failures.
func (t *RecallFailuresTool) Definition() mcp.Tool {
	return mcp.NewTool("recall_failures",
		mcp.WithDescription(
			"Recall failures to avoid. Critical failures are always returned regardless "+
				"of scope; the rest match the scope and rank by times prevented.",
		),
		mcp.WithObject("scope",
			mcp.Description("Query scope: file paths/globs and tags"),
			mcp.Properties(scopeProperties()),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10)"),
		),
	)
}

// Handle processes the recall_failures tool call.
func (t *RecallFailuresTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	failures, err := t.app.Failures.Recall(queryArg(req, "scope"), intArg(req, "limit", 10))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recall failures: %v", err)), nil
	}
	if len(failures) == 0 {
		return mcp.NewToolResultText("No failures recorded for this scope."), nil
	}
	return jsonResult(failures), nil
}

// ExtractPatternTool handles extract_pattern.
type ExtractPatternTool struct {
	app *app.App
}

// NewExtractPatternTool creates an ExtractPatternTool.
func NewExtractPatternTool(a *app.App) *ExtractPatternTool {
	return &ExtractPatternTool{app: a}
}

// Definition returns the MCP tool definition for extract_pattern.
func (t *ExtractPatternTool) Definition() mcp.Tool {
	return mcp.NewTool("extract_pattern",
		mcp.WithDescription(
			"Store a pattern directly: a short intent, how it works, example snippets, "+
				"and the scope where it applies.",
		),
		mcp.WithString("intent", mcp.Required(),
			mcp.Description("Short statement of what the pattern achieves"),
		),
		mcp.WithString("mechanism",
			mcp.Description("How the pattern works"),
		),
		mcp.WithArray("examples",
			mcp.Description("Example snippets"),
			mcp.Items(stringItems()),
		),
		mcp.WithObject("scope",
			mcp.Description("Where the pattern applies"),
			mcp.Properties(scopeProperties()),
		),
		mcp.WithNumber("confidence",
			mcp.Description("Base confidence in [0,1] (default: 0.7)"),
		),
	)
}

// Handle processes the extract_pattern tool call.
func (t *ExtractPatternTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	intent := req.GetString("intent", "")
	if intent == "" {
		return mcp.NewToolResultError("'intent' is required"), nil
	}

	p, err := t.app.Patterns.Create(learning.NewPattern{
		Intent:     intent,
		Mechanism:  req.GetString("mechanism", ""),
		Examples:   stringListArg(req, "examples"),
		Scope:      scopeArg(req, "scope"),
		Confidence: floatArg(req, "confidence", 0.7),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("extract pattern: %v", err)), nil
	}
	return jsonResult(p), nil
}

// RecordFailureTool handles record_failure.
type RecordFailureTool struct {
	app *app.App
}

// NewRecordFailureTool creates a RecordFailureTool.
func NewRecordFailureTool(a *app.App) *RecordFailureTool {
	return &RecordFailureTool{app: a}
}

// Definition returns the MCP tool definition for record_failure.
func (t *RecordFailureTool) Definition() mcp.Tool {
	return mcp.NewTool("record_failure",
		mcp.WithDescription(
			"Store a failure directly: its cause, the avoidance rule, and severity. "+
				"Recording an identical cause again bumps its times-prevented counter.",
		),
		mcp.WithString("cause", mcp.Required(),
			mcp.Description("What went wrong"),
		),
		mcp.WithString("avoidance", mcp.Required(),
			mcp.Description("How to avoid it"),
		),
		mcp.WithString("severity",
			mcp.Description("critical, major, or minor (default: minor)"),
		),
		mcp.WithObject("scope",
			mcp.Description("Where the failure applies"),
			mcp.Properties(scopeProperties()),
		),
	)
}

// Handle processes the record_failure tool call.
func (t *RecordFailureTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	cause := req.GetString("cause", "")
	avoidance := req.GetString("avoidance", "")
	if cause == "" || avoidance == "" {
		return mcp.NewToolResultError("'cause' and 'avoidance' are required"), nil
	}

	f, err := t.app.Failures.Create(learning.NewFailure{
		Cause:         cause,
		AvoidanceRule: avoidance,
		Severity:      req.GetString("severity", learning.SeverityMinor),
		Scope:         scopeArg(req, "scope"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("record failure: %v", err)), nil
	}
	return jsonResult(f), nil
}

// ReflectTool handles reflect.
type ReflectTool struct {
	app *app.App
}

// NewReflectTool creates a ReflectTool.
func NewReflectTool(a *app.App) *ReflectTool {
	return &ReflectTool{app: a}
}

// Definition returns the MCP tool definition for reflect.
func (t *ReflectTool) Definition() mcp.Tool {
	return mcp.NewTool("reflect",
		mcp.WithDescription(
			"Convert a finalized solution's outcome into learning: success yields a "+
				"pattern, failure yields a failure record, partial yields both at reduced "+
				"confidence. Lessons should follow 'When X, do Y because Z'; non-conforming "+
				"lessons are stored but flagged low quality.",
		),
		mcp.WithString("solution_id", mcp.Required(),
			mcp.Description("Finalized solution id from record_attempt"),
		),
		mcp.WithString("intent", mcp.Required(),
			mcp.Description("Pattern intent (for success/partial outcomes)"),
		),
		mcp.WithString("mechanism",
			mcp.Description("How the approach works"),
		),
		mcp.WithString("root_cause", mcp.Required(),
			mcp.Description("What went wrong (for failure/partial outcomes)"),
		),
		mcp.WithString("lesson", mcp.Required(),
			mcp.Description("The lesson: 'When X, do Y because Z'"),
		),
		mcp.WithNumber("confidence",
			mcp.Description("Base confidence in [0,1] (default: 0.7)"),
		),
		mcp.WithArray("examples",
			mcp.Description("Example snippets, e.g. excerpts of the modified files"),
			mcp.Items(stringItems()),
		),
		mcp.WithObject("scope",
			mcp.Description("Where the learning applies"),
			mcp.Properties(scopeProperties()),
		),
	)
}

// Handle processes the reflect tool call.
func (t *ReflectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	in := learning.ReflectionInput{
		SolutionID: req.GetString("solution_id", ""),
		Intent:     req.GetString("intent", ""),
		Mechanism:  req.GetString("mechanism", ""),
		RootCause:  req.GetString("root_cause", ""),
		Lesson:     req.GetString("lesson", ""),
		Confidence: floatArg(req, "confidence", 0.7),
		Examples:   stringListArg(req, "examples"),
		Scope:      scopeArg(req, "scope"),
	}
	if in.SolutionID == "" || in.Lesson == "" {
		return mcp.NewToolResultError("'solution_id' and 'lesson' are required"), nil
	}

	result, err := learning.Reflect(in, t.app.Lineage, t.app.Patterns, t.app.Failures)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reflect: %v", err)), nil
	}
	return jsonResult(result), nil
}
