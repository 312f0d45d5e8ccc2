package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/websines/codegraph-mcp/internal/app"
	"github.com/websines/codegraph-mcp/internal/skill"
)

// ListNichesTool handles list_niches.
type ListNichesTool struct {
	app *app.App
}

// NewListNichesTool creates a ListNichesTool.
func NewListNichesTool(a *app.App) *ListNichesTool {
	return &ListNichesTool{app: a}
}

// Definition returns the MCP tool definition for list_niches.
func (t *ListNichesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_niches",
		mcp.WithDescription(
			"List solution niches (task-type labels) with each niche's best solution.",
		),
		mcp.WithString("task_type",
			mcp.Description("Filter to one task-type label"),
		),
	)
}

// Handle processes the list_niches tool call.
func (t *ListNichesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	niches, err := t.app.Niches.List(req.GetString("task_type", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list niches: %v", err)), nil
	}
	if len(niches) == 0 {
		return mcp.NewToolResultText("No niches recorded."), nil
	}
	return jsonResult(niches), nil
}

// DistillSkillTool handles distill_project_skill.
type DistillSkillTool struct {
	app *app.App
}

// NewDistillSkillTool creates a DistillSkillTool.
func NewDistillSkillTool(a *app.App) *DistillSkillTool {
	return &DistillSkillTool{app: a}
}

// Definition returns the MCP tool definition for distill_project_skill.
func (t *DistillSkillTool) Definition() mcp.Tool {
	return mcp.NewTool("distill_project_skill",
		mcp.WithDescription(
			"Render SKILL.md under .codegraph/ from high-confidence patterns (Do), "+
				"critical and major failures (Don't), and manual instructions.",
		),
	)
}

// Handle processes the distill_project_skill tool call.
func (t *DistillSkillTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	result, err := skill.Distill(t.app.Config().Dir, t.app.Patterns, t.app.Failures, t.app.Instructions)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("distill skill: %v", err)), nil
	}
	return jsonResult(result), nil
}

// AddInstructionTool handles add_instruction.
type AddInstructionTool struct {
	app *app.App
}

// NewAddInstructionTool creates an AddInstructionTool.
func NewAddInstructionTool(a *app.App) *AddInstructionTool {
	return &AddInstructionTool{app: a}
}

// Definition returns the MCP tool definition for add_instruction.
func (t *AddInstructionTool) Definition() mcp.Tool {
	return mcp.NewTool("add_instruction",
		mcp.WithDescription(
			"Add a manual project instruction that distill_project_skill includes "+
				"alongside the learned guidelines.",
		),
		mcp.WithString("instruction", mcp.Required(),
			mcp.Description("The guideline text"),
		),
		mcp.WithString("category",
			mcp.Description("Grouping label, e.g. architecture, navigation, gotchas (default: general)"),
		),
	)
}

// Handle processes the add_instruction tool call.
func (t *AddInstructionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	text := req.GetString("instruction", "")
	if text == "" {
		return mcp.NewToolResultError("'instruction' is required"), nil
	}

	in, err := t.app.Instructions.Add(text, req.GetString("category", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add instruction: %v", err)), nil
	}
	return jsonResult(in), nil
}

// GetInstructionsTool handles get_project_instructions.
type GetInstructionsTool struct {
	app *app.App
}

// NewGetInstructionsTool creates a GetInstructionsTool.
func NewGetInstructionsTool(a *app.App) *GetInstructionsTool {
	return &GetInstructionsTool{app: a}
}

// Definition returns the MCP tool definition for get_project_instructions.
func (t *GetInstructionsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_project_instructions",
		mcp.WithDescription("List the manual project instructions, grouped by category."),
	)
}

// Handle processes the get_project_instructions tool call.
func (t *GetInstructionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	instructions, err := t.app.Instructions.List()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get instructions: %v", err)), nil
	}
	if len(instructions) == 0 {
		return mcp.NewToolResultText("No instructions recorded."), nil
	}
	return jsonResult(instructions), nil
}
