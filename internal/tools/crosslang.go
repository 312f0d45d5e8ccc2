package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/websines/codegraph-mcp/internal/app"
)

// InferCrossEdgesTool handles infer_cross_edges.
type InferCrossEdgesTool struct {
	app *app.App
}

// NewInferCrossEdgesTool creates an InferCrossEdgesTool.
func NewInferCrossEdgesTool(a *app.App) *InferCrossEdgesTool {
	return &InferCrossEdgesTool{app: a}
}

// Definition returns the MCP tool definition for infer_cross_edges.
func (t *InferCrossEdgesTool) Definition() mcp.Tool {
	return mcp.NewTool("infer_cross_edges",
		mcp.WithDescription(
			"Infer client-to-server API connections across language boundaries by "+
				"matching fetch/axios calls against route registrations and GraphQL "+
				"operations against resolvers.",
		),
		mcp.WithBoolean("rebuild",
			mcp.Description("Drop previously inferred edges first (default: false)"),
		),
	)
}

// Handle processes the infer_cross_edges tool call.
func (t *InferCrossEdgesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}
	if !t.app.Config().Settings.CrossLanguage.Enabled {
		return mcp.NewToolResultText("Cross-language inference is disabled in config.toml."), nil
	}

	unlock := t.app.LockWrites()
	stats, err := t.app.Inferrer.Infer(boolArg(req, "rebuild", false))
	unlock()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("infer cross edges: %v", err)), nil
	}
	return jsonResult(stats), nil
}

// APIConnectionsTool handles get_api_connections.
type APIConnectionsTool struct {
	app *app.App
}

// NewAPIConnectionsTool creates an APIConnectionsTool.
func NewAPIConnectionsTool(a *app.App) *APIConnectionsTool {
	return &APIConnectionsTool{app: a}
}

// Definition returns the MCP tool definition for get_api_connections.
func (t *APIConnectionsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_api_connections",
		mcp.WithDescription(
			"List inferred API connections, optionally filtered to those touching one file.",
		),
		mcp.WithString("file",
			mcp.Description("Repository-relative path to filter by (client or server side)"),
		),
	)
}

// Handle processes the get_api_connections tool call.
func (t *APIConnectionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	connections, err := t.app.Inferrer.Connections(req.GetString("file", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get api connections: %v", err)), nil
	}
	if len(connections) == 0 {
		return mcp.NewToolResultText("No API connections inferred. Run infer_cross_edges first."), nil
	}
	return jsonResult(connections), nil
}
