// Package tools provides the MCP tool handlers.
//
// Each tool follows the same pattern: a struct holding the shared app
// runtime, Definition() returning the mcp.Tool schema, and Handle()
// processing the request. Handlers return user errors via
// mcp.NewToolResultError; only transport-level problems surface as Go
// errors.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/websines/codegraph-mcp/internal/app"
	"github.com/websines/codegraph-mcp/internal/learning"
)

// ready initializes the app on first use, converting an init failure into a
// tool error result.
func ready(a *app.App) *mcp.CallToolResult {
	if err := a.Init(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("initialization failed: %v", err))
	}
	return nil
}

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// floatArg extracts a float argument.
func floatArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return v
}

// boolArg extracts a boolean argument.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringListArg extracts a []string argument. Missing keys return nil;
// present-but-empty arrays return an empty slice, which matters for
// replace-semantics callers like set_context.
func stringListArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// scopeArg decodes a {files: [...], tags: [...]} object argument.
func scopeArg(req mcp.CallToolRequest, key string) learning.Scope {
	raw, ok := req.GetArguments()[key].(map[string]any)
	if !ok {
		return learning.Scope{}
	}
	return learning.Scope{
		Files: anySlice(raw["files"]),
		Tags:  anySlice(raw["tags"]),
	}
}

// queryArg decodes the same shape as scopeArg into a recall query.
func queryArg(req mcp.CallToolRequest, key string) learning.Query {
	s := scopeArg(req, key)
	return learning.Query{Files: s.Files, Tags: s.Tags}
}

// metricsArg decodes a flat {name: number} object.
func metricsArg(req mcp.CallToolRequest, key string) map[string]float64 {
	raw, ok := req.GetArguments()[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out
}

func anySlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// jsonResult renders a value as an indented JSON text result.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// scopeProperties is the shared schema for scope/query object arguments.
func scopeProperties() map[string]any {
	return map[string]any{
		"files": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "File globs (doublestar syntax: **, *, {a,b})",
		},
		"tags": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Free-form tags",
		},
	}
}

// stringItems is the items schema for string-array arguments.
func stringItems() map[string]any {
	return map[string]any{"type": "string"}
}
