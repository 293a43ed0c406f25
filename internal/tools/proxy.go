// Package tools implements the MCP tool handlers for the stdio
// transport.
//
// Each tool is a struct that receives its dependencies and exposes a
// Definition for registration plus a Handle compatible with mcp-go's
// CallToolRequest signature. The catalog tools are thin proxies: the
// dispatcher does the validation and execution, so the stdio and HTTP
// surfaces behave identically.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/aidev/internal/protocol"
	"github.com/HendryAvila/aidev/internal/registry"
)

// ProxyTool forwards one catalog tool to the dispatcher.
type ProxyTool struct {
	def        registry.Definition
	dispatcher *protocol.Dispatcher
}

// NewProxyTool creates a proxy for the named catalog tool.
func NewProxyTool(def registry.Definition, dispatcher *protocol.Dispatcher) *ProxyTool {
	return &ProxyTool{def: def, dispatcher: dispatcher}
}

// Definition translates the catalog entry into an MCP tool definition.
func (t *ProxyTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.def.Description)}

	required := make(map[string]bool, len(t.def.InputSchema.Required))
	for _, name := range t.def.InputSchema.Required {
		required[name] = true
	}

	for _, field := range t.def.InputSchema.Fields {
		var propOpts []mcp.PropertyOption
		if field.Description != "" {
			propOpts = append(propOpts, mcp.Description(field.Description))
		}
		if required[field.Name] {
			propOpts = append(propOpts, mcp.Required())
		}
		if len(field.Enum) > 0 {
			propOpts = append(propOpts, mcp.Enum(field.Enum...))
		}

		switch field.Type {
		case registry.TypeString:
			opts = append(opts, mcp.WithString(field.Name, propOpts...))
		case registry.TypeInteger, registry.TypeNumber:
			opts = append(opts, mcp.WithNumber(field.Name, propOpts...))
		case registry.TypeBoolean:
			opts = append(opts, mcp.WithBoolean(field.Name, propOpts...))
		case registry.TypeArray:
			opts = append(opts, mcp.WithArray(field.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithObject(field.Name, propOpts...))
		}
	}

	return mcp.NewTool(t.def.Name, opts...)
}

// Handle executes the tool through the dispatcher and renders the
// envelope for the MCP client.
func (t *ProxyTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := t.dispatcher.Execute(t.def.Name, req.GetArguments())
	if !result.Success {
		return mcp.NewToolResultError(result.Error), nil
	}

	payload, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s result: %w", t.def.Name, err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
