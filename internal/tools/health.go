package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/aidev/internal/store"
)

// HealthTool reports server and database health over the stdio
// transport, mirroring the HTTP /health endpoint.
type HealthTool struct {
	store   *store.Store
	version string
}

func NewHealthTool(st *store.Store, version string) *HealthTool {
	return &HealthTool{store: st, version: version}
}

// Definition returns the MCP tool definition for registration.
func (t *HealthTool) Definition() mcp.Tool {
	return mcp.NewTool("health_check",
		mcp.WithDescription("Check server health and database connectivity."),
	)
}

// Handle processes the health_check tool call.
func (t *HealthTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	database := "connected"
	if err := t.store.Ping(); err != nil {
		database = "disconnected"
	}

	payload, err := json.Marshal(map[string]string{
		"status":   "healthy",
		"version":  t.version,
		"database": database,
	})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}
