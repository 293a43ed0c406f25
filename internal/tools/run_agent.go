package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/HendryAvila/aidev/internal/agent"
	"github.com/HendryAvila/aidev/internal/config"
	"github.com/HendryAvila/aidev/internal/llm"
	"github.com/HendryAvila/aidev/internal/protocol"
)

// RunAgentTool runs the full planning workflow for a project in one
// synchronous tool call.
type RunAgentTool struct {
	cfg        config.Config
	dispatcher *protocol.Dispatcher
	logger     *zap.Logger

	// newClient is swapped in tests; the default builds the
	// configured provider.
	newClient func(config.LLM) (llm.Client, error)
}

// NewRunAgentTool creates the run_agent tool. The LLM client is built
// per call so the server starts fine without provider credentials.
func NewRunAgentTool(cfg config.Config, dispatcher *protocol.Dispatcher, logger *zap.Logger) *RunAgentTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunAgentTool{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger,
		newClient:  llm.New,
	}
}

// Definition returns the MCP tool definition for registration.
func (t *RunAgentTool) Definition() mcp.Tool {
	return mcp.NewTool("run_agent",
		mcp.WithDescription(
			"Run the development agent for a project: brainstorm the idea, "+
				"then plan and save phases until the target phase count is reached. "+
				"Returns the project ID and the planned phases.",
		),
		mcp.WithString("project_name",
			mcp.Required(),
			mcp.Description("Name of the project to plan."),
		),
		mcp.WithString("project_description",
			mcp.Description("What the project should do."),
		),
		mcp.WithNumber("max_phases",
			mcp.Description("How many phases to plan. Defaults to the server configuration."),
		),
	)
}

// runAgentResponse is the JSON payload returned to the MCP client.
type runAgentResponse struct {
	Success   bool                `json:"success"`
	ProjectID string              `json:"project_id,omitempty"`
	Phases    []agent.PhaseRecord `json:"phases"`
	Messages  []agent.Message     `json:"messages"`
	Error     string              `json:"error,omitempty"`
}

// Handle processes the run_agent tool call.
func (t *RunAgentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectName := req.GetString("project_name", "")
	if projectName == "" {
		return mcp.NewToolResultError("project_name is required"), nil
	}
	description := req.GetString("project_description", "")
	maxPhases := int(req.GetFloat("max_phases", float64(t.cfg.MaxPhases)))
	if maxPhases < 1 {
		return mcp.NewToolResultError("max_phases must be at least 1"), nil
	}

	client, err := t.newClient(t.cfg.LLM)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to initialize LLM client: %v", err)), nil
	}

	runner := agent.NewRunner(client, agent.NewLocalInvoker(t.dispatcher), maxPhases,
		agent.WithLogger(t.logger))

	t.logger.Info("run_agent started",
		zap.String("project", projectName), zap.Int("max_phases", maxPhases))

	final := runner.Run(ctx, agent.State{
		ProjectName:        projectName,
		ProjectDescription: description,
	})

	payload, err := json.MarshalIndent(runAgentResponse{
		Success:   final.Err == "",
		ProjectID: final.ProjectID,
		Phases:    final.Phases,
		Messages:  final.Messages,
		Error:     final.Err,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding run_agent result: %w", err)
	}

	// A failed run still returns the payload: the partial transcript
	// and any saved phases are useful to the caller.
	return mcp.NewToolResultText(string(payload)), nil
}
