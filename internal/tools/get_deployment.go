package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/contractgen/internal/services"
)

type getDeploymentTool struct {
	store *services.SessionStore
}

func NewGetDeploymentTool(store *services.SessionStore) *getDeploymentTool {
	return &getDeploymentTool{store: store}
}

func (g *getDeploymentTool) GetTool() mcp.Tool {
	tool := mcp.NewTool("get_deployment",
		mcp.WithDescription("Get the state of a deployment session: contract, chain, gas estimate, wallet connection, deploy phase and outcome."),
		mcp.WithString("deployment_id",
			mcp.Required(),
			mcp.Description("ID returned by create_deployment"),
		),
	)

	return tool
}

func (g *getDeploymentTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args DeploymentIDArguments
		if err := request.BindArguments(&args); err != nil {
			return nil, fmt.Errorf("failed to bind arguments: %w", err)
		}

		if err := validator.New().Struct(args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		session, err := g.store.Deployment(args.DeploymentID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Deployment %s not found", args.DeploymentID)), nil
		}

		resultJSON, err := json.Marshal(session.Snapshot())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to encode deployment: %v", err)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}
