package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
)

func NewListDeploymentsTool(deploymentService services.DeploymentService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_deployments",
		mcp.WithDescription("List the history of deploy attempts, newest first, with status, transaction hash and error."),
		mcp.WithString("status",
			mcp.Description("Filter by status (pending, confirmed, failed). Leave empty to get all deployments"),
		),
		mcp.WithString("chain",
			mcp.Description("Filter by blockchain (Aptos, Polygon, Ethereum). Leave empty to get deployments from all chains"),
		),
		mcp.WithString("limit",
			mcp.Description("Maximum number of deployments to return (default: 10, max: 100)"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := request.GetString("status", "")
		chainName := request.GetString("chain", "")

		limit, err := strconv.Atoi(request.GetString("limit", "10"))
		if err != nil || limit < 1 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		var deployments []models.Deployment
		if chainName != "" {
			chain, err := models.ParseChain(chainName)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Invalid chain: %v", err)), nil
			}
			deployments, err = deploymentService.ListDeploymentsByChain(chain)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Error retrieving deployments: %v", err)), nil
			}
		} else {
			deployments, err = deploymentService.ListDeployments()
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Error retrieving deployments: %v", err)), nil
			}
		}

		filtered := make([]models.Deployment, 0, len(deployments))
		for _, deployment := range deployments {
			if status != "" && string(deployment.Status) != status {
				continue
			}
			filtered = append(filtered, deployment)
			if len(filtered) == limit {
				break
			}
		}

		result := map[string]any{
			"deployments": filtered,
			"count":       len(filtered),
		}
		resultJSON, _ := json.Marshal(result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("Deployments: "),
				mcp.NewTextContent(string(resultJSON)),
			},
		}, nil
	}

	return tool, handler
}
