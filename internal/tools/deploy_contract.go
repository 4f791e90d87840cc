package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/contractgen/internal/services"
	"github.com/rxtech-lab/contractgen/internal/utils"
)

type deployContractTool struct {
	store      *services.SessionStore
	publicURL  string
	serverPort int
}

type DeploymentIDArguments struct {
	DeploymentID string `json:"deployment_id" validate:"required"`
}

func NewDeployContractTool(store *services.SessionStore, publicURL string, serverPort int) *deployContractTool {
	return &deployContractTool{
		store:      store,
		publicURL:  publicURL,
		serverPort: serverPort,
	}
}

func (d *deployContractTool) GetTool() mcp.Tool {
	tool := mcp.NewTool("deploy_contract",
		mcp.WithDescription("Deploy the contract of a deployment session. Blocks until the user signs in the wallet page and the transaction is confirmed or fails."),
		mcp.WithString("deployment_id",
			mcp.Required(),
			mcp.Description("ID returned by create_deployment"),
		),
	)

	return tool
}

func (d *deployContractTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args DeploymentIDArguments
		if err := request.BindArguments(&args); err != nil {
			return nil, fmt.Errorf("failed to bind arguments: %w", err)
		}

		if err := validator.New().Struct(args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		session, err := d.store.Deployment(args.DeploymentID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Deployment %s not found", args.DeploymentID)), nil
		}

		outcome, err := session.Deploy(ctx)
		if errors.Is(err, services.ErrWalletNotConnected) {
			url, urlErr := utils.GetWalletPageUrl(d.publicURL, d.serverPort)
			if urlErr != nil {
				return mcp.NewToolResultError(services.NoticeConnectWallet), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("%s Open %s and connect.", services.NoticeConnectWallet, url)), nil
		}
		if err != nil && outcome.Status == "" {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to deploy: %v", err)), nil
		}

		result := map[string]any{
			"deployment_id": session.ID,
			"status":        outcome.Status,
			"hash":          outcome.Hash,
			"error":         outcome.Error,
		}
		resultJSON, _ := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(string(resultJSON)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("Deployment confirmed: "),
				mcp.NewTextContent(string(resultJSON)),
			},
		}, nil
	}
}
