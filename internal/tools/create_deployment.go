package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
	"github.com/rxtech-lab/contractgen/internal/utils"
)

type createDeploymentTool struct {
	store      *services.SessionStore
	publicURL  string
	serverPort int
}

type CreateDeploymentArguments struct {
	GenerationID string `json:"generation_id,omitempty"`
	Contract     string `json:"contract,omitempty"`
	Chain        string `json:"chain,omitempty"`
}

func NewCreateDeploymentTool(store *services.SessionStore, publicURL string, serverPort int) *createDeploymentTool {
	return &createDeploymentTool{
		store:      store,
		publicURL:  publicURL,
		serverPort: serverPort,
	}
}

func (c *createDeploymentTool) GetTool() mcp.Tool {
	tool := mcp.NewTool("create_deployment",
		mcp.WithDescription("Open a deployment session. Pass generation_id to deploy the result of generate_contract, or contract and chain to deploy your own code. Returns the deployment id and the wallet page URL the user must keep open to sign."),
		mcp.WithString("generation_id",
			mcp.Description("ID returned by generate_contract"),
		),
		mcp.WithString("contract",
			mcp.Description("Contract source, optionally wrapped in a markdown code fence. Ignored when generation_id is set"),
		),
		mcp.WithString("chain",
			mcp.Description("Target blockchain: Aptos, Polygon or Ethereum. Defaults to Aptos. Ignored when generation_id is set"),
		),
	)

	return tool
}

func (c *createDeploymentTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args CreateDeploymentArguments
		if err := request.BindArguments(&args); err != nil {
			return nil, fmt.Errorf("failed to bind arguments: %w", err)
		}

		var session *services.DeploymentSession
		if args.GenerationID != "" {
			handedOff, err := c.store.Handoff(args.GenerationID)
			if errors.Is(err, services.ErrSessionNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("Generation %s not found", args.GenerationID)), nil
			}
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to hand off generation: %v", err)), nil
			}
			session = handedOff
		} else {
			chain, err := models.ParseChain(args.Chain)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Invalid chain: %v", err)), nil
			}
			session = c.store.OpenDeployment(&services.Handoff{Contract: args.Contract, Chain: chain})
		}

		url, err := utils.GetWalletPageUrl(c.publicURL, c.serverPort)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to build wallet page url: %v", err)), nil
		}

		snapshot := session.Snapshot()
		result := map[string]any{
			"deployment_id": snapshot.ID,
			"chain":         snapshot.Chain,
			"language":      snapshot.CodeBlock.Language,
			"wallet":        snapshot.Wallet,
			"wallet_url":    url,
		}

		resultJSON, _ := json.Marshal(result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("Deployment session created. Open the wallet page to connect and sign: "),
				mcp.NewTextContent(string(resultJSON)),
			},
		}, nil
	}
}
