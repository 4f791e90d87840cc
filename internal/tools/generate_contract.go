package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
)

type generateContractTool struct {
	store *services.SessionStore
}

type GenerateContractArguments struct {
	Prompt string `json:"prompt" validate:"required"`
	Chain  string `json:"chain,omitempty"`
}

func NewGenerateContractTool(store *services.SessionStore) *generateContractTool {
	return &generateContractTool{store: store}
}

func (g *generateContractTool) GetTool() mcp.Tool {
	tool := mcp.NewTool("generate_contract",
		mcp.WithDescription("Generate a smart contract from a natural language prompt. Aptos contracts are written in Move, Polygon and Ethereum contracts in Solidity. Returns the generation session id, the full response and the extracted code block."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Description of the contract to generate (e.g., 'a counter that only the owner can increment')"),
		),
		mcp.WithString("chain",
			mcp.Description("Target blockchain: Aptos, Polygon or Ethereum. Defaults to Aptos"),
		),
	)

	return tool
}

func (g *generateContractTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GenerateContractArguments
		if err := request.BindArguments(&args); err != nil {
			return nil, fmt.Errorf("failed to bind arguments: %w", err)
		}

		if err := validator.New().Struct(args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		chain, err := models.ParseChain(args.Chain)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid chain: %v", err)), nil
		}

		session := g.store.CreateGeneration()
		session.SelectChain(chain)
		if err := session.Generate(ctx, args.Prompt, chain, nil); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to generate contract: %v", err)), nil
		}

		snapshot := session.Snapshot()
		result := map[string]any{
			"generation_id": snapshot.ID,
			"chain":         snapshot.Chain,
			"language":      snapshot.CodeBlock.Language,
			"code":          snapshot.CodeBlock.Code,
			"response":      snapshot.Response,
		}

		resultJSON, _ := json.Marshal(result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("Contract generated: "),
				mcp.NewTextContent(string(resultJSON)),
			},
		}, nil
	}
}
