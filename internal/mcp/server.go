package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/contractgen/internal/services"
	"github.com/rxtech-lab/contractgen/internal/tools"
)

type MCPServer struct {
	server *server.MCPServer
}

// NewMCPServer registers the contractgen tools. publicURL and serverPort are
// used to point the user at the wallet page.
func NewMCPServer(store *services.SessionStore, deploymentService services.DeploymentService, publicURL string, serverPort int) *MCPServer {
	mcpServer := &MCPServer{}
	mcpServer.InitializeTools(store, deploymentService, publicURL, serverPort)
	return mcpServer
}

func (s *MCPServer) InitializeTools(store *services.SessionStore, deploymentService services.DeploymentService, publicURL string, serverPort int) {
	srv := server.NewMCPServer(
		"Contract Generator MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv.AddPrompt(mcp.NewPrompt("contractgen-usage",
		mcp.WithPromptDescription("Instructions and guidance for using contractgen MCP tools"),
		mcp.WithArgument("tool_category",
			mcp.ArgumentDescription("Category of tools to get instructions for (generation, deployment, or all)"),
			mcp.RequiredArgument(),
		),
	), func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		category := request.Params.Arguments["tool_category"]
		if category == "" {
			return nil, fmt.Errorf("tool_category is required")
		}

		return mcp.NewGetPromptResult(
			fmt.Sprintf("Contractgen MCP Tools - %s", category),
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(
					mcp.RoleUser,
					mcp.NewTextContent(getToolInstructions(category)),
				),
			},
		), nil
	})

	// Generation Tools
	generateContractTool := tools.NewGenerateContractTool(store)
	srv.AddTool(generateContractTool.GetTool(), generateContractTool.GetHandler())

	// Deployment Tools
	createDeploymentTool := tools.NewCreateDeploymentTool(store, publicURL, serverPort)
	srv.AddTool(createDeploymentTool.GetTool(), createDeploymentTool.GetHandler())

	deployContractTool := tools.NewDeployContractTool(store, publicURL, serverPort)
	srv.AddTool(deployContractTool.GetTool(), deployContractTool.GetHandler())

	getDeploymentTool := tools.NewGetDeploymentTool(store)
	srv.AddTool(getDeploymentTool.GetTool(), getDeploymentTool.GetHandler())

	listDeploymentsTool, listDeploymentsHandler := tools.NewListDeploymentsTool(deploymentService)
	srv.AddTool(listDeploymentsTool, listDeploymentsHandler)

	s.server = srv
}

func getToolInstructions(category string) string {
	switch category {
	case "generation":
		return `Generation Tools:

1. generate_contract - Generate a smart contract from a prompt
   Usage: Aptos contracts are written in Move, Polygon and Ethereum contracts in Solidity.
   Returns a generation_id for create_deployment.`

	case "deployment":
		return `Deployment Tools:

1. create_deployment - Open a deployment session from a generation or from your own code
   Usage: Returns a deployment_id and the wallet page URL. Ask the user to open it and connect.

2. deploy_contract - Deploy the session's contract
   Usage: Blocks until the user signs in the wallet page and the transaction lands.

3. get_deployment - Read gas estimate, wallet connection and deploy outcome

4. list_deployments - List the history of deploy attempts`

	case "all":
		return `Contractgen MCP Tools Overview:

GENERATION (1 tool):
- generate_contract: Generate Move or Solidity code from a prompt

DEPLOYMENT (4 tools):
- create_deployment: Open a deployment session
- deploy_contract: Sign and submit through the wallet page
- get_deployment: Read the session state
- list_deployments: View past deploy attempts

Signing always happens in the user's browser wallet. No private keys are handled by the server.`

	default:
		return `Invalid category. Available categories: generation, deployment, all`
	}
}

// Start serves MCP over stdio until stdin closes.
func (s *MCPServer) Start() error {
	return server.ServeStdio(s.server)
}

// StreamableHTTPHandler serves MCP over streamable HTTP.
func (s *MCPServer) StreamableHTTPHandler() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.server)
}

func (s *MCPServer) GetServer() *server.MCPServer {
	return s.server
}
