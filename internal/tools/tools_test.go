package tools

import (
	"context"
	"encoding/json"
	"iter"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rxtech-lab/contractgen/internal/hooks"
	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
	"github.com/rxtech-lab/contractgen/internal/wallet"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const TOOLS_TEST_SERVER_PORT = 9997

type chunkProvider struct {
	chunks []string
}

func (p *chunkProvider) StartSession(context.Context, string, []services.Turn) (services.CompletionStream, error) {
	return p, nil
}

func (p *chunkProvider) SendAndStream(context.Context, string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, chunk := range p.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

type confirmingChain struct{}

func (confirmingChain) GenerateTransaction(_ context.Context, sender string, payload models.Payload) (models.RawTransaction, error) {
	body, err := json.Marshal(map[string]any{"sender": sender, "payload": payload})
	return models.RawTransaction{Chain: models.ChainAptos, Body: body}, err
}

func (confirmingChain) SubmitTransaction(context.Context, models.SignedTransaction) (string, error) {
	return "0xfeed", nil
}

func (confirmingChain) WaitForTransaction(_ context.Context, hash string) (models.Receipt, error) {
	return models.Receipt{Hash: hash, Success: true}, nil
}

type ToolsTestSuite struct {
	suite.Suite
	db                services.DBService
	bridge            *wallet.Bridge
	store             *services.SessionStore
	deploymentService services.DeploymentService
}

func (suite *ToolsTestSuite) SetupTest() {
	db, err := services.NewSqliteDBService(":memory:")
	suite.Require().NoError(err)
	suite.db = db

	suite.deploymentService = services.NewDeploymentService(db.GetDB())
	hookService := services.NewHookService()
	suite.Require().NoError(hookService.AddHook(hooks.NewDeploymentRecordHook(suite.deploymentService)))

	clk := clock.NewMock()
	suite.bridge = wallet.NewBridge(clk, zap.NewNop(), nil)
	provider := &chunkProvider{chunks: []string{"```move\n", "module 0x1::counter {}\n", "```"}}
	suite.store = services.NewSessionStore(provider, services.DeploymentDeps{
		Wallet:       suite.bridge,
		Chains:       services.NewChainProviders(confirmingChain{}),
		Hooks:        hookService,
		Clock:        clk,
		GasInterval:  services.DefaultGasInterval,
		GasGenerator: services.DefaultGasEstimate,
		Logger:       zap.NewNop(),
	})
}

func (suite *ToolsTestSuite) TearDownTest() {
	suite.store.Close()
	suite.Require().NoError(suite.db.Close())
}

func callRequest(arguments map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: arguments,
		},
	}
}

func (suite *ToolsTestSuite) lastJSON(result *mcp.CallToolResult) map[string]any {
	suite.Require().NotEmpty(result.Content)
	text, ok := result.Content[len(result.Content)-1].(mcp.TextContent)
	suite.Require().True(ok)

	var decoded map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(text.Text), &decoded))
	return decoded
}

func (suite *ToolsTestSuite) errorText(result *mcp.CallToolResult) string {
	suite.Require().True(result.IsError)
	suite.Require().NotEmpty(result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	suite.Require().True(ok)
	return text.Text
}

func (suite *ToolsTestSuite) generate() string {
	handler := NewGenerateContractTool(suite.store).GetHandler()
	result, err := handler(context.Background(), callRequest(map[string]any{"prompt": "a counter"}))
	suite.Require().NoError(err)
	suite.Require().False(result.IsError)
	return suite.lastJSON(result)["generation_id"].(string)
}

func (suite *ToolsTestSuite) TestGenerateContract() {
	handler := NewGenerateContractTool(suite.store).GetHandler()
	result, err := handler(context.Background(), callRequest(map[string]any{"prompt": "a counter", "chain": "aptos"}))
	suite.Require().NoError(err)
	suite.False(result.IsError)

	data := suite.lastJSON(result)
	suite.Equal("Aptos", data["chain"])
	suite.Equal("move", data["language"])
	suite.Equal("module 0x1::counter {}\n", data["code"])
	suite.Equal("```move\nmodule 0x1::counter {}\n```", data["response"])
}

func (suite *ToolsTestSuite) TestGenerateContractRequiresPrompt() {
	handler := NewGenerateContractTool(suite.store).GetHandler()
	result, err := handler(context.Background(), callRequest(map[string]any{}))
	suite.Require().NoError(err)
	suite.Contains(suite.errorText(result), "Invalid arguments")
}

func (suite *ToolsTestSuite) TestGenerateContractRejectsUnknownChain() {
	handler := NewGenerateContractTool(suite.store).GetHandler()
	result, err := handler(context.Background(), callRequest(map[string]any{"prompt": "a counter", "chain": "Dogecoin"}))
	suite.Require().NoError(err)
	suite.Contains(suite.errorText(result), "Invalid chain")
}

func (suite *ToolsTestSuite) TestCreateDeploymentFromGeneration() {
	generationID := suite.generate()

	handler := NewCreateDeploymentTool(suite.store, "", TOOLS_TEST_SERVER_PORT).GetHandler()
	result, err := handler(context.Background(), callRequest(map[string]any{"generation_id": generationID}))
	suite.Require().NoError(err)
	suite.False(result.IsError)

	data := suite.lastJSON(result)
	suite.Equal("http://localhost:9997/wallet", data["wallet_url"])
	suite.Equal("move", data["language"])

	session, err := suite.store.Deployment(data["deployment_id"].(string))
	suite.Require().NoError(err)
	suite.Equal("```move\nmodule 0x1::counter {}\n```", session.Snapshot().Contract)
}

func (suite *ToolsTestSuite) TestCreateDeploymentUnknownGeneration() {
	handler := NewCreateDeploymentTool(suite.store, "", TOOLS_TEST_SERVER_PORT).GetHandler()
	result, err := handler(context.Background(), callRequest(map[string]any{"generation_id": "missing"}))
	suite.Require().NoError(err)
	suite.Contains(suite.errorText(result), "not found")
}

func (suite *ToolsTestSuite) TestCreateDeploymentWithOwnContract() {
	handler := NewCreateDeploymentTool(suite.store, "https://contractgen.example.com", TOOLS_TEST_SERVER_PORT).GetHandler()
	result, err := handler(context.Background(), callRequest(map[string]any{"contract": "contract A {}", "chain": "Polygon"}))
	suite.Require().NoError(err)

	data := suite.lastJSON(result)
	suite.Equal("Polygon", data["chain"])
	suite.Equal("https://contractgen.example.com/wallet", data["wallet_url"])
}

func (suite *ToolsTestSuite) TestDeployContractWithoutWallet() {
	session := suite.store.OpenDeployment(&services.Handoff{Contract: "module 0x1::a {}", Chain: models.ChainAptos})

	handler := NewDeployContractTool(suite.store, "", TOOLS_TEST_SERVER_PORT).GetHandler()
	result, err := handler(context.Background(), callRequest(map[string]any{"deployment_id": session.ID}))
	suite.Require().NoError(err)
	suite.Equal(services.NoticeConnectWallet+" Open http://localhost:9997/wallet and connect.", suite.errorText(result))
}

func (suite *ToolsTestSuite) TestDeployContractConfirms() {
	suite.bridge.Announce("Petra", "0x1", "")
	session := suite.store.OpenDeployment(&services.Handoff{Contract: "module 0x1::a {}", Chain: models.ChainAptos})

	go func() {
		for {
			pending := suite.bridge.Pending()
			if len(pending) > 0 {
				_ = suite.bridge.Resolve(pending[0].ID, wallet.Resolution{Signed: json.RawMessage(`{"bcs":"0x01"}`)})
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	handler := NewDeployContractTool(suite.store, "", TOOLS_TEST_SERVER_PORT).GetHandler()
	result, err := handler(context.Background(), callRequest(map[string]any{"deployment_id": session.ID}))
	suite.Require().NoError(err)
	suite.False(result.IsError)

	data := suite.lastJSON(result)
	suite.Equal("confirmed", data["status"])
	suite.Equal("0xfeed", data["hash"])

	listHandler := func() map[string]any {
		_, handler := NewListDeploymentsTool(suite.deploymentService)
		result, err := handler(context.Background(), callRequest(map[string]any{"status": "confirmed"}))
		suite.Require().NoError(err)
		return suite.lastJSON(result)
	}
	suite.Equal(float64(1), listHandler()["count"])
}

func (suite *ToolsTestSuite) TestDeployContractRejected() {
	suite.bridge.Announce("Petra", "0x1", "")
	session := suite.store.OpenDeployment(&services.Handoff{Contract: "module 0x1::a {}", Chain: models.ChainAptos})

	go func() {
		for {
			pending := suite.bridge.Pending()
			if len(pending) > 0 {
				_ = suite.bridge.Resolve(pending[0].ID, wallet.Resolution{Error: "User rejected the request"})
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	handler := NewDeployContractTool(suite.store, "", TOOLS_TEST_SERVER_PORT).GetHandler()
	result, err := handler(context.Background(), callRequest(map[string]any{"deployment_id": session.ID}))
	suite.Require().NoError(err)
	suite.True(result.IsError)

	var data map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(suite.errorText(result)), &data))
	suite.Equal("failed", data["status"])
	suite.Equal("User rejected the request", data["error"])
}

func (suite *ToolsTestSuite) TestGetDeployment() {
	session := suite.store.OpenDeployment(nil)

	handler := NewGetDeploymentTool(suite.store).GetHandler()
	result, err := handler(context.Background(), callRequest(map[string]any{"deployment_id": session.ID}))
	suite.Require().NoError(err)
	suite.False(result.IsError)

	data := suite.lastJSON(result)
	suite.Equal(session.ID, data["id"])
	suite.Equal("Aptos", data["chain"])
	suite.Equal("idle", data["phase"])
}

func (suite *ToolsTestSuite) TestGetDeploymentNotFound() {
	handler := NewGetDeploymentTool(suite.store).GetHandler()
	result, err := handler(context.Background(), callRequest(map[string]any{"deployment_id": "missing"}))
	suite.Require().NoError(err)
	suite.Contains(suite.errorText(result), "not found")
}

func (suite *ToolsTestSuite) TestListDeploymentsRejectsUnknownChain() {
	_, handler := NewListDeploymentsTool(suite.deploymentService)
	result, err := handler(context.Background(), callRequest(map[string]any{"chain": "Dogecoin"}))
	suite.Require().NoError(err)
	suite.Contains(suite.errorText(result), "Invalid chain")
}

func TestToolsTestSuite(t *testing.T) {
	suite.Run(t, new(ToolsTestSuite))
}
