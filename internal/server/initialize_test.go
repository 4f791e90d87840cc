package server

import (
	"context"
	"testing"
	"time"

	"github.com/rxtech-lab/contractgen/internal/aptos"
	"github.com/rxtech-lab/contractgen/internal/config"
	"github.com/rxtech-lab/contractgen/internal/evm"
	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config.Config {
	return config.Config{
		GeminiAPIKey:    "test-key",
		GeminiModel:     "gemini-2.0-flash",
		AptosNodeURL:    aptos.DefaultNodeURL,
		DatabasePath:    ":memory:",
		WalletName:      "Petra",
		GasPollInterval: time.Second,
		SolcVersion:     "0.8.27",
	}
}

func TestInitializeChainsFallsBackToAptos(t *testing.T) {
	chains, err := InitializeChains(context.Background(), testConfig(), services.NewEvmService(""), zap.NewNop())
	require.NoError(t, err)

	for _, chain := range models.SupportedChains {
		provider, err := chains.For(chain)
		require.NoError(t, err)
		assert.IsType(t, &aptos.Provider{}, provider)
	}
}

func TestInitializeChainsRegistersEVM(t *testing.T) {
	cfg := testConfig()
	cfg.PolygonRPCURL = "http://127.0.0.1:8545"

	chains, err := InitializeChains(context.Background(), cfg, services.NewEvmService(""), zap.NewNop())
	require.NoError(t, err)

	polygon, err := chains.For(models.ChainPolygon)
	require.NoError(t, err)
	assert.IsType(t, &evm.Provider{}, polygon)

	ethereum, err := chains.For(models.ChainEthereum)
	require.NoError(t, err)
	assert.IsType(t, &aptos.Provider{}, ethereum)
}

func TestInitializeServices(t *testing.T) {
	cfg := testConfig()
	db, err := InitializeDatabase(cfg)
	require.NoError(t, err)

	svc, err := InitializeServices(context.Background(), cfg, db, zap.NewNop(), nil)
	require.NoError(t, err)
	defer svc.Close()

	session := svc.Store.OpenDeployment(nil)
	assert.Equal(t, models.DefaultChain, session.Snapshot().Chain)
	assert.False(t, svc.Bridge.Connection().Connected)
}

func TestInitializeServicesRequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.GeminiAPIKey = ""
	db, err := InitializeDatabase(cfg)
	require.NoError(t, err)
	defer db.Close()

	_, err = InitializeServices(context.Background(), cfg, db, zap.NewNop(), nil)
	assert.Error(t, err)
}
