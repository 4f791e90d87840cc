package server

import (
	"context"
	"fmt"

	"github.com/andres-erbsen/clock"
	"github.com/rxtech-lab/contractgen/internal/aptos"
	"github.com/rxtech-lab/contractgen/internal/config"
	"github.com/rxtech-lab/contractgen/internal/evm"
	"github.com/rxtech-lab/contractgen/internal/hooks"
	"github.com/rxtech-lab/contractgen/internal/llm"
	"github.com/rxtech-lab/contractgen/internal/metrics"
	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
	"github.com/rxtech-lab/contractgen/internal/wallet"
	"go.uber.org/zap"
)

// Services is everything the API and MCP servers need.
type Services struct {
	DB                services.DBService
	DeploymentService services.DeploymentService
	HookService       services.HookService
	EvmService        services.EvmService
	Chains            *services.ChainProviders
	Bridge            *wallet.Bridge
	Store             *services.SessionStore
}

// Close stops every deployment session and closes the database.
func (s *Services) Close() error {
	s.Store.Close()
	return s.DB.Close()
}

// InitializeDatabase opens postgres when DATABASE_URL is set and SQLite otherwise.
func InitializeDatabase(cfg config.Config) (services.DBService, error) {
	if cfg.DatabaseURL != "" {
		return services.NewPostgresDBService(cfg.DatabaseURL)
	}
	return services.NewSqliteDBService(cfg.DatabasePath)
}

// InitializeChains registers Aptos as the fallback provider and dials the
// configured EVM chains.
func InitializeChains(ctx context.Context, cfg config.Config, evmService services.EvmService, logger *zap.Logger) (*services.ChainProviders, error) {
	aptosProvider, err := aptos.NewProvider(cfg.AptosNodeURL, aptos.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	chains := services.NewChainProviders(aptosProvider)
	chains.Register(models.ChainAptos, aptosProvider)

	rpcURLs := map[models.Chain]string{
		models.ChainPolygon:  cfg.PolygonRPCURL,
		models.ChainEthereum: cfg.EthereumRPCURL,
	}
	for _, chain := range models.SupportedChains {
		rpcURL := rpcURLs[chain]
		if !chain.IsEVM() || rpcURL == "" {
			continue
		}
		provider, err := evm.Dial(ctx, chain, rpcURL, evmService, evm.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", chain, err)
		}
		chains.Register(chain, provider)
		logger.Info("Registered EVM chain", zap.String("chain", chain.String()))
	}
	return chains, nil
}

func InitializeServices(ctx context.Context, cfg config.Config, db services.DBService, logger *zap.Logger, m *metrics.Metrics) (*Services, error) {
	provider, err := llm.NewGeminiProvider(ctx, llm.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completion provider: %w", err)
	}

	evmService := services.NewEvmService(cfg.SolcVersion)
	chains, err := InitializeChains(ctx, cfg, evmService, logger)
	if err != nil {
		return nil, err
	}

	deploymentService := services.NewDeploymentService(db.GetDB())
	hookService := services.NewHookService()
	if err := RegisterHooks(hookService, InitializeHooks(deploymentService)...); err != nil {
		return nil, err
	}

	clk := clock.New()
	bridge := wallet.NewBridge(clk, logger, m)
	store := services.NewSessionStore(provider, services.DeploymentDeps{
		Wallet:       bridge,
		Chains:       chains,
		Hooks:        hookService,
		Clock:        clk,
		GasInterval:  cfg.GasPollInterval,
		GasGenerator: services.DefaultGasEstimate,
		Logger:       logger,
		Metrics:      m,
	})

	return &Services{
		DB:                db,
		DeploymentService: deploymentService,
		HookService:       hookService,
		EvmService:        evmService,
		Chains:            chains,
		Bridge:            bridge,
		Store:             store,
	}, nil
}

func InitializeHooks(deploymentService services.DeploymentService) []services.Hook {
	return []services.Hook{
		hooks.NewDeploymentRecordHook(deploymentService),
	}
}

func RegisterHooks(hookService services.HookService, registered ...services.Hook) error {
	for _, hook := range registered {
		if err := hookService.AddHook(hook); err != nil {
			return fmt.Errorf("failed to register hook: %w", err)
		}
	}
	return nil
}
