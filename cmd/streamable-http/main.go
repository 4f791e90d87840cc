package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload" // Automatically load .env file if present
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rxtech-lab/contractgen/internal/api"
	"github.com/rxtech-lab/contractgen/internal/config"
	"github.com/rxtech-lab/contractgen/internal/mcp"
	"github.com/rxtech-lab/contractgen/internal/metrics"
	"github.com/rxtech-lab/contractgen/internal/server"
	"github.com/rxtech-lab/contractgen/internal/utils"
	"go.uber.org/zap"
)

func configureAndStartServer(svc *server.Services, cfg config.Config, logger *zap.Logger, m *metrics.Metrics) (*api.APIServer, int, error) {
	port := cfg.Port
	if port == 0 {
		free, err := utils.FreePort()
		if err != nil {
			return nil, 0, err
		}
		port = free
	}

	apiServer := api.NewAPIServer(svc.Store, svc.Bridge, svc.DeploymentService, api.ServerOptions{
		WalletName: cfg.WalletName,
		Metrics:    m,
		Logger:     logger,
	})
	apiServer.SetMCPServer(mcp.NewMCPServer(svc.Store, svc.DeploymentService, cfg.PublicURL, port))
	apiServer.EnableStreamableHttp()

	startedPort, err := apiServer.Start(&port)
	if err != nil {
		return nil, 0, err
	}
	return apiServer, startedPort, nil
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	dbService, err := server.InitializeDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database service", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	svc, err := server.InitializeServices(ctx, cfg, dbService, logger, m)
	if err != nil {
		dbService.Close()
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer svc.Close()

	apiServer, startedPort, err := configureAndStartServer(svc, cfg, logger, m)
	if err != nil {
		logger.Fatal("Failed to start API server", zap.Error(err))
	}
	logger.Info("API server started", zap.Int("port", startedPort))

	<-ctx.Done()
	logger.Info("Shutting down server")

	if err := apiServer.Shutdown(); err != nil {
		logger.Error("Error shutting down API server", zap.Error(err))
	}
	logger.Info("Server shut down successfully")
}
