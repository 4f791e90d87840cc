package main

import (
	"context"
	"flag"
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

// Build information (set via ldflags)
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

func configureAndStartServer(svc *server.Services, cfg config.Config, logger *zap.Logger, m *metrics.Metrics) (*api.APIServer, int, error) {
	// Initialize API server (HTTP server for the wallet page)
	apiServer := api.NewAPIServer(svc.Store, svc.Bridge, svc.DeploymentService, api.ServerOptions{
		WalletName: cfg.WalletName,
		Metrics:    m,
		Logger:     logger,
	})

	// Start API server first to get the actual port
	var portPtr *int
	if cfg.Port != 0 {
		portPtr = &cfg.Port
	}
	startedPort, err := apiServer.Start(portPtr)
	if err != nil {
		return nil, 0, err
	}

	// Now initialize MCP server with the actual port
	mcpServer := mcp.NewMCPServer(svc.Store, svc.DeploymentService, cfg.PublicURL, startedPort)
	apiServer.SetMCPServer(mcpServer)

	return apiServer, startedPort, nil
}

func newLogger(enabled bool) (*zap.Logger, error) {
	if !enabled {
		return zap.NewNop(), nil
	}
	// production config writes to stderr, stdout carries MCP
	return zap.NewProductionConfig().Build()
}

func main() {
	// Command line flags
	var showVersion = flag.Bool("version", false, "Show version information")
	var showHelp = flag.Bool("help", false, "Show help information")
	var enableLog = flag.Bool("log", false, "Enable logging output")
	flag.Parse()

	// Show version information
	if *showVersion {
		fmt.Fprintf(os.Stderr, "Contract Generator MCP Server\n")
		fmt.Fprintf(os.Stderr, "Version: %s\n", Version)
		fmt.Fprintf(os.Stderr, "Commit: %s\n", CommitHash)
		fmt.Fprintf(os.Stderr, "Built: %s\n", BuildTime)
		return
	}

	if *showHelp {
		fmt.Fprintf(os.Stderr, "Contract Generator MCP Server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		fmt.Fprintf(os.Stderr, "  --version    Show version information\n")
		fmt.Fprintf(os.Stderr, "  --help       Show this help message\n")
		fmt.Fprintf(os.Stderr, "  --log        Enable logging output\n\n")
		fmt.Fprintf(os.Stderr, "Description:\n")
		fmt.Fprintf(os.Stderr, "  Generates Move and Solidity contracts with Gemini and deploys them\n")
		fmt.Fprintf(os.Stderr, "  to Aptos, Polygon or Ethereum through the browser wallet.\n\n")
		fmt.Fprintf(os.Stderr, "Database: ~/contractgen.db (SQLite) or DATABASE_URL (postgres)\n")
		fmt.Fprintf(os.Stderr, "Wallet page: http://localhost:[random-port]/wallet\n")
		return
	}

	logger, err := newLogger(*enableLog)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Invalid configuration:", err)
		os.Exit(1)
	}

	// Initialize database
	dbService, err := server.InitializeDatabase(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize database:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	svc, err := server.InitializeServices(ctx, cfg, dbService, logger, m)
	if err != nil {
		dbService.Close()
		fmt.Fprintln(os.Stderr, "Failed to initialize services:", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Configure and start server
	apiServer, port, err := configureAndStartServer(svc, cfg, logger, m)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to start API server:", err)
		os.Exit(1)
	}

	walletURL, _ := utils.GetWalletPageUrl(cfg.PublicURL, port)
	logger.Info("API server started", zap.Int("port", port), zap.String("wallet_url", walletURL))

	// Start MCP server over stdio in a goroutine
	go func() {
		if err := apiServer.GetMCPServer().Start(); err != nil {
			logger.Error("MCP server stopped", zap.Error(err))
		}
		stop()
	}()

	<-ctx.Done()
	logger.Info("Shutting down servers")

	// Shutdown API server
	if err := apiServer.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Error shutting down API server: %v\n", err)
	}
}
