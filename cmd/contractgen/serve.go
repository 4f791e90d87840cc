package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rxtech-lab/contractgen/internal/api"
	"github.com/rxtech-lab/contractgen/internal/config"
	"github.com/rxtech-lab/contractgen/internal/mcp"
	"github.com/rxtech-lab/contractgen/internal/metrics"
	"github.com/rxtech-lab/contractgen/internal/server"
	"github.com/rxtech-lab/contractgen/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveMCP bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the wallet page and the MCP endpoint",
	Long: `Starts the HTTP API on PORT (a random port when unset). Open the printed
wallet page in a browser with your wallet extension to connect and sign.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", true, "Serve MCP over streamable HTTP at /mcp")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := server.InitializeDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	svc, err := server.InitializeServices(ctx, cfg, db, logger, m)
	if err != nil {
		db.Close()
		return err
	}
	defer svc.Close()

	apiServer := api.NewAPIServer(svc.Store, svc.Bridge, svc.DeploymentService, api.ServerOptions{
		WalletName: cfg.WalletName,
		Metrics:    m,
		Logger:     logger,
	})

	var port *int
	if cfg.Port != 0 {
		port = &cfg.Port
	}
	if serveMCP {
		// the MCP tools need the final port for wallet links
		if port == nil {
			free, err := utils.FreePort()
			if err != nil {
				return err
			}
			port = &free
		}
		apiServer.SetMCPServer(mcp.NewMCPServer(svc.Store, svc.DeploymentService, cfg.PublicURL, *port))
		apiServer.EnableStreamableHttp()
	}

	startedPort, err := apiServer.Start(port)
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	walletURL, err := utils.GetWalletPageUrl(cfg.PublicURL, startedPort)
	if err != nil {
		return err
	}
	logger.Info("API server started", zap.Int("port", startedPort))
	fmt.Fprintf(cmd.OutOrStdout(), "Wallet page: %s\n", walletURL)

	<-ctx.Done()
	logger.Info("Shutting down server")
	return shutdown(apiServer)
}

func shutdown(apiServer *api.APIServer) error {
	if err := apiServer.Shutdown(); err != nil {
		return fmt.Errorf("error shutting down API server: %w", err)
	}
	return nil
}
