package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rxtech-lab/contractgen/internal/mcp"
	"github.com/rxtech-lab/contractgen/internal/metrics"
	"github.com/rxtech-lab/contractgen/internal/services"
	"github.com/rxtech-lab/contractgen/internal/utils"
	"github.com/rxtech-lab/contractgen/internal/wallet"
	"go.uber.org/zap"
)

// DefaultConnectTimeout bounds how long a connect request waits for the wallet page.
const DefaultConnectTimeout = 2 * time.Minute

// ServerOptions are the optional collaborators of the API server.
type ServerOptions struct {
	WalletName     string
	ConnectTimeout time.Duration
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type APIServer struct {
	app               *fiber.App
	store             *services.SessionStore
	bridge            *wallet.Bridge
	deploymentService services.DeploymentService
	mcpServer         *mcp.MCPServer

	walletName     string
	connectTimeout time.Duration
	gatherer       prometheus.Gatherer
	metrics        *metrics.Metrics
	logger         *zap.Logger

	// deploys run on baseCtx so they outlive the request that started them
	baseCtx context.Context
	cancel  context.CancelFunc
	port    int
}

func NewAPIServer(store *services.SessionStore, bridge *wallet.Bridge, deploymentService services.DeploymentService, opts ServerOptions) *APIServer {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	if opts.WalletName == "" {
		opts.WalletName = wallet.DefaultWalletName
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	server := &APIServer{
		app:               app,
		store:             store,
		bridge:            bridge,
		deploymentService: deploymentService,
		walletName:        opts.WalletName,
		connectTimeout:    opts.ConnectTimeout,
		gatherer:          opts.Gatherer,
		metrics:           opts.Metrics,
		logger:            opts.Logger.Named("api"),
		baseCtx:           baseCtx,
		cancel:            cancel,
	}

	// Add middleware
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(server.observeRequest)

	server.setupRoutes()
	return server
}

func (s *APIServer) setupRoutes() {
	// Generation screen
	s.app.Post("/api/generations", s.handleCreateGeneration)
	s.app.Get("/api/generations/:id", s.handleGetGeneration)
	s.app.Post("/api/generations/:id/generate", s.handleGenerate)
	s.app.Get("/api/generations/:id/download", s.handleDownload)
	s.app.Post("/api/generations/:id/handoff", s.handleHandoff)
	s.app.Delete("/api/generations/:id", s.handleCloseGeneration)

	// Deployment screen
	s.app.Post("/api/deployments", s.handleCreateDeployment)
	s.app.Get("/api/deployments", s.handleListDeployments)
	s.app.Get("/api/deployments/:id", s.handleGetDeployment)
	s.app.Post("/api/deployments/:id/deploy", s.handleDeploy)
	s.app.Delete("/api/deployments/:id", s.handleCloseDeployment)

	// Wallet bridge
	s.app.Get("/wallet", s.handleWalletPage)
	s.app.Get("/api/wallet", s.handleGetWallet)
	s.app.Get("/api/wallet/address", s.handleWalletAddress)
	s.app.Post("/api/wallet/connect", s.handleConnectWallet)
	s.app.Post("/api/wallet/announce", s.handleAnnounceWallet)
	s.app.Post("/api/wallet/disconnect", s.handleDisconnectWallet)
	s.app.Get("/api/wallet/requests", s.handleListWalletRequests)
	s.app.Post("/api/wallet/requests/:id", s.handleResolveWalletRequest)

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	// Health check
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
}

// EnableStreamableHttp serves the MCP server over streamable HTTP at /mcp.
// SetMCPServer must be called first.
func (s *APIServer) EnableStreamableHttp() {
	if s.mcpServer == nil {
		s.logger.Warn("Streamable HTTP requested without an MCP server")
		return
	}
	var handler http.Handler = s.mcpServer.StreamableHTTPHandler()
	s.app.All("/mcp", adaptor.HTTPHandler(handler))
	s.app.All("/mcp/*", adaptor.HTTPHandler(handler))
}

// Start starts the server on port, or on a random available port when port is nil.
func (s *APIServer) Start(port *int) (int, error) {
	if port != nil {
		s.port = *port
	} else {
		free, err := utils.FreePort()
		if err != nil {
			return 0, err
		}
		s.port = free
	}

	go func() {
		if err := s.app.Listen(fmt.Sprintf(":%d", s.port)); err != nil {
			s.logger.Error("Error starting API server", zap.Error(err))
		}
	}()

	return s.port, nil
}

// Shutdown stops the listener and cancels deploys still in flight.
func (s *APIServer) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}

func (s *APIServer) GetPort() int {
	return s.port
}

func (s *APIServer) GetFiberApp() *fiber.App {
	return s.app
}

// SetMCPServer sets the MCP server instance for accessing MCP methods
func (s *APIServer) SetMCPServer(mcpServer *mcp.MCPServer) {
	s.mcpServer = mcpServer
}

// GetMCPServer returns the MCP server instance
func (s *APIServer) GetMCPServer() *mcp.MCPServer {
	return s.mcpServer
}

func (s *APIServer) observeRequest(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
	}
	s.metrics.ObserveHTTPRequest(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start).Seconds())
	return err
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	if err == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrEmptyPrompt):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, wallet.ErrRequestNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrWalletNotConnected),
		errors.Is(err, wallet.ErrNotConnected),
		errors.Is(err, services.ErrDeployInProgress),
		errors.Is(err, services.ErrSessionClosed):
		status = fiber.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusGatewayTimeout
	}
	return c.Status(status).JSON(map[string]string{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(map[string]string{"error": message})
}
