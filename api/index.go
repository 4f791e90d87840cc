package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rxtech-lab/contractgen/internal/api"
	"github.com/rxtech-lab/contractgen/internal/config"
	"github.com/rxtech-lab/contractgen/internal/server"
	"go.uber.org/zap"
)

var (
	apiServer *api.APIServer
	initOnce  sync.Once
	initErr   error
)

// Handler is the main Vercel function handler
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		initErr = initializeAPIServer(r.Context())
	})
	if initErr != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	adaptor.FiberApp(apiServer.GetFiberApp())(w, r)
}

// initializeAPIServer builds the API server from the environment. Sessions live
// in the function instance, so deploys need a warm instance.
func initializeAPIServer(ctx context.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// In Vercel only /tmp is writable
	if os.Getenv("VERCEL") == "1" && os.Getenv("DATABASE_URL") == "" && os.Getenv("DATABASE_PATH") == "" {
		os.Setenv("DATABASE_PATH", "/tmp/contractgen.db")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dbService, err := server.InitializeDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	svc, err := server.InitializeServices(context.WithoutCancel(ctx), cfg, dbService, logger, nil)
	if err != nil {
		dbService.Close()
		return err
	}

	apiServer = api.NewAPIServer(svc.Store, svc.Bridge, svc.DeploymentService, api.ServerOptions{
		WalletName: cfg.WalletName,
		Logger:     logger,
	})

	// Add a root route for Vercel
	apiServer.GetFiberApp().Get("/", func(c *fiber.Ctx) error {
		return c.JSON(map[string]interface{}{
			"message": "contractgen API",
			"status":  "running",
			"version": "1.0.0",
		})
	})

	return nil
}
