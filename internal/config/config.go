package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/contractgen/internal/aptos"
	"github.com/rxtech-lab/contractgen/internal/llm"
	"github.com/rxtech-lab/contractgen/internal/services"
	"github.com/rxtech-lab/contractgen/internal/utils"
	"github.com/rxtech-lab/contractgen/internal/wallet"
)

// Config is the runtime configuration read from the environment.
type Config struct {
	GeminiAPIKey string `validate:"required"`
	GeminiModel  string `validate:"required"`

	AptosNodeURL   string `validate:"required,url"`
	PolygonRPCURL  string `validate:"omitempty,url"`
	EthereumRPCURL string `validate:"omitempty,url"`

	// DatabaseURL selects postgres; otherwise SQLite at DatabasePath is used.
	DatabaseURL  string
	DatabasePath string `validate:"required_without=DatabaseURL"`

	// Port 0 picks a random free port.
	Port            int           `validate:"gte=0,lte=65535"`
	PublicURL       string        `validate:"omitempty,url"`
	WalletName      string        `validate:"required"`
	GasPollInterval time.Duration `validate:"gt=0"`
	SolcVersion     string        `validate:"required"`
}

// Load reads the configuration from environment variables and validates it.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		GeminiAPIKey:   getenv("GEMINI_API_KEY"),
		GeminiModel:    stringOr(getenv("GEMINI_MODEL"), llm.DefaultModel),
		AptosNodeURL:   stringOr(getenv("APTOS_NODE_URL"), aptos.DefaultNodeURL),
		PolygonRPCURL:  getenv("POLYGON_RPC_URL"),
		EthereumRPCURL: getenv("ETHEREUM_RPC_URL"),
		DatabaseURL:    getenv("DATABASE_URL"),
		DatabasePath:   getenv("DATABASE_PATH"),
		PublicURL:      getenv("PUBLIC_URL"),
		WalletName:     stringOr(getenv("WALLET_NAME"), wallet.DefaultWalletName),
		SolcVersion:    stringOr(getenv("SOLC_VERSION"), utils.DefaultSolcVersion),
	}

	if cfg.DatabaseURL == "" && cfg.DatabasePath == "" {
		path, err := defaultDatabasePath()
		if err != nil {
			return Config{}, err
		}
		cfg.DatabasePath = path
	}

	if port := getenv("PORT"); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Port = parsed
	}

	cfg.GasPollInterval = services.DefaultGasInterval
	if interval := getenv("GAS_POLL_INTERVAL"); interval != "" {
		parsed, err := time.ParseDuration(interval)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GAS_POLL_INTERVAL %q: %w", interval, err)
		}
		cfg.GasPollInterval = parsed
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaultDatabasePath() (string, error) {
	homePath, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homePath, "contractgen.db"), nil
}

func stringOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
