package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rxtech-lab/contractgen/internal/config"
	"github.com/rxtech-lab/contractgen/internal/llm"
	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	generateChain    string
	generateDownload bool
	generateOutDir   string
)

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate a smart contract and stream it to stdout",
	Long: `Streams the generated contract to stdout as it arrives.

Example:
  contractgen generate --chain Aptos "a counter that only the owner can increment"
  contractgen generate --download --out ./contracts "an escrow between two parties"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		provider, err := llm.NewGeminiProvider(cmd.Context(), llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
			Logger: logger,
		})
		if err != nil {
			return err
		}

		chain, err := models.ParseChain(generateChain)
		if err != nil {
			return err
		}
		outDir := ""
		if generateDownload {
			outDir = generateOutDir
		}
		return runGenerate(cmd.Context(), provider, cmd.OutOrStdout(), strings.Join(args, " "), chain, outDir)
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateChain, "chain", "c", string(models.DefaultChain), "Target blockchain (Aptos, Polygon, Ethereum)")
	generateCmd.Flags().BoolVarP(&generateDownload, "download", "d", false, "Save the response as "+services.ExportFileName)
	generateCmd.Flags().StringVarP(&generateOutDir, "out", "o", ".", "Directory for --download")
}

// runGenerate streams the contract to out. When outDir is set the raw response
// is also written to outDir/smart_contract.move.
func runGenerate(ctx context.Context, provider services.CompletionProvider, out io.Writer, prompt string, chain models.Chain, outDir string) error {
	session := services.NewGenerationSession("cli", provider, logger, nil)
	err := session.Generate(ctx, prompt, chain, func(chunk string) {
		fmt.Fprint(out, chunk)
	})
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("%s: %w", services.GenerationErrorMessage, err)
	}

	if outDir == "" {
		return nil
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(outDir, services.ExportFileName)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := session.Export(file); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Info("Contract saved", zap.String("path", path))
	return nil
}
