package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

var clipboardWriteAll = clipboard.WriteAll

var (
	addressServer string
	addressCopy   bool
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the wallet address connected to a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := fetchWalletAddress(&http.Client{Timeout: 10 * time.Second}, addressServer)
		if err != nil {
			return err
		}
		if addressCopy {
			if err := clipboardWriteAll(address); err != nil {
				return fmt.Errorf("failed to copy address: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (copied to clipboard)\n", address)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), address)
		return nil
	},
}

func init() {
	addressCmd.Flags().StringVar(&addressServer, "server", "http://localhost:8080", "Base URL of the contractgen server")
	addressCmd.Flags().BoolVar(&addressCopy, "copy", false, "Copy the address to the clipboard")
}

func fetchWalletAddress(client *http.Client, serverURL string) (string, error) {
	resp, err := client.Get(strings.TrimRight(serverURL, "/") + "/api/wallet/address")
	if err != nil {
		return "", fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Address string `json:"address"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return body.Address, nil
}
