package main

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliProvider struct {
	chunks []string
	err    error
}

func (p cliProvider) StartSession(context.Context, string, []services.Turn) (services.CompletionStream, error) {
	return p, nil
}

func (p cliProvider) SendAndStream(context.Context, string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, chunk := range p.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if p.err != nil {
			yield("", p.err)
		}
	}
}

func TestRunGenerateStreamsToOutput(t *testing.T) {
	var out bytes.Buffer
	provider := cliProvider{chunks: []string{"```move\n", "module 0x1::a {}\n", "```"}}

	err := runGenerate(context.Background(), provider, &out, "a module", models.ChainAptos, "")
	require.NoError(t, err)
	assert.Equal(t, "```move\nmodule 0x1::a {}\n```\n", out.String())
}

func TestRunGenerateDownloadsResponse(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "contracts")
	provider := cliProvider{chunks: []string{"```move\n", "module 0x1::a {}\n", "```"}}

	err := runGenerate(context.Background(), provider, &bytes.Buffer{}, "a module", models.ChainAptos, dir)
	require.NoError(t, err)

	saved, err := os.ReadFile(filepath.Join(dir, "smart_contract.move"))
	require.NoError(t, err)
	assert.Equal(t, "```move\nmodule 0x1::a {}\n```", string(saved))
}

func TestRunGenerateFailureSkipsDownload(t *testing.T) {
	dir := t.TempDir()
	provider := cliProvider{err: errors.New("quota exceeded")}

	err := runGenerate(context.Background(), provider, &bytes.Buffer{}, "a module", models.ChainAptos, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), services.GenerationErrorMessage)

	_, statErr := os.Stat(filepath.Join(dir, "smart_contract.move"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchWalletAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/wallet/address", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"address":"0xfeed"}`))
	}))
	defer server.Close()

	address, err := fetchWalletAddress(server.Client(), server.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", address)
}

func TestFetchWalletAddressNotConnected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"wallet not connected"}`))
	}))
	defer server.Close()

	_, err := fetchWalletAddress(server.Client(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet not connected")
}

func TestAddressCommandCopiesToClipboard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":"0xfeed"}`))
	}))
	defer server.Close()

	var copied string
	original := clipboardWriteAll
	clipboardWriteAll = func(text string) error {
		copied = text
		return nil
	}
	defer func() { clipboardWriteAll = original }()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"address", "--server", server.URL, "--copy"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "0xfeed", copied)
	assert.Equal(t, "0xfeed (copied to clipboard)\n", out.String())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "contractgen dev")
}
