package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/rxtech-lab/contractgen/internal/models"
)

// WalletProvider is the user's browser wallet.
type WalletProvider interface {
	Connect(ctx context.Context, walletName string) (models.WalletConnection, error)
	Disconnect(ctx context.Context) error
	// SignTransaction blocks until the user approves or rejects the signature, or ctx ends.
	SignTransaction(ctx context.Context, raw models.RawTransaction) (models.SignedTransaction, error)
	Connection() models.WalletConnection
}

// ChainProvider talks to a blockchain node.
type ChainProvider interface {
	GenerateTransaction(ctx context.Context, sender string, payload models.Payload) (models.RawTransaction, error)
	SubmitTransaction(ctx context.Context, signed models.SignedTransaction) (string, error)
	WaitForTransaction(ctx context.Context, hash string) (models.Receipt, error)
}

// ChainProviders resolves the provider used for a chain. Chains without a
// registered provider use the fallback.
type ChainProviders struct {
	mu        sync.RWMutex
	fallback  ChainProvider
	providers map[models.Chain]ChainProvider
}

func NewChainProviders(fallback ChainProvider) *ChainProviders {
	return &ChainProviders{
		fallback:  fallback,
		providers: map[models.Chain]ChainProvider{},
	}
}

func (c *ChainProviders) Register(chain models.Chain, provider ChainProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[chain] = provider
}

func (c *ChainProviders) For(chain models.Chain) (ChainProvider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if provider, ok := c.providers[chain]; ok {
		return provider, nil
	}
	if c.fallback == nil {
		return nil, fmt.Errorf("no chain provider for %s", chain)
	}
	return c.fallback, nil
}
