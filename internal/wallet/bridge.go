package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/google/uuid"
	"github.com/rxtech-lab/contractgen/internal/metrics"
	"github.com/rxtech-lab/contractgen/internal/models"
	"go.uber.org/zap"
)

// DefaultWalletName is the wallet the bridge page asks for when none is given.
const DefaultWalletName = "Petra"

var (
	ErrRequestNotFound = errors.New("wallet request not found")
	ErrNotConnected    = errors.New("wallet not connected")
)

type RequestKind string

const (
	RequestConnect RequestKind = "connect"
	RequestSign    RequestKind = "sign"
)

// Request is work for the browser wallet page.
type Request struct {
	ID          string                 `json:"id"`
	Kind        RequestKind            `json:"kind"`
	Wallet      string                 `json:"wallet"`
	Transaction *models.RawTransaction `json:"transaction,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Resolution is the answer of the wallet page to a Request. A non-empty Error
// means the user or the wallet refused.
type Resolution struct {
	Address   string          `json:"address,omitempty"`
	PublicKey string          `json:"public_key,omitempty"`
	Signed    json.RawMessage `json:"signed,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type pendingRequest struct {
	request Request
	result  chan Resolution
}

// Bridge relays wallet operations to a browser page that owns the real wallet
// extension. The page polls Pending and answers with Resolve.
type Bridge struct {
	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	conn    models.WalletConnection
	pending map[string]*pendingRequest
}

func NewBridge(clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *Bridge {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		clock:   clk,
		logger:  logger.Named("wallet"),
		metrics: m,
		pending: map[string]*pendingRequest{},
	}
}

// Connect asks the page to connect walletName and blocks until it answers.
func (b *Bridge) Connect(ctx context.Context, walletName string) (models.WalletConnection, error) {
	if walletName == "" {
		walletName = DefaultWalletName
	}
	resolution, err := b.await(ctx, Request{Kind: RequestConnect, Wallet: walletName})
	if err != nil {
		return models.WalletConnection{}, err
	}
	if resolution.Address == "" {
		b.metrics.RecordWalletRequest(string(RequestConnect), "invalid")
		return models.WalletConnection{}, errors.New("wallet returned no address")
	}

	conn := b.Announce(walletName, resolution.Address, resolution.PublicKey)
	b.logger.Info("Wallet connected", zap.String("wallet", walletName), zap.String("address", conn.Address))
	return conn, nil
}

// Announce records a connection the page already holds, e.g. after a reload.
func (b *Bridge) Announce(walletName, address, publicKey string) models.WalletConnection {
	conn := models.WalletConnection{
		Connected: true,
		Wallet:    walletName,
		Address:   address,
		PublicKey: publicKey,
	}
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	return conn
}

func (b *Bridge) Disconnect(context.Context) error {
	b.mu.Lock()
	b.conn = models.WalletConnection{}
	b.mu.Unlock()
	b.logger.Info("Wallet disconnected")
	return nil
}

func (b *Bridge) Connection() models.WalletConnection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

// SignTransaction asks the page to sign raw and blocks until the user answers
// or ctx ends. A refusal is returned with the wallet's message verbatim.
func (b *Bridge) SignTransaction(ctx context.Context, raw models.RawTransaction) (models.SignedTransaction, error) {
	conn := b.Connection()
	if !conn.Connected {
		return models.SignedTransaction{}, ErrNotConnected
	}

	resolution, err := b.await(ctx, Request{Kind: RequestSign, Wallet: conn.Wallet, Transaction: &raw})
	if err != nil {
		return models.SignedTransaction{}, err
	}
	if len(resolution.Signed) == 0 {
		b.metrics.RecordWalletRequest(string(RequestSign), "invalid")
		return models.SignedTransaction{}, errors.New("wallet returned no signed transaction")
	}
	return models.SignedTransaction{Chain: raw.Chain, Body: resolution.Signed}, nil
}

func (b *Bridge) await(ctx context.Context, request Request) (Resolution, error) {
	request.ID = uuid.NewString()
	request.CreatedAt = b.clock.Now()
	p := &pendingRequest{request: request, result: make(chan Resolution, 1)}

	b.mu.Lock()
	b.pending[request.ID] = p
	b.mu.Unlock()
	b.logger.Debug("Waiting for wallet", zap.String("request_id", request.ID), zap.String("kind", string(request.Kind)))

	select {
	case resolution := <-p.result:
		if resolution.Error != "" {
			b.metrics.RecordWalletRequest(string(request.Kind), "rejected")
			return Resolution{}, errors.New(resolution.Error)
		}
		b.metrics.RecordWalletRequest(string(request.Kind), "approved")
		return resolution, nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, request.ID)
		b.mu.Unlock()
		b.metrics.RecordWalletRequest(string(request.Kind), "cancelled")
		return Resolution{}, fmt.Errorf("wallet %s request cancelled: %w", request.Kind, ctx.Err())
	}
}

// Pending lists the unanswered requests, oldest first.
func (b *Bridge) Pending() []Request {
	b.mu.Lock()
	requests := make([]Request, 0, len(b.pending))
	for _, p := range b.pending {
		requests = append(requests, p.request)
	}
	b.mu.Unlock()

	sort.Slice(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].ID < requests[j].ID
		}
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
	return requests
}

// Resolve answers request id. Each request can be resolved once.
func (b *Bridge) Resolve(id string, resolution Resolution) error {
	b.mu.Lock()
	p, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()
	if !ok {
		return ErrRequestNotFound
	}
	p.result <- resolution
	return nil
}
