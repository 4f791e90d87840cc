package evm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultWaitTimeout  = 3 * time.Minute
)

// Backend is the part of ethclient.Client the provider needs.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// RawTransaction is a contract creation transaction in the shape browser
// wallets accept.
type RawTransaction struct {
	From         string         `json:"from"`
	Nonce        hexutil.Uint64 `json:"nonce"`
	Gas          hexutil.Uint64 `json:"gas"`
	GasPrice     *hexutil.Big   `json:"gasPrice"`
	Value        *hexutil.Big   `json:"value"`
	Data         hexutil.Bytes  `json:"data"`
	ChainID      *hexutil.Big   `json:"chainId"`
	ContractName string         `json:"contractName"`
}

// SignedTransaction carries either the RLP encoded signed transaction or, for
// wallets that sign and broadcast in one step, the hash of the sent transaction.
type SignedTransaction struct {
	Raw  string `json:"raw,omitempty"`
	Hash string `json:"hash,omitempty"`
}

// Provider deploys Solidity contracts on an EVM chain.
type Provider struct {
	chain        models.Chain
	backend      Backend
	evmService   services.EvmService
	clock        clock.Clock
	pollInterval time.Duration
	waitTimeout  time.Duration
	logger       *zap.Logger
}

type Option func(*Provider)

func WithClock(clk clock.Clock) Option {
	return func(p *Provider) { p.clock = clk }
}

func WithPollInterval(interval time.Duration) Option {
	return func(p *Provider) { p.pollInterval = interval }
}

func WithWaitTimeout(timeout time.Duration) Option {
	return func(p *Provider) { p.waitTimeout = timeout }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

func NewProvider(chain models.Chain, backend Backend, evmService services.EvmService, opts ...Option) *Provider {
	p := &Provider{
		chain:        chain,
		backend:      backend,
		evmService:   evmService,
		clock:        clock.New(),
		pollInterval: DefaultPollInterval,
		waitTimeout:  DefaultWaitTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("evm").With(zap.String("chain", chain.String()))
	return p
}

// Dial connects to rpcURL and returns a provider for chain.
func Dial(ctx context.Context, chain models.Chain, rpcURL string, evmService services.EvmService, opts ...Option) (*Provider, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s rpc: %w", chain, err)
	}
	return NewProvider(chain, client, evmService, opts...), nil
}

// GenerateTransaction compiles the contract carried by payload and builds its
// creation transaction.
func (p *Provider) GenerateTransaction(ctx context.Context, sender string, payload models.Payload) (models.RawTransaction, error) {
	if !common.IsHexAddress(sender) {
		return models.RawTransaction{}, fmt.Errorf("invalid %s address: %s", p.chain, sender)
	}
	contract, err := payloadContract(payload)
	if err != nil {
		return models.RawTransaction{}, err
	}

	deployment, err := p.evmService.GetContractDeploymentData(services.ContractDeploymentArgs{ContractCode: contract})
	if err != nil {
		return models.RawTransaction{}, err
	}
	data, err := hexutil.Decode(deployment.Data)
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("invalid creation data: %w", err)
	}

	from := common.HexToAddress(sender)
	chainID, err := p.backend.ChainID(ctx)
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("failed to get chain id: %w", err)
	}
	nonce, err := p.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := p.backend.SuggestGasPrice(ctx)
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("failed to get gas price: %w", err)
	}
	gas, err := p.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, Data: data})
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	body, err := json.Marshal(RawTransaction{
		From:         from.Hex(),
		Nonce:        hexutil.Uint64(nonce),
		Gas:          hexutil.Uint64(gas),
		GasPrice:     (*hexutil.Big)(gasPrice),
		Value:        (*hexutil.Big)(big.NewInt(0)),
		Data:         data,
		ChainID:      (*hexutil.Big)(chainID),
		ContractName: deployment.ContractName,
	})
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("failed to marshal raw transaction: %w", err)
	}

	p.logger.Debug("Generated creation transaction",
		zap.String("contract", deployment.ContractName),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas),
	)
	return models.RawTransaction{Chain: p.chain, Body: body}, nil
}

func payloadContract(payload models.Payload) (string, error) {
	if len(payload.Arguments) == 0 {
		return "", errors.New("payload has no contract argument")
	}
	contract, ok := payload.Arguments[0].(string)
	if !ok || strings.TrimSpace(contract) == "" {
		return "", errors.New("payload contract argument must be a non-empty string")
	}
	return contract, nil
}

func (p *Provider) SubmitTransaction(ctx context.Context, signed models.SignedTransaction) (string, error) {
	var body SignedTransaction
	if err := json.Unmarshal(signed.Body, &body); err != nil {
		return "", fmt.Errorf("invalid signed transaction: %w", err)
	}

	if body.Raw == "" {
		if body.Hash == "" {
			return "", errors.New("invalid signed transaction: missing raw transaction")
		}
		// already broadcast by the wallet
		return common.HexToHash(body.Hash).Hex(), nil
	}

	rawBytes, err := hexutil.Decode(body.Raw)
	if err != nil {
		return "", fmt.Errorf("invalid signed transaction: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawBytes); err != nil {
		return "", fmt.Errorf("invalid signed transaction: %w", err)
	}
	if err := p.backend.SendTransaction(ctx, tx); err != nil {
		return "", err
	}

	p.logger.Info("Submitted transaction", zap.String("hash", tx.Hash().Hex()))
	return tx.Hash().Hex(), nil
}

func (p *Provider) WaitForTransaction(ctx context.Context, hash string) (models.Receipt, error) {
	ticker := p.clock.Ticker(p.pollInterval)
	defer ticker.Stop()
	timeout := p.clock.Timer(p.waitTimeout)
	defer timeout.Stop()

	txHash := common.HexToHash(hash)
	for {
		receipt, err := p.backend.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			result := models.Receipt{
				Hash:    hash,
				Success: receipt.Status == types.ReceiptStatusSuccessful,
			}
			if receipt.BlockNumber != nil {
				result.Version = receipt.BlockNumber.String()
			}
			if !result.Success {
				result.VMStatus = "execution reverted"
			}
			return result, nil
		case errors.Is(err, ethereum.NotFound):
		default:
			return models.Receipt{}, err
		}

		select {
		case <-ctx.Done():
			return models.Receipt{}, ctx.Err()
		case <-timeout.C:
			return models.Receipt{}, fmt.Errorf("transaction %s was not mined within %s", hash, p.waitTimeout)
		case <-ticker.C:
		}
	}
}
