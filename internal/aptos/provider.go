package aptos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andres-erbsen/clock"
	sdk "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rxtech-lab/contractgen/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultMaxGasAmount = 200000
	DefaultExpiration   = 10 * time.Minute
	DefaultPollInterval = time.Second
	DefaultWaitTimeout  = 60 * time.Second
)

// RawTransaction is the unsigned transaction handed to the wallet. BCS holds
// the serialized transaction, the other fields are for display.
type RawTransaction struct {
	Sender                  string         `json:"sender"`
	SequenceNumber          string         `json:"sequence_number"`
	MaxGasAmount            string         `json:"max_gas_amount"`
	GasUnitPrice            string         `json:"gas_unit_price"`
	ExpirationTimestampSecs string         `json:"expiration_timestamp_secs"`
	Payload                 models.Payload `json:"payload"`
	ChainID                 int            `json:"chain_id"`
	BCS                     string         `json:"bcs"`
}

// SignedTransaction is what the wallet bridge returns: the BCS bytes of the
// signed transaction, hex encoded.
type SignedTransaction struct {
	BCS string `json:"bcs"`
}

type Option func(*Provider)

// WithNode replaces the fullnode client.
func WithNode(node Node) Option {
	return func(p *Provider) { p.node = node }
}

func WithClock(clk clock.Clock) Option {
	return func(p *Provider) { p.clock = clk }
}

func WithPollInterval(interval time.Duration) Option {
	return func(p *Provider) { p.pollInterval = interval }
}

func WithWaitTimeout(timeout time.Duration) Option {
	return func(p *Provider) { p.waitTimeout = timeout }
}

func WithMaxGasAmount(amount uint64) Option {
	return func(p *Provider) { p.maxGasAmount = amount }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// Provider publishes contracts through an Aptos fullnode.
type Provider struct {
	node         Node
	clock        clock.Clock
	pollInterval time.Duration
	waitTimeout  time.Duration
	maxGasAmount uint64
	logger       *zap.Logger
}

// NewProvider creates a provider for nodeURL unless WithNode is given.
func NewProvider(nodeURL string, opts ...Option) (*Provider, error) {
	p := &Provider{
		clock:        clock.New(),
		pollInterval: DefaultPollInterval,
		waitTimeout:  DefaultWaitTimeout,
		maxGasAmount: DefaultMaxGasAmount,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.node == nil {
		node, err := NewNode(nodeURL)
		if err != nil {
			return nil, err
		}
		p.node = node
	}
	p.logger = p.logger.Named("aptos")
	return p, nil
}

// GenerateTransaction builds the raw transaction for payload from the sender's
// sequence number, the node gas estimate and the ledger chain id.
func (p *Provider) GenerateTransaction(ctx context.Context, sender string, payload models.Payload) (models.RawTransaction, error) {
	var address sdk.AccountAddress
	if err := address.ParseStringRelaxed(sender); err != nil {
		return models.RawTransaction{}, fmt.Errorf("invalid sender address %q: %w", sender, err)
	}
	entry, err := entryFunction(payload)
	if err != nil {
		return models.RawTransaction{}, err
	}

	sequence, err := p.node.SequenceNumber(ctx, address)
	if err != nil {
		return models.RawTransaction{}, err
	}
	gasPrice, err := p.node.GasPrice(ctx)
	if err != nil {
		return models.RawTransaction{}, err
	}
	chainID, err := p.node.ChainID(ctx)
	if err != nil {
		return models.RawTransaction{}, err
	}

	expiration := uint64(p.clock.Now().Add(DefaultExpiration).Unix())
	txn := &sdk.RawTransaction{
		Sender:                     address,
		SequenceNumber:             sequence,
		Payload:                    sdk.TransactionPayload{Payload: entry},
		MaxGasAmount:               p.maxGasAmount,
		GasUnitPrice:               gasPrice,
		ExpirationTimestampSeconds: expiration,
		ChainId:                    chainID,
	}
	serialized, err := bcs.Serialize(txn)
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	raw := RawTransaction{
		Sender:                  sender,
		SequenceNumber:          strconv.FormatUint(sequence, 10),
		MaxGasAmount:            strconv.FormatUint(p.maxGasAmount, 10),
		GasUnitPrice:            strconv.FormatUint(gasPrice, 10),
		ExpirationTimestampSecs: strconv.FormatUint(expiration, 10),
		Payload:                 payload,
		ChainID:                 int(chainID),
		BCS:                     hexutil.Encode(serialized),
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("failed to marshal raw transaction: %w", err)
	}

	p.logger.Debug("Generated transaction",
		zap.String("sender", sender),
		zap.Uint64("sequence_number", sequence),
		zap.Uint8("chain_id", chainID),
	)
	return models.RawTransaction{Chain: models.ChainAptos, Body: body}, nil
}

// entryFunction converts an entry_function_payload into its BCS form. String
// arguments are encoded as vector<u8>.
func entryFunction(payload models.Payload) (*sdk.EntryFunction, error) {
	parts := strings.Split(payload.Function, "::")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid entry function %q", payload.Function)
	}
	var module sdk.AccountAddress
	if err := module.ParseStringRelaxed(parts[0]); err != nil {
		return nil, fmt.Errorf("invalid module address %q: %w", parts[0], err)
	}
	if len(payload.TypeArguments) > 0 {
		return nil, errors.New("type arguments are not supported")
	}

	args := make([][]byte, 0, len(payload.Arguments))
	for i, arg := range payload.Arguments {
		value, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("argument %d: unsupported type %T", i, arg)
		}
		ser := &bcs.Serializer{}
		ser.WriteBytes([]byte(value))
		if err := ser.Error(); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, ser.ToBytes())
	}

	return &sdk.EntryFunction{
		Module:   sdk.ModuleId{Address: module, Name: parts[1]},
		Function: parts[2],
		ArgTypes: []sdk.TypeTag{},
		Args:     args,
	}, nil
}

func (p *Provider) SubmitTransaction(ctx context.Context, signed models.SignedTransaction) (string, error) {
	var body SignedTransaction
	if err := json.Unmarshal(signed.Body, &body); err != nil {
		return "", fmt.Errorf("invalid signed transaction: %w", err)
	}
	serialized := common.FromHex(body.BCS)
	if len(serialized) == 0 {
		return "", errors.New("invalid signed transaction: empty bcs payload")
	}

	var txn sdk.SignedTransaction
	if err := bcs.Deserialize(&txn, serialized); err != nil {
		return "", fmt.Errorf("invalid signed transaction: %w", err)
	}

	hash, err := p.node.Submit(ctx, &txn)
	if err != nil {
		return "", err
	}
	if hash == "" {
		return "", errors.New("node did not return a transaction hash")
	}

	p.logger.Info("Submitted transaction", zap.String("hash", hash))
	return hash, nil
}

// WaitForTransaction polls the node until the transaction is committed or the
// wait timeout elapses. A hash unknown to the node is treated as pending.
func (p *Provider) WaitForTransaction(ctx context.Context, hash string) (models.Receipt, error) {
	ticker := p.clock.Ticker(p.pollInterval)
	defer ticker.Stop()
	timeout := p.clock.Timer(p.waitTimeout)
	defer timeout.Stop()

	for {
		status, err := p.node.Transaction(ctx, hash)
		switch {
		case err == nil && !status.Pending:
			receipt := models.Receipt{
				Hash:     hash,
				Success:  status.Success,
				VMStatus: status.VMStatus,
			}
			if status.Version > 0 {
				receipt.Version = strconv.FormatUint(status.Version, 10)
			}
			return receipt, nil
		case err == nil:
			// still pending
		case errors.Is(err, ErrTransactionNotFound):
			// not indexed yet
		default:
			return models.Receipt{}, err
		}

		select {
		case <-ctx.Done():
			return models.Receipt{}, ctx.Err()
		case <-timeout.C:
			return models.Receipt{}, fmt.Errorf("transaction %s was not committed within %s", hash, p.waitTimeout)
		case <-ticker.C:
		}
	}
}
