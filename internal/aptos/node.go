package aptos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/api"
)

// DefaultNodeURL is the devnet fullnode REST endpoint.
const DefaultNodeURL = "https://fullnode.devnet.aptoslabs.com/v1"

// ErrTransactionNotFound is returned while a submitted hash is not indexed yet.
var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionStatus is what the provider needs to know about a submitted transaction.
type TransactionStatus struct {
	Pending  bool
	Success  bool
	VMStatus string
	Version  uint64
}

// Node is the part of a fullnode the provider talks to.
type Node interface {
	SequenceNumber(ctx context.Context, address sdk.AccountAddress) (uint64, error)
	GasPrice(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (uint8, error)
	Submit(ctx context.Context, signed *sdk.SignedTransaction) (string, error)
	Transaction(ctx context.Context, hash string) (TransactionStatus, error)
}

// NodeError is a non-2xx response from the node. Error returns the node message verbatim.
type NodeError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	ErrorCode  string `json:"error_code"`
}

func (e *NodeError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("aptos node returned status %d", e.StatusCode)
}

// sdkNode adapts the aptos-go-sdk client. The SDK calls take no context, so
// ctx is only checked before each call.
type sdkNode struct {
	client *sdk.Client
}

// NewNode connects a Node to nodeURL. An empty URL means devnet.
func NewNode(nodeURL string) (Node, error) {
	config := sdk.DevnetConfig
	if nodeURL != "" && nodeURL != DefaultNodeURL {
		config = sdk.NetworkConfig{Name: "custom", NodeUrl: nodeURL}
	}
	client, err := sdk.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create aptos client: %w", err)
	}
	return &sdkNode{client: client}, nil
}

func (n *sdkNode) SequenceNumber(ctx context.Context, address sdk.AccountAddress) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	info, err := n.client.Account(address)
	if err != nil {
		return 0, nodeError(err)
	}
	return info.SequenceNumber()
}

func (n *sdkNode) GasPrice(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	estimate, err := n.client.EstimateGasPrice()
	if err != nil {
		return 0, nodeError(err)
	}
	return estimate.GasEstimate, nil
}

func (n *sdkNode) ChainID(ctx context.Context) (uint8, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	info, err := n.client.Info()
	if err != nil {
		return 0, nodeError(err)
	}
	return info.ChainId, nil
}

func (n *sdkNode) Submit(ctx context.Context, signed *sdk.SignedTransaction) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	response, err := n.client.SubmitTransaction(signed)
	if err != nil {
		return "", nodeError(err)
	}
	return response.Hash, nil
}

func (n *sdkNode) Transaction(ctx context.Context, hash string) (TransactionStatus, error) {
	if err := ctx.Err(); err != nil {
		return TransactionStatus{}, err
	}
	txn, err := n.client.TransactionByHash(hash)
	if err != nil {
		err = nodeError(err)
		var nodeErr *NodeError
		if errors.As(err, &nodeErr) && nodeErr.StatusCode == http.StatusNotFound {
			return TransactionStatus{}, ErrTransactionNotFound
		}
		return TransactionStatus{}, err
	}
	if txn.Type == api.TransactionVariantPending {
		return TransactionStatus{Pending: true}, nil
	}

	var status TransactionStatus
	if success := txn.Success(); success != nil {
		status.Success = *success
	}
	if version := txn.Version(); version != nil {
		status.Version = *version
	}
	if user, err := txn.UserTransaction(); err == nil {
		status.VMStatus = user.VmStatus
	}
	return status, nil
}

// nodeError turns an SDK http error into a NodeError carrying the node message.
func nodeError(err error) error {
	var httpErr *sdk.HttpError
	if !errors.As(err, &httpErr) {
		return err
	}
	nodeErr := &NodeError{StatusCode: httpErr.StatusCode}
	// non JSON bodies keep the generic message
	_ = json.Unmarshal(httpErr.Body, nodeErr)
	return nodeErr
}
