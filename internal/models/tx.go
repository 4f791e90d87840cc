package models

import "encoding/json"

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

const (
	// PayloadTypeEntryFunction is the Aptos payload kind used for publishing.
	PayloadTypeEntryFunction = "entry_function_payload"
	// PublishPackageFunction is the on-chain entry point that receives the contract.
	PublishPackageFunction = "0x1::code::publish_package"
)

// Payload describes the call a deployment transaction makes.
type Payload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// NewPublishPayload builds the publish payload carrying the contract text as its only argument.
func NewPublishPayload(contract string) Payload {
	return Payload{
		Type:          PayloadTypeEntryFunction,
		Function:      PublishPackageFunction,
		TypeArguments: []string{},
		Arguments:     []any{contract},
	}
}

// RawTransaction is an unsigned transaction as produced by a chain provider.
// Body is the chain specific JSON handed to the wallet for signing.
type RawTransaction struct {
	Chain Chain           `json:"chain"`
	Body  json.RawMessage `json:"body"`
}

// SignedTransaction is what the wallet returns after the user approved the signature.
type SignedTransaction struct {
	Chain Chain           `json:"chain"`
	Body  json.RawMessage `json:"body"`
}

// Receipt is the final state of a submitted transaction.
type Receipt struct {
	Hash     string `json:"hash"`
	Success  bool   `json:"success"`
	VMStatus string `json:"vm_status,omitempty"`
	Version  string `json:"version,omitempty"`
}

// TransactionOutcome is the user visible result of a deploy attempt.
type TransactionOutcome struct {
	Status TransactionStatus `json:"status"`
	// Hash is kept on failure when submission already happened.
	Hash  string `json:"hash,omitempty"`
	Error string `json:"error,omitempty"`
}
