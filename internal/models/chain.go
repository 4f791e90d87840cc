package models

import (
	"fmt"
	"strings"
)

// Chain is the blockchain a contract is generated for and deployed to.
type Chain string

const (
	ChainAptos    Chain = "Aptos"
	ChainPolygon  Chain = "Polygon"
	ChainEthereum Chain = "Ethereum"
)

// DefaultChain is used when the user has not picked a chain.
const DefaultChain = ChainAptos

// SupportedChains lists the chains in the order they are offered to the user.
var SupportedChains = []Chain{ChainAptos, ChainPolygon, ChainEthereum}

// InstructionLanguage returns the contract language the generator is asked to write.
// Aptos contracts are written in Move, everything else in Solidity.
func (c Chain) InstructionLanguage() string {
	if c == ChainAptos {
		return "Move"
	}
	return "Solidity"
}

func (c Chain) String() string {
	return string(c)
}

// IsEVM reports whether the chain speaks the Ethereum transaction format.
func (c Chain) IsEVM() bool {
	return c == ChainPolygon || c == ChainEthereum
}

// ParseChain converts user input into a Chain. Matching is case-insensitive and
// an empty string yields DefaultChain.
func ParseChain(value string) (Chain, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return DefaultChain, nil
	}
	for _, chain := range SupportedChains {
		if strings.EqualFold(trimmed, string(chain)) {
			return chain, nil
		}
	}
	return "", fmt.Errorf("unsupported chain %q", value)
}
