package utils

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var contractDeclaration = regexp.MustCompile(`(?m)^\s*(?:abstract\s+)?contract\s+([A-Za-z_][A-Za-z0-9_]*)`)

// DeclaredContracts returns the contract names declared in source, in order.
func DeclaredContracts(source string) []string {
	matches := contractDeclaration.FindAllStringSubmatch(source, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// MainContractName picks the contract to deploy: the last declared contract
// that produced bytecode.
func MainContractName(source string, result CompilationResult) (string, error) {
	declared := DeclaredContracts(source)
	for i := len(declared) - 1; i >= 0; i-- {
		if bytecode, ok := result.Bytecode[declared[i]]; ok && bytecode != "" {
			return declared[i], nil
		}
	}
	return "", fmt.Errorf("no deployable contract found in source")
}

// ParseContractABI converts the compiler ABI output into a parsed ABI.
func ParseContractABI(raw any) (abi.ABI, error) {
	abiBytes, err := json.Marshal(raw)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to marshal ABI: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(abiBytes)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}

// EnsureNoConstructorArgs fails when the constructor expects arguments, since a
// generated contract is deployed without any.
func EnsureNoConstructorArgs(contractABI abi.ABI) error {
	if n := len(contractABI.Constructor.Inputs); n > 0 {
		return fmt.Errorf("contract constructor requires %d arguments but none can be provided", n)
	}
	return nil
}

func BuildDeploymentTransactionData(bytecode string, encodedConstructorArgs []byte) string {
	bytecode = strings.TrimPrefix(bytecode, "0x")
	return "0x" + bytecode + hex.EncodeToString(encodedConstructorArgs)
}
