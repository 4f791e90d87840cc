package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multiContractSource = `
// SPDX-License-Identifier: MIT
pragma solidity ^0.8.21;

library Math {
    function add(uint a, uint b) internal pure returns (uint) { return a + b; }
}

abstract contract Base {
    function value() public view virtual returns (uint);
}

contract Counter is Base {
    uint count;
    function value() public view override returns (uint) { return count; }
}
`

func TestDeclaredContracts(t *testing.T) {
	assert.Equal(t, []string{"Base", "Counter"}, DeclaredContracts(multiContractSource))
	assert.Empty(t, DeclaredContracts("module 0x1::hello {}"))
}

func TestMainContractName(t *testing.T) {
	t.Run("picks last contract with bytecode", func(t *testing.T) {
		result := CompilationResult{Bytecode: map[string]string{"Base": "", "Counter": "6080"}}
		name, err := MainContractName(multiContractSource, result)
		require.NoError(t, err)
		assert.Equal(t, "Counter", name)
	})

	t.Run("prefers the later declaration when both compile", func(t *testing.T) {
		result := CompilationResult{Bytecode: map[string]string{"Base": "6080", "Counter": "6081"}}
		name, err := MainContractName(multiContractSource, result)
		require.NoError(t, err)
		assert.Equal(t, "Counter", name)
	})

	t.Run("skips contracts without bytecode", func(t *testing.T) {
		result := CompilationResult{Bytecode: map[string]string{"Base": "6080", "Counter": ""}}
		name, err := MainContractName(multiContractSource, result)
		require.NoError(t, err)
		assert.Equal(t, "Base", name)
	})

	t.Run("no deployable contract", func(t *testing.T) {
		_, err := MainContractName(multiContractSource, CompilationResult{Bytecode: map[string]string{}})
		assert.Error(t, err)
	})
}

func TestParseContractABIAndConstructor(t *testing.T) {
	noArgs := []any{
		map[string]any{"type": "function", "name": "value", "inputs": []any{}, "outputs": []any{}, "stateMutability": "view"},
	}
	parsed, err := ParseContractABI(noArgs)
	require.NoError(t, err)
	assert.Contains(t, parsed.Methods, "value")
	assert.NoError(t, EnsureNoConstructorArgs(parsed))

	withArgs := []any{
		map[string]any{
			"type":            "constructor",
			"inputs":          []any{map[string]any{"name": "owner", "type": "address"}},
			"stateMutability": "nonpayable",
		},
	}
	parsed, err = ParseContractABI(withArgs)
	require.NoError(t, err)
	assert.Error(t, EnsureNoConstructorArgs(parsed))
}

func TestBuildDeploymentTransactionData(t *testing.T) {
	assert.Equal(t, "0x6080", BuildDeploymentTransactionData("0x6080", nil))
	assert.Equal(t, "0x6080ff", BuildDeploymentTransactionData("6080", []byte{0xff}))
}
