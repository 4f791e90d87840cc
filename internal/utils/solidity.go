package utils

import (
	"fmt"

	"github.com/rxtech-lab/solc-go"
)

// DefaultSolcVersion is used when no compiler version is configured.
const DefaultSolcVersion = "0.8.27"

const sourceName = "contract.sol"

type CompilationResult struct {
	Bytecode map[string]string
	Abi      map[string]any
}

// CompileSolidity compiles a single self contained source file. Imports are not
// resolved.
func CompileSolidity(version string, code string) (CompilationResult, error) {
	if version == "" {
		version = DefaultSolcVersion
	}
	compiler, err := solc.NewWithVersion(version)
	if err != nil {
		return CompilationResult{}, fmt.Errorf("failed to load solc %s: %w", version, err)
	}

	opts := solc.CompileOptions{
		ImportCallback: func(u string) solc.ImportResult {
			return solc.ImportResult{
				Error: fmt.Sprintf("Import %s not found: generated contracts must be self contained", u),
			}
		},
	}
	result, err := compiler.CompileWithOptions(&solc.Input{
		Language: "Solidity",
		Sources: map[string]solc.SourceIn{
			sourceName: {
				Content: code,
			},
		},
		Settings: solc.Settings{
			OutputSelection: map[string]map[string][]string{
				"*": {
					"*": []string{"abi", "evm.bytecode"},
				},
			},
		},
	}, &opts)
	if err != nil {
		return CompilationResult{}, err
	}

	if len(result.Errors) > 0 {
		return CompilationResult{}, fmt.Errorf("compilation errors: %v", result.Errors)
	}

	bytecodeMap := make(map[string]string)
	abiMap := make(map[string]any)

	for fileName, contracts := range result.Contracts {
		if fileName != sourceName {
			continue
		}
		for contractName, contract := range contracts {
			bytecodeMap[contractName] = contract.EVM.Bytecode.Object
			abiMap[contractName] = contract.ABI
		}
	}

	return CompilationResult{
		Bytecode: bytecodeMap,
		Abi:      abiMap,
	}, nil
}
