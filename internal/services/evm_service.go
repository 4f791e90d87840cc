package services

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/contractgen/internal/codeblock"
	"github.com/rxtech-lab/contractgen/internal/utils"
)

type ContractDeploymentArgs struct {
	// ContractCode is the generated response; the first fenced block is compiled.
	ContractCode string `validate:"required"`
}

// EvmDeployment is the creation data of a compiled contract.
type EvmDeployment struct {
	ContractName string
	Data         string
}

type EvmService interface {
	GetContractDeploymentData(args ContractDeploymentArgs) (EvmDeployment, error)
}

type compileFunc func(version, code string) (utils.CompilationResult, error)

type evmService struct {
	validator   *validator.Validate
	solcVersion string
	compile     compileFunc
}

func NewEvmService(solcVersion string) EvmService {
	return &evmService{
		validator:   validator.New(),
		solcVersion: solcVersion,
		compile:     utils.CompileSolidity,
	}
}

// GetContractDeploymentData compiles the Solidity code block of the contract and
// returns the creation data of its main contract.
func (s *evmService) GetContractDeploymentData(args ContractDeploymentArgs) (EvmDeployment, error) {
	if err := s.validator.Struct(args); err != nil {
		return EvmDeployment{}, err
	}

	source := codeblock.Extract(args.ContractCode).Code
	result, err := s.compile(s.solcVersion, source)
	if err != nil {
		return EvmDeployment{}, err
	}

	contractName, err := utils.MainContractName(source, result)
	if err != nil {
		return EvmDeployment{}, err
	}

	contractABI, err := utils.ParseContractABI(result.Abi[contractName])
	if err != nil {
		return EvmDeployment{}, err
	}
	if err := utils.EnsureNoConstructorArgs(contractABI); err != nil {
		return EvmDeployment{}, fmt.Errorf("cannot deploy %s: %w", contractName, err)
	}

	return EvmDeployment{
		ContractName: contractName,
		Data:         utils.BuildDeploymentTransactionData(result.Bytecode[contractName], nil),
	}, nil
}
