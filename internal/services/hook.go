package services

import (
	"context"

	"github.com/rxtech-lab/contractgen/internal/models"
)

// DeploymentEvent describes a change of a deployment outcome.
type DeploymentEvent struct {
	SessionID string
	Attempt   int
	Chain     models.Chain
	Contract  string
	// Address is the wallet address that signed the deployment.
	Address string
	Outcome models.TransactionOutcome
}

// Hook is used to perform actions when a deployment outcome changes base on its status
type Hook interface {
	// CanHandle is used to check if the hook wants events with the given status
	CanHandle(status models.TransactionStatus) bool
	// OnOutcomeChanged is called every time an outcome changes
	OnOutcomeChanged(ctx context.Context, event DeploymentEvent) error
}
