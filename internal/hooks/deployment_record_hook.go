package hooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
	"gorm.io/gorm"
)

// DeploymentRecordHook keeps the deployment history in sync with every outcome change.
type DeploymentRecordHook struct {
	deploymentService services.DeploymentService
}

// CanHandle implements Hook.
func (h *DeploymentRecordHook) CanHandle(status models.TransactionStatus) bool {
	return status == models.TransactionStatusPending ||
		status == models.TransactionStatusConfirmed ||
		status == models.TransactionStatusFailed
}

// OnOutcomeChanged implements Hook. The first event of an attempt creates its row.
func (h *DeploymentRecordHook) OnOutcomeChanged(_ context.Context, event services.DeploymentEvent) error {
	_, err := h.deploymentService.GetDeploymentByAttempt(event.SessionID, event.Attempt)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record := &models.Deployment{
			SessionID:       event.SessionID,
			Attempt:         event.Attempt,
			Chain:           event.Chain,
			Contract:        event.Contract,
			DeployerAddress: event.Address,
			TransactionHash: event.Outcome.Hash,
			Status:          event.Outcome.Status,
			Error:           event.Outcome.Error,
		}
		if err := h.deploymentService.CreateDeployment(record); err != nil {
			return fmt.Errorf("failed to create deployment record: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load deployment record: %w", err)
	}

	if err := h.deploymentService.UpdateDeploymentOutcome(event.SessionID, event.Attempt, event.Outcome); err != nil {
		return fmt.Errorf("failed to update deployment record: %w", err)
	}
	return nil
}

func NewDeploymentRecordHook(deploymentService services.DeploymentService) services.Hook {
	return &DeploymentRecordHook{
		deploymentService: deploymentService,
	}
}
