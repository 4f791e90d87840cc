package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
	"go.uber.org/zap"
)

type CreateDeploymentRequest struct {
	Contract string `json:"contract,omitempty"`
	Chain    string `json:"chain,omitempty"`
}

// handleCreateDeployment opens a deployment screen directly. Without a body
// the session has no contract and uses the default chain.
func (s *APIServer) handleCreateDeployment(c *fiber.Ctx) error {
	var body CreateDeploymentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	var handoff *services.Handoff
	if body.Contract != "" || body.Chain != "" {
		chain, err := models.ParseChain(body.Chain)
		if err != nil {
			return badRequest(c, err.Error())
		}
		handoff = &services.Handoff{Contract: body.Contract, Chain: chain}
	}

	session := s.store.OpenDeployment(handoff)
	return c.Status(fiber.StatusCreated).JSON(session.Snapshot())
}

// handleListDeployments returns the persisted deploy history, optionally
// filtered by session_id or chain.
func (s *APIServer) handleListDeployments(c *fiber.Ctx) error {
	var (
		deployments []models.Deployment
		err         error
	)

	switch {
	case c.Query("session_id") != "":
		deployments, err = s.deploymentService.ListDeploymentsBySession(c.Query("session_id"))
	case c.Query("chain") != "":
		chain, parseErr := models.ParseChain(c.Query("chain"))
		if parseErr != nil {
			return badRequest(c, parseErr.Error())
		}
		deployments, err = s.deploymentService.ListDeploymentsByChain(chain)
	default:
		deployments, err = s.deploymentService.ListDeployments()
	}
	if err != nil {
		s.logger.Error("Failed to list deployments", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(map[string]string{"error": "Failed to list deployments"})
	}
	return c.JSON(deployments)
}

func (s *APIServer) handleGetDeployment(c *fiber.Ctx) error {
	session, err := s.store.Deployment(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(session.Snapshot())
}

// handleDeploy starts a deploy and returns at once. Progress is read back
// through the snapshot endpoint.
func (s *APIServer) handleDeploy(c *fiber.Ctx) error {
	session, err := s.store.Deployment(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	// a missing wallet or a running deploy is reported here, the rest runs on baseCtx
	done, err := session.StartDeploy(s.baseCtx)
	if err != nil {
		return respondError(c, err)
	}

	logger := s.logger.With(zap.String("deployment_id", session.ID))
	go func() {
		result := <-done
		if result.Err != nil {
			logger.Warn("Deployment did not confirm", zap.Error(result.Err), zap.String("hash", result.Outcome.Hash))
			return
		}
		logger.Info("Deployment confirmed", zap.String("hash", result.Outcome.Hash))
	}()

	return c.Status(fiber.StatusAccepted).JSON(session.Snapshot())
}

func (s *APIServer) handleCloseDeployment(c *fiber.Ctx) error {
	if err := s.store.CloseDeployment(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
