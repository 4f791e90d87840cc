package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
	"go.uber.org/zap"
)

type CreateGenerationRequest struct {
	Chain string `json:"chain"`
}

type GenerateRequest struct {
	Prompt string `json:"prompt"`
	// Chain defaults to the chain currently selected on the session.
	Chain string `json:"chain,omitempty"`
}

type ChunkEvent struct {
	Text string `json:"text"`
}

type ErrorEvent struct {
	Error string `json:"error"`
}

func (s *APIServer) handleCreateGeneration(c *fiber.Ctx) error {
	var body CreateGenerationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	chain, err := models.ParseChain(body.Chain)
	if err != nil {
		return badRequest(c, err.Error())
	}

	session := s.store.CreateGeneration()
	session.SelectChain(chain)
	return c.Status(fiber.StatusCreated).JSON(session.Snapshot())
}

func (s *APIServer) handleGetGeneration(c *fiber.Ctx) error {
	session, err := s.store.Generation(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(session.Snapshot())
}

// handleGenerate streams the completion as server-sent events: one "chunk"
// event per appended chunk, an "error" event when the stream fails and a final
// "done" event carrying the session snapshot.
func (s *APIServer) handleGenerate(c *fiber.Ctx) error {
	var body GenerateRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(body.Prompt) == "" {
		return respondError(c, services.ErrEmptyPrompt)
	}

	session, err := s.store.Generation(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	chain := session.Snapshot().Chain
	if body.Chain != "" {
		chain, err = models.ParseChain(body.Chain)
		if err != nil {
			return badRequest(c, err.Error())
		}
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	logger := s.logger.With(zap.String("generation_id", session.ID))
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(s.baseCtx)
		defer cancel()

		err := session.Generate(ctx, body.Prompt, chain, func(chunk string) {
			if err := writeEvent(w, "chunk", ChunkEvent{Text: chunk}); err != nil {
				// client went away
				cancel()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			message := err.Error()
			if !errors.Is(err, services.ErrGenerationSuperseded) {
				message = services.GenerationErrorMessage
			}
			if writeErr := writeEvent(w, "error", ErrorEvent{Error: message}); writeErr != nil {
				logger.Debug("Failed to write error event", zap.Error(writeErr))
				return
			}
		}
		if err := writeEvent(w, "done", session.Snapshot()); err != nil {
			logger.Debug("Failed to write done event", zap.Error(err))
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return w.Flush()
}

func (s *APIServer) handleDownload(c *fiber.Ctx) error {
	session, err := s.store.Generation(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	c.Set("Content-Type", "text/plain; charset=utf-8")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", services.ExportFileName))
	return session.Export(c)
}

func (s *APIServer) handleHandoff(c *fiber.Ctx) error {
	deployment, err := s.store.Handoff(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(deployment.Snapshot())
}

// handleCloseGeneration leaves the generation screen.
func (s *APIServer) handleCloseGeneration(c *fiber.Ctx) error {
	if err := s.store.CloseGeneration(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
