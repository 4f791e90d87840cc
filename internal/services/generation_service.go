package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rxtech-lab/contractgen/internal/codeblock"
	"github.com/rxtech-lab/contractgen/internal/metrics"
	"github.com/rxtech-lab/contractgen/internal/models"
	"go.uber.org/zap"
)

// ExportFileName is the file name used when the generated response is downloaded.
const ExportFileName = "smart_contract.move"

// GenerationSnapshot is a point in time copy of a generation session.
type GenerationSnapshot struct {
	ID string `json:"id"`
	GenerationState
	CodeBlock codeblock.CodeBlock `json:"code_block"`
}

// GenerationSession holds the prompt, the chosen chain and the streamed response
// of one contract generation screen.
type GenerationSession struct {
	ID string

	provider CompletionProvider
	logger   *zap.Logger
	metrics  *metrics.Metrics

	// emitMu is held while a chunk is appended and handed to onChunk, and
	// while a new stream takes over. Lock order is emitMu then mu.
	emitMu    sync.Mutex
	mu        sync.Mutex
	state     GenerationState
	nextToken uint64
}

func NewGenerationSession(id string, provider CompletionProvider, logger *zap.Logger, m *metrics.Metrics) *GenerationSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationSession{
		ID:       id,
		provider: provider,
		logger:   logger.With(zap.String("generation_id", id)),
		metrics:  m,
		state:    newGenerationState(),
	}
}

// SelectChain changes the chain used by the next Generate call.
func (s *GenerationSession) SelectChain(chain models.Chain) {
	s.dispatch(chainSelected{chain: chain})
}

// Generate streams a contract for prompt on chain. onChunk, when set, receives
// every chunk appended to the response in arrival order. A later call to
// Generate supersedes this one: the older stream is abandoned and
// ErrGenerationSuperseded is returned.
func (s *GenerationSession) Generate(ctx context.Context, prompt string, chain models.Chain, onChunk func(string)) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}

	s.emitMu.Lock()
	s.mu.Lock()
	s.nextToken++
	token := s.nextToken
	s.state = reduceGeneration(s.state, generationStarted{token: token, prompt: prompt, chain: chain})
	s.mu.Unlock()
	s.emitMu.Unlock()

	logger := s.logger.With(zap.String("chain", chain.String()), zap.Uint64("token", token))
	logger.Info("Starting contract generation")

	err := s.stream(ctx, token, prompt, chain, onChunk)
	switch {
	case err == nil:
		s.dispatch(streamCompleted{token: token})
		s.metrics.RecordGeneration(chain.String(), "completed")
		logger.Info("Contract generation completed")
		return nil
	case err == ErrGenerationSuperseded:
		s.metrics.RecordGeneration(chain.String(), "superseded")
		logger.Debug("Contract generation superseded")
		return err
	default:
		s.dispatch(streamFailed{token: token, err: err})
		s.metrics.RecordGeneration(chain.String(), "failed")
		logger.Error("Contract generation failed", zap.Error(err))
		return err
	}
}

func (s *GenerationSession) stream(ctx context.Context, token uint64, prompt string, chain models.Chain, onChunk func(string)) error {
	history := []Turn{{Role: RoleUser, Text: prompt}}
	session, err := s.provider.StartSession(ctx, SystemInstruction(chain), history)
	if err != nil {
		return fmt.Errorf("failed to start completion session: %w", err)
	}

	for chunk, err := range session.SendAndStream(ctx, prompt) {
		if !s.isCurrent(token) {
			return ErrGenerationSuperseded
		}
		if err != nil {
			return fmt.Errorf("failed to stream completion: %w", err)
		}
		if !s.appendChunk(token, chunk, onChunk) {
			return ErrGenerationSuperseded
		}
		s.metrics.RecordGenerationChunk(chain.String())
	}
	if !s.isCurrent(token) {
		return ErrGenerationSuperseded
	}
	return nil
}

func (s *GenerationSession) isCurrent(token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.token == token
}

// appendChunk appends chunk and hands it to onChunk unless a newer stream
// took over. No newer stream can start until onChunk returns.
func (s *GenerationSession) appendChunk(token uint64, chunk string, onChunk func(string)) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.state.token != token {
		s.mu.Unlock()
		return false
	}
	s.state = reduceGeneration(s.state, chunkReceived{token: token, text: chunk})
	s.mu.Unlock()

	if onChunk != nil {
		onChunk(chunk)
	}
	return true
}

func (s *GenerationSession) dispatch(event generationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = reduceGeneration(s.state, event)
}

// Snapshot returns the current state together with the code block derived from the response.
func (s *GenerationSession) Snapshot() GenerationSnapshot {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	return GenerationSnapshot{
		ID:              s.ID,
		GenerationState: state,
		CodeBlock:       codeblock.Extract(state.Response),
	}
}

// Handoff captures the raw response and chain for the deployment screen.
func (s *GenerationSession) Handoff() Handoff {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Handoff{Contract: s.state.Response, Chain: s.state.Chain}
}

// Export writes the raw response, fences included, to w.
func (s *GenerationSession) Export(w io.Writer) error {
	s.mu.Lock()
	response := s.state.Response
	s.mu.Unlock()
	_, err := io.WriteString(w, response)
	return err
}
