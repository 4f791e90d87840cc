package services

import (
	"context"
	"fmt"
	"iter"

	"github.com/rxtech-lab/contractgen/internal/models"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message of the conversation history given to the model.
type Turn struct {
	Role Role
	Text string
}

// CompletionProvider opens streaming chat sessions with a generative model.
type CompletionProvider interface {
	StartSession(ctx context.Context, systemInstruction string, history []Turn) (CompletionStream, error)
}

// CompletionStream sends a prompt and yields the response text chunk by chunk.
// Each call returns a fresh, finite sequence. A non-nil error ends the sequence.
type CompletionStream interface {
	SendAndStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// SystemInstruction builds the generator instruction for the selected chain.
func SystemInstruction(chain models.Chain) string {
	return fmt.Sprintf(
		"You are a smart contract generator. The user wants to generate a smart contract for the %s blockchain using %s. Generate a fully functional smart contract code based on the given prompt.",
		chain, chain.InstructionLanguage(),
	)
}
