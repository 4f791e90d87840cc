package services

import (
	"fmt"

	"github.com/rxtech-lab/contractgen/internal/models"
)

// GenerationErrorMessage replaces the response when a stream fails.
const GenerationErrorMessage = "Error occurred while fetching response."

type GenerationStatus string

const (
	GenerationIdle      GenerationStatus = "idle"
	GenerationStreaming GenerationStatus = "streaming"
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// GenerationState is the full state of a generation session.
type GenerationState struct {
	Status   GenerationStatus `json:"status"`
	Prompt   string           `json:"prompt"`
	Chain    models.Chain     `json:"chain"`
	Response string           `json:"response"`
	Error    string           `json:"error,omitempty"`

	// token identifies the stream allowed to write into Response.
	token uint64
}

func newGenerationState() GenerationState {
	return GenerationState{Status: GenerationIdle, Chain: models.DefaultChain}
}

type generationEvent interface {
	isGenerationEvent()
}

type chainSelected struct {
	chain models.Chain
}

type generationStarted struct {
	token  uint64
	prompt string
	chain  models.Chain
}

type chunkReceived struct {
	token uint64
	text  string
}

type streamCompleted struct {
	token uint64
}

type streamFailed struct {
	token uint64
	err   error
}

func (chainSelected) isGenerationEvent()     {}
func (generationStarted) isGenerationEvent() {}
func (chunkReceived) isGenerationEvent()     {}
func (streamCompleted) isGenerationEvent()   {}
func (streamFailed) isGenerationEvent()      {}

// reduceGeneration applies event to state. Stream events from any token other
// than the current one are dropped, and a finished response is never touched
// again by its own stream.
func reduceGeneration(state GenerationState, event generationEvent) GenerationState {
	switch e := event.(type) {
	case chainSelected:
		state.Chain = e.chain
		return state

	case generationStarted:
		return GenerationState{
			Status: GenerationStreaming,
			Prompt: e.prompt,
			Chain:  e.chain,
			token:  e.token,
		}

	case chunkReceived:
		if e.token != state.token || state.Status != GenerationStreaming {
			return state
		}
		state.Response += e.text
		return state

	case streamCompleted:
		if e.token != state.token || state.Status != GenerationStreaming {
			return state
		}
		state.Status = GenerationCompleted
		return state

	case streamFailed:
		if e.token != state.token || state.Status != GenerationStreaming {
			return state
		}
		state.Status = GenerationFailed
		state.Response = GenerationErrorMessage
		if e.err != nil {
			state.Error = e.err.Error()
		}
		return state

	default:
		panic(fmt.Sprintf("unhandled generation event %T", event))
	}
}
