package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/rxtech-lab/contractgen/internal/services"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used for contract generation.
const DefaultModel = "gemini-2.0-flash"

// GeminiProvider streams completions from the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini endpoint.
	BaseURL string
	Logger  *zap.Logger
}

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  cfg.Model,
		logger: cfg.Logger.Named("gemini"),
	}, nil
}

// StartSession opens a chat seeded with history and the system instruction.
func (p *GeminiProvider) StartSession(ctx context.Context, systemInstruction string, history []services.Turn) (services.CompletionStream, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		contents = append(contents, genai.NewContentFromText(turn.Text, genai.Role(turn.Role)))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}
	chat, err := p.client.Chats.Create(ctx, p.model, config, contents)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	p.logger.Debug("Started chat", zap.String("model", p.model), zap.Int("history", len(history)))
	return &geminiStream{chat: chat}, nil
}

type geminiStream struct {
	chat *genai.Chat
}

// SendAndStream yields the text of every streamed response. Chunks without
// text, e.g. a final chunk carrying only the finish reason, are skipped.
func (s *geminiStream) SendAndStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range s.chat.SendMessageStream(ctx, genai.Part{Text: prompt}) {
			if err != nil {
				yield("", err)
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}
