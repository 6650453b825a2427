package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/gapfill-api/internal/config"
	"github.com/phrazzld/gapfill-api/internal/generation"
	"github.com/phrazzld/gapfill-api/internal/platform/logger"
	"google.golang.org/genai"
)

// systemInstruction keeps the model on the output contract the extractor expects.
const systemInstruction = "You are an experienced Spanish teacher. " +
	"Answer with a single JSON array and nothing else."

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Model implements generation.Model using the Gemini API.
type Model struct {
	logger    *slog.Logger
	generator contentGenerator
	model     string
	config    *genai.GenerateContentConfig
}

var _ generation.Model = (*Model)(nil)

// NewModel creates a Gemini-backed model from the LLM configuration.
func NewModel(ctx context.Context, log *slog.Logger, cfg config.LLMConfig) (*Model, error) {
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	log.InfoContext(ctx, "gemini model initialized", slog.String("model", cfg.ModelName))
	return newModel(client.Models, cfg, log), nil
}

func newModel(gen contentGenerator, cfg config.LLMConfig, log *slog.Logger) *Model {
	temperature := float32(cfg.Temperature)
	return &Model{
		logger:    log.With(slog.String("component", "gemini")),
		generator: gen,
		model:     cfg.ModelName,
		config: &genai.GenerateContentConfig{
			Temperature:       &temperature,
			MaxOutputTokens:   int32(cfg.MaxOutputTokens),
			ResponseMIMEType:  "application/json",
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
		},
	}
}

func validateConfig(cfg config.LLMConfig) error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.MaxOutputTokens <= 0 {
		return fmt.Errorf("%w: max output tokens must be positive", generation.ErrInvalidConfig)
	}
	return nil
}

// Complete sends prompt as a single user turn and returns the response text.
func (m *Model) Complete(ctx context.Context, prompt string) (string, error) {
	log := logger.FromContextOrDefault(ctx, m.logger)
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", generation.ErrInvalidRequest)
	}

	resp, err := m.generator.GenerateContent(ctx, m.model, genai.Text(prompt), m.config)
	if err != nil {
		classified := classifyError(err)
		log.WarnContext(ctx, "gemini call failed",
			slog.String("model", m.model),
			slog.String("error", classified.Error()))
		return "", classified
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", generation.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: finish reason %s", generation.ErrContentBlocked, resp.Candidates[0].FinishReason)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	log.DebugContext(ctx, "gemini call succeeded",
		slog.String("model", m.model),
		slog.Int("response_length", len(text)))
	return text, nil
}
