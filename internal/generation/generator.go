package generation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/platform/logger"
)

// Request describes what to generate.
type Request struct {
	Levels       []domain.Level
	Topics       []string
	Count        int
	AvoidAnswers []string
}

func (r Request) validate() error {
	if len(r.Levels) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, domain.ErrNoLevels)
	}
	if r.Count < 1 {
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidRequest, r.Count)
	}
	return nil
}

// Result is the outcome of one model call.
type Result struct {
	// Exercises holds at most Request.Count validated exercises.
	Exercises []*domain.Exercise
	// Rejected lists candidates dropped by validation.
	Rejected []Rejection
	// Candidates is the number of array elements the model returned.
	Candidates int
}

// Generator produces validated exercises from a Model.
type Generator struct {
	model     Model
	prompts   *PromptBuilder
	validator *CandidateValidator
	logger    *slog.Logger
}

// NewGenerator creates a Generator. It panics on a nil dependency.
func NewGenerator(model Model, prompts *PromptBuilder, validator *CandidateValidator, log *slog.Logger) *Generator {
	if model == nil {
		panic("model cannot be nil")
	}
	if prompts == nil {
		panic("prompt builder cannot be nil")
	}
	if validator == nil {
		panic("candidate validator cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		model:     model,
		prompts:   prompts,
		validator: validator,
		logger:    log.With(slog.String("component", "generator")),
	}
}

// Generate makes exactly one model call. Invalid candidates are dropped
// individually; an error is returned only when the call fails, the response
// holds no JSON array, or no candidate survives validation.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	prompt, err := g.prompts.Build(req)
	if err != nil {
		return nil, err
	}

	log.DebugContext(ctx, "calling model",
		slog.Any("levels", domain.LevelStrings(req.Levels)),
		slog.Any("topics", req.Topics),
		slog.Int("count", req.Count),
		slog.Int("prompt_length", len(prompt)))

	text, err := g.model.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to call model: %w", err)
	}

	raw, err := ExtractJSONArray(text)
	if err != nil {
		log.WarnContext(ctx, "model response contained no JSON array",
			slog.Int("response_length", len(text)))
		return nil, err
	}

	exercises, rejected, err := g.validator.ValidateAll(raw, req)
	if err != nil {
		return nil, err
	}

	for _, r := range rejected {
		log.InfoContext(ctx, "dropped invalid candidate",
			slog.Int("index", r.Index),
			slog.String("reason", r.Reason))
	}

	result := &Result{
		Exercises:  exercises,
		Rejected:   rejected,
		Candidates: len(exercises) + len(rejected),
	}
	if len(result.Exercises) > req.Count {
		result.Exercises = result.Exercises[:req.Count]
	}

	if len(result.Exercises) == 0 {
		return result, fmt.Errorf("%w: none of %d candidates passed validation",
			ErrGenerationFailed, result.Candidates)
	}

	log.InfoContext(ctx, "generation finished",
		slog.Int("candidates", result.Candidates),
		slog.Int("accepted", len(result.Exercises)),
		slog.Int("rejected", len(rejected)))
	return result, nil
}
