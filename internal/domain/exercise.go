package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source records where an exercise came from. It is used for reporting only.
type Source string

// Exercise sources.
const (
	SourceGenerated Source = "generated"
	SourceStatic    Source = "static"
	SourceAdmin     Source = "admin"
)

// DefaultDifficultyScore is used when nothing better is known.
const DefaultDifficultyScore = 0.5

// Option bounds for the multiple-choice set built from answer plus distractors.
const (
	MinDistractors = 1
	MaxDistractors = 3
)

// Exercise is a single gap-fill item.
type Exercise struct {
	ID               uuid.UUID
	SentenceTemplate string
	CorrectAnswer    string
	Level            Level
	Topic            string
	Distractors      []string
	Explanations     map[string]string
	Hint             Hint
	Source           Source
	DifficultyScore  float64
	UsageCount       int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewExercise builds an exercise with a fresh ID and timestamps. The hint
// defaults to NoHint and the difficulty to the level's default when zero.
func NewExercise(
	sentence, answer string,
	level Level,
	topic string,
	distractors []string,
	explanations map[string]string,
	hint Hint,
	source Source,
) *Exercise {
	if hint == nil {
		hint = NoHint{}
	}
	now := time.Now().UTC()
	return &Exercise{
		ID:               uuid.New(),
		SentenceTemplate: strings.TrimSpace(sentence),
		CorrectAnswer:    strings.TrimSpace(answer),
		Level:            level,
		Topic:            topic,
		Distractors:      trimAll(distractors),
		Explanations:     explanations,
		Hint:             hint,
		Source:           source,
		DifficultyScore:  level.DefaultDifficulty(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Validate checks the exercise invariants. requiredLanguages lists the UI
// languages that must each have an explanation.
func (e *Exercise) Validate(requiredLanguages []string) error {
	if e.ID == uuid.Nil {
		return ErrEmptyExerciseID
	}
	if strings.TrimSpace(e.SentenceTemplate) == "" {
		return ErrEmptySentence
	}
	if CountGaps(e.SentenceTemplate) != 1 {
		return ErrGapMarkerCount
	}
	if strings.TrimSpace(e.CorrectAnswer) == "" {
		return ErrEmptyCorrectAnswer
	}
	if !e.Level.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, e.Level)
	}
	if !IsKnownTopic(e.Topic) {
		return fmt.Errorf("%w: %q", ErrUnknownTopic, e.Topic)
	}
	if err := validateDistractors(e.CorrectAnswer, e.Distractors); err != nil {
		return err
	}
	for _, lang := range requiredLanguages {
		if strings.TrimSpace(e.Explanations[lang]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingExplanation, lang)
		}
	}
	if !isValidSource(e.Source) {
		return ErrInvalidSource
	}
	if e.DifficultyScore < 0 || e.DifficultyScore > 1 {
		return ErrDifficultyRange
	}
	if e.UsageCount < 0 {
		return ErrNegativeUsage
	}
	return nil
}

// Options returns the correct answer followed by the distractors.
func (e *Exercise) Options() []string {
	opts := make([]string, 0, len(e.Distractors)+1)
	opts = append(opts, e.CorrectAnswer)
	return append(opts, e.Distractors...)
}

// AnswerKey is the normalized answer used for mastery exclusion.
func (e *Exercise) AnswerKey() string {
	return NormalizeAnswer(e.CorrectAnswer)
}

func validateDistractors(answer string, distractors []string) error {
	if len(distractors) < MinDistractors || len(distractors) > MaxDistractors {
		return ErrDistractorCount
	}
	seen := map[string]struct{}{NormalizeSentence(answer): {}}
	for _, d := range distractors {
		key := NormalizeSentence(d)
		if key == "" {
			return ErrDistractorCount
		}
		if _, dup := seen[key]; dup {
			return ErrDistractorOverlap
		}
		seen[key] = struct{}{}
	}
	return nil
}

func isValidSource(s Source) bool {
	switch s {
	case SourceGenerated, SourceStatic, SourceAdmin:
		return true
	default:
		return false
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
