package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

// candidateSchema describes one element of the model's JSON array. Domain
// rules that depend on the request are checked after the schema passes.
const candidateSchema = `{
  "type": "object",
  "required": ["sentence", "correct_answer", "level", "topic", "explanations"],
  "properties": {
    "sentence":       {"type": "string", "minLength": 1},
    "correct_answer": {"type": "string", "minLength": 1},
    "options":        {"type": "array", "items": {"type": "string"}, "minItems": 2, "maxItems": 4},
    "distractors":    {"type": "array", "items": {"type": "string"}, "minItems": 1, "maxItems": 3},
    "level":          {"type": "string", "minLength": 2},
    "topic":          {"type": "string", "minLength": 1},
    "explanations":   {"type": "object", "additionalProperties": {"type": "string"}},
    "hint":           {"type": ["object", "null"]},
    "difficulty":     {"type": ["number", "null"], "minimum": 0, "maximum": 1}
  },
  "anyOf": [
    {"required": ["options"]},
    {"required": ["distractors"]}
  ]
}`

var compiledCandidateSchema = mustCompileSchema(candidateSchema)

func mustCompileSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("generation: invalid candidate schema: %v", err))
	}
	return schema
}

// Candidate is one exercise as the model writes it. Either Options (answer
// included) or Distractors may carry the alternatives.
type Candidate struct {
	Sentence      string             `json:"sentence"`
	CorrectAnswer string             `json:"correct_answer"`
	Options       []string           `json:"options,omitempty"`
	Distractors   []string           `json:"distractors,omitempty"`
	Level         string             `json:"level"`
	Topic         string             `json:"topic"`
	Explanations  map[string]string  `json:"explanations"`
	Hint          *domain.HintFields `json:"hint,omitempty"`
	Difficulty    *float64           `json:"difficulty,omitempty"`
}

// Rejection records why the candidate at Index was dropped.
type Rejection struct {
	Index  int
	Reason string
}

// CandidateValidator checks model output against the schema and the request.
type CandidateValidator struct {
	languages []string
}

// NewCandidateValidator returns a validator requiring explanations in languages.
func NewCandidateValidator(languages []string) *CandidateValidator {
	return &CandidateValidator{languages: append([]string(nil), languages...)}
}

// ValidateAll splits an extracted JSON array into accepted exercises and
// per-candidate rejections. Only an array that cannot be decoded at all is an error.
func (v *CandidateValidator) ValidateAll(raw json.RawMessage, req Request) ([]*domain.Exercise, []Rejection, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	accepted := make([]*domain.Exercise, 0, len(items))
	var rejected []Rejection
	for i, item := range items {
		ex, err := v.Validate(item, req)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Reason: err.Error()})
			continue
		}
		accepted = append(accepted, ex)
	}
	return accepted, rejected, nil
}

// Validate converts a single candidate into a generated exercise. Every
// failure wraps ErrInvalidCandidate.
func (v *CandidateValidator) Validate(item json.RawMessage, req Request) (*domain.Exercise, error) {
	result, err := compiledCandidateSchema.Validate(gojsonschema.NewBytesLoader(item))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidCandidate, strings.Join(msgs, "; "))
	}

	var c Candidate
	if err := json.Unmarshal(item, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}

	level, err := domain.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}
	if !domain.ContainsLevel(req.Levels, level) {
		return nil, fmt.Errorf("%w: level %s was not requested", ErrInvalidCandidate, level)
	}

	topic := strings.ToLower(strings.TrimSpace(c.Topic))
	if !domain.ContainsTopic(req.Topics, topic) {
		return nil, fmt.Errorf("%w: topic %q was not requested", ErrInvalidCandidate, topic)
	}

	distractors, err := distractorsOf(c)
	if err != nil {
		return nil, err
	}

	if len(req.AvoidAnswers) > 0 {
		key := domain.NormalizeAnswer(c.CorrectAnswer)
		for _, a := range req.AvoidAnswers {
			if domain.NormalizeAnswer(a) == key {
				return nil, fmt.Errorf("%w: answer %q is on the avoid list", ErrInvalidCandidate, c.CorrectAnswer)
			}
		}
	}

	var hint domain.Hint = domain.NoHint{}
	if c.Hint != nil {
		hint = domain.NewHint(*c.Hint)
	}

	ex := domain.NewExercise(c.Sentence, c.CorrectAnswer, level, topic, distractors,
		c.Explanations, hint, domain.SourceGenerated)
	if c.Difficulty != nil {
		ex.DifficultyScore = *c.Difficulty
	}

	if err := ex.Validate(v.languages); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}
	return ex, nil
}

// distractorsOf prefers the options list, which must contain the answer.
func distractorsOf(c Candidate) ([]string, error) {
	if len(c.Options) == 0 {
		return c.Distractors, nil
	}

	answer := domain.NormalizeSentence(c.CorrectAnswer)
	found := false
	out := make([]string, 0, len(c.Options))
	for _, opt := range c.Options {
		if domain.NormalizeSentence(opt) == answer {
			found = true
			continue
		}
		out = append(out, opt)
	}
	if !found {
		return nil, fmt.Errorf("%w: options do not include the correct answer", ErrInvalidCandidate)
	}
	return out, nil
}
