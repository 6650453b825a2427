package generation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/phrazzld/gapfill-api/internal/domain"
)

//go:embed prompts/exercises.tmpl
var defaultPromptTemplate string

// anyTopic is what the prompt says when the request has no topic filter.
const anyTopic = "any"

// promptData represents the data passed to the prompt template
type promptData struct {
	Count              int
	Levels             []string
	Topics             string
	TopicList          []string
	Avoid              []string
	Languages          []string
	GapMarker          string
	ExplanationExample string
}

// PromptBuilder renders generation prompts. The output depends only on the
// request contents, never on their order.
type PromptBuilder struct {
	tmpl      *template.Template
	languages []string
}

// NewPromptBuilder parses the template at path, or the embedded default when
// path is empty.
func NewPromptBuilder(path string, languages []string) (*PromptBuilder, error) {
	if len(languages) == 0 {
		return nil, fmt.Errorf("%w: at least one explanation language is required", ErrInvalidConfig)
	}

	text := defaultPromptTemplate
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
				ErrInvalidConfig, path, err)
		}
		text = string(content)
	}

	tmpl, err := template.New("exercises").
		Funcs(template.FuncMap{"join": strings.Join}).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidConfig, err)
	}

	langs := append([]string(nil), languages...)
	sort.Strings(langs)
	return &PromptBuilder{tmpl: tmpl, languages: langs}, nil
}

// Build renders the prompt for req.
func (b *PromptBuilder) Build(req Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	levels := append([]domain.Level(nil), req.Levels...)
	domain.SortLevels(levels)

	topics := append([]string(nil), req.Topics...)
	sort.Strings(topics)
	topicText := anyTopic
	if len(topics) > 0 {
		topicText = strings.Join(topics, ", ")
	}

	data := promptData{
		Count:              req.Count,
		Levels:             domain.LevelStrings(levels),
		Topics:             topicText,
		TopicList:          topics,
		Avoid:              sortedUnique(req.AvoidAnswers),
		Languages:          b.languages,
		GapMarker:          domain.GapMarker,
		ExplanationExample: explanationExample(b.languages),
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

func explanationExample(languages []string) string {
	example := make(map[string]string, len(languages))
	for _, lang := range languages {
		example[lang] = "..."
	}
	// encoding/json sorts map keys, so the example is stable.
	out, _ := json.Marshal(example)
	return string(out)
}

func sortedUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
