package seedbank

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/platform/logger"
	"gopkg.in/yaml.v3"
)

//go:embed seeds.yaml
var defaultSeeds []byte

// ErrMissingLevel is returned when a bank has no entry for some level.
var ErrMissingLevel = errors.New("seed bank has no exercise for level")

// seedNamespace derives stable exercise IDs from the dedup key.
var seedNamespace = uuid.MustParse("6f1c2b8e-4a57-4c0e-9d3a-2f7e5b1c9a40")

type seedFile struct {
	Exercises []seedEntry `yaml:"exercises"`
}

type seedEntry struct {
	Sentence     string             `yaml:"sentence"`
	Answer       string             `yaml:"answer"`
	Distractors  []string           `yaml:"distractors"`
	Level        string             `yaml:"level"`
	Topic        string             `yaml:"topic"`
	Explanations map[string]string  `yaml:"explanations"`
	Hint         *domain.HintFields `yaml:"hint"`
	Difficulty   *float64           `yaml:"difficulty"`
}

type levelTopic struct {
	level domain.Level
	topic string
}

// Bank is an immutable, in-memory set of static exercises.
type Bank struct {
	all          []*domain.Exercise
	byLevel      map[domain.Level][]*domain.Exercise
	byLevelTopic map[levelTopic][]*domain.Exercise
}

// Default parses the embedded seed file.
func Default(languages []string) (*Bank, error) {
	return Parse(defaultSeeds, languages)
}

// Parse builds a bank from YAML. Every entry must validate against the
// required explanation languages and every level must be represented.
func Parse(data []byte, languages []string) (*Bank, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed bank: %w", err)
	}

	b := &Bank{
		byLevel:      make(map[domain.Level][]*domain.Exercise),
		byLevelTopic: make(map[levelTopic][]*domain.Exercise),
	}
	seen := make(map[domain.DedupKey]struct{}, len(f.Exercises))

	for i, entry := range f.Exercises {
		ex, err := entry.toExercise()
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", i, err)
		}
		if err := ex.Validate(languages); err != nil {
			return nil, fmt.Errorf("seed %d (%q): %w", i, entry.Sentence, err)
		}
		if !domain.ShouldInsert(ex, seen) {
			return nil, fmt.Errorf("seed %d (%q): duplicate of an earlier entry", i, entry.Sentence)
		}
		seen[domain.DedupKeyFor(ex)] = struct{}{}
		b.add(ex)
	}

	for _, l := range domain.AllLevels {
		if len(b.byLevel[l]) == 0 {
			return nil, fmt.Errorf("%w %s", ErrMissingLevel, l)
		}
	}
	return b, nil
}

func (e seedEntry) toExercise() (*domain.Exercise, error) {
	level, err := domain.ParseLevel(e.Level)
	if err != nil {
		return nil, err
	}
	var hint domain.Hint = domain.NoHint{}
	if e.Hint != nil {
		hint = domain.NewHint(*e.Hint)
	}
	ex := domain.NewExercise(e.Sentence, e.Answer, level, strings.ToLower(strings.TrimSpace(e.Topic)),
		e.Distractors, e.Explanations, hint, domain.SourceStatic)
	if e.Difficulty != nil {
		ex.DifficultyScore = *e.Difficulty
	}
	ex.ID = seedID(domain.DedupKeyFor(ex))
	return ex, nil
}

func seedID(k domain.DedupKey) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(string(k.Level)+"|"+k.Topic+"|"+k.Sentence))
}

func (b *Bank) add(ex *domain.Exercise) {
	b.all = append(b.all, ex)
	b.byLevel[ex.Level] = append(b.byLevel[ex.Level], ex)
	key := levelTopic{level: ex.Level, topic: ex.Topic}
	b.byLevelTopic[key] = append(b.byLevelTopic[key], ex)
}

// Len returns the number of exercises in the bank.
func (b *Bank) Len() int {
	return len(b.all)
}

// All returns copies of every exercise in the bank.
func (b *Bank) All() []*domain.Exercise {
	out := make([]*domain.Exercise, 0, len(b.all))
	for _, ex := range b.all {
		out = append(out, clone(ex))
	}
	return out
}

// PickRequest selects static exercises.
type PickRequest struct {
	Levels []domain.Level
	Topics []string
	Count  int
	// ExcludeIDs and ExcludeAnswers are honored as long as enough entries remain.
	ExcludeIDs     map[uuid.UUID]struct{}
	ExcludeAnswers []string
}

// Pick returns up to req.Count exercises for the requested levels, preferring
// topic matches. Excluded answers are only served when nothing else is left,
// so a request with at least one valid level never comes back empty. Excluded
// IDs are never served.
func (b *Bank) Pick(req PickRequest) []*domain.Exercise {
	if req.Count <= 0 {
		return nil
	}

	mastered := make(map[string]struct{}, len(req.ExcludeAnswers))
	for _, a := range req.ExcludeAnswers {
		mastered[domain.NormalizeAnswer(a)] = struct{}{}
	}

	var topicHits, levelHits []*domain.Exercise
	for _, l := range req.Levels {
		if len(req.Topics) > 0 {
			for _, t := range req.Topics {
				topicHits = append(topicHits, b.byLevelTopic[levelTopic{level: l, topic: t}]...)
			}
		}
		levelHits = append(levelHits, b.byLevel[l]...)
	}
	shuffle(topicHits)
	shuffle(levelHits)

	picked := make([]*domain.Exercise, 0, req.Count)
	taken := make(map[uuid.UUID]struct{}, req.Count)
	var masteredOnly []*domain.Exercise

	take := func(candidates []*domain.Exercise) {
		for _, ex := range candidates {
			if len(picked) == req.Count {
				return
			}
			if _, ok := taken[ex.ID]; ok {
				continue
			}
			if _, ok := req.ExcludeIDs[ex.ID]; ok {
				continue
			}
			taken[ex.ID] = struct{}{}
			if _, ok := mastered[ex.AnswerKey()]; ok {
				masteredOnly = append(masteredOnly, ex)
				continue
			}
			picked = append(picked, clone(ex))
		}
	}
	take(topicHits)
	take(levelHits)

	for _, ex := range masteredOnly {
		if len(picked) == req.Count {
			break
		}
		picked = append(picked, clone(ex))
	}
	return picked
}

// Saver persists exercises with dedup semantics.
type Saver interface {
	SaveBatch(ctx context.Context, exercises []*domain.Exercise) ([]uuid.UUID, error)
}

// Import writes the whole bank through s. It is idempotent because the store
// skips rows whose dedup key already exists.
func (b *Bank) Import(ctx context.Context, s Saver, log *slog.Logger) (int, error) {
	log = logger.FromContextOrDefault(ctx, log)

	inserted, err := s.SaveBatch(ctx, b.All())
	if err != nil {
		return 0, fmt.Errorf("failed to import seed bank: %w", err)
	}

	log.InfoContext(ctx, "seed bank imported",
		slog.Int("total", b.Len()),
		slog.Int("inserted", len(inserted)),
		slog.Int("skipped", b.Len()-len(inserted)))
	return len(inserted), nil
}

func shuffle(s []*domain.Exercise) {
	rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}

func clone(ex *domain.Exercise) *domain.Exercise {
	c := *ex
	c.Distractors = append([]string(nil), ex.Distractors...)
	c.Explanations = make(map[string]string, len(ex.Explanations))
	for k, v := range ex.Explanations {
		c.Explanations[k] = v
	}
	return &c
}
