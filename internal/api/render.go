package api

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/store"
)

// shuffleFunc reorders n elements through swap. Tests replace it to get a
// stable order.
type shuffleFunc func(n int, swap func(i, j int))

func exerciseToResponse(ex *domain.Exercise, shuffle shuffleFunc) ExerciseResponse {
	options := ex.Options()
	shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	return ExerciseResponse{
		ID:            ex.ID.String(),
		Sentence:      ex.SentenceTemplate,
		Options:       options,
		CorrectAnswer: ex.CorrectAnswer,
		Level:         string(ex.Level),
		Topic:         ex.Topic,
		Explanations:  ex.Explanations,
		Hint:          renderHint(ex.Hint),
		Source:        string(ex.Source),
		Difficulty:    ex.DifficultyScore,
	}
}

func exercisesToResponse(exercises []*domain.Exercise, shuffle shuffleFunc) []ExerciseResponse {
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	out := make([]ExerciseResponse, len(exercises))
	for i, ex := range exercises {
		out[i] = exerciseToResponse(ex, shuffle)
	}
	return out
}

// renderHint returns nil for NoHint.
func renderHint(h domain.Hint) *HintResponse {
	switch v := h.(type) {
	case nil, domain.NoHint:
		return nil
	case domain.InfinitiveOnly:
		return &HintResponse{
			Kind:       string(v.Kind()),
			Text:       fmt.Sprintf("(%s)", v.Infinitive),
			Infinitive: v.Infinitive,
		}
	case domain.InfinitiveWithPerson:
		return &HintResponse{
			Kind:       string(v.Kind()),
			Text:       fmt.Sprintf("(%s, %s)", v.Infinitive, v.Person),
			Infinitive: v.Infinitive,
			Person:     v.Person,
		}
	case domain.InfinitiveWithForm:
		return &HintResponse{
			Kind:       string(v.Kind()),
			Text:       fmt.Sprintf("(%s, %s)", v.Infinitive, v.Form),
			Infinitive: v.Infinitive,
			Form:       v.Form,
		}
	case domain.FullRule:
		return &HintResponse{
			Kind:       string(v.Kind()),
			Text:       fullRuleText(v),
			Infinitive: v.Infinitive,
			Person:     v.Person,
			Form:       v.Form,
			Rule:       v.Rule,
		}
	default:
		panic(fmt.Sprintf("api: unhandled hint type %T", h))
	}
}

func fullRuleText(h domain.FullRule) string {
	var parts []string
	for _, p := range []string{h.Infinitive, h.Person, h.Form} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return h.Rule
	}
	text := "(" + strings.Join(parts, ", ") + ")"
	if h.Rule != "" {
		text += " " + h.Rule
	}
	return text
}

func queueItemToResponse(item *domain.QueueItem) QueueItemResponse {
	topics := item.Topics
	if topics == nil {
		topics = []string{}
	}
	return QueueItemResponse{
		ID:            item.ID.String(),
		Status:        string(item.Status),
		Levels:        domain.LevelStrings(item.Levels),
		Topics:        topics,
		Priority:      string(item.Priority),
		InsertedCount: item.InsertedCount,
		Error:         item.ErrorMessage,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
}

func coverageToResponse(buckets []store.CoverageBucket, levels map[string]int) CoverageResponse {
	resp := CoverageResponse{
		Levels:  levels,
		Buckets: make([]CoverageBucketResponse, len(buckets)),
	}
	for i, b := range buckets {
		resp.Buckets[i] = CoverageBucketResponse{
			Level:  string(b.Level),
			Topic:  b.Topic,
			Source: string(b.Source),
			Count:  b.Count,
		}
		resp.Total += b.Count
	}
	return resp
}
