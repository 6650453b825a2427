package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/generation"
	"github.com/phrazzld/gapfill-api/internal/store"
	"github.com/phrazzld/gapfill-api/internal/task"
)

var testLanguages = []string{"en", "es"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makeExercise builds a valid exercise whose sentence and answer are unique per tag.
func makeExercise(level domain.Level, topic, tag string) *domain.Exercise {
	return domain.NewExercise(
		fmt.Sprintf("Frase %s: yo ___ todos los días.", tag),
		"respuesta"+tag,
		level,
		topic,
		[]string{"otra" + tag, "más" + tag},
		map[string]string{"en": "Explanation " + tag, "es": "Explicación " + tag},
		domain.NoHint{},
		domain.SourceGenerated,
	)
}

func makeExercises(level domain.Level, topic, prefix string, n int) []*domain.Exercise {
	out := make([]*domain.Exercise, n)
	for i := range n {
		out[i] = makeExercise(level, topic, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

// fakeCache is an in-memory ExerciseCache that honors the query filters.
type fakeCache struct {
	mu        sync.Mutex
	rows      []*domain.Exercise
	QueryErr  error
	SaveErr   error
	queries   []store.ExerciseQuery
	saveCalls int
}

func (c *fakeCache) Query(ctx context.Context, q store.ExerciseQuery) ([]*domain.Exercise, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, q)
	if c.QueryErr != nil {
		return nil, c.QueryErr
	}

	excluded := make(map[string]struct{}, len(q.ExcludeAnswers))
	for _, a := range q.ExcludeAnswers {
		excluded[domain.NormalizeAnswer(a)] = struct{}{}
	}
	var out []*domain.Exercise
	for _, ex := range c.rows {
		if len(out) == q.Limit {
			break
		}
		if !domain.ContainsLevel(q.Levels, ex.Level) || !domain.ContainsTopic(q.Topics, ex.Topic) {
			continue
		}
		if _, ok := excluded[ex.AnswerKey()]; ok {
			continue
		}
		out = append(out, ex)
	}
	return out, nil
}

func (c *fakeCache) SaveBatch(ctx context.Context, exercises []*domain.Exercise) ([]uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saveCalls++
	if c.SaveErr != nil {
		return nil, c.SaveErr
	}

	existing := make(map[domain.DedupKey]struct{}, len(c.rows))
	for _, ex := range c.rows {
		existing[domain.DedupKeyFor(ex)] = struct{}{}
	}
	var ids []uuid.UUID
	for _, ex := range exercises {
		if !domain.ShouldInsert(ex, existing) {
			continue
		}
		existing[domain.DedupKeyFor(ex)] = struct{}{}
		c.rows = append(c.rows, ex)
		ids = append(ids, ex.ID)
	}
	return ids, nil
}

func (c *fakeCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

type generatorFunc func(ctx context.Context, req generation.Request) (*generation.Result, error)

func (f generatorFunc) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	return f(ctx, req)
}

// recordingGenerator returns req.Count fresh exercises and remembers every request.
type recordingGenerator struct {
	mu       sync.Mutex
	requests []generation.Request
	produce  int
	err      error
}

func (g *recordingGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	call := len(g.requests)
	g.mu.Unlock()

	if g.err != nil {
		return nil, g.err
	}
	n := req.Count
	if g.produce > 0 && g.produce < n {
		n = g.produce
	}
	topic := "verbs"
	if len(req.Topics) > 0 {
		topic = req.Topics[0]
	}
	exs := makeExercises(req.Levels[0], topic, fmt.Sprintf("gen%d-", call), n)
	return &generation.Result{Exercises: exs, Candidates: n}, nil
}

func (g *recordingGenerator) calls() []generation.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generation.Request(nil), g.requests...)
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	requests []task.EnqueueRequest
	err      error
}

func (e *recordingEnqueuer) Enqueue(ctx context.Context, req task.EnqueueRequest) (uuid.UUID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if e.err != nil {
		return uuid.Nil, e.err
	}
	return uuid.New(), nil
}

func (e *recordingEnqueuer) calls() []task.EnqueueRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]task.EnqueueRequest(nil), e.requests...)
}

type excluderFunc func(ctx context.Context, sessionID string) ([]string, error)

func (f excluderFunc) ExcludeAnswers(ctx context.Context, sessionID string) ([]string, error) {
	return f(ctx, sessionID)
}
