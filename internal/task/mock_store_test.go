package task

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/generation"
	"github.com/phrazzld/gapfill-api/internal/store"
)

// memQueueStore is an in-memory store.QueueStore with the same claim and
// transition rules as the postgres implementation.
type memQueueStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.QueueItem
	seq   map[uuid.UUID]int
	next  int

	ClaimErr error
}

var _ store.QueueStore = (*memQueueStore)(nil)

func newMemQueueStore() *memQueueStore {
	return &memQueueStore{
		items: make(map[uuid.UUID]*domain.QueueItem),
		seq:   make(map[uuid.UUID]int),
	}
}

func (m *memQueueStore) put(item *domain.QueueItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *item
	m.items[item.ID] = &c
	m.seq[item.ID] = m.next
	m.next++
}

func (m *memQueueStore) Enqueue(_ context.Context, item *domain.QueueItem) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := item.RequestKey()
	for id, existing := range m.items {
		if !existing.Status.IsTerminal() && existing.RequestKey() == key {
			return id, false, nil
		}
	}
	c := *item
	m.items[item.ID] = &c
	m.seq[item.ID] = m.next
	m.next++
	return item.ID, true, nil
}

func (m *memQueueStore) ClaimPending(_ context.Context, limit int) ([]*domain.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}

	var pending []*domain.QueueItem
	for _, it := range m.items {
		if it.Status == domain.QueueStatusPending {
			pending = append(pending, it)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		pi, pj := pending[i].Priority == domain.PriorityImmediate, pending[j].Priority == domain.PriorityImmediate
		if pi != pj {
			return pi
		}
		return m.seq[pending[i].ID] < m.seq[pending[j].ID]
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	out := make([]*domain.QueueItem, 0, len(pending))
	for _, it := range pending {
		if err := it.TransitionTo(domain.QueueStatusProcessing); err != nil {
			return nil, err
		}
		c := *it
		out = append(out, &c)
	}
	return out, nil
}

func (m *memQueueStore) finish(id uuid.UUID, next domain.QueueStatus, apply func(*domain.QueueItem)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return store.ErrQueueItemNotFound
	}
	if err := it.TransitionTo(next); err != nil {
		return err
	}
	apply(it)
	return nil
}

func (m *memQueueStore) Complete(_ context.Context, id uuid.UUID, inserted int) error {
	return m.finish(id, domain.QueueStatusCompleted, func(it *domain.QueueItem) { it.InsertedCount = inserted })
}

func (m *memQueueStore) Fail(_ context.Context, id uuid.UUID, message string) error {
	return m.finish(id, domain.QueueStatusFailed, func(it *domain.QueueItem) { it.ErrorMessage = message })
}

func (m *memQueueStore) GetByID(_ context.Context, id uuid.UUID) (*domain.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, store.ErrQueueItemNotFound
	}
	c := *it
	return &c, nil
}

func (m *memQueueStore) HasPending(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.Status == domain.QueueStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *memQueueStore) FailInterrupted(_ context.Context, message string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.items {
		if it.Status == domain.QueueStatusProcessing {
			it.Status = domain.QueueStatusFailed
			it.ErrorMessage = message
			n++
		}
	}
	return n, nil
}

func (m *memQueueStore) statuses() map[domain.QueueStatus]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.QueueStatus]int)
	for _, it := range m.items {
		out[it.Status]++
	}
	return out
}

func (m *memQueueStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// memExercises records saved exercises and answers coverage from a function.
type memExercises struct {
	mu      sync.Mutex
	saved   []*domain.Exercise
	CountFn func(levels []domain.Level, topics []string) (int, error)
	SaveErr error
}

func (m *memExercises) CountMatching(_ context.Context, levels []domain.Level, topics []string) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(levels, topics)
	}
	return 0, nil
}

func (m *memExercises) SaveBatch(_ context.Context, exercises []*domain.Exercise) ([]uuid.UUID, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	unique, _ := domain.FilterDuplicates(exercises)
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(unique))
	for _, e := range unique {
		m.saved = append(m.saved, e)
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (m *memExercises) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// generatorFunc adapts a function to ExerciseGenerator.
type generatorFunc func(ctx context.Context, req generation.Request) (*generation.Result, error)

func (f generatorFunc) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	return f(ctx, req)
}

// exercisesFor returns n distinct exercises matching req.
func exercisesFor(req generation.Request, n int) []*domain.Exercise {
	out := make([]*domain.Exercise, 0, n)
	topic := "verbs"
	if len(req.Topics) > 0 {
		topic = req.Topics[0]
	}
	for i := 0; i < n; i++ {
		out = append(out, domain.NewExercise(
			fmt.Sprintf("Frase %s %s número %d ___.", req.Levels[0], topic, i),
			fmt.Sprintf("r%d", i),
			req.Levels[0], topic,
			[]string{"x"},
			map[string]string{"en": "e", "es": "s"},
			nil, domain.SourceGenerated))
	}
	return out
}
