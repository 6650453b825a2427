package memory

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/gapfill-api/internal/store"
)

type session struct {
	streaks  map[string]int
	mastered map[string]struct{}
	expires  time.Time
}

// MasteryStore keeps mastery state in memory. Sessions idle for longer than
// the TTL are forgotten; writes sweep out expired sessions at most once per TTL.
type MasteryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	sessions  map[string]*session
	lastSweep time.Time
}

var _ store.MasteryStore = (*MasteryStore)(nil)

// NewMasteryStore creates an empty store. A non-positive ttl keeps sessions forever.
func NewMasteryStore(ttl time.Duration) *MasteryStore {
	return &MasteryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// RecordResult implements store.MasteryStore.
func (m *MasteryStore) RecordResult(
	ctx context.Context,
	sessionID, answerKey string,
	correct bool,
	streak int,
) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep()
	s := m.session(sessionID, true)
	if _, ok := s.mastered[answerKey]; ok {
		if !correct {
			delete(s.streaks, answerKey)
		}
		return true, nil
	}
	if !correct {
		delete(s.streaks, answerKey)
		return false, nil
	}

	s.streaks[answerKey]++
	if s.streaks[answerKey] >= streak {
		delete(s.streaks, answerKey)
		s.mastered[answerKey] = struct{}{}
		return true, nil
	}
	return false, nil
}

// Mastered implements store.MasteryStore.
func (m *MasteryStore) Mastered(ctx context.Context, sessionID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(sessionID, false)
	if s == nil {
		return nil, nil
	}
	out := make([]string, 0, len(s.mastered))
	for k := range s.mastered {
		out = append(out, k)
	}
	return out, nil
}

// sweep drops every expired session once a TTL has passed since the last
// sweep. Must be called with mu held.
func (m *MasteryStore) sweep() {
	now := m.now()
	if m.ttl <= 0 || now.Sub(m.lastSweep) < m.ttl {
		return
	}
	m.lastSweep = now
	for id, s := range m.sessions {
		if now.After(s.expires) {
			delete(m.sessions, id)
		}
	}
}

// session returns the live state for id, dropping it first if it expired.
// Must be called with mu held.
func (m *MasteryStore) session(id string, create bool) *session {
	now := m.now()
	s, ok := m.sessions[id]
	if ok && m.ttl > 0 && now.After(s.expires) {
		delete(m.sessions, id)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		s = &session{
			streaks:  make(map[string]int),
			mastered: make(map[string]struct{}),
		}
		m.sessions[id] = s
	}
	if create {
		s.expires = now.Add(m.ttl)
	}
	return s
}
