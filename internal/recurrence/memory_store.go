package recurrence

import (
	"context"
	"sync"
	"time"
)

const defaultRunTTL = 24 * time.Hour

type storedRun struct {
	data    []byte
	expires time.Time
}

// MemoryRunStore is the RunStore of a single instance running without redis.
// Stored runs expire after ttl, matching the redis store.
type MemoryRunStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	locks map[string]string
	runs  map[string]storedRun
}

// NewMemoryRunStore keeps runs for ttl, or a day when ttl is not positive.
func NewMemoryRunStore(ttl time.Duration) *MemoryRunStore {
	if ttl <= 0 {
		ttl = defaultRunTTL
	}
	return &MemoryRunStore{
		ttl:   ttl,
		now:   time.Now,
		locks: map[string]string{},
		runs:  map[string]storedRun{},
	}
}

func (m *MemoryRunStore) AcquireRun(_ context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[key]; held {
		return false, nil
	}
	m.locks[key] = owner
	return true, nil
}

func (m *MemoryRunStore) ReleaseRun(_ context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] == owner {
		delete(m.locks, key)
	}
	return nil
}

func (m *MemoryRunStore) LoadRun(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(run.expires) {
		delete(m.runs, key)
		return nil, false, nil
	}
	return run.data, true, nil
}

func (m *MemoryRunStore) SaveRun(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, run := range m.runs {
		if !now.Before(run.expires) {
			delete(m.runs, k)
		}
	}
	m.runs[key] = storedRun{data: append([]byte(nil), data...), expires: now.Add(m.ttl)}
	return nil
}

// size reports how many runs are held, expired or not.
func (m *MemoryRunStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}
