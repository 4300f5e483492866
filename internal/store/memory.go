package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps design runs in process memory. Runs are deep-copied on
// the way in and out so callers cannot mutate stored records.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []DesignRun
	opts options
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{opts: buildOptions(opts)}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Create(_ context.Context, run DesignRun) (DesignRun, error) {
	run = m.opts.stamp(run)
	run.Output = run.Output.Clone()
	m.mu.Lock()
	m.runs = append(m.runs, run)
	m.mu.Unlock()
	return copyRun(run), nil
}

func (m *MemoryStore) ListRecent(_ context.Context, limit int) ([]DesignRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := make([]int, len(m.runs))
	for i := range idx {
		idx[i] = len(m.runs) - 1 - i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return m.runs[idx[a]].CreatedAt.After(m.runs[idx[b]].CreatedAt)
	})
	limit = normalizeLimit(limit)
	if len(idx) > limit {
		idx = idx[:limit]
	}
	out := make([]DesignRun, 0, len(idx))
	for _, i := range idx {
		out = append(out, copyRun(m.runs[i]))
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (DesignRun, error) {
	id = strings.TrimSpace(id)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.runs {
		if r.ID == id {
			return copyRun(r), nil
		}
	}
	return DesignRun{}, ErrNotFound
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	id = strings.TrimSpace(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.runs {
		if r.ID == id {
			m.runs = append(m.runs[:i], m.runs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) DeleteAll(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.runs)
	m.runs = nil
	return n, nil
}

func copyRun(r DesignRun) DesignRun {
	r.Output = r.Output.Clone()
	return r
}

var _ Store = (*MemoryStore)(nil)
