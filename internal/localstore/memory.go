package localstore

import (
	"context"
	"sync"
)

// Memory is an in-process origin store. Tabs obtained from the same Memory see each other's
// writes, the way tabs of one browser share localStorage.
type Memory struct {
	mu       sync.Mutex
	data     map[string]string
	watchers map[int]memoryWatcher
	nextID   int
}

type memoryWatcher struct {
	tab string
	ch  chan Change
}

func NewMemory() *Memory {
	return &Memory{data: map[string]string{}, watchers: map[int]memoryWatcher{}}
}

// Tab returns the store view for tabID.
func (m *Memory) Tab(tabID string) Store { return &memoryTab{m: m, tab: tabID} }

// Snapshot copies the current contents. Intended for tests and diagnostics.
func (m *Memory) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

func (m *Memory) notifyLocked(c Change) {
	for _, w := range m.watchers {
		if w.tab == c.Source {
			continue
		}
		select {
		case w.ch <- c:
		default:
			// best-effort: a full watcher misses the change
		}
	}
}

type memoryTab struct {
	m   *Memory
	tab string
}

func (t *memoryTab) Get(ctx context.Context, key string) (string, bool, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	v, ok := t.m.data[key]
	return v, ok, nil
}

func (t *memoryTab) Set(ctx context.Context, key, value string) error {
	if value == "" {
		return t.Delete(ctx, key)
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if old, ok := t.m.data[key]; ok && old == value {
		return nil
	}
	t.m.data[key] = value
	t.m.notifyLocked(Change{Key: key, Value: value, Source: t.tab})
	return nil
}

func (t *memoryTab) Delete(ctx context.Context, keys ...string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, k := range keys {
		if _, ok := t.m.data[k]; !ok {
			continue
		}
		delete(t.m.data, k)
		t.m.notifyLocked(Change{Key: k, Source: t.tab})
	}
	return nil
}

func (t *memoryTab) Watch(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, watchBuffer)

	t.m.mu.Lock()
	id := t.m.nextID
	t.m.nextID++
	t.m.watchers[id] = memoryWatcher{tab: t.tab, ch: ch}
	t.m.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.m.mu.Lock()
		delete(t.m.watchers, id)
		close(ch)
		t.m.mu.Unlock()
	}()
	return ch, nil
}
