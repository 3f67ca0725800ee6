package archive

import (
	"fmt"
	"sync"

	"github.com/meigma/jarmap/internal/pathutil"
)

// Mem is an in-memory archive implementing both Reader and Writer.
// It is safe for concurrent use.
type Mem struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// NewMem returns an archive holding entries in order. Later entries with a
// repeated path replace earlier ones in place.
func NewMem(entries ...Entry) *Mem {
	m := &Mem{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		m.put(e.Path, e.Data)
	}
	return m
}

// Entries returns entry paths in insertion order.
func (m *Mem) Entries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, len(m.entries))
	for i, e := range m.entries {
		paths[i] = e.Path
	}
	return paths
}

// ReadEntry returns the contents of the entry at path.
func (m *Mem) ReadEntry(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	return m.entries[i].Data, nil
}

// WriteEntry stores an entry.
func (m *Mem) WriteEntry(path string, data []byte) error {
	if _, ok := pathutil.Clean(path); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(path, data)
	return nil
}

func (m *Mem) put(path string, data []byte) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	e := NewEntry(path, data)
	if i, ok := m.index[path]; ok {
		m.entries[i] = e
		return
	}
	m.index[path] = len(m.entries)
	m.entries = append(m.entries, e)
}

// Snapshot returns a copy of the entries in order.
func (m *Mem) Snapshot() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
