package agency

import (
	"context"
	"slices"
	"strings"
	"sync"
)

type memNode struct {
	leaf     bool
	value    any
	children map[string]*memNode
}

func newInterior() *memNode { return &memNode{children: map[string]*memNode{}} }

func buildNode(v any) *memNode {
	m, ok := v.(map[string]any)
	if !ok {
		return &memNode{leaf: true, value: v}
	}
	n := newInterior()
	for k, child := range m {
		n.children[k] = buildNode(child)
	}
	return n
}

func (n *memNode) export(recursive bool) any {
	if n.leaf {
		// values are normalized on the way in, so a copy is a re-normalize
		out, _ := Normalize(n.value)
		return out
	}
	m := make(map[string]any, len(n.children))
	for k, c := range n.children {
		switch {
		case recursive || c.leaf:
			m[k] = c.export(recursive)
		default:
			m[k] = map[string]any{}
		}
	}
	return m
}

// MemStore is an in-process Store for tests and local development. Every
// write bumps a global clock and stamps it on the written path and all its
// ancestors. The written path alone also records the stamp as a write, which
// covers every descendant: the version of a path is the newest of its own
// stamp and the writes of its ancestors.
type MemStore struct {
	mu       sync.RWMutex
	root     *memNode
	clock    uint64
	versions map[string]uint64
	writes   map[string]uint64
}

func NewMemStore() *MemStore {
	return &MemStore{root: newInterior(), versions: map[string]uint64{}, writes: map[string]uint64{}}
}

func (m *MemStore) lookup(segments []string) (*memNode, bool) {
	n := m.root
	for _, s := range segments {
		if n.leaf {
			return nil, false
		}
		c, ok := n.children[s]
		if !ok {
			return nil, false
		}
		n = c
	}
	return n, true
}

func (m *MemStore) Get(_ context.Context, path string, recursive bool) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.lookup(Split(path))
	if !ok {
		return nil, ErrNotFound
	}
	return n.export(recursive), nil
}

func (m *MemStore) Set(_ context.Context, path string, value any) (bool, error) {
	v, err := Normalize(value)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	segments := Split(path)
	if len(segments) == 0 {
		n := buildNode(v)
		if n.leaf {
			return false, ErrInvalidPath
		}
		m.root = n
		m.bump(segments)
		return true, nil
	}

	n := m.root
	for _, s := range segments[:len(segments)-1] {
		c, ok := n.children[s]
		if !ok || c.leaf {
			c = newInterior()
			n.children[s] = c
		}
		n = c
	}
	n.children[segments[len(segments)-1]] = buildNode(v)
	m.bump(segments)
	return true, nil
}

func (m *MemStore) Remove(_ context.Context, path string) (bool, error) {
	segments := Split(path)
	if len(segments) == 0 {
		return false, ErrInvalidPath
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	parent, ok := m.lookup(segments[:len(segments)-1])
	if !ok || parent.leaf {
		return false, nil
	}
	last := segments[len(segments)-1]
	if _, ok := parent.children[last]; !ok {
		return false, nil
	}
	delete(parent.children, last)
	m.bump(segments)
	return true, nil
}

func (m *MemStore) List(_ context.Context, path string, sorted bool) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.lookup(Split(path))
	if !ok {
		return nil, ErrNotFound
	}
	names := make([]string, 0, len(n.children))
	for k := range n.children {
		names = append(names, k)
	}
	if sorted {
		slices.Sort(names)
	}
	return names, nil
}

func (m *MemStore) VersionOf(_ context.Context, path string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	segments := Split(path)
	v := m.versions[strings.Join(segments, "/")]
	for i := 0; i < len(segments); i++ {
		v = max(v, m.writes[strings.Join(segments[:i], "/")])
	}
	return v, nil
}

// bump must be called with mu held.
func (m *MemStore) bump(segments []string) {
	m.clock++
	for i := 0; i <= len(segments); i++ {
		m.versions[strings.Join(segments[:i], "/")] = m.clock
	}
	m.writes[strings.Join(segments, "/")] = m.clock
}

var _ Store = (*MemStore)(nil)
