package nodestore

import (
	"sync"
	"sync/atomic"
)

// MemoryBackend is a thread-safe in-memory backend used for tests and
// standalone runs without persistence.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[Hash256]*Node

	open atomic.Bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[Hash256]*Node)}
}

func newMemoryBackendFromConfig(config *Config) (Backend, error) {
	return NewMemoryBackend(), nil
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Open(createIfMissing bool) error {
	if !m.open.CompareAndSwap(false, true) {
		return ErrBackendClosed
	}
	return nil
}

func (m *MemoryBackend) Close() error {
	if !m.open.CompareAndSwap(true, false) {
		return nil
	}
	m.mu.Lock()
	m.data = make(map[Hash256]*Node)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) IsOpen() bool {
	return m.open.Load()
}

func (m *MemoryBackend) Fetch(key Hash256) (*Node, Status) {
	if !m.IsOpen() {
		return nil, BackendFailure
	}

	m.mu.RLock()
	node, found := m.data[key]
	m.mu.RUnlock()

	if !found {
		return nil, NotFound
	}
	return node.clone(), OK
}

func (m *MemoryBackend) Store(node *Node) Status {
	if node == nil || !m.IsOpen() {
		return BackendFailure
	}

	m.mu.Lock()
	m.data[node.Hash] = node.clone()
	m.mu.Unlock()
	return OK
}

func (m *MemoryBackend) StoreBatch(nodes []*Node) Status {
	if !m.IsOpen() {
		return BackendFailure
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, node := range nodes {
		if node == nil {
			continue
		}
		m.data[node.Hash] = node.clone()
	}
	return OK
}

func (m *MemoryBackend) Sync() Status {
	if !m.IsOpen() {
		return BackendFailure
	}
	return OK
}

func (m *MemoryBackend) ForEach(fn func(*Node) error) error {
	if !m.IsOpen() {
		return ErrBackendClosed
	}

	m.mu.RLock()
	nodes := make([]*Node, 0, len(m.data))
	for _, node := range m.data {
		nodes = append(nodes, node.clone())
	}
	m.mu.RUnlock()

	for _, node := range nodes {
		if err := fn(node); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the number of stored nodes.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func init() {
	RegisterBackend("memory", newMemoryBackendFromConfig)
}
