package streams

import (
	"sync"

	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

// Memory is an in-process FIFO, directly analogous to
// vm/output_buffer.go's OutputBuffer but ordered front-to-back instead of
// an append-only byte buffer.
type Memory struct {
	mu    sync.Mutex
	id    uint64
	elem  *types.Type
	open  bool
	items []*values.Value
}

func NewMemory(id uint64, elem *types.Type) *Memory {
	return &Memory{id: id, elem: elem, open: true}
}

func (m *Memory) ID() uint64 { return m.id }

func (m *Memory) InnerType() *types.Type { return m.elem }

func (m *Memory) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

func (m *Memory) Push(v *values.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, v)
	return nil
}

func (m *Memory) Pop() (*values.Value, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil, false, nil
	}
	v := m.items[0]
	m.items = m.items[1:]
	return v, true, nil
}

func (m *Memory) IsEmpty() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items) == 0, nil
}
