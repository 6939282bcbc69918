package credential

import (
	"errors"
	"strings"
	"sync"
)

var ErrInvalidFormat = errors.New("credential has invalid format")

// Memory is a process-local Store. Used by the CLI and in tests.
type Memory struct {
	mu    sync.Mutex
	value string
}

func NewMemory(initial string) *Memory {
	return &Memory{value: strings.TrimSpace(initial)}
}

func (m *Memory) Has() bool {
	_, ok := m.Get()
	return ok
}

func (m *Memory) Get() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.value == "" {
		return "", false
	}
	return m.value, true
}

func (m *Memory) Set(value string) error {
	if !Validate(value) {
		return ErrInvalidFormat
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = strings.TrimSpace(value)
	return nil
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = ""
}
