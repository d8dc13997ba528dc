package task

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrTaskExists   = errors.New("task already registered")
	ErrTaskNotFound = errors.New("task not found")
)

var registry = struct {
	mu sync.RWMutex
	m  map[string]Task
}{
	m: make(map[string]Task),
}

func init() {
	MustRegister(XOR{})
	MustRegister(Sine{Points: defaultSinePoints})
}

func Register(t Task) error {
	if t == nil || t.Name() == "" {
		return errors.New("task name is required")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.m[t.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, t.Name())
	}
	registry.m[t.Name()] = t
	return nil
}

// Replace registers t, overwriting any task of the same name.
func Replace(t Task) error {
	if t == nil || t.Name() == "" {
		return errors.New("task name is required")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.m[t.Name()] = t
	return nil
}

func MustRegister(t Task) {
	if err := Register(t); err != nil {
		panic(err)
	}
}

func Resolve(name string) (Task, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	t, ok := registry.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return t, nil
}

func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
