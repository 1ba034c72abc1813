package solver

import (
	"fmt"
	"sync"
)

// Factory creates an empty Solver for a backend.
type Factory func() Solver

var (
	initOnce   sync.Once
	registryMu sync.RWMutex
	registry   = make(map[Kind]Factory)
)

// Init registers the built-in backends. It runs once per process; later
// calls are no-ops. Backends registered before Init are kept.
func Init() {
	initOnce.Do(func() {
		registryMu.Lock()
		defer registryMu.Unlock()
		builtin := map[Kind]Factory{
			LP:  func() Solver { return newSimplexSolver(false) },
			MIP: func() Solver { return newSimplexSolver(true) },
		}
		for kind, factory := range builtin {
			if _, exists := registry[kind]; !exists {
				registry[kind] = factory
			}
		}
	})
}

// Register installs factory as the backend for kind, replacing any previous one.
// A nil factory unregisters the kind.
func Register(kind Kind, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		delete(registry, kind)
		return
	}
	registry[kind] = factory
}

// CreateSolver returns a new, empty Solver for the requested backend.
// An error wrapping ErrSolverUnavailable means the backend cannot be used and
// callers should treat it as a configuration error.
func CreateSolver(kind Kind) (Solver, error) {
	Init()
	registryMu.RLock()
	factory, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSolverUnavailable, kind)
	}
	s := factory()
	if s == nil {
		return nil, fmt.Errorf("%w: %q returned no solver", ErrSolverUnavailable, kind)
	}
	return s, nil
}
