package allocator

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/utils/ptr"

	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/feasibility"
	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/utilization"
	"github.com/llm-d/llm-d-capacity-allocator/internal/metrics"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/solver"
)

// Allocator is an interface that defines the method for allocating a limited pool of resources among projects
type Allocator interface {
	// Allocate solves one allocation of resources to projects and returns the resulting plan
	Allocate(ctx context.Context, resources []core.Resource, projects []core.Project) (*Plan, error)
}

// Strategy is an enumeration of the different strategies that can be used by the Allocator
type Strategy int

// enumeration of Strategy
const (
	FeasibilityStrategy Strategy = iota
	UtilizationStrategy
)

func (s Strategy) String() string {
	switch s {
	case FeasibilityStrategy:
		return "feasibility"
	case UtilizationStrategy:
		return "utilization"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// MarshalText encodes the strategy by name
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStrategy maps a case-insensitive strategy name to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "feasibility":
		return FeasibilityStrategy, nil
	case "utilization":
		return UtilizationStrategy, nil
	default:
		return FeasibilityStrategy, fmt.Errorf("unsupported allocator strategy: %q", name)
	}
}

// Config holds the engine settings shared by all allocators.
// Settings that do not apply to a strategy are ignored by it.
type Config struct {
	// SolverKind selects the solving backend; empty means solver.MIP
	SolverKind solver.Kind
	// SelectionPolicy is used by the feasibility strategy
	SelectionPolicy feasibility.SelectionPolicy
	// GateOnStatus makes the feasibility strategy report non-solutions as infeasible
	GateOnStatus bool
	// ObjectiveMode is used by the utilization strategy
	ObjectiveMode utilization.ObjectiveMode
	// UtilWeight is the utilization strategy's reward per granted unit; nil means the default
	UtilWeight *float64
	// Recorder receives engine observations; nil disables them
	Recorder metrics.Recorder
}

// DefaultConfig returns the default allocator settings
func DefaultConfig() *Config {
	return &Config{
		SolverKind:      solver.MIP,
		SelectionPolicy: feasibility.SelectAll,
		ObjectiveMode:   utilization.UtilizationFirst,
		UtilWeight:      ptr.To(utilization.DefaultUtilWeight),
	}
}

func (c *Config) solverKind() solver.Kind {
	if c.SolverKind == "" {
		return solver.MIP
	}
	return c.SolverKind
}

func (c *Config) utilWeight() float64 {
	return ptr.Deref(c.UtilWeight, utilization.DefaultUtilWeight)
}

// NewAllocator is a factory that creates a new Allocator based on the provided strategy
func NewAllocator(strategy Strategy, config *Config) (Allocator, error) {
	switch strategy {
	case FeasibilityStrategy:
		return NewFeasibilityAllocator(config)
	case UtilizationStrategy:
		return NewUtilizationAllocator(config)
	default:
		return nil, fmt.Errorf("unsupported allocator strategy: %v", strategy)
	}
}
