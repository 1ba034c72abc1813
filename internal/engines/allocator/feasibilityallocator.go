package allocator

import (
	"context"
	"fmt"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/feasibility"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
)

// FeasibilityAllocator gives each resource to at most one project, using the feasibility engine
type FeasibilityAllocator struct {
	config *Config
}

// NewFeasibilityAllocator creates a new FeasibilityAllocator instance.
func NewFeasibilityAllocator(config *Config) (*FeasibilityAllocator, error) {
	if config == nil {
		return nil, fmt.Errorf("feasibility allocator config cannot be nil")
	}
	return &FeasibilityAllocator{config: config}, nil
}

// Allocate solves the feasibility model and converts the resulting ownership into grants:
// the owner of a resource is granted min(requirement, capacity) units of it
func (a *FeasibilityAllocator) Allocate(ctx context.Context, resources []core.Resource, projects []core.Project) (*Plan, error) {
	logger := ctrl.LoggerFrom(ctx)

	opts := []feasibility.Option{
		feasibility.WithSolverKind(a.config.solverKind()),
		feasibility.WithSelectionPolicy(a.config.SelectionPolicy),
		feasibility.WithRecorder(a.config.Recorder),
	}
	if a.config.GateOnStatus {
		opts = append(opts, feasibility.WithStatusGating())
	}
	engine, err := feasibility.NewEngine(resources, projects, opts...)
	if err != nil {
		return nil, err
	}
	result, err := engine.Solve(ctx)
	if err != nil {
		return nil, err
	}

	plan := newPlan(FeasibilityStrategy, result.Status)
	plan.Feasible = result.Feasible
	plan.Selections = result.Selections
	plan.Slacks = result.Slacks
	plan.Completion = result.Completion

	byName := make(map[string]core.Project, len(projects))
	for _, p := range projects {
		byName[p.Name] = p
	}
	for _, r := range resources {
		owner, owned := result.Owners[r.Name]
		if !owned {
			continue
		}
		plan.grant(owner, r.Name, min(byName[owner].Requirement(r.Name), r.AvailableCapacity))
	}

	logger.Info("Feasibility allocation completed", "status", result.Status.String(),
		"feasible", result.Feasible, "owned", len(result.Owners), "totalSlack", result.TotalSlack)
	return plan, nil
}
