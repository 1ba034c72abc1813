package allocator

import (
	"context"
	"fmt"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/utilization"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
)

// UtilizationAllocator splits resource capacity among projects, using the utilization engine
type UtilizationAllocator struct {
	config *Config
}

// NewUtilizationAllocator creates a new UtilizationAllocator instance.
func NewUtilizationAllocator(config *Config) (*UtilizationAllocator, error) {
	if config == nil {
		return nil, fmt.Errorf("utilization allocator config cannot be nil")
	}
	return &UtilizationAllocator{config: config}, nil
}

// Allocate solves the utilization model and converts the granted units into a plan
func (a *UtilizationAllocator) Allocate(ctx context.Context, resources []core.Resource, projects []core.Project) (*Plan, error) {
	logger := ctrl.LoggerFrom(ctx)

	engine, err := utilization.NewEngine(resources, projects,
		utilization.WithSolverKind(a.config.solverKind()),
		utilization.WithObjectiveMode(a.config.ObjectiveMode),
		utilization.WithUtilWeight(a.config.utilWeight()),
		utilization.WithRecorder(a.config.Recorder),
	)
	if err != nil {
		return nil, err
	}
	result, err := engine.Solve(ctx)
	if err != nil {
		return nil, err
	}

	plan := newPlan(UtilizationStrategy, result.Status)
	plan.Feasible = result.Status.HasSolution()
	for _, p := range projects {
		for resource, units := range result.Granted(p.Name) {
			plan.grant(p.Name, resource, units)
		}
		plan.Completion[p.Name] = result.Completion[p.Name]
	}

	logger.Info("Utilization allocation completed", "status", result.Status.String(),
		"projects", len(result.Assignments))
	return plan, nil
}
