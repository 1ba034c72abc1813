package utilization

import (
	"context"
	"fmt"
	"math"
	"slices"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/common"
	"github.com/llm-d/llm-d-capacity-allocator/internal/logging"
	"github.com/llm-d/llm-d-capacity-allocator/internal/metrics"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/solver"
)

// Engine splits the capacity of every resource into integer quantities
// granted to the projects that require it.
type Engine struct {
	resources []core.Resource
	projects  []core.Project
	index     *core.ResourceIndex

	kind       solver.Kind
	mode       ObjectiveMode
	utilWeight float64
	recorder   metrics.Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithSolverKind selects the solving backend. The default is solver.MIP.
func WithSolverKind(kind solver.Kind) Option {
	return func(e *Engine) { e.kind = kind }
}

// WithObjectiveMode sets the objective mode. The default is UtilizationFirst.
func WithObjectiveMode(mode ObjectiveMode) Option {
	return func(e *Engine) { e.mode = mode }
}

// WithUtilWeight sets the reward per granted unit.
func WithUtilWeight(weight float64) Option {
	return func(e *Engine) { e.utilWeight = weight }
}

// WithRecorder sets the recorder receiving solve and completion observations.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = metrics.OrNop(recorder) }
}

// NewEngine validates the inputs and returns an engine over copies of them.
func NewEngine(resources []core.Resource, projects []core.Project, opts ...Option) (*Engine, error) {
	idx, err := common.IndexInputs(resources, projects)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		resources:  slices.Clone(resources),
		projects:   slices.Clone(projects),
		index:      idx,
		kind:       solver.MIP,
		mode:       UtilizationFirst,
		utilWeight: DefaultUtilWeight,
		recorder:   metrics.NopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.mode != UtilizationFirst && e.mode != CostWeighted {
		return nil, fmt.Errorf("unsupported objective mode: %v", e.mode)
	}
	if math.IsNaN(e.utilWeight) || math.IsInf(e.utilWeight, 0) || e.utilWeight < 0 {
		return nil, fmt.Errorf("utilization weight must be a finite value >= 0, got %v", e.utilWeight)
	}
	return e, nil
}

// Solve builds a fresh model, solves it and extracts the granted units. When
// the solver finds no solution the assignments are empty.
func (e *Engine) Solve(ctx context.Context) (*Result, error) {
	logger := ctrl.LoggerFrom(ctx)

	s, err := solver.CreateSolver(e.kind)
	if err != nil {
		return nil, fmt.Errorf("failed to create utilization solver: %w", err)
	}
	common.LogUnknownRequirements(ctx, e.index, e.projects)

	quantity := e.build(s)
	status := common.Solve(ctx, common.UtilizationEngine, s, e.recorder)

	result := &Result{
		Status:      status,
		Assignments: map[string][]core.Resource{},
		Completion:  make(map[string]float64, len(e.projects)),
	}
	if !status.HasSolution() {
		for _, p := range e.projects {
			result.Completion[p.Name] = CompletionPercentage(p, nil, e.resources)
		}
		logger.Info("No utilization allocation found", "status", status.String())
		return result, nil
	}

	for j, p := range e.projects {
		var units []core.Resource
		for i, r := range e.resources {
			n := int(math.Floor(quantity[i][j].SolutionValue() + quantityTolerance))
			for range n {
				units = append(units, r.Unit())
			}
		}
		if len(units) > 0 {
			result.Assignments[p.Name] = units
		}
		completion := CompletionPercentage(p, units, e.resources)
		result.Completion[p.Name] = completion
		e.recorder.ObserveCompletion(common.UtilizationEngine, completion)
		logger.V(logging.DEBUG).Info("Project allocation", "project", p.Name, "units", len(units), "completion", completion)
	}
	return result, nil
}

// build declares one quantity variable per (resource, project) pair and
// returns them indexed by resource, then project.
func (e *Engine) build(s solver.Solver) [][]*solver.Variable {
	quantity := make([][]*solver.Variable, len(e.resources))
	for i, r := range e.resources {
		quantity[i] = make([]*solver.Variable, len(e.projects))
		for j, p := range e.projects {
			ub := min(r.AvailableCapacity, p.Requirement(r.Name))
			quantity[i][j] = s.MakeIntVar(0, float64(ub), fmt.Sprintf("x_%s_%s", r.Name, p.Name))
		}
	}

	objective := s.Objective()
	for i, r := range e.resources {
		coefficient := -e.utilWeight
		if e.mode == CostWeighted {
			coefficient += float64(r.Cost)
		}
		for j := range e.projects {
			objective.SetCoefficient(quantity[i][j], coefficient)
		}
	}
	objective.SetMinimization()

	for i, r := range e.resources {
		capacity := s.MakeConstraint(0, float64(r.AvailableCapacity), "capacity_"+r.Name)
		for j := range e.projects {
			capacity.SetCoefficient(quantity[i][j], 1)
		}
	}
	for j, p := range e.projects {
		for i, r := range e.resources {
			req := p.Requirement(r.Name)
			if req <= 0 {
				continue
			}
			requirement := s.MakeConstraint(0, float64(req), fmt.Sprintf("requirement_%s_%s", p.Name, r.Name))
			requirement.SetCoefficient(quantity[i][j], 1)
		}
	}
	return quantity
}
