package feasibility

import (
	"context"
	"fmt"
	"math"
	"slices"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/common"
	"github.com/llm-d/llm-d-capacity-allocator/internal/metrics"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/solver"
)

// Engine assigns every resource to at most one project, letting a per-resource
// slack absorb the capacity a project needs beyond what the resource has.
type Engine struct {
	resources []core.Resource
	projects  []core.Project
	index     *core.ResourceIndex

	kind     solver.Kind
	policy   SelectionPolicy
	gated    bool
	recorder metrics.Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithSolverKind selects the solving backend. The default is solver.MIP.
func WithSolverKind(kind solver.Kind) Option {
	return func(e *Engine) { e.kind = kind }
}

// WithSelectionPolicy sets the project selection policy. The default is SelectAll.
func WithSelectionPolicy(policy SelectionPolicy) Option {
	return func(e *Engine) { e.policy = policy }
}

// WithStatusGating makes Solve report Feasible=false, with empty maps, when
// the solver finds no solution.
func WithStatusGating() Option {
	return func(e *Engine) { e.gated = true }
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
		resources: slices.Clone(resources),
		projects:  slices.Clone(projects),
		index:     idx,
		kind:      solver.MIP,
		policy:    SelectAll,
		recorder:  metrics.NopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.policy != SelectAll && e.policy != SelectOptional {
		return nil, fmt.Errorf("unsupported selection policy: %v", e.policy)
	}
	return e, nil
}

// model holds the decision variables of one solve.
type model struct {
	selected []*solver.Variable   // per project
	alloc    [][]*solver.Variable // per resource, then per project
	slack    []*solver.Variable   // per resource
}

// Solve builds a fresh model, solves it and extracts the result. The only
// error is a backend that cannot be created.
func (e *Engine) Solve(ctx context.Context) (*Result, error) {
	logger := ctrl.LoggerFrom(ctx)

	s, err := solver.CreateSolver(e.kind)
	if err != nil {
		return nil, fmt.Errorf("failed to create feasibility solver: %w", err)
	}
	common.LogUnknownRequirements(ctx, e.index, e.projects)

	m := e.build(s)
	status := common.Solve(ctx, common.FeasibilityEngine, s, e.recorder)

	if e.gated && !status.HasSolution() {
		logger.Info("No feasible allocation found", "status", status.String())
		return emptyResult(status), nil
	}
	if !status.HasSolution() {
		logger.Info("Solver found no solution, reporting the allocation as feasible", "status", status.String())
	}

	result := e.extract(status, m)
	for _, p := range e.projects {
		e.recorder.ObserveCompletion(common.FeasibilityEngine, result.Completion[p.Name])
	}
	e.recorder.SetTotalSlack(result.TotalSlack)
	return result, nil
}

func (e *Engine) build(s solver.Solver) *model {
	selectedLB := 1.0
	if e.policy == SelectOptional {
		selectedLB = 0
	}

	m := &model{
		selected: make([]*solver.Variable, len(e.projects)),
		alloc:    make([][]*solver.Variable, len(e.resources)),
		slack:    make([]*solver.Variable, len(e.resources)),
	}
	for j, p := range e.projects {
		m.selected[j] = s.MakeIntVar(selectedLB, 1, "project_"+p.Name)
	}
	for i, r := range e.resources {
		m.alloc[i] = make([]*solver.Variable, len(e.projects))
		for j, p := range e.projects {
			m.alloc[i][j] = s.MakeIntVar(0, 1, fmt.Sprintf("alloc_%s_%s", r.Name, p.Name))
		}
	}
	for i, r := range e.resources {
		m.slack[i] = s.MakeNumVar(0, math.Inf(1), "slack_"+r.Name)
	}

	for i, r := range e.resources {
		single := s.MakeConstraint(0, 1, "single_alloc_"+r.Name)
		for j := range e.projects {
			single.SetCoefficient(m.alloc[i][j], 1)
		}
	}
	for i, r := range e.resources {
		capacity := s.MakeConstraint(math.Inf(-1), float64(r.AvailableCapacity), "capacity_"+r.Name)
		for j, p := range e.projects {
			capacity.SetCoefficient(m.alloc[i][j], float64(p.Requirement(r.Name)))
		}
		capacity.SetCoefficient(m.slack[i], -1)
	}
	for i, r := range e.resources {
		for j, p := range e.projects {
			link := s.MakeConstraint(0, 0, fmt.Sprintf("alloc_requires_project_%s_%s", r.Name, p.Name))
			link.SetCoefficient(m.alloc[i][j], 1)
			link.SetCoefficient(m.selected[j], -1)
		}
	}

	objective := s.Objective()
	for _, v := range m.selected {
		objective.SetCoefficient(v, 1)
	}
	for _, v := range m.slack {
		objective.SetCoefficient(v, -SlackPenalty)
	}
	objective.SetMaximization()
	return m
}

func (e *Engine) extract(status solver.Status, m *model) *Result {
	result := emptyResult(status)
	result.Feasible = true

	ownedSlack := make(map[string]float64)
	for i, r := range e.resources {
		slack := math.Max(0, m.slack[i].SolutionValue())
		result.Slacks[r.Name] = slack
		result.TotalSlack += slack
		for j, p := range e.projects {
			if m.alloc[i][j].SolutionValue() > decisionThreshold {
				result.Owners[r.Name] = p.Name
				ownedSlack[p.Name] += slack
				break
			}
		}
	}

	for j, p := range e.projects {
		// SelectAll pins every selection to 1, with or without a solution
		selected := e.policy == SelectAll || m.selected[j].SolutionValue() > decisionThreshold
		result.Selections[p.Name] = selected
		result.Completion[p.Name] = e.completion(p, result.Owners)
		result.AlmostComplete[p.Name] = status.HasSolution() && selected && ownedSlack[p.Name] <= SlackThreshold
	}
	return result
}

// completion is the share of p's requirement covered by the resources it owns,
// each contributing at most its capacity.
func (e *Engine) completion(p core.Project, owners map[string]string) float64 {
	var required, fulfilled float64
	for _, r := range e.resources {
		req := p.Requirement(r.Name)
		if req <= 0 {
			continue
		}
		required += float64(req)
		if owners[r.Name] == p.Name {
			fulfilled += float64(min(req, r.AvailableCapacity))
		}
	}
	return core.CompletionPercentage(fulfilled, required)
}
