package solver

import (
	"context"
	"math"
	"slices"
)

const (
	defaultTolerance  = 1e-9
	integralityTol    = 1e-6
	defaultMaxBBNodes = 200000
	boundViolationTol = 1e-7
)

// simplexSolver solves models with a bounded-variable simplex, falling back
// to gonum's simplex when it gives up. With branch set, integer variables are
// enforced by depth-first branch-and-bound over the relaxation.
type simplexSolver struct {
	model
	branch   bool
	tol      float64
	maxNodes int
}

func newSimplexSolver(branch bool) *simplexSolver {
	return &simplexSolver{
		model:    newModel(),
		branch:   branch,
		tol:      defaultTolerance,
		maxNodes: defaultMaxBBNodes,
	}
}

// Solve implements Solver. The model is presolved, then split into blocks
// sharing no variable, and every block is solved on its own.
func (s *simplexSolver) Solve(ctx context.Context) Status {
	s.reset()
	if ctx.Err() != nil {
		return NotSolved
	}
	lower, upper := s.bounds(s.branch, integralityTol)
	for j := range lower {
		if math.IsInf(lower[j], 0) || math.IsNaN(lower[j]) || math.IsNaN(upper[j]) {
			return Abnormal
		}
		if upper[j] < lower[j]-s.tol {
			return Infeasible
		}
	}

	rows, status := presolve(&s.model, lower, upper, s.branch, s.tol)
	if status != Optimal {
		return status
	}
	costs := s.minimizationCosts()
	blocks, isolated := decompose(&s.model, rows, costs)

	x := slices.Clone(lower)
	for _, j := range isolated {
		if upper[j]-lower[j] <= s.tol || costs[j] >= -s.tol {
			continue
		}
		if math.IsInf(upper[j], 1) {
			return Unbounded
		}
		x[j] = upper[j]
	}

	result := Optimal
	for _, b := range blocks {
		status, xb := s.solveBlock(ctx, b, lower, upper)
		switch status {
		case Optimal:
		case Feasible:
			result = Feasible
		default:
			return status
		}
		for k, j := range b.vars {
			x[j] = xb[k]
		}
	}
	s.apply(x, s.branch)
	return result
}

func (s *simplexSolver) solveBlock(ctx context.Context, b *block, lower, upper []float64) (Status, []float64) {
	lo := make([]float64, len(b.vars))
	hi := make([]float64, len(b.vars))
	for k, j := range b.vars {
		lo[k], hi[k] = lower[j], upper[j]
	}
	if s.branch {
		return s.branchAndBound(ctx, b, lo, hi)
	}
	if ctx.Err() != nil {
		return NotSolved, nil
	}
	rel := relax(b, lo, hi, s.tol)
	return rel.status, rel.x
}

type relaxation struct {
	x         []float64
	objective float64
	status    Status
}

func relax(b *block, lower, upper []float64, tol float64) relaxation {
	rel := boundedSimplex(b, lower, upper, tol)
	if rel.status == Abnormal {
		rel = standardForm(b, lower, upper, tol)
	}
	return rel
}

type bbNode struct {
	lower, upper []float64
}

func (s *simplexSolver) branchAndBound(ctx context.Context, b *block, lower, upper []float64) (Status, []float64) {
	stack := []bbNode{{lower: lower, upper: upper}}
	var incumbent []float64
	best := math.Inf(1)
	interrupted := false

	for explored := 0; len(stack) > 0; explored++ {
		if ctx.Err() != nil || explored >= s.maxNodes {
			interrupted = true
			break
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rel := relax(b, node.lower, node.upper, s.tol)
		switch rel.status {
		case Optimal:
		case Infeasible:
			continue
		default:
			// an unbounded or failed relaxation cannot be repaired by branching
			return rel.status, nil
		}
		if rel.objective >= best-s.tol {
			continue
		}

		j := firstFractional(b, rel.x)
		if j < 0 {
			incumbent, best = rel.x, rel.objective
			continue
		}

		down := bbNode{lower: node.lower, upper: cloneWith(node.upper, j, math.Floor(rel.x[j]))}
		up := bbNode{lower: cloneWith(node.lower, j, math.Ceil(rel.x[j])), upper: node.upper}
		stack = append(stack, up, down)
	}

	switch {
	case incumbent == nil && interrupted:
		return NotSolved, nil
	case incumbent == nil:
		return Infeasible, nil
	case interrupted:
		return Feasible, incumbent
	}
	return Optimal, incumbent
}

func firstFractional(b *block, x []float64) int {
	for k, integer := range b.integer {
		if integer && math.Abs(x[k]-math.Round(x[k])) > integralityTol {
			return k
		}
	}
	return -1
}

func cloneWith(bounds []float64, i int, value float64) []float64 {
	out := slices.Clone(bounds)
	out[i] = value
	return out
}
