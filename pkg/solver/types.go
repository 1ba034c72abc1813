package solver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSolverUnavailable is returned by CreateSolver when no backend is
// registered for the requested kind.
var ErrSolverUnavailable = errors.New("solver backend unavailable")

// Kind names a solving backend.
type Kind string

const (
	// LP solves the continuous relaxation only.
	LP Kind = "LP"
	// MIP enforces integrality through branch-and-bound.
	MIP Kind = "MIP"
)

// ParseKind maps a backend name, including the common OR-Tools aliases, to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "LP", "GLOP":
		return LP, nil
	case "MIP", "CBC", "CBC_MIXED_INTEGER_PROGRAMMING":
		return MIP, nil
	default:
		return "", fmt.Errorf("unknown solver kind %q", name)
	}
}

// Status is the outcome of a Solve call.
type Status int

const (
	// NotSolved means Solve was not called or stopped before finding any solution.
	NotSolved Status = iota
	// Optimal means a proven optimal solution was found.
	Optimal
	// Feasible means a solution was found but optimality was not proven.
	Feasible
	// Infeasible means the model has no solution.
	Infeasible
	// Unbounded means the objective can be improved without limit.
	Unbounded
	// Abnormal means the backend failed, e.g. on an unsupported model.
	Abnormal
)

func (s Status) String() string {
	switch s {
	case NotSolved:
		return "NOT_SOLVED"
	case Optimal:
		return "OPTIMAL"
	case Feasible:
		return "FEASIBLE"
	case Infeasible:
		return "INFEASIBLE"
	case Unbounded:
		return "UNBOUNDED"
	case Abnormal:
		return "ABNORMAL"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HasSolution reports whether variable values are meaningful for this status.
func (s Status) HasSolution() bool {
	return s == Optimal || s == Feasible
}

// Solver is a single linear/integer program. It is not safe for concurrent use.
type Solver interface {
	// MakeIntVar declares an integer variable with inclusive bounds.
	MakeIntVar(lb, ub float64, name string) *Variable
	// MakeNumVar declares a continuous variable with inclusive bounds.
	MakeNumVar(lb, ub float64, name string) *Variable
	// MakeConstraint declares lb <= sum(coefficient*variable) <= ub.
	MakeConstraint(lb, ub float64, name string) *Constraint
	// Objective returns the linear objective of the model.
	Objective() *Objective
	// Solve runs the backend. It blocks until the model is solved or ctx is done.
	Solve(ctx context.Context) Status
	// NumVariables returns the number of declared variables.
	NumVariables() int
	// NumConstraints returns the number of declared constraints.
	NumConstraints() int
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []Kind {
	Init()
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
