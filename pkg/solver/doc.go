// Package solver defines the linear/integer programming engine used by the allocation engines.
//
// Callers build a model through a Solver obtained from CreateSolver: decision
// variables with inclusive bounds, linear constraints lb <= sum(coef*var) <= ub
// and a linear objective. Solve returns a Status and makes each variable's
// SolutionValue available.
//
// Backends:
//
//   - LP:  continuous relaxation; integrality of integer variables is ignored
//   - MIP: the same relaxation inside a depth-first branch-and-bound, giving
//     integral values for integer variables
//
// Both built-in backends first presolve the model: fixed variables are folded
// into the rows, and rows with a single free variable become bounds on it. The
// remaining rows are split into blocks sharing no variable. Each block is
// solved by a bounded-variable simplex, so variable bounds never add rows;
// gonum's simplex serves as the fallback when that kernel gives up.
//
// Additional backends, such as bindings to native solvers, can be plugged in
// with Register. Backend registration is performed lazily, once, on the first
// call to CreateSolver (or Init).
//
// Example usage:
//
//	s, err := solver.CreateSolver(solver.MIP)
//	if err != nil {
//	    return err // backend unavailable, a configuration error
//	}
//	x := s.MakeIntVar(0, 4, "x")
//	c := s.MakeConstraint(math.Inf(-1), 10, "capacity")
//	c.SetCoefficient(x, 2)
//	s.Objective().SetCoefficient(x, 1)
//	s.Objective().SetMaximization()
//
//	if status := s.Solve(ctx); status == solver.Optimal {
//	    log.Info("solved", "x", x.SolutionValue())
//	}
package solver
