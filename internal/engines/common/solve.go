package common

import (
	"context"
	"time"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-capacity-allocator/internal/logging"
	"github.com/llm-d/llm-d-capacity-allocator/internal/metrics"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/solver"
)

// Engine names used in logs and metric labels.
const (
	FeasibilityEngine = "feasibility"
	UtilizationEngine = "utilization"
)

// Solve runs the backend on a fully built model, logging and recording the
// outcome under the given engine name.
func Solve(ctx context.Context, engine string, s solver.Solver, recorder metrics.Recorder) solver.Status {
	logger := ctrl.LoggerFrom(ctx).WithValues("engine", engine)
	variables, constraints := s.NumVariables(), s.NumConstraints()
	logger.V(logging.DEBUG).Info("Solving allocation model", "variables", variables, "constraints", constraints)

	start := time.Now()
	status := s.Solve(ctx)
	elapsed := time.Since(start)

	metrics.OrNop(recorder).ObserveSolve(engine, status.String(), elapsed, variables, constraints)
	logger.Info("Allocation model solved", "status", status.String(), "duration", elapsed.String())
	return status
}
