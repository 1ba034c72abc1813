package feasibility

import (
	"fmt"

	"github.com/llm-d/llm-d-capacity-allocator/pkg/solver"
)

const (
	// SlackPenalty is the objective weight of one unit of capacity shortfall.
	// It stays below 1 so selecting a project always outweighs its slack.
	SlackPenalty = 0.1
	// SlackThreshold is the owned slack up to which a selected project counts
	// as almost complete.
	SlackThreshold = 0.01

	// decisionThreshold converts relaxed binary values into decisions.
	decisionThreshold = 0.5
)

// SelectionPolicy controls the bounds of the per-project selection variables.
type SelectionPolicy int

const (
	// SelectAll pins every selection variable to 1, so feasibility is
	// evaluated for the whole project set.
	SelectAll SelectionPolicy = iota
	// SelectOptional lets the solver choose which projects to select.
	SelectOptional
)

func (p SelectionPolicy) String() string {
	switch p {
	case SelectAll:
		return "SelectAll"
	case SelectOptional:
		return "SelectOptional"
	default:
		return fmt.Sprintf("SelectionPolicy(%d)", int(p))
	}
}

// Result is the outcome of one feasibility solve. All maps are keyed by name.
type Result struct {
	// Feasible is true whenever the solve ran, unless status gating is
	// enabled, in which case it reports whether the solver found a solution.
	Feasible bool
	// Status is the status reported by the solver.
	Status solver.Status
	// Selections holds the selection flag of every project. Under SelectAll
	// every project is selected, even when the solver found no solution.
	Selections map[string]bool
	// Owners maps each owned resource to its owning project.
	Owners map[string]string
	// Slacks holds the capacity shortfall absorbed by each resource.
	Slacks map[string]float64
	// Completion holds the completion percentage of every project.
	Completion map[string]float64
	// TotalSlack is the sum of all resource slacks.
	TotalSlack float64
	// AlmostComplete flags selected projects whose owned resources absorb
	// at most SlackThreshold of slack. It is false for every project when the
	// solver found no solution.
	AlmostComplete map[string]bool
}

// Owned returns the resources owned by the named project, in no particular order.
func (r *Result) Owned(project string) []string {
	var owned []string
	for resource, owner := range r.Owners {
		if owner == project {
			owned = append(owned, resource)
		}
	}
	return owned
}

func emptyResult(status solver.Status) *Result {
	return &Result{
		Status:         status,
		Selections:     map[string]bool{},
		Owners:         map[string]string{},
		Slacks:         map[string]float64{},
		Completion:     map[string]float64{},
		AlmostComplete: map[string]bool{},
	}
}
