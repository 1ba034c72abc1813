package utilization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/solver"
)

const (
	// DefaultUtilWeight is the objective reward per granted unit.
	DefaultUtilWeight = 0.1

	// quantityTolerance absorbs solver noise when truncating quantities.
	quantityTolerance = 1e-6
)

// ObjectiveMode selects the per-unit objective coefficient.
type ObjectiveMode int

const (
	// UtilizationFirst rewards every granted unit equally with -UtilWeight,
	// so the solver grants as much as capacity and requirements allow.
	UtilizationFirst ObjectiveMode = iota
	// CostWeighted charges each unit its resource cost minus UtilWeight, so
	// resources costing more than UtilWeight are left idle.
	CostWeighted
)

func (m ObjectiveMode) String() string {
	switch m {
	case UtilizationFirst:
		return "UtilizationFirst"
	case CostWeighted:
		return "CostWeighted"
	default:
		return fmt.Sprintf("ObjectiveMode(%d)", int(m))
	}
}

// ParseObjectiveMode maps a mode name to an ObjectiveMode.
func ParseObjectiveMode(name string) (ObjectiveMode, error) {
	for _, m := range []ObjectiveMode{UtilizationFirst, CostWeighted} {
		if strings.EqualFold(m.String(), name) {
			return m, nil
		}
	}
	return UtilizationFirst, fmt.Errorf("unknown objective mode %q", name)
}

// Result is the outcome of one utilization solve.
type Result struct {
	// Status is the status reported by the solver.
	Status solver.Status
	// Assignments maps a project name to the units granted to it, one
	// single-capacity resource per unit. Projects granted nothing are absent.
	Assignments map[string][]core.Resource
	// Completion maps every project to its completion percentage over the
	// engine's resources.
	Completion map[string]float64
}

// Quantity returns the number of units of resource granted to project.
func (r *Result) Quantity(project, resource string) int {
	n := 0
	for _, unit := range r.Assignments[project] {
		if unit.Name == resource {
			n++
		}
	}
	return n
}

// Granted returns the number of units granted to project per resource.
func (r *Result) Granted(project string) map[string]int {
	granted := make(map[string]int)
	for _, unit := range r.Assignments[project] {
		granted[unit.Name]++
	}
	return granted
}

// Projects returns the names of the projects that were granted units, sorted.
func (r *Result) Projects() []string {
	names := make([]string, 0, len(r.Assignments))
	for name := range r.Assignments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CompletionPercentage returns the share of the project's requirements on
// resources covered by units, each resource counting at most its requirement.
// Requirements on names outside resources count as zero. A project without
// requirements on resources is complete.
func CompletionPercentage(project core.Project, units []core.Resource, resources []core.Resource) float64 {
	fulfilled := make(map[string]int)
	for _, unit := range units {
		fulfilled[unit.Name]++
	}
	var required, covered float64
	for _, r := range resources {
		req := project.Requirement(r.Name)
		if req <= 0 {
			continue
		}
		required += float64(req)
		covered += float64(min(fulfilled[r.Name], req))
	}
	return core.CompletionPercentage(covered, required)
}
