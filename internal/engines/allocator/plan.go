package allocator

import (
	"sort"

	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/solver"
)

// Plan is the strategy-independent outcome of an allocation
type Plan struct {
	// Strategy is the strategy that produced the plan
	Strategy Strategy `json:"strategy"`
	// Status is the solver status
	Status solver.Status `json:"status"`
	// Feasible is the feasibility flag reported by the engine
	Feasible bool `json:"feasible"`
	// Granted maps project -> resource -> granted units; projects granted nothing are absent
	Granted map[string]map[string]int `json:"granted"`
	// Completion holds the completion percentage of every project
	Completion map[string]float64 `json:"completion"`
	// Selections holds the project selection flags of the feasibility strategy
	Selections map[string]bool `json:"selections,omitempty"`
	// Slacks holds the capacity shortfall of every resource under the feasibility strategy
	Slacks map[string]float64 `json:"slacks,omitempty"`
}

func newPlan(strategy Strategy, status solver.Status) *Plan {
	return &Plan{
		Strategy:   strategy,
		Status:     status,
		Granted:    map[string]map[string]int{},
		Completion: map[string]float64{},
	}
}

// GrantedUnits returns the units of resource granted to project
func (p *Plan) GrantedUnits(project, resource string) int {
	return p.Granted[project][resource]
}

// ResourceUsage returns the total units granted per resource
func (p *Plan) ResourceUsage() map[string]int {
	usage := make(map[string]int)
	for _, grants := range p.Granted {
		for resource, units := range grants {
			usage[resource] += units
		}
	}
	return usage
}

// Projects returns the names of the projects with a completion entry, sorted
func (p *Plan) Projects() []string {
	names := make([]string, 0, len(p.Completion))
	for name := range p.Completion {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Plan) grant(project, resource string, units int) {
	if units <= 0 {
		return
	}
	if p.Granted[project] == nil {
		p.Granted[project] = make(map[string]int)
	}
	p.Granted[project][resource] += units
}

// RemainingCapacity calculates the capacity of each resource that is not granted to any project
// by the plan. Grants on resources missing from resources are ignored.
func RemainingCapacity(resources []core.Resource, plan *Plan) map[string]int {
	remaining := make(map[string]int, len(resources))
	for _, r := range resources {
		remaining[r.Name] = r.AvailableCapacity
	}
	if plan == nil {
		return remaining
	}
	for resource, used := range plan.ResourceUsage() {
		capacity, exists := remaining[resource]
		if !exists {
			continue
		}
		remaining[resource] = max(0, capacity-used)
	}
	return remaining
}
