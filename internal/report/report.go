// Package report summarizes allocation plans for people: per-project
// completion, global usage totals and per-resource statistics.
package report

import (
	"fmt"
	"io"

	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/yaml"

	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/allocator"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
)

// Report is the summary of one allocation plan.
type Report struct {
	Strategy  string          `json:"strategy"`
	Status    string          `json:"status"`
	Feasible  bool            `json:"feasible"`
	Projects  []ProjectStats  `json:"projects"`
	Global    GlobalStats     `json:"global"`
	Resources []ResourceStats `json:"resources"`
}

// ProjectStats describes what one project required and received.
type ProjectStats struct {
	Name       string  `json:"name"`
	Completion float64 `json:"completion"`
	// Selected is only set by strategies that select projects.
	Selected          *bool          `json:"selected,omitempty"`
	ResourcesAssigned int            `json:"resourcesAssigned"`
	Assigned          map[string]int `json:"assigned,omitempty"`
	Required          map[string]int `json:"required,omitempty"`
	Missing           map[string]int `json:"missing,omitempty"`
}

// Complete reports whether every requirement of the project is met.
func (p ProjectStats) Complete() bool {
	return len(p.Missing) == 0
}

// ResourceCount pairs a resource name with a number of granted units.
type ResourceCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// GlobalStats aggregates the plan over all projects and resources.
type GlobalStats struct {
	TotalAvailable    int            `json:"totalAvailable"`
	TotalUsed         int            `json:"totalUsed"`
	Unused            int            `json:"unused"`
	AveragePerProject float64        `json:"averagePerProject"`
	CompleteProjects  int            `json:"completeProjects"`
	TotalSlack        float64        `json:"totalSlack,omitempty"`
	Assignments       map[string]int `json:"assignments,omitempty"`
	MostAssigned      *ResourceCount `json:"mostAssigned,omitempty"`
	LeastAssigned     *ResourceCount `json:"leastAssigned,omitempty"`
}

// ResourceStats describes the usage of one resource.
type ResourceStats struct {
	Name      string  `json:"name"`
	Capacity  int     `json:"capacity"`
	Cost      int     `json:"cost"`
	Assigned  int     `json:"assigned"`
	Remaining int     `json:"remaining"`
	Slack     float64 `json:"slack,omitempty"`
}

// Summarize builds the report of plan over the given inputs. Projects and
// resources keep their input order.
func Summarize(resources []core.Resource, projects []core.Project, plan *allocator.Plan) *Report {
	if plan == nil {
		plan = &allocator.Plan{}
	}
	r := &Report{
		Strategy: plan.Strategy.String(),
		Status:   plan.Status.String(),
		Feasible: plan.Feasible,
	}

	known := sets.New[string]()
	for _, res := range resources {
		known.Insert(res.Name)
	}

	for _, p := range projects {
		stats := ProjectStats{
			Name:       p.Name,
			Completion: plan.Completion[p.Name],
			Required:   p.Requirements(),
			Assigned:   map[string]int{},
			Missing:    map[string]int{},
		}
		if selected, ok := plan.Selections[p.Name]; ok {
			stats.Selected = &selected
		}
		for resource, units := range plan.Granted[p.Name] {
			stats.Assigned[resource] = units
			stats.ResourcesAssigned += units
		}
		for resource, required := range stats.Required {
			if !known.Has(resource) {
				continue
			}
			if missing := required - stats.Assigned[resource]; missing > 0 {
				stats.Missing[resource] = missing
			}
		}
		if stats.Complete() {
			r.Global.CompleteProjects++
		}
		r.Projects = append(r.Projects, stats)
	}

	usage := plan.ResourceUsage()
	remaining := allocator.RemainingCapacity(resources, plan)
	for _, res := range resources {
		r.Global.TotalAvailable += res.AvailableCapacity
		r.Resources = append(r.Resources, ResourceStats{
			Name:      res.Name,
			Capacity:  res.AvailableCapacity,
			Cost:      res.Cost,
			Assigned:  usage[res.Name],
			Remaining: remaining[res.Name],
			Slack:     plan.Slacks[res.Name],
		})
	}
	for _, slack := range plan.Slacks {
		r.Global.TotalSlack += slack
	}
	for _, units := range usage {
		r.Global.TotalUsed += units
	}
	r.Global.Unused = r.Global.TotalAvailable - r.Global.TotalUsed
	if len(projects) > 0 {
		r.Global.AveragePerProject = float64(r.Global.TotalUsed) / float64(len(projects))
	}
	if len(usage) > 0 {
		r.Global.Assignments = usage
		r.Global.MostAssigned, r.Global.LeastAssigned = extremes(usage)
	}
	return r
}

// extremes returns the most and least assigned resources. Ties go to the
// lexically smallest name.
func extremes(usage map[string]int) (most, least *ResourceCount) {
	for _, name := range sets.List(sets.KeySet(usage)) {
		count := usage[name]
		if most == nil || count > most.Count {
			most = &ResourceCount{Name: name, Count: count}
		}
		if least == nil || count < least.Count {
			least = &ResourceCount{Name: name, Count: count}
		}
	}
	return most, least
}

// WriteYAML renders the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	out, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	_, err = w.Write(out)
	return err
}
