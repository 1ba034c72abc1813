package core

import (
	"fmt"
	"maps"
	"slices"
)

// Project is a named consumer of resources. Its requirement map is private
// and copied on construction, so a Project never changes once created.
type Project struct {
	// Name is the unique key of the project.
	Name string

	requirements map[string]int
}

// NewProject creates a Project from a map of resource name to required
// quantity. Zero entries are dropped since absent and zero are equivalent.
func NewProject(name string, requirements map[string]int) (Project, error) {
	if name == "" {
		return Project{}, errEmptyName
	}
	reqs := make(map[string]int, len(requirements))
	for resource, qty := range requirements {
		if qty < 0 {
			return Project{}, fmt.Errorf("project %s, resource %s: %w (got %d)",
				name, resource, errNegativeQuantity, qty)
		}
		if qty > 0 {
			reqs[resource] = qty
		}
	}
	return Project{Name: name, requirements: reqs}, nil
}

// Key returns the identity of the project used for map lookups.
func (p Project) Key() string {
	return p.Name
}

// Requirement returns the required quantity of the named resource, 0 if none.
func (p Project) Requirement(resource string) int {
	return p.requirements[resource]
}

// Requirements returns a copy of the non-zero requirements.
func (p Project) Requirements() map[string]int {
	return maps.Clone(p.requirements)
}

// RequiredResources returns the names of resources with a non-zero
// requirement, sorted.
func (p Project) RequiredResources() []string {
	return slices.Sorted(maps.Keys(p.requirements))
}

// TotalRequirement sums all requirements of the project.
func (p Project) TotalRequirement() int {
	total := 0
	for _, qty := range p.requirements {
		total += qty
	}
	return total
}

// ValidateProjectNames rejects project sets containing duplicate names.
func ValidateProjectNames(projects []Project) error {
	seen := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		if _, exists := seen[p.Name]; exists {
			return fmt.Errorf("%w: %s", errDuplicateProject, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// CompletionPercentage returns 100 × fulfilled / required clamped to
// [0, 100], or 100 when nothing is required.
func CompletionPercentage(fulfilled, required float64) float64 {
	if required <= 0 {
		return 100.0
	}
	return min(max(fulfilled/required*100, 0), 100)
}
