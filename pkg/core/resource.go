package core

import (
	"fmt"
	"slices"
)

// Resource is a named pool of identical units. Two resources with the same
// Name denote the same resource.
type Resource struct {
	// Name is the unique key of the resource.
	Name string `json:"name"`
	// AvailableCapacity is the number of units that can be allocated.
	AvailableCapacity int `json:"availableCapacity"`
	// Cost is the cost of a single unit.
	Cost int `json:"cost"`
}

// NewResource creates a Resource, rejecting empty names and negative values.
func NewResource(name string, capacity, cost int) (Resource, error) {
	if name == "" {
		return Resource{}, errEmptyName
	}
	if capacity < 0 {
		return Resource{}, fmt.Errorf("resource %s: %w (got %d)", name, errNegativeCapacity, capacity)
	}
	if cost < 0 {
		return Resource{}, fmt.Errorf("resource %s: %w (got %d)", name, errNegativeCost, cost)
	}
	return Resource{Name: name, AvailableCapacity: capacity, Cost: cost}, nil
}

// Validate reports whether r could have been built by NewResource.
func (r Resource) Validate() error {
	_, err := NewResource(r.Name, r.AvailableCapacity, r.Cost)
	return err
}

// Key returns the identity of the resource used for map lookups.
func (r Resource) Key() string {
	return r.Name
}

// Unit returns a one-capacity token of this resource, carrying its name and cost.
func (r Resource) Unit() Resource {
	return Resource{Name: r.Name, AvailableCapacity: 1, Cost: r.Cost}
}

// ResourceIndex is an ordered, name-indexed view over a set of resources.
type ResourceIndex struct {
	ordered []Resource
	byName  map[string]int
}

// NewResourceIndex indexes resources by name, preserving their order.
// Duplicate names are rejected.
func NewResourceIndex(resources []Resource) (*ResourceIndex, error) {
	idx := &ResourceIndex{
		ordered: slices.Clone(resources),
		byName:  make(map[string]int, len(resources)),
	}
	for i, r := range resources {
		if _, exists := idx.byName[r.Name]; exists {
			return nil, fmt.Errorf("%w: %s", errDuplicateResource, r.Name)
		}
		idx.byName[r.Name] = i
	}
	return idx, nil
}

// Get returns the resource with the given name.
func (idx *ResourceIndex) Get(name string) (Resource, bool) {
	i, ok := idx.byName[name]
	if !ok {
		return Resource{}, false
	}
	return idx.ordered[i], true
}

// Position returns the position of the named resource, or -1.
func (idx *ResourceIndex) Position(name string) int {
	if i, ok := idx.byName[name]; ok {
		return i
	}
	return -1
}

// Contains reports whether a resource with the given name is indexed.
func (idx *ResourceIndex) Contains(name string) bool {
	_, ok := idx.byName[name]
	return ok
}

// Len returns the number of indexed resources.
func (idx *ResourceIndex) Len() int {
	return len(idx.ordered)
}

// Resources returns a copy of the indexed resources in their original order.
func (idx *ResourceIndex) Resources() []Resource {
	return slices.Clone(idx.ordered)
}

// Names returns the resource names in their original order.
func (idx *ResourceIndex) Names() []string {
	names := make([]string, len(idx.ordered))
	for i, r := range idx.ordered {
		names[i] = r.Name
	}
	return names
}

// TotalCapacity sums the available capacity of all indexed resources.
func (idx *ResourceIndex) TotalCapacity() int {
	total := 0
	for _, r := range idx.ordered {
		total += r.AvailableCapacity
	}
	return total
}
