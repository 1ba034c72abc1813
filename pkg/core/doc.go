// Package core provides the data model shared by the generators and the allocation engines.
//
// The package contains two entity types:
//
//   - Resource: a named, capacity-limited resource with a per-unit cost
//   - Project: a named consumer with a requirement per resource name
//
// Both are value records. Identity is the Name field: engines and reports key
// every map by name, so two Resource values with the same name are the same
// resource even if they were created separately.
//
// Example usage:
//
//	r0, _ := core.NewResource("Resource0", 10, 2)
//	r1, _ := core.NewResource("Resource1", 10, 1)
//	idx, err := core.NewResourceIndex([]core.Resource{r0, r1})
//
//	p, _ := core.NewProject("Project0", map[string]int{"Resource0": 5, "Resource1": 15})
//	p.Requirement("Resource1") // 15
//	p.Requirement("Resource9") // 0, absent means no requirement
//
// The core package is designed to be:
//   - Immutable (entities are never mutated after construction)
//   - Independent of the solving engine
package core
