package common

import (
	"context"
	"fmt"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-capacity-allocator/internal/logging"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
)

// IndexInputs validates the engine inputs and indexes the resources by name.
func IndexInputs(resources []core.Resource, projects []core.Project) (*core.ResourceIndex, error) {
	for _, r := range resources {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("invalid resource: %w", err)
		}
	}
	idx, err := core.NewResourceIndex(resources)
	if err != nil {
		return nil, fmt.Errorf("invalid resources: %w", err)
	}
	if err := core.ValidateProjectNames(projects); err != nil {
		return nil, fmt.Errorf("invalid projects: %w", err)
	}
	return idx, nil
}

// LogUnknownRequirements logs project requirements on resources missing from
// idx. Such requirements are treated as zero.
func LogUnknownRequirements(ctx context.Context, idx *core.ResourceIndex, projects []core.Project) int {
	logger := ctrl.LoggerFrom(ctx)
	unknown := 0
	for _, p := range projects {
		for _, name := range p.RequiredResources() {
			if idx.Contains(name) {
				continue
			}
			unknown++
			logger.V(logging.DEBUG).Info("Ignoring requirement on unknown resource",
				"project", p.Name, "resource", name, "quantity", p.Requirement(name))
		}
	}
	return unknown
}
