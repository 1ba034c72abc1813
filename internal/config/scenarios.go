package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-capacity-allocator/internal/logging"
)

// GlobalDefaultsKey is the scenario entry applied to every scenario.
const GlobalDefaultsKey = "default"

// Scenario is a named set of overrides on top of the base configuration.
// Unset fields inherit from the "default" entry, then from the base config.
type Scenario struct {
	// Description is free text shown in logs.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Strategy string `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	Solver   string `yaml:"solver,omitempty" json:"solver,omitempty"`

	// Workload shape. Pointers distinguish an explicit zero from an unset value.
	Resources         *int     `yaml:"resources,omitempty" json:"resources,omitempty"`
	MinCapacity       *int     `yaml:"minCapacity,omitempty" json:"minCapacity,omitempty"`
	CapacitySpread    *int     `yaml:"capacitySpread,omitempty" json:"capacitySpread,omitempty"`
	CostMax           *int     `yaml:"costMax,omitempty" json:"costMax,omitempty"`
	Distribution      string   `yaml:"distribution,omitempty" json:"distribution,omitempty"`
	Projects          *int     `yaml:"projects,omitempty" json:"projects,omitempty"`
	Profile           string   `yaml:"profile,omitempty" json:"profile,omitempty"`
	UtilizationTarget *float64 `yaml:"utilizationTarget,omitempty" json:"utilizationTarget,omitempty"`
	Seed              *int64   `yaml:"seed,omitempty" json:"seed,omitempty"`

	// Engine settings.
	SelectionPolicy string `yaml:"selectionPolicy,omitempty" json:"selectionPolicy,omitempty"`
	GateOnStatus    *bool  `yaml:"gateOnStatus,omitempty" json:"gateOnStatus,omitempty"`
	ObjectiveMode   string `yaml:"objectiveMode,omitempty" json:"objectiveMode,omitempty"`
}

// ScenarioData maps scenario names to their overrides.
type ScenarioData map[string]Scenario

// Validate checks for invalid override values.
func (s *Scenario) Validate() error {
	var errs field.ErrorList
	nonNegative := func(name string, v *int) {
		if v != nil && *v < 0 {
			errs = append(errs, field.Invalid(field.NewPath(name), *v, "must be >= 0"))
		}
	}
	nonNegative("resources", s.Resources)
	nonNegative("minCapacity", s.MinCapacity)
	nonNegative("capacitySpread", s.CapacitySpread)
	nonNegative("costMax", s.CostMax)
	nonNegative("projects", s.Projects)
	if s.UtilizationTarget != nil && *s.UtilizationTarget <= 0 {
		errs = append(errs, field.Invalid(field.NewPath("utilizationTarget"), *s.UtilizationTarget, "must be > 0"))
	}
	return errs.ToAggregate()
}

// ParseScenarios parses a YAML mapping of scenario names to overrides.
// Entries that fail to decode or validate are skipped.
func ParseScenarios(raw []byte) (ScenarioData, error) {
	out := make(ScenarioData)
	var entries map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		node := entries[key]
		var scenario Scenario
		if err := node.Decode(&scenario); err != nil {
			ctrl.Log.Info("Failed to parse scenario entry, skipping",
				"key", key,
				"error", err)
			continue
		}
		if err := scenario.Validate(); err != nil {
			ctrl.Log.Info("Invalid scenario entry, skipping",
				"key", key,
				"error", err)
			continue
		}
		out[key] = scenario
	}

	ctrl.Log.V(logging.DEBUG).Info("Parsed scenarios",
		"scenarioCount", len(out))

	return out, nil
}

// LoadScenarios reads and parses a scenarios file.
func LoadScenarios(path string) (ScenarioData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios file: %w", err)
	}
	return ParseScenarios(raw)
}

// Has reports whether a scenario with the given name exists.
func (data ScenarioData) Has(name string) bool {
	_, ok := data[name]
	return ok
}

// GetScenario returns the effective overrides of a scenario.
// It merges the named scenario with the global defaults.
func (data ScenarioData) GetScenario(name string) Scenario {
	defaults := data[GlobalDefaultsKey]
	scenario, hasScenario := data[name]

	if !hasScenario {
		return defaults
	}

	// Merge: scenario values override defaults
	result := defaults

	if scenario.Description != "" {
		result.Description = scenario.Description
	}
	if scenario.Strategy != "" {
		result.Strategy = scenario.Strategy
	}
	if scenario.Solver != "" {
		result.Solver = scenario.Solver
	}
	if scenario.Resources != nil {
		result.Resources = scenario.Resources
	}
	if scenario.MinCapacity != nil {
		result.MinCapacity = scenario.MinCapacity
	}
	if scenario.CapacitySpread != nil {
		result.CapacitySpread = scenario.CapacitySpread
	}
	if scenario.CostMax != nil {
		result.CostMax = scenario.CostMax
	}
	if scenario.Distribution != "" {
		result.Distribution = scenario.Distribution
	}
	if scenario.Projects != nil {
		result.Projects = scenario.Projects
	}
	if scenario.Profile != "" {
		result.Profile = scenario.Profile
	}
	if scenario.UtilizationTarget != nil {
		result.UtilizationTarget = scenario.UtilizationTarget
	}
	if scenario.Seed != nil {
		result.Seed = scenario.Seed
	}
	if scenario.SelectionPolicy != "" {
		result.SelectionPolicy = scenario.SelectionPolicy
	}
	if scenario.GateOnStatus != nil {
		result.GateOnStatus = scenario.GateOnStatus
	}
	if scenario.ObjectiveMode != "" {
		result.ObjectiveMode = scenario.ObjectiveMode
	}

	return result
}

// ApplyScenario overrides the configuration with every field set in s.
// A scenario seed seeds both generators.
func (c *Config) ApplyScenario(s Scenario) {
	if s.Strategy != "" {
		c.Strategy = s.Strategy
	}
	if s.Solver != "" {
		c.Solver = s.Solver
	}
	if s.Resources != nil {
		c.Resources.Count = *s.Resources
	}
	if s.MinCapacity != nil {
		c.Resources.MinCapacity = *s.MinCapacity
	}
	if s.CapacitySpread != nil {
		c.Resources.CapacitySpread = *s.CapacitySpread
	}
	if s.CostMax != nil {
		c.Resources.CostMax = *s.CostMax
	}
	if s.Distribution != "" {
		c.Resources.Distribution = s.Distribution
	}
	if s.Projects != nil {
		c.Projects.Count = *s.Projects
	}
	if s.Profile != "" {
		c.Projects.Profile = s.Profile
	}
	if s.UtilizationTarget != nil {
		c.Projects.UtilizationTarget = *s.UtilizationTarget
	}
	if s.Seed != nil {
		c.Resources.Seed = *s.Seed
		c.Projects.Seed = *s.Seed
	}
	if s.SelectionPolicy != "" {
		c.Feasibility.SelectionPolicy = s.SelectionPolicy
	}
	if s.GateOnStatus != nil {
		c.Feasibility.GateOnStatus = *s.GateOnStatus
	}
	if s.ObjectiveMode != "" {
		c.Utilization.ObjectiveMode = s.ObjectiveMode
	}
}
