package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/utils/ptr"

	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/allocator"
	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/feasibility"
	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/utilization"
	"github.com/llm-d/llm-d-capacity-allocator/internal/logging"
	"github.com/llm-d/llm-d-capacity-allocator/internal/metrics"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/generator"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/solver"
)

// EnvPrefix is the prefix of environment variables overriding configuration keys,
// e.g. ALLOCATOR_RESOURCES_COUNT for resources.count.
const EnvPrefix = "ALLOCATOR"

// Config is the complete allocator configuration.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Strategy    string            `mapstructure:"strategy"`
	Solver      string            `mapstructure:"solver"`
	Resources   ResourcesConfig   `mapstructure:"resources"`
	Projects    ProjectsConfig    `mapstructure:"projects"`
	Feasibility FeasibilityConfig `mapstructure:"feasibility"`
	Utilization UtilizationConfig `mapstructure:"utilization"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`

	// Scenario names the entry of ScenariosFile applied on top of this config.
	Scenario string `mapstructure:"scenario"`
	// ScenariosFile is a YAML file of named scenario overrides.
	ScenariosFile string `mapstructure:"scenariosFile"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ResourcesConfig configures the resource generator.
type ResourcesConfig struct {
	Count          int    `mapstructure:"count"`
	MinCapacity    int    `mapstructure:"minCapacity"`
	CapacitySpread int    `mapstructure:"capacitySpread"`
	CostMax        int    `mapstructure:"costMax"`
	Distribution   string `mapstructure:"distribution"`
	Seed           int64  `mapstructure:"seed"`
}

// ProjectsConfig configures the project generator.
type ProjectsConfig struct {
	Count             int     `mapstructure:"count"`
	Profile           string  `mapstructure:"profile"`
	UtilizationTarget float64 `mapstructure:"utilizationTarget"`
	Seed              int64   `mapstructure:"seed"`
}

// FeasibilityConfig configures the feasibility strategy.
type FeasibilityConfig struct {
	SelectionPolicy string `mapstructure:"selectionPolicy"`
	GateOnStatus    bool   `mapstructure:"gateOnStatus"`
}

// UtilizationConfig configures the utilization strategy.
type UtilizationConfig struct {
	ObjectiveMode string  `mapstructure:"objectiveMode"`
	UtilWeight    float64 `mapstructure:"utilWeight"`
}

// MetricsConfig configures metrics output.
type MetricsConfig struct {
	// Dump prints the collected metrics in text exposition format after the run.
	Dump bool `mapstructure:"dump"`
}

// Default returns the default configuration, mirroring the feasibility demo workload.
func Default() *Config {
	resources := generator.DefaultResourceGeneratorConfig()
	return &Config{
		Logging:  LoggingConfig{Level: "info"},
		Strategy: allocator.FeasibilityStrategy.String(),
		Solver:   string(solver.MIP),
		Resources: ResourcesConfig{
			Count:          5,
			MinCapacity:    resources.MinCapacity,
			CapacitySpread: resources.CapacitySpread,
			CostMax:        resources.CostMax,
			Distribution:   resources.Distribution.String(),
			Seed:           resources.Seed,
		},
		Projects: ProjectsConfig{
			Count:             4,
			Profile:           generator.Competitive.String(),
			UtilizationTarget: 0.9,
			Seed:              42,
		},
		Feasibility: FeasibilityConfig{SelectionPolicy: feasibility.SelectAll.String()},
		Utilization: UtilizationConfig{
			ObjectiveMode: utilization.UtilizationFirst.String(),
			UtilWeight:    utilization.DefaultUtilWeight,
		},
	}
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":          "logging.level",
	"log-development":    "logging.development",
	"strategy":           "strategy",
	"solver":             "solver",
	"resources":          "resources.count",
	"min-capacity":       "resources.minCapacity",
	"capacity-spread":    "resources.capacitySpread",
	"cost-max":           "resources.costMax",
	"distribution":       "resources.distribution",
	"resource-seed":      "resources.seed",
	"projects":           "projects.count",
	"profile":            "projects.profile",
	"utilization-target": "projects.utilizationTarget",
	"project-seed":       "projects.seed",
	"selection-policy":   "feasibility.selectionPolicy",
	"gate-on-status":     "feasibility.gateOnStatus",
	"objective-mode":     "utilization.objectiveMode",
	"util-weight":        "utilization.utilWeight",
	"metrics-dump":       "metrics.dump",
	"scenario":           "scenario",
	"scenarios-file":     "scenariosFile",
}

// BindFlags registers the configuration flags on fs, with defaults from Default.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "Path to a YAML configuration file")
	fs.String("log-level", d.Logging.Level, "Log level: info, debug or trace")
	fs.Bool("log-development", d.Logging.Development, "Use the human readable development logger")
	fs.String("strategy", d.Strategy, "Allocation strategy: feasibility or utilization")
	fs.String("solver", d.Solver, "Solver backend: LP or MIP")
	fs.Int("resources", d.Resources.Count, "Number of generated resources")
	fs.Int("min-capacity", d.Resources.MinCapacity, "Minimum capacity of a generated resource")
	fs.Int("capacity-spread", d.Resources.CapacitySpread, "Width of the capacity range above the minimum")
	fs.Int("cost-max", d.Resources.CostMax, "Maximum unit cost of a generated resource")
	fs.String("distribution", d.Resources.Distribution, "Capacity distribution: UNIFORM, NORMAL, EXPONENTIAL or PARETO")
	fs.Int64("resource-seed", d.Resources.Seed, "Seed of the resource generator")
	fs.Int("projects", d.Projects.Count, "Number of generated projects")
	fs.String("profile", d.Projects.Profile, "Requirement profile: BALANCED, SPARSE, COMPLEMENTARY, COMPETITIVE or SEASONAL")
	fs.Float64("utilization-target", d.Projects.UtilizationTarget, "Share of each resource the projects aim to consume")
	fs.Int64("project-seed", d.Projects.Seed, "Seed of the project generator")
	fs.String("selection-policy", d.Feasibility.SelectionPolicy, "Feasibility selection policy: SelectAll or SelectOptional")
	fs.Bool("gate-on-status", d.Feasibility.GateOnStatus, "Report feasibility solves without a solution as infeasible")
	fs.String("objective-mode", d.Utilization.ObjectiveMode, "Utilization objective: UtilizationFirst or CostWeighted")
	fs.Float64("util-weight", d.Utilization.UtilWeight, "Utilization reward per granted unit")
	fs.Bool("metrics-dump", d.Metrics.Dump, "Print collected metrics after the run")
	fs.String("scenario", d.Scenario, "Name of the scenario override to apply")
	fs.String("scenarios-file", d.ScenariosFile, "YAML file with named scenario overrides")
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("solver", d.Solver)
	v.SetDefault("resources.count", d.Resources.Count)
	v.SetDefault("resources.minCapacity", d.Resources.MinCapacity)
	v.SetDefault("resources.capacitySpread", d.Resources.CapacitySpread)
	v.SetDefault("resources.costMax", d.Resources.CostMax)
	v.SetDefault("resources.distribution", d.Resources.Distribution)
	v.SetDefault("resources.seed", d.Resources.Seed)
	v.SetDefault("projects.count", d.Projects.Count)
	v.SetDefault("projects.profile", d.Projects.Profile)
	v.SetDefault("projects.utilizationTarget", d.Projects.UtilizationTarget)
	v.SetDefault("projects.seed", d.Projects.Seed)
	v.SetDefault("feasibility.selectionPolicy", d.Feasibility.SelectionPolicy)
	v.SetDefault("feasibility.gateOnStatus", d.Feasibility.GateOnStatus)
	v.SetDefault("utilization.objectiveMode", d.Utilization.ObjectiveMode)
	v.SetDefault("utilization.utilWeight", d.Utilization.UtilWeight)
	v.SetDefault("metrics.dump", d.Metrics.Dump)
	v.SetDefault("scenario", d.Scenario)
	v.SetDefault("scenariosFile", d.ScenariosFile)
}

// Load reads the configuration from, in increasing precedence: defaults, the
// file named by the --config flag, ALLOCATOR_* environment variables and the
// flags set on fs. A selected scenario is applied last, then the result is
// validated. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.ScenariosFile != "" {
		scenarios, err := LoadScenarios(cfg.ScenariosFile)
		if err != nil {
			return nil, err
		}
		if cfg.Scenario != "" && !scenarios.Has(cfg.Scenario) {
			return nil, fmt.Errorf("scenario %q not found in %s", cfg.Scenario, cfg.ScenariosFile)
		}
		cfg.ApplyScenario(scenarios.GetScenario(cfg.Scenario))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks for invalid configuration values.
func (c *Config) Validate() error {
	var errs field.ErrorList
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, field.NotSupported(field.NewPath("logging", "level"), c.Logging.Level,
			[]string{"info", "debug", "trace"}))
	}
	if _, err := allocator.ParseStrategy(c.Strategy); err != nil {
		errs = append(errs, field.NotSupported(field.NewPath("strategy"), c.Strategy,
			[]string{allocator.FeasibilityStrategy.String(), allocator.UtilizationStrategy.String()}))
	}
	if _, err := solver.ParseKind(c.Solver); err != nil {
		errs = append(errs, field.NotSupported(field.NewPath("solver"), c.Solver,
			[]string{string(solver.LP), string(solver.MIP)}))
	}
	if _, err := c.selectionPolicy(); err != nil {
		errs = append(errs, field.NotSupported(field.NewPath("feasibility", "selectionPolicy"), c.Feasibility.SelectionPolicy,
			[]string{feasibility.SelectAll.String(), feasibility.SelectOptional.String()}))
	}
	if _, err := utilization.ParseObjectiveMode(c.Utilization.ObjectiveMode); err != nil {
		errs = append(errs, field.NotSupported(field.NewPath("utilization", "objectiveMode"), c.Utilization.ObjectiveMode,
			[]string{utilization.UtilizationFirst.String(), utilization.CostWeighted.String()}))
	}
	if c.Utilization.UtilWeight < 0 {
		errs = append(errs, field.Invalid(field.NewPath("utilization", "utilWeight"), c.Utilization.UtilWeight, "must be >= 0"))
	}

	all := []error{errs.ToAggregate()}
	if _, err := c.ResourceGeneratorConfig(); err != nil {
		all = append(all, err)
	}
	if _, err := c.ProjectGeneratorConfig(nil); err != nil {
		all = append(all, err)
	}
	return utilerrors.NewAggregate(all)
}

// ResourceGeneratorConfig converts the resources section into a validated generator config.
func (c *Config) ResourceGeneratorConfig() (generator.ResourceGeneratorConfig, error) {
	dist, err := generator.ParseCapacityDistribution(c.Resources.Distribution)
	if err != nil {
		return generator.ResourceGeneratorConfig{}, field.NotSupported(field.NewPath("resources", "distribution"),
			c.Resources.Distribution, []string{"UNIFORM", "NORMAL", "EXPONENTIAL", "PARETO"})
	}
	rc := generator.ResourceGeneratorConfig{
		Count:          c.Resources.Count,
		MinCapacity:    c.Resources.MinCapacity,
		CapacitySpread: c.Resources.CapacitySpread,
		CostMax:        c.Resources.CostMax,
		Distribution:   dist,
		Seed:           c.Resources.Seed,
	}
	return rc, rc.Validate()
}

// ProjectGeneratorConfig converts the projects section into a validated generator
// config over the given resources.
func (c *Config) ProjectGeneratorConfig(resources []core.Resource) (generator.ProjectGeneratorConfig, error) {
	profile, err := generator.ParseRequirementProfile(c.Projects.Profile)
	if err != nil {
		return generator.ProjectGeneratorConfig{}, field.NotSupported(field.NewPath("projects", "profile"),
			c.Projects.Profile, []string{"BALANCED", "SPARSE", "COMPLEMENTARY", "COMPETITIVE", "SEASONAL"})
	}
	pc := generator.ProjectGeneratorConfig{
		Count:             c.Projects.Count,
		Resources:         resources,
		Profile:           profile,
		UtilizationTarget: c.Projects.UtilizationTarget,
		Seed:              c.Projects.Seed,
	}
	return pc, pc.Validate()
}

// AllocatorStrategy returns the configured allocation strategy.
func (c *Config) AllocatorStrategy() (allocator.Strategy, error) {
	return allocator.ParseStrategy(c.Strategy)
}

// AllocatorConfig converts the engine sections into an allocator config
// reporting to recorder.
func (c *Config) AllocatorConfig(recorder metrics.Recorder) (*allocator.Config, error) {
	kind, err := solver.ParseKind(c.Solver)
	if err != nil {
		return nil, err
	}
	policy, err := c.selectionPolicy()
	if err != nil {
		return nil, err
	}
	mode, err := utilization.ParseObjectiveMode(c.Utilization.ObjectiveMode)
	if err != nil {
		return nil, err
	}
	return &allocator.Config{
		SolverKind:      kind,
		SelectionPolicy: policy,
		GateOnStatus:    c.Feasibility.GateOnStatus,
		ObjectiveMode:   mode,
		UtilWeight:      ptr.To(c.Utilization.UtilWeight),
		Recorder:        recorder,
	}, nil
}

var errUnknownSelectionPolicy = errors.New("unknown selection policy")

func (c *Config) selectionPolicy() (feasibility.SelectionPolicy, error) {
	for _, p := range []feasibility.SelectionPolicy{feasibility.SelectAll, feasibility.SelectOptional} {
		if strings.EqualFold(p.String(), c.Feasibility.SelectionPolicy) {
			return p, nil
		}
	}
	return feasibility.SelectAll, fmt.Errorf("%w: %q", errUnknownSelectionPolicy, c.Feasibility.SelectionPolicy)
}
