package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/allocator"
	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/feasibility"
	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/utilization"
	"github.com/llm-d/llm-d-capacity-allocator/internal/metrics"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/generator"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/solver"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func loadWithArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return Load(fs)
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPrecedence(t *testing.T) {
	file := writeFile(t, "allocator.yaml", `
strategy: utilization
resources:
  count: 12
  distribution: NORMAL
projects:
  count: 6
  profile: SPARSE
utilization:
  objectiveMode: CostWeighted
`)

	tests := []struct {
		name  string
		args  []string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "flags override defaults",
			args: []string{"--resources=7", "--strategy=utilization", "--gate-on-status"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7, cfg.Resources.Count)
				assert.Equal(t, "utilization", cfg.Strategy)
				assert.True(t, cfg.Feasibility.GateOnStatus)
				assert.Equal(t, Default().Projects, cfg.Projects)
			},
		},
		{
			name: "file overrides defaults",
			args: []string{"--config", file},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "utilization", cfg.Strategy)
				assert.Equal(t, 12, cfg.Resources.Count)
				assert.Equal(t, "NORMAL", cfg.Resources.Distribution)
				assert.Equal(t, "SPARSE", cfg.Projects.Profile)
				assert.Equal(t, "CostWeighted", cfg.Utilization.ObjectiveMode)
				assert.Equal(t, Default().Resources.CostMax, cfg.Resources.CostMax)
			},
		},
		{
			name: "flags override the file",
			args: []string{"--config", file, "--resources=3"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3, cfg.Resources.Count)
				assert.Equal(t, 6, cfg.Projects.Count)
			},
		},
		{
			name: "environment overrides the file",
			args: []string{"--config", file},
			env:  map[string]string{"ALLOCATOR_PROJECTS_COUNT": "9", "ALLOCATOR_SOLVER": "LP"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9, cfg.Projects.Count)
				assert.Equal(t, "LP", cfg.Solver)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := loadWithArgs(t, tt.args...)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "unknown log level", args: []string{"--log-level=verbose"}, wantErr: "logging.level"},
		{name: "unknown strategy", args: []string{"--strategy=saturation"}, wantErr: "strategy"},
		{name: "unknown solver", args: []string{"--solver=CPLEX"}, wantErr: "solver"},
		{name: "negative resource count", args: []string{"--resources=-1"}, wantErr: "resources.count"},
		{name: "unknown profile", args: []string{"--profile=BURSTY"}, wantErr: "projects.profile"},
		{name: "zero utilization target", args: []string{"--utilization-target=0"}, wantErr: "projects.utilizationTarget"},
		{name: "unknown selection policy", args: []string{"--selection-policy=Some"}, wantErr: "feasibility.selectionPolicy"},
		{name: "missing config file", args: []string{"--config=/nonexistent/allocator.yaml"}, wantErr: "failed to read config file"},
		{name: "missing scenarios file", args: []string{"--scenarios-file=/nonexistent/s.yaml"}, wantErr: "failed to read scenarios file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadWithArgs(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Strategy = "nope"
	cfg.Resources.Count = -1
	cfg.Utilization.UtilWeight = -2

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy")
	assert.Contains(t, err.Error(), "resources.count")
	assert.Contains(t, err.Error(), "utilization.utilWeight")
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Strategy = "Utilization"
	cfg.Solver = "glop"
	cfg.Feasibility.SelectionPolicy = "selectoptional"
	cfg.Utilization.ObjectiveMode = "costweighted"
	cfg.Resources.Distribution = "pareto"

	strategy, err := cfg.AllocatorStrategy()
	require.NoError(t, err)
	assert.Equal(t, allocator.UtilizationStrategy, strategy)

	rec := metrics.NopRecorder{}
	ac, err := cfg.AllocatorConfig(rec)
	require.NoError(t, err)
	assert.Equal(t, &allocator.Config{
		SolverKind:      solver.LP,
		SelectionPolicy: feasibility.SelectOptional,
		ObjectiveMode:   utilization.CostWeighted,
		UtilWeight:      ptr.To(utilization.DefaultUtilWeight),
		Recorder:        rec,
	}, ac)

	// an explicit zero weight is kept rather than replaced by the default
	cfg.Utilization.UtilWeight = 0
	require.NoError(t, cfg.Validate())
	ac, err = cfg.AllocatorConfig(rec)
	require.NoError(t, err)
	assert.Equal(t, ptr.To(0.0), ac.UtilWeight)

	rc, err := cfg.ResourceGeneratorConfig()
	require.NoError(t, err)
	assert.Equal(t, generator.Pareto, rc.Distribution)
	assert.Equal(t, 5, rc.Count)

	pc, err := cfg.ProjectGeneratorConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, generator.Competitive, pc.Profile)
	assert.Equal(t, 0.9, pc.UtilizationTarget)
}
