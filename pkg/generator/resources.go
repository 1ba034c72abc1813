package generator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
)

// ResourceGeneratorConfig configures a ResourceGenerator.
type ResourceGeneratorConfig struct {
	// Count is the number of resources to generate.
	Count int
	// MinCapacity is the smallest capacity any resource gets.
	MinCapacity int
	// CapacitySpread is the width of the capacity range above MinCapacity.
	CapacitySpread int
	// CostMax is the largest unit cost; costs are drawn from [1, CostMax], or 0 if CostMax is 0.
	CostMax int
	// Distribution selects how capacities are drawn.
	Distribution CapacityDistribution
	// Seed makes generation reproducible.
	Seed int64
}

// DefaultResourceGeneratorConfig returns the documented defaults.
func DefaultResourceGeneratorConfig() ResourceGeneratorConfig {
	return ResourceGeneratorConfig{
		Count:          10,
		MinCapacity:    10,
		CapacitySpread: 100,
		CostMax:        10,
		Distribution:   Uniform,
		Seed:           42,
	}
}

// Validate checks for invalid configuration values.
func (c ResourceGeneratorConfig) Validate() error {
	return c.validate(field.NewPath("resources")).ToAggregate()
}

func (c ResourceGeneratorConfig) validate(path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if c.Count < 0 {
		errs = append(errs, field.Invalid(path.Child("count"), c.Count, "must be >= 0"))
	}
	if c.MinCapacity < 0 {
		errs = append(errs, field.Invalid(path.Child("minCapacity"), c.MinCapacity, "must be >= 0"))
	}
	if c.CapacitySpread < 0 {
		errs = append(errs, field.Invalid(path.Child("capacitySpread"), c.CapacitySpread, "must be >= 0"))
	}
	if c.CostMax < 0 {
		errs = append(errs, field.Invalid(path.Child("costMax"), c.CostMax, "must be >= 0"))
	}
	if _, ok := distributionNames[c.Distribution]; !ok {
		errs = append(errs, field.NotSupported(path.Child("distribution"), c.Distribution.String(),
			[]string{Uniform.String(), Normal.String(), Exponential.String(), Pareto.String()}))
	}
	return errs
}

// ResourceGenerator produces resource sets from a fixed configuration.
type ResourceGenerator struct {
	config ResourceGeneratorConfig
}

// NewResourceGenerator validates config and returns a generator for it.
func NewResourceGenerator(config ResourceGeneratorConfig) (*ResourceGenerator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid resource generator config: %w", err)
	}
	return &ResourceGenerator{config: config}, nil
}

// Config returns the generator configuration.
func (g *ResourceGenerator) Config() ResourceGeneratorConfig {
	return g.config
}

// Generate returns Count resources named Resource0..Resource{Count-1}.
// Every call starts from Seed, so repeated calls return identical sets.
func (g *ResourceGenerator) Generate() []core.Resource {
	rng := newRand(g.config.Seed)
	resources := make([]core.Resource, 0, g.config.Count)
	for i := 0; i < g.config.Count; i++ {
		capacity := g.sampleCapacity(rng)
		cost := 0
		if g.config.CostMax > 0 {
			cost = 1 + rng.IntN(g.config.CostMax)
		}
		resources = append(resources, core.Resource{
			Name:              fmt.Sprintf("Resource%d", i),
			AvailableCapacity: capacity,
			Cost:              cost,
		})
	}
	return resources
}

func (g *ResourceGenerator) sampleCapacity(rng *rand.Rand) int {
	minCap := float64(g.config.MinCapacity)
	spread := float64(g.config.CapacitySpread)

	var v float64
	switch g.config.Distribution {
	case Normal:
		v = distuv.Normal{Mu: minCap + spread/2, Sigma: spread / 6, Src: rng}.Rand()
	case Exponential:
		if spread > 0 {
			v = minCap + distuv.Exponential{Rate: 2 / spread, Src: rng}.Rand()
		}
	case Pareto:
		if xm := spread / 10; xm > 0 {
			v = minCap + distuv.Pareto{Xm: xm, Alpha: 2, Src: rng}.Rand() - xm
			v = math.Min(v, minCap+10*spread)
		}
	default:
		// floor of [min, min+spread+1) gives every integer in the range equal weight
		v = math.Floor(distuv.Uniform{Min: minCap, Max: minCap + spread + 1, Src: rng}.Rand())
	}

	capacity := toQuantity(math.Round(v))
	if capacity < g.config.MinCapacity {
		capacity = g.config.MinCapacity
	}
	return capacity
}
