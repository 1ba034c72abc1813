package generator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// pcgStream is the fixed second word of the PCG seed; only Seed varies.
const pcgStream = 0x9e3779b97f4a7c15

// CapacityDistribution selects how resource capacities are drawn.
type CapacityDistribution int

const (
	// Uniform spreads capacities evenly over [MinCapacity, MinCapacity+CapacitySpread].
	Uniform CapacityDistribution = iota
	// Normal centers capacities on the middle of the spread.
	Normal
	// Exponential favors capacities close to MinCapacity.
	Exponential
	// Pareto produces a heavy tail of a few very large resources.
	Pareto
)

var distributionNames = map[CapacityDistribution]string{
	Uniform:     "UNIFORM",
	Normal:      "NORMAL",
	Exponential: "EXPONENTIAL",
	Pareto:      "PARETO",
}

func (d CapacityDistribution) String() string {
	if name, ok := distributionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("CapacityDistribution(%d)", int(d))
}

// ParseCapacityDistribution maps a case-insensitive name to a CapacityDistribution.
func ParseCapacityDistribution(name string) (CapacityDistribution, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for d, n := range distributionNames {
		if n == upper {
			return d, nil
		}
	}
	return Uniform, fmt.Errorf("unknown capacity distribution %q", name)
}

// RequirementProfile shapes how project requirements relate to resource capacities.
type RequirementProfile int

const (
	// Balanced spreads similar requirements over every resource.
	Balanced RequirementProfile = iota
	// Sparse gives each project high requirements on ~20% of the resources.
	Sparse
	// Complementary assigns each project its own group of resources.
	Complementary
	// Competitive makes every project contend for the same ~33% of resources.
	Competitive
	// Seasonal follows a phase-shifted sinusoid over resource positions.
	Seasonal
)

var profileNames = map[RequirementProfile]string{
	Balanced:      "BALANCED",
	Sparse:        "SPARSE",
	Complementary: "COMPLEMENTARY",
	Competitive:   "COMPETITIVE",
	Seasonal:      "SEASONAL",
}

func (p RequirementProfile) String() string {
	if name, ok := profileNames[p]; ok {
		return name
	}
	return fmt.Sprintf("RequirementProfile(%d)", int(p))
}

// ParseRequirementProfile maps a case-insensitive name to a RequirementProfile.
func ParseRequirementProfile(name string) (RequirementProfile, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for p, n := range profileNames {
		if n == upper {
			return p, nil
		}
	}
	return Balanced, fmt.Errorf("unknown requirement profile %q", name)
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), pcgStream))
}

// toQuantity truncates f to a non-negative int32-representable quantity.
func toQuantity(f float64) int {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	default:
		return int(f)
	}
}

// jitter returns a uniform integer in [0, bound), or 0 when bound is not positive.
func jitter(rng *rand.Rand, bound int) int {
	if bound <= 0 {
		return 0
	}
	return rng.IntN(bound)
}
