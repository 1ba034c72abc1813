package generator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
)

const (
	// sparseShare is the fraction of resources a Sparse project requires.
	sparseShare = 5
	// contestedShare is the fraction of resources contested under Competitive.
	contestedShare = 3
	// seasons is the number of demand cycles over the resource positions.
	seasons = 4
	// secondaryFactor scales requirements outside a Complementary project's group.
	secondaryFactor = 0.2
)

// ProjectGeneratorConfig configures a ProjectGenerator.
type ProjectGeneratorConfig struct {
	// Count is the number of projects to generate.
	Count int
	// Resources are the resources the requirements refer to.
	Resources []core.Resource
	// Profile shapes the requirements.
	Profile RequirementProfile
	// UtilizationTarget is the share of each resource the projects aim to
	// consume collectively. Values above 1 model over-subscription.
	UtilizationTarget float64
	// Seed makes generation reproducible.
	Seed int64
}

// DefaultProjectGeneratorConfig returns the documented defaults for the
// given resources.
func DefaultProjectGeneratorConfig(resources []core.Resource) ProjectGeneratorConfig {
	return ProjectGeneratorConfig{
		Count:             5,
		Resources:         resources,
		Profile:           Balanced,
		UtilizationTarget: 0.7,
		Seed:              42,
	}
}

// Validate checks for invalid configuration values.
func (c ProjectGeneratorConfig) Validate() error {
	return c.validate(field.NewPath("projects")).ToAggregate()
}

func (c ProjectGeneratorConfig) validate(path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if c.Count < 0 {
		errs = append(errs, field.Invalid(path.Child("count"), c.Count, "must be >= 0"))
	}
	if math.IsNaN(c.UtilizationTarget) || math.IsInf(c.UtilizationTarget, 0) || c.UtilizationTarget <= 0 {
		errs = append(errs, field.Invalid(path.Child("utilizationTarget"), c.UtilizationTarget, "must be a finite value > 0"))
	}
	if _, ok := profileNames[c.Profile]; !ok {
		errs = append(errs, field.NotSupported(path.Child("profile"), c.Profile.String(),
			[]string{Balanced.String(), Sparse.String(), Complementary.String(), Competitive.String(), Seasonal.String()}))
	}
	if _, err := core.NewResourceIndex(c.Resources); err != nil {
		errs = append(errs, field.Invalid(path.Child("resources"), len(c.Resources), err.Error()))
	}
	for i, r := range c.Resources {
		if r.AvailableCapacity < 0 {
			errs = append(errs, field.Invalid(path.Child("resources").Index(i).Child("availableCapacity"),
				r.AvailableCapacity, "must be >= 0"))
		}
	}
	return errs
}

// ProjectGenerator produces project sets from a fixed configuration.
type ProjectGenerator struct {
	config ProjectGeneratorConfig
}

// NewProjectGenerator validates config and returns a generator for it.
// The resource slice is copied.
func NewProjectGenerator(config ProjectGeneratorConfig) (*ProjectGenerator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project generator config: %w", err)
	}
	config.Resources = append([]core.Resource(nil), config.Resources...)
	return &ProjectGenerator{config: config}, nil
}

// Config returns the generator configuration.
func (g *ProjectGenerator) Config() ProjectGeneratorConfig {
	return g.config
}

// Generate returns Count projects named Project0..Project{Count-1} shaped by
// the configured profile. Every call starts from Seed.
func (g *ProjectGenerator) Generate() ([]core.Project, error) {
	rng := newRand(g.config.Seed)

	var shape func(rng *rand.Rand, i int) map[string]int
	switch g.config.Profile {
	case Sparse:
		shape = g.sparse
	case Complementary:
		shape = g.complementary()
	case Competitive:
		shape = g.competitive()
	case Seasonal:
		shape = g.seasonal()
	default:
		shape = g.balanced
	}

	projects := make([]core.Project, 0, g.config.Count)
	for i := 0; i < g.config.Count; i++ {
		p, err := core.NewProject(fmt.Sprintf("Project%d", i), shape(rng, i))
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// high returns a base requirement of capacity*factor plus up to half of it as jitter.
func high(rng *rand.Rand, capacity int, factor float64) int {
	maxReq := toQuantity(float64(capacity) * factor)
	return maxReq + jitter(rng, maxReq/2)
}

// low returns a requirement drawn from [0, capacity*factor).
func low(rng *rand.Rand, capacity int, factor float64) int {
	return jitter(rng, toQuantity(float64(capacity)*factor))
}

func (g *ProjectGenerator) balanced(rng *rand.Rand, _ int) map[string]int {
	share := g.config.UtilizationTarget / float64(g.config.Count)
	reqs := make(map[string]int, len(g.config.Resources))
	for _, r := range g.config.Resources {
		reqs[r.Name] = high(rng, r.AvailableCapacity, share)
	}
	return reqs
}

func (g *ProjectGenerator) sparse(rng *rand.Rand, _ int) map[string]int {
	n := len(g.config.Resources)
	if n == 0 {
		return nil
	}
	k := max(1, n/sparseShare)
	shuffled := append([]core.Resource(nil), g.config.Resources...)
	rng.Shuffle(n, func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

	reqs := make(map[string]int, k)
	for _, r := range shuffled[:k] {
		reqs[r.Name] = high(rng, r.AvailableCapacity, g.config.UtilizationTarget)
	}
	return reqs
}

func (g *ProjectGenerator) complementary() func(*rand.Rand, int) map[string]int {
	resources := g.config.Resources
	groupSize := max(1, len(resources)/max(1, g.config.Count))
	var groups []sets.Set[string]
	for start := 0; start < len(resources); start += groupSize {
		group := sets.New[string]()
		for _, r := range resources[start:min(start+groupSize, len(resources))] {
			group.Insert(r.Name)
		}
		groups = append(groups, group)
	}

	return func(rng *rand.Rand, i int) map[string]int {
		if len(groups) == 0 {
			return nil
		}
		primary := groups[i%len(groups)]
		reqs := make(map[string]int, len(resources))
		for _, r := range resources {
			if primary.Has(r.Name) {
				reqs[r.Name] = high(rng, r.AvailableCapacity, g.config.UtilizationTarget)
			}
		}
		for _, r := range resources {
			if !primary.Has(r.Name) {
				reqs[r.Name] = low(rng, r.AvailableCapacity, g.config.UtilizationTarget*secondaryFactor)
			}
		}
		return reqs
	}
}

func (g *ProjectGenerator) competitive() func(*rand.Rand, int) map[string]int {
	resources := g.config.Resources
	numContested := min(len(resources), max(1, len(resources)/contestedShare))
	contested := sets.New[string]()
	for _, r := range resources[:numContested] {
		contested.Insert(r.Name)
	}
	share := g.config.UtilizationTarget / float64(max(1, g.config.Count))

	return func(rng *rand.Rand, _ int) map[string]int {
		reqs := make(map[string]int, len(resources))
		for _, r := range resources {
			if contested.Has(r.Name) {
				reqs[r.Name] = high(rng, r.AvailableCapacity, g.config.UtilizationTarget)
			}
		}
		for _, r := range resources {
			if !contested.Has(r.Name) {
				reqs[r.Name] = low(rng, r.AvailableCapacity, share)
			}
		}
		return reqs
	}
}

func (g *ProjectGenerator) seasonal() func(*rand.Rand, int) map[string]int {
	resources := g.config.Resources
	n := len(resources)
	seasonLength := max(1, n/seasons)
	pattern := make([]float64, n)
	for i := range pattern {
		pattern[i] = 0.5 + 0.5*math.Sin(2*math.Pi*float64(i)/float64(seasonLength))
	}

	return func(rng *rand.Rand, i int) map[string]int {
		reqs := make(map[string]int, n)
		for j, r := range resources {
			factor := pattern[(j+i)%n]
			reqs[r.Name] = high(rng, r.AvailableCapacity, g.config.UtilizationTarget*factor)
		}
		return reqs
	}
}
