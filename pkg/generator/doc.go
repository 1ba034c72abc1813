// Package generator produces synthetic resource and project sets for stress-testing the
// allocation engines.
//
// Both generators are pure functions of an immutable, validated configuration:
// the same configuration (including Seed) always yields the same output.
//
// Example usage:
//
//	resGen, err := generator.NewResourceGenerator(generator.ResourceGeneratorConfig{
//	    Count:          1000,
//	    MinCapacity:    70,
//	    CapacitySpread: 100,
//	    CostMax:        10,
//	    Distribution:   generator.Normal,
//	    Seed:           42,
//	})
//	resources := resGen.Generate()
//
//	projGen, err := generator.NewProjectGenerator(generator.ProjectGeneratorConfig{
//	    Count:             800,
//	    Resources:         resources,
//	    Profile:           generator.Balanced,
//	    UtilizationTarget: 0.7,
//	    Seed:              42,
//	})
//	projects, err := projGen.Generate()
package generator
