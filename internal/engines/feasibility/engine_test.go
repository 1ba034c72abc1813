package feasibility

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d/llm-d-capacity-allocator/pkg/core"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/generator"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/solver"
)

func project(name string, reqs map[string]int) core.Project {
	p, err := core.NewProject(name, reqs)
	Expect(err).NotTo(HaveOccurred())
	return p
}

type countingRecorder struct {
	engines     []string
	completions []float64
	slack       float64
}

func (c *countingRecorder) ObserveSolve(engine, _ string, _ time.Duration, _, _ int) {
	c.engines = append(c.engines, engine)
}

func (c *countingRecorder) ObserveCompletion(_ string, percent float64) {
	c.completions = append(c.completions, percent)
}

func (c *countingRecorder) SetTotalSlack(slack float64) { c.slack = slack }

var _ = Describe("Engine", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("NewEngine", func() {
		It("should reject duplicate resource names", func() {
			_, err := NewEngine([]core.Resource{{Name: "R0"}, {Name: "R0"}}, nil)
			Expect(err).To(MatchError(ContainSubstring("duplicate resource name")))
		})

		It("should reject negative capacities", func() {
			_, err := NewEngine([]core.Resource{{Name: "R0", AvailableCapacity: -1}}, nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject an unknown selection policy", func() {
			_, err := NewEngine(nil, nil, WithSelectionPolicy(SelectionPolicy(9)))
			Expect(err).To(MatchError(ContainSubstring("unsupported selection policy")))
		})

		It("should not be affected by later changes to its inputs", func() {
			resources := []core.Resource{{Name: "R0", AvailableCapacity: 10}}
			engine, err := NewEngine(resources, []core.Project{project("P0", map[string]int{"R0": 10})})
			Expect(err).NotTo(HaveOccurred())
			resources[0].AvailableCapacity = 0

			result, err := engine.Solve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Slacks["R0"]).To(BeNumerically("~", 0, 1e-6))
		})
	})

	Describe("Solve", func() {
		It("should fail when the backend is unavailable", func() {
			engine, err := NewEngine(nil, nil, WithSolverKind(solver.Kind("CPLEX")))
			Expect(err).NotTo(HaveOccurred())
			_, err = engine.Solve(ctx)
			Expect(err).To(MatchError(solver.ErrSolverUnavailable))
		})

		Context("with a single project exceeding one resource (scenario A)", func() {
			var result *Result

			BeforeEach(func() {
				resources := []core.Resource{
					{Name: "R0", AvailableCapacity: 10},
					{Name: "R1", AvailableCapacity: 10},
				}
				engine, err := NewEngine(resources, []core.Project{project("P0", map[string]int{"R0": 5, "R1": 15})})
				Expect(err).NotTo(HaveOccurred())
				result, err = engine.Solve(ctx)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should select the project and give it both resources", func() {
				Expect(result.Feasible).To(BeTrue())
				Expect(result.Status).To(Equal(solver.Optimal))
				Expect(result.Selections).To(Equal(map[string]bool{"P0": true}))
				Expect(result.Owners).To(Equal(map[string]string{"R0": "P0", "R1": "P0"}))
				Expect(result.Owned("P0")).To(ConsistOf("R0", "R1"))
			})

			It("should absorb the excess requirement in slack", func() {
				Expect(result.Slacks["R0"]).To(BeNumerically("~", 0, 1e-6))
				Expect(result.Slacks["R1"]).To(BeNumerically(">=", 5-1e-6))
				Expect(result.TotalSlack).To(BeNumerically("~", 5, 1e-6))
				Expect(result.AlmostComplete["P0"]).To(BeFalse())
			})

			It("should cap fulfilled requirements at capacity", func() {
				// (min(5,10) + min(15,10)) / (5+15)
				Expect(result.Completion["P0"]).To(BeNumerically("~", 75, 1e-9))
			})
		})

		Context("with two projects contending for one resource (scenario B)", func() {
			var (
				resources []core.Resource
				projects  []core.Project
			)

			BeforeEach(func() {
				resources = []core.Resource{{Name: "R0", AvailableCapacity: 10, Cost: 1}}
				projects = []core.Project{
					project("P0", map[string]int{"R0": 6}),
					project("P1", map[string]int{"R0": 6}),
				}
			})

			// Pinning every selection to 1 while linking ownership to selection
			// makes any model with two projects and a resource infeasible. The
			// result is still reported as feasible; callers must check Status.
			It("should report an infeasible solve as feasible under SelectAll", func() {
				engine, err := NewEngine(resources, projects)
				Expect(err).NotTo(HaveOccurred())
				result, err := engine.Solve(ctx)
				Expect(err).NotTo(HaveOccurred())

				Expect(result.Status).To(Equal(solver.Infeasible))
				Expect(result.Feasible).To(BeTrue())
				Expect(result.Owners).To(BeEmpty())
				Expect(result.Completion).To(Equal(map[string]float64{"P0": 0, "P1": 0}))
				Expect(result.Selections).To(Equal(map[string]bool{"P0": true, "P1": true}))
				Expect(result.AlmostComplete).To(Equal(map[string]bool{"P0": false, "P1": false}))
			})

			It("should report the infeasible solve when gated on status", func() {
				engine, err := NewEngine(resources, projects, WithStatusGating())
				Expect(err).NotTo(HaveOccurred())
				result, err := engine.Solve(ctx)
				Expect(err).NotTo(HaveOccurred())

				Expect(result.Feasible).To(BeFalse())
				Expect(result.Status).To(Equal(solver.Infeasible))
				Expect(result.Selections).To(BeEmpty())
				Expect(result.Completion).To(BeEmpty())
			})

			It("should give the resource to exactly one project under SelectOptional", func() {
				engine, err := NewEngine(resources, projects, WithSelectionPolicy(SelectOptional))
				Expect(err).NotTo(HaveOccurred())
				result, err := engine.Solve(ctx)
				Expect(err).NotTo(HaveOccurred())

				Expect(result.Status).To(Equal(solver.Optimal))
				Expect(result.Owners).To(HaveKey("R0"))
				owner := result.Owners["R0"]
				other := "P1"
				if owner == "P1" {
					other = "P0"
				}
				Expect(result.Selections[owner]).To(BeTrue())
				Expect(result.Selections[other]).To(BeFalse())
				Expect(result.Completion[owner]).To(BeNumerically("~", 100, 1e-9))
				Expect(result.Completion[other]).To(BeZero())
				Expect(result.AlmostComplete[owner]).To(BeTrue())
				Expect(result.TotalSlack).To(BeNumerically("~", 0, 1e-6))
			})
		})

		It("should treat a project without requirements as complete", func() {
			engine, err := NewEngine([]core.Resource{{Name: "R0", AvailableCapacity: 3}},
				[]core.Project{project("P0", nil)})
			Expect(err).NotTo(HaveOccurred())
			result, err := engine.Solve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Completion["P0"]).To(Equal(100.0))
			Expect(result.TotalSlack).To(BeNumerically("~", 0, 1e-6))
		})

		It("should ignore requirements on unknown resources", func() {
			engine, err := NewEngine([]core.Resource{{Name: "R0", AvailableCapacity: 3}},
				[]core.Project{project("P0", map[string]int{"R0": 2, "R9": 50})})
			Expect(err).NotTo(HaveOccurred())
			result, err := engine.Solve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Completion["P0"]).To(Equal(100.0))
			Expect(result.Slacks).To(HaveLen(1))
		})

		It("should solve the same model with the LP backend", func() {
			engine, err := NewEngine(
				[]core.Resource{{Name: "R0", AvailableCapacity: 4}},
				[]core.Project{project("P0", map[string]int{"R0": 6})},
				WithSolverKind(solver.LP))
			Expect(err).NotTo(HaveOccurred())
			result, err := engine.Solve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(solver.Optimal))
			Expect(result.Owners).To(Equal(map[string]string{"R0": "P0"}))
			Expect(result.Slacks["R0"]).To(BeNumerically("~", 2, 1e-6))
			Expect(result.Completion["P0"]).To(BeNumerically("~", 400.0/6, 1e-9))
		})

		It("should record solve and completion observations", func() {
			rec := &countingRecorder{}
			engine, err := NewEngine(
				[]core.Resource{{Name: "R0", AvailableCapacity: 1}},
				[]core.Project{project("P0", map[string]int{"R0": 3}), project("P1", nil)},
				WithSelectionPolicy(SelectOptional), WithRecorder(rec))
			Expect(err).NotTo(HaveOccurred())
			_, err = engine.Solve(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(rec.engines).To(Equal([]string{"feasibility"}))
			Expect(rec.completions).To(HaveLen(2))
		})

		It("should return identical results for repeated solves", func() {
			resources := []core.Resource{
				{Name: "R0", AvailableCapacity: 5},
				{Name: "R1", AvailableCapacity: 8},
			}
			engine, err := NewEngine(resources, []core.Project{
				project("P0", map[string]int{"R0": 7, "R1": 2}),
				project("P1", map[string]int{"R1": 9}),
			}, WithSelectionPolicy(SelectOptional))
			Expect(err).NotTo(HaveOccurred())

			first, err := engine.Solve(ctx)
			Expect(err).NotTo(HaveOccurred())
			second, err := engine.Solve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})
	})

	Describe("allocation properties on generated workloads", func() {
		for _, profile := range []generator.RequirementProfile{
			generator.Balanced, generator.Sparse, generator.Complementary, generator.Competitive, generator.Seasonal,
		} {
			It("should only assign resources to selected projects for "+profile.String(), func() {
				resGen, err := generator.NewResourceGenerator(generator.ResourceGeneratorConfig{
					Count: 5, MinCapacity: 5, CapacitySpread: 20, CostMax: 3, Seed: 7,
				})
				Expect(err).NotTo(HaveOccurred())
				resources := resGen.Generate()

				projGen, err := generator.NewProjectGenerator(generator.ProjectGeneratorConfig{
					Count: 3, Resources: resources, Profile: profile, UtilizationTarget: 0.9, Seed: 7,
				})
				Expect(err).NotTo(HaveOccurred())
				projects, err := projGen.Generate()
				Expect(err).NotTo(HaveOccurred())

				engine, err := NewEngine(resources, projects, WithSelectionPolicy(SelectOptional))
				Expect(err).NotTo(HaveOccurred())
				result, err := engine.Solve(ctx)
				Expect(err).NotTo(HaveOccurred())

				Expect(result.Status).To(Equal(solver.Optimal))
				Expect(result.Slacks).To(HaveLen(len(resources)))
				for resource, owner := range result.Owners {
					Expect(result.Selections[owner]).To(BeTrue(), "owner of %s must be selected", resource)
				}
				for _, p := range projects {
					Expect(result.Completion[p.Name]).To(And(
						BeNumerically(">=", 0), BeNumerically("<=", 100)))
					if p.TotalRequirement() == 0 {
						Expect(result.Completion[p.Name]).To(Equal(100.0))
					}
				}
				for _, slack := range result.Slacks {
					Expect(slack).To(BeNumerically(">=", 0))
				}
			})
		}

		It("should solve twenty optional projects over five resources within a deadline", func() {
			resGen, err := generator.NewResourceGenerator(generator.ResourceGeneratorConfig{
				Count: 5, MinCapacity: 10, CapacitySpread: 40, CostMax: 3, Seed: 11,
			})
			Expect(err).NotTo(HaveOccurred())
			resources := resGen.Generate()
			projGen, err := generator.NewProjectGenerator(generator.ProjectGeneratorConfig{
				Count: 20, Resources: resources, Profile: generator.Competitive, UtilizationTarget: 1.2, Seed: 11,
			})
			Expect(err).NotTo(HaveOccurred())
			projects, err := projGen.Generate()
			Expect(err).NotTo(HaveOccurred())

			// every resource links every project, so at most one project is
			// selected: either none, or the one with the least slack
			best := 0.0
			for _, p := range projects {
				slack := 0.0
				for _, r := range resources {
					slack += float64(max(0, p.Requirement(r.Name)-r.AvailableCapacity))
				}
				best = max(best, 1-SlackPenalty*slack)
			}

			deadline, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			engine, err := NewEngine(resources, projects, WithSelectionPolicy(SelectOptional))
			Expect(err).NotTo(HaveOccurred())
			result, err := engine.Solve(deadline)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Status).To(Equal(solver.Optimal))
			selected := 0
			for _, ok := range result.Selections {
				if ok {
					selected++
				}
			}
			Expect(selected).To(BeNumerically("<=", 1))
			Expect(float64(selected) - SlackPenalty*result.TotalSlack).To(BeNumerically("~", best, 1e-6))
		})

		It("should give every resource to a lone project", func() {
			resGen, err := generator.NewResourceGenerator(generator.DefaultResourceGeneratorConfig())
			Expect(err).NotTo(HaveOccurred())
			resources := resGen.Generate()
			projGen, err := generator.NewProjectGenerator(generator.ProjectGeneratorConfig{
				Count: 1, Resources: resources, Profile: generator.Competitive, UtilizationTarget: 0.9, Seed: 1,
			})
			Expect(err).NotTo(HaveOccurred())
			projects, err := projGen.Generate()
			Expect(err).NotTo(HaveOccurred())

			engine, err := NewEngine(resources, projects)
			Expect(err).NotTo(HaveOccurred())
			result, err := engine.Solve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(solver.Optimal))
			Expect(result.Owners).To(HaveLen(len(resources)))
			Expect(result.Selections["Project0"]).To(BeTrue())
		})
	})
})
