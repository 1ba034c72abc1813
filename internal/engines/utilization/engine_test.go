package utilization

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

func solve(resources []core.Resource, projects []core.Project, opts ...Option) *Result {
	engine, err := NewEngine(resources, projects, opts...)
	Expect(err).NotTo(HaveOccurred())
	result, err := engine.Solve(context.Background())
	Expect(err).NotTo(HaveOccurred())
	return result
}

// rejectingSolver builds models like the wrapped backend but never solves them.
type rejectingSolver struct {
	solver.Solver
}

func (rejectingSolver) Solve(context.Context) solver.Status { return solver.Infeasible }

var _ = Describe("Engine", func() {
	Describe("NewEngine", func() {
		It("should reject an unknown objective mode", func() {
			_, err := NewEngine(nil, nil, WithObjectiveMode(ObjectiveMode(4)))
			Expect(err).To(MatchError(ContainSubstring("unsupported objective mode")))
		})

		It("should reject a negative utilization weight", func() {
			_, err := NewEngine(nil, nil, WithUtilWeight(-1))
			Expect(err).To(HaveOccurred())
		})

		It("should reject duplicate project names", func() {
			p := project("P0", nil)
			_, err := NewEngine(nil, []core.Project{p, p})
			Expect(err).To(MatchError(ContainSubstring("invalid projects")))
		})
	})

	Describe("Solve", func() {
		It("should fail when the backend is unavailable", func() {
			engine, err := NewEngine(nil, nil, WithSolverKind(solver.Kind("GUROBI")))
			Expect(err).NotTo(HaveOccurred())
			_, err = engine.Solve(context.Background())
			Expect(err).To(MatchError(solver.ErrSolverUnavailable))
		})

		Context("when the solver finds no solution", func() {
			const rejecting = solver.Kind("REJECTING")

			BeforeEach(func() {
				solver.Register(rejecting, func() solver.Solver {
					s, err := solver.CreateSolver(solver.MIP)
					Expect(err).NotTo(HaveOccurred())
					return rejectingSolver{Solver: s}
				})
				DeferCleanup(solver.Register, rejecting, solver.Factory(nil))
			})

			resources := []core.Resource{{Name: "R0", AvailableCapacity: 10, Cost: 1}}

			It("should return empty assignments without an error", func() {
				projects := []core.Project{project("P0", map[string]int{"R0": 4}), project("P1", nil)}
				engine, err := NewEngine(resources, projects, WithSolverKind(rejecting))
				Expect(err).NotTo(HaveOccurred())

				result, err := engine.Solve(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Status).To(Equal(solver.Infeasible))
				Expect(result.Assignments).To(BeEmpty())
				Expect(result.Quantity("P0", "R0")).To(BeZero())
				Expect(result.Completion).To(Equal(map[string]float64{"P0": 0, "P1": 100}))
			})

			It("should return empty assignments when the context is cancelled", func() {
				projects := []core.Project{project("P0", map[string]int{"R0": 4})}
				engine, err := NewEngine(resources, projects)
				Expect(err).NotTo(HaveOccurred())

				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				result, err := engine.Solve(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Status).To(Equal(solver.NotSolved))
				Expect(result.Assignments).To(BeEmpty())
				Expect(result.Completion).To(Equal(map[string]float64{"P0": 0}))
			})
		})

		It("should grant the full requirement when capacity allows (scenario C)", func() {
			r0 := core.Resource{Name: "R0", AvailableCapacity: 10, Cost: 2}
			p0 := project("P0", map[string]int{"R0": 4})
			result := solve([]core.Resource{r0}, []core.Project{p0})

			Expect(result.Status).To(Equal(solver.Optimal))
			Expect(result.Quantity("P0", "R0")).To(Equal(4))
			Expect(result.Assignments["P0"]).To(HaveEach(core.Resource{Name: "R0", AvailableCapacity: 1, Cost: 2}))
			Expect(result.Completion).To(HaveKeyWithValue("P0", 100.0))
		})

		It("should grant nothing to a project without requirements (scenario D)", func() {
			p0 := project("P0", nil)
			result := solve([]core.Resource{{Name: "R0", AvailableCapacity: 10, Cost: 1}}, []core.Project{p0})

			Expect(result.Status).To(Equal(solver.Optimal))
			Expect(result.Assignments).NotTo(HaveKey("P0"))
			Expect(result.Completion).To(HaveKeyWithValue("P0", 100.0))
		})

		It("should split an over-subscribed resource without exceeding capacity", func() {
			resources := []core.Resource{{Name: "R0", AvailableCapacity: 10, Cost: 1}}
			projects := []core.Project{
				project("P0", map[string]int{"R0": 8}),
				project("P1", map[string]int{"R0": 8}),
			}
			result := solve(resources, projects)

			q0, q1 := result.Quantity("P0", "R0"), result.Quantity("P1", "R0")
			Expect(q0 + q1).To(Equal(10))
			Expect(q0).To(BeNumerically("<=", 8))
			Expect(q1).To(BeNumerically("<=", 8))
			Expect(result.Projects()).To(Equal([]string{"P0", "P1"}))
		})

		It("should leave expensive resources idle in cost-weighted mode", func() {
			resources := []core.Resource{
				{Name: "Free", AvailableCapacity: 5, Cost: 0},
				{Name: "Paid", AvailableCapacity: 5, Cost: 3},
			}
			projects := []core.Project{project("P0", map[string]int{"Free": 3, "Paid": 3})}

			weighted := solve(resources, projects, WithObjectiveMode(CostWeighted))
			Expect(weighted.Granted("P0")).To(Equal(map[string]int{"Free": 3}))

			utilization := solve(resources, projects)
			Expect(utilization.Granted("P0")).To(Equal(map[string]int{"Free": 3, "Paid": 3}))
		})

		It("should ignore requirements on unknown resources", func() {
			p0 := project("P0", map[string]int{"R0": 2, "Ghost": 4})
			resources := []core.Resource{{Name: "R0", AvailableCapacity: 10}}
			result := solve(resources, []core.Project{p0})

			Expect(result.Granted("P0")).To(Equal(map[string]int{"R0": 2}))
			Expect(result.Completion).To(HaveKeyWithValue("P0", 100.0))
			Expect(CompletionPercentage(p0, result.Assignments["P0"], resources)).To(Equal(100.0))
		})

		It("should produce the same allocation with the LP backend", func() {
			resources := []core.Resource{
				{Name: "R0", AvailableCapacity: 7, Cost: 1},
				{Name: "R1", AvailableCapacity: 3, Cost: 2},
			}
			projects := []core.Project{
				project("P0", map[string]int{"R0": 5, "R1": 1}),
				project("P1", map[string]int{"R0": 1, "R1": 5}),
			}
			lp := solve(resources, projects, WithSolverKind(solver.LP))
			Expect(lp.Status).To(Equal(solver.Optimal))
			total := 0
			for _, name := range lp.Projects() {
				total += len(lp.Assignments[name])
			}
			Expect(total).To(Equal(9))
		})

		It("should return identical results for repeated solves", func() {
			engine, err := NewEngine(
				[]core.Resource{{Name: "R0", AvailableCapacity: 4, Cost: 1}},
				[]core.Project{project("P0", map[string]int{"R0": 3}), project("P1", map[string]int{"R0": 3})})
			Expect(err).NotTo(HaveOccurred())
			first, err := engine.Solve(context.Background())
			Expect(err).NotTo(HaveOccurred())
			second, err := engine.Solve(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})
	})

	Describe("CompletionPercentage", func() {
		It("should count each resource at most up to its requirement", func() {
			p := project("P0", map[string]int{"R0": 2, "R1": 2})
			units := []core.Resource{
				{Name: "R0", AvailableCapacity: 1}, {Name: "R0", AvailableCapacity: 1}, {Name: "R0", AvailableCapacity: 1},
			}
			resources := []core.Resource{{Name: "R0", AvailableCapacity: 5}, {Name: "R1", AvailableCapacity: 5}}
			Expect(CompletionPercentage(p, units, resources)).To(Equal(50.0))
			Expect(CompletionPercentage(p, nil, resources)).To(BeZero())
		})

		It("should treat requirements outside the resources as zero", func() {
			p := project("P0", map[string]int{"R0": 2, "Ghost": 4})
			units := []core.Resource{{Name: "R0", AvailableCapacity: 1}}
			Expect(CompletionPercentage(p, units, []core.Resource{{Name: "R0", AvailableCapacity: 5}})).To(Equal(50.0))
			Expect(CompletionPercentage(p, nil, nil)).To(Equal(100.0))
		})
	})

	Describe("allocation bounds on generated workloads", func() {
		It("should fill every resource for a hundred projects within a deadline", func() {
			resGen, err := generator.NewResourceGenerator(generator.ResourceGeneratorConfig{
				Count: 10, MinCapacity: 20, CapacitySpread: 80, CostMax: 5, Seed: 5,
			})
			Expect(err).NotTo(HaveOccurred())
			resources := resGen.Generate()
			projGen, err := generator.NewProjectGenerator(generator.ProjectGeneratorConfig{
				Count: 100, Resources: resources, Profile: generator.Balanced, UtilizationTarget: 1.5, Seed: 5,
			})
			Expect(err).NotTo(HaveOccurred())
			projects, err := projGen.Generate()
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			engine, err := NewEngine(resources, projects)
			Expect(err).NotTo(HaveOccurred())
			result, err := engine.Solve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(solver.Optimal))

			for _, r := range resources {
				demand, granted := 0, 0
				for _, p := range projects {
					demand += min(r.AvailableCapacity, p.Requirement(r.Name))
					granted += result.Quantity(p.Name, r.Name)
				}
				Expect(granted).To(Equal(min(r.AvailableCapacity, demand)), r.Name)
			}
		})

		for _, profile := range []generator.RequirementProfile{
			generator.Balanced, generator.Sparse, generator.Complementary, generator.Competitive, generator.Seasonal,
		} {
			It("should respect capacities and requirements for "+profile.String(), func() {
				resGen, err := generator.NewResourceGenerator(generator.ResourceGeneratorConfig{
					Count: 8, MinCapacity: 10, CapacitySpread: 40, CostMax: 5, Seed: 3,
				})
				Expect(err).NotTo(HaveOccurred())
				resources := resGen.Generate()
				projGen, err := generator.NewProjectGenerator(generator.ProjectGeneratorConfig{
					Count: 4, Resources: resources, Profile: profile, UtilizationTarget: 1.5, Seed: 3,
				})
				Expect(err).NotTo(HaveOccurred())
				projects, err := projGen.Generate()
				Expect(err).NotTo(HaveOccurred())

				result := solve(resources, projects)
				Expect(result.Status).To(Equal(solver.Optimal))

				for _, r := range resources {
					granted := 0
					for _, p := range projects {
						q := result.Quantity(p.Name, r.Name)
						Expect(q).To(BeNumerically("<=", p.Requirement(r.Name)),
							"%s on %s", p.Name, r.Name)
						granted += q
					}
					Expect(granted).To(BeNumerically("<=", r.AvailableCapacity), r.Name)
				}
				for _, p := range projects {
					Expect(result.Completion[p.Name]).To(And(
						BeNumerically(">=", 0), BeNumerically("<=", 100)))
				}
			})
		}
	})
})
