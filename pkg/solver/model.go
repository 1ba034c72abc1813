package solver

import "math"

// Variable is a decision variable of a model.
type Variable struct {
	index   int
	name    string
	lb, ub  float64
	integer bool
	value   float64
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Index returns the position of the variable in its model.
func (v *Variable) Index() int { return v.index }

// LowerBound returns the inclusive lower bound.
func (v *Variable) LowerBound() float64 { return v.lb }

// UpperBound returns the inclusive upper bound.
func (v *Variable) UpperBound() float64 { return v.ub }

// Integer reports whether the variable was declared integral.
func (v *Variable) Integer() bool { return v.integer }

// SolutionValue returns the value found by the last Solve, or 0 when the
// last Solve produced no solution.
func (v *Variable) SolutionValue() float64 { return v.value }

// Constraint is a linear row lb <= sum(coefficient*variable) <= ub.
type Constraint struct {
	name   string
	lb, ub float64
	coeffs map[int]float64
}

// Name returns the constraint name.
func (c *Constraint) Name() string { return c.name }

// Bounds returns the inclusive bounds of the row.
func (c *Constraint) Bounds() (lb, ub float64) { return c.lb, c.ub }

// SetCoefficient sets the coefficient of v in the row, replacing any
// previous value.
func (c *Constraint) SetCoefficient(v *Variable, coefficient float64) {
	c.coeffs[v.index] = coefficient
}

// Coefficient returns the coefficient of v in the row.
func (c *Constraint) Coefficient(v *Variable) float64 {
	return c.coeffs[v.index]
}

// Objective is the linear objective of a model. It minimizes by default.
type Objective struct {
	coeffs   map[int]float64
	maximize bool
	value    float64
}

// SetCoefficient sets the objective coefficient of v, replacing any
// previous value.
func (o *Objective) SetCoefficient(v *Variable, coefficient float64) {
	o.coeffs[v.index] = coefficient
}

// Coefficient returns the objective coefficient of v.
func (o *Objective) Coefficient(v *Variable) float64 {
	return o.coeffs[v.index]
}

// SetMaximization makes the objective a maximization.
func (o *Objective) SetMaximization() { o.maximize = true }

// SetMinimization makes the objective a minimization.
func (o *Objective) SetMinimization() { o.maximize = false }

// Maximization reports whether the objective is maximized.
func (o *Objective) Maximization() bool { return o.maximize }

// Value returns the objective value of the last solution, 0 if none.
func (o *Objective) Value() float64 { return o.value }

// model holds the declarations shared by every backend.
type model struct {
	vars []*Variable
	cons []*Constraint
	obj  *Objective
}

func newModel() model {
	return model{obj: &Objective{coeffs: make(map[int]float64)}}
}

func (m *model) makeVar(lb, ub float64, integer bool, name string) *Variable {
	v := &Variable{index: len(m.vars), name: name, lb: lb, ub: ub, integer: integer}
	m.vars = append(m.vars, v)
	return v
}

func (m *model) MakeIntVar(lb, ub float64, name string) *Variable {
	return m.makeVar(lb, ub, true, name)
}

func (m *model) MakeNumVar(lb, ub float64, name string) *Variable {
	return m.makeVar(lb, ub, false, name)
}

func (m *model) MakeConstraint(lb, ub float64, name string) *Constraint {
	c := &Constraint{name: name, lb: lb, ub: ub, coeffs: make(map[int]float64)}
	m.cons = append(m.cons, c)
	return c
}

func (m *model) Objective() *Objective { return m.obj }

func (m *model) NumVariables() int { return len(m.vars) }

func (m *model) NumConstraints() int { return len(m.cons) }

// minimizationCosts returns the objective as a cost vector to minimize.
func (m *model) minimizationCosts() []float64 {
	c := make([]float64, len(m.vars))
	for i, coef := range m.obj.coeffs {
		if m.obj.maximize {
			coef = -coef
		}
		c[i] = coef
	}
	return c
}

// bounds returns copies of the variable bounds. With integral set, the
// bounds of integer variables are rounded inwards.
func (m *model) bounds(integral bool, tol float64) (lower, upper []float64) {
	lower = make([]float64, len(m.vars))
	upper = make([]float64, len(m.vars))
	for i, v := range m.vars {
		lower[i], upper[i] = v.lb, v.ub
		if integral && v.integer {
			lower[i] = math.Ceil(v.lb - tol)
			upper[i] = math.Floor(v.ub + tol)
		}
	}
	return lower, upper
}

func (m *model) reset() {
	for _, v := range m.vars {
		v.value = 0
	}
	m.obj.value = 0
}

// apply stores x as the solution, rounding integer variables when integral is set.
func (m *model) apply(x []float64, integral bool) {
	value := 0.0
	for i, v := range m.vars {
		v.value = x[i]
		if integral && v.integer {
			v.value = math.Round(x[i])
		}
		value += m.obj.coeffs[i] * v.value
	}
	m.obj.value = value
}
