package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

type stdRow struct {
	terms map[int]float64
	slack float64
	rhs   float64
}

// standardForm solves the continuous relaxation of b with gonum's simplex.
//
// The block is rewritten in gonum's standard form (min c'y, Ay = b, y >= 0):
// every variable is shifted by its lower bound, fixed variables become
// constants, and each finite bound of a row or variable becomes its own row
// with a dedicated slack column, so A always has full row rank. It is slower
// than boundedSimplex and only serves when that one gives up.
func standardForm(b *block, lower, upper []float64, tol float64) relaxation {
	n := len(b.vars)
	x := make([]float64, n)

	column := make([]int, n)
	var active []int
	for j := 0; j < n; j++ {
		l, u := lower[j], upper[j]
		if u < l-tol {
			return relaxation{status: Infeasible}
		}
		x[j] = l
		if u-l <= tol {
			column[j] = -1
			continue
		}
		column[j] = len(active)
		active = append(active, j)
	}

	var rows []stdRow
	for _, j := range active {
		if !math.IsInf(upper[j], 1) {
			rows = append(rows, stdRow{terms: map[int]float64{column[j]: 1}, slack: 1, rhs: upper[j] - lower[j]})
		}
	}
	for _, row := range b.rows {
		offset := 0.0
		terms := make(map[int]float64)
		for k, j := range row.cols {
			a := row.coeffs[k]
			offset += a * lower[j]
			if column[j] >= 0 {
				terms[column[j]] += a
			}
		}
		if len(terms) == 0 {
			if offset < row.lb-boundViolationTol || offset > row.ub+boundViolationTol {
				return relaxation{status: Infeasible}
			}
			continue
		}
		if !math.IsInf(row.ub, 1) {
			rows = append(rows, stdRow{terms: terms, slack: 1, rhs: row.ub - offset})
		}
		if !math.IsInf(row.lb, -1) {
			rows = append(rows, stdRow{terms: terms, slack: -1, rhs: row.lb - offset})
		}
	}

	// columns in no row are unbounded above: they sit at their lower bound
	// unless the objective pulls them upwards
	used := make([]bool, len(active))
	for _, r := range rows {
		for k := range r.terms {
			used[k] = true
		}
	}
	kept := make([]int, len(active))
	numKept := 0
	for k, j := range active {
		if !used[k] {
			if b.cost[j] < -tol {
				return relaxation{status: Unbounded}
			}
			kept[k] = -1
			continue
		}
		kept[k] = numKept
		numKept++
	}

	if len(rows) > 0 {
		cols := numKept + len(rows)
		a := mat.NewDense(len(rows), cols, nil)
		rhs := make([]float64, len(rows))
		c := make([]float64, cols)
		for k, j := range active {
			if kept[k] >= 0 {
				c[kept[k]] = b.cost[j]
			}
		}
		for i, r := range rows {
			for k, coef := range r.terms {
				a.Set(i, kept[k], coef)
			}
			a.Set(i, numKept+i, r.slack)
			rhs[i] = r.rhs
		}

		_, y, err := lp.Simplex(c, a, rhs, tol, nil)
		if err != nil {
			return relaxation{status: simplexStatus(err)}
		}
		for k, j := range active {
			if kept[k] < 0 {
				continue
			}
			x[j] = math.Min(math.Max(lower[j]+y[kept[k]], lower[j]), upper[j])
		}
	}

	objective := 0.0
	for j := range x {
		objective += b.cost[j] * x[j]
	}
	return relaxation{x: x, objective: objective, status: Optimal}
}

func simplexStatus(err error) Status {
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return Infeasible
	case errors.Is(err, lp.ErrUnbounded):
		return Unbounded
	default:
		return Abnormal
	}
}
