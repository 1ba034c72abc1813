package solver

import (
	"math"
	"slices"
)

// sparseRow is lb <= sum(coeffs[k]*x[cols[k]]) <= ub.
type sparseRow struct {
	cols   []int
	coeffs []float64
	lb, ub float64
}

func sparseRows(m *model) []sparseRow {
	rows := make([]sparseRow, 0, len(m.cons))
	for _, con := range m.cons {
		row := sparseRow{lb: con.lb, ub: con.ub}
		for j, a := range con.coeffs {
			if a != 0 {
				row.cols = append(row.cols, j)
			}
		}
		slices.Sort(row.cols)
		row.coeffs = make([]float64, len(row.cols))
		for k, j := range row.cols {
			row.coeffs[k] = con.coeffs[j]
		}
		rows = append(rows, row)
	}
	return rows
}

// presolve folds fixed variables into the rows and turns rows with a single
// free variable into bounds on that variable, tightening lower and upper in
// place. It returns the remaining rows, restricted to free variables. With
// integral set, the bounds of integer variables stay integral.
func presolve(m *model, lower, upper []float64, integral bool, tol float64) ([]sparseRow, Status) {
	rows := sparseRows(m)
	fixed := func(j int) bool { return upper[j]-lower[j] <= tol }

	active := make([]bool, len(rows))
	for i, row := range rows {
		if row.lb > row.ub+tol {
			return nil, Infeasible
		}
		active[i] = !math.IsInf(row.lb, -1) || !math.IsInf(row.ub, 1)
	}

	for changed := true; changed; {
		changed = false
		for i, row := range rows {
			if !active[i] {
				continue
			}
			offset, free, last := 0.0, 0, -1
			for k, j := range row.cols {
				if fixed(j) {
					offset += row.coeffs[k] * lower[j]
					continue
				}
				free++
				last = k
			}
			switch free {
			case 0:
				if offset < row.lb-boundViolationTol || offset > row.ub+boundViolationTol {
					return nil, Infeasible
				}
			case 1:
				j, a := row.cols[last], row.coeffs[last]
				lo, hi := (row.lb-offset)/a, (row.ub-offset)/a
				if a < 0 {
					lo, hi = hi, lo
				}
				if !tighten(m.vars[j].integer && integral, lower, upper, j, lo, hi, tol) {
					return nil, Infeasible
				}
			default:
				continue
			}
			active[i] = false
			changed = true
		}
	}

	var remaining []sparseRow
	for i, row := range rows {
		if !active[i] {
			continue
		}
		reduced := sparseRow{lb: row.lb, ub: row.ub}
		for k, j := range row.cols {
			if fixed(j) {
				reduced.lb -= row.coeffs[k] * lower[j]
				reduced.ub -= row.coeffs[k] * lower[j]
				continue
			}
			reduced.cols = append(reduced.cols, j)
			reduced.coeffs = append(reduced.coeffs, row.coeffs[k])
		}
		remaining = append(remaining, reduced)
	}
	return remaining, Optimal
}

// tighten intersects the bounds of variable j with [lo, hi]. It reports false
// when the intersection is empty.
func tighten(integer bool, lower, upper []float64, j int, lo, hi, tol float64) bool {
	lower[j] = math.Max(lower[j], lo)
	upper[j] = math.Min(upper[j], hi)
	if integer {
		lower[j] = math.Ceil(lower[j] - integralityTol)
		upper[j] = math.Floor(upper[j] + integralityTol)
	}
	if math.IsInf(lower[j], 1) || math.IsInf(upper[j], -1) || upper[j] < lower[j]-tol {
		return false
	}
	if upper[j] < lower[j] {
		upper[j] = lower[j]
	}
	return true
}

// block is a part of the model whose rows share no variable with any other
// block, so it can be solved on its own.
type block struct {
	// vars maps local columns to model variables, in ascending order.
	vars    []int
	rows    []sparseRow // columns are local
	cost    []float64
	integer []bool
}

// decompose splits rows into independent blocks. Variables that appear in
// no row are returned as isolated.
func decompose(m *model, rows []sparseRow, costs []float64) (blocks []*block, isolated []int) {
	n := len(m.vars)
	parent := make([]int, n)
	for j := range parent {
		parent[j] = j
	}
	find := func(j int) int {
		for parent[j] != j {
			parent[j] = parent[parent[j]]
			j = parent[j]
		}
		return j
	}

	inRow := make([]bool, n)
	for _, row := range rows {
		root := find(row.cols[0])
		for _, j := range row.cols {
			inRow[j] = true
			if r := find(j); r != root {
				parent[r] = root
			}
		}
	}

	owner := make([]int, n)
	local := make([]int, n)
	for j := range owner {
		owner[j] = -1
	}
	for j := 0; j < n; j++ {
		if !inRow[j] {
			isolated = append(isolated, j)
			continue
		}
		root := find(j)
		if owner[root] < 0 {
			owner[root] = len(blocks)
			blocks = append(blocks, &block{})
		}
		b := blocks[owner[root]]
		local[j] = len(b.vars)
		b.vars = append(b.vars, j)
		b.cost = append(b.cost, costs[j])
		b.integer = append(b.integer, m.vars[j].integer)
	}

	for _, row := range rows {
		b := blocks[owner[find(row.cols[0])]]
		cols := make([]int, len(row.cols))
		for k, j := range row.cols {
			cols[k] = local[j]
		}
		b.rows = append(b.rows, sparseRow{cols: cols, coeffs: row.coeffs, lb: row.lb, ub: row.ub})
	}
	return blocks, isolated
}
