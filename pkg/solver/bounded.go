package solver

import "math"

const (
	pivotTol       = 1e-9
	reducedCostTol = 1e-9
	phaseOneTol    = 1e-6
	// blandAfter is the number of consecutive degenerate steps after which
	// the entering column is chosen by Bland's rule.
	blandAfter = 50
)

// tableau is a dense simplex tableau over the rows of a block. Columns are
// the structural variables, one logical variable per row (s_i = a_i.x, bounded
// by the row bounds) and one artificial variable per row whose activity
// violates its bounds at the starting point. Every row satisfies
// sum(t[i][k]*val[k]) = 0 and has coefficient 1 on its basic column.
type tableau struct {
	t       [][]float64
	basis   []int
	pos     []int
	lo, hi  []float64
	val     []float64
	cost    []float64
	atUpper []bool
	// firstArtificial is the first artificial column.
	firstArtificial int
	tol             float64
}

// boundedSimplex solves the continuous relaxation of b with the given
// variable bounds. Variable bounds are handled by the ratio test instead of
// extra rows, so the tableau has one row per block row. Lower bounds must be
// finite.
func boundedSimplex(b *block, lower, upper []float64, tol float64) relaxation {
	n, m := len(b.vars), len(b.rows)

	act := make([]float64, m)
	target := make([]float64, m)
	violated := make([]bool, m)
	artificials := 0
	for i, row := range b.rows {
		for k, j := range row.cols {
			act[i] += row.coeffs[k] * lower[j]
		}
		switch {
		case act[i] < row.lb-tol:
			target[i], violated[i] = row.lb, true
		case act[i] > row.ub+tol:
			target[i], violated[i] = row.ub, true
		default:
			continue
		}
		artificials++
	}

	ncol := n + m + artificials
	tb := &tableau{
		t:               make([][]float64, m),
		basis:           make([]int, m),
		pos:             make([]int, ncol),
		lo:              make([]float64, ncol),
		hi:              make([]float64, ncol),
		val:             make([]float64, ncol),
		cost:            make([]float64, ncol),
		atUpper:         make([]bool, ncol),
		firstArtificial: n + m,
		tol:             tol,
	}
	for k := range tb.pos {
		tb.pos[k] = -1
	}
	for j := 0; j < n; j++ {
		tb.lo[j], tb.hi[j], tb.val[j] = lower[j], upper[j], lower[j]
	}

	art := n + m
	for i, row := range b.rows {
		logical := n + i
		tb.lo[logical], tb.hi[logical] = row.lb, row.ub
		r := make([]float64, ncol)
		if !violated[i] {
			for k, j := range row.cols {
				r[j] = -row.coeffs[k]
			}
			r[logical] = 1
			tb.val[logical] = act[i]
			tb.basis[i], tb.pos[logical] = logical, i
		} else {
			d := act[i] - target[i]
			sigma := -1.0
			if d < 0 {
				sigma = 1
			}
			for k, j := range row.cols {
				r[j] = row.coeffs[k] / sigma
			}
			r[logical] = -1 / sigma
			r[art] = 1
			tb.val[logical] = target[i]
			tb.atUpper[logical] = target[i] == row.ub && row.lb != row.ub
			tb.hi[art], tb.val[art] = math.Inf(1), math.Abs(d)
			tb.basis[i], tb.pos[art] = art, i
			art++
		}
		tb.t[i] = r
	}

	maxIter := 20*(m+ncol) + 1000
	if artificials > 0 {
		for k := tb.firstArtificial; k < ncol; k++ {
			tb.cost[k] = 1
		}
		switch tb.iterate(maxIter) {
		case Optimal:
		default:
			return relaxation{status: Abnormal}
		}
		tb.recompute()
		infeasibility := 0.0
		for k := tb.firstArtificial; k < ncol; k++ {
			infeasibility += tb.val[k]
			tb.cost[k] = 0
			tb.hi[k] = 0
		}
		if infeasibility > phaseOneTol {
			return relaxation{status: Infeasible}
		}
	}

	copy(tb.cost, b.cost)
	if status := tb.iterate(maxIter); status != Optimal {
		return relaxation{status: status}
	}
	tb.recompute()

	x := make([]float64, n)
	objective := 0.0
	for j := range x {
		x[j] = math.Min(math.Max(tb.val[j], lower[j]), upper[j])
		objective += b.cost[j] * x[j]
	}
	return relaxation{x: x, objective: objective, status: Optimal}
}

// iterate runs primal simplex steps on the current costs until no column
// improves the objective.
func (tb *tableau) iterate(maxIter int) Status {
	degenerate, bland := 0, false
	for range maxIter {
		j, dir := tb.entering(bland)
		if j < 0 {
			return Optimal
		}
		r, theta := tb.ratio(j, dir, bland)
		if math.IsInf(theta, 1) {
			return Unbounded
		}
		tb.step(j, dir, r, theta)
		if theta <= tb.tol {
			degenerate++
			bland = bland || degenerate >= blandAfter
		} else {
			degenerate = 0
		}
	}
	return Abnormal
}

func (tb *tableau) reducedCosts() []float64 {
	d := make([]float64, len(tb.cost))
	copy(d, tb.cost)
	for i, k := range tb.basis {
		cb := tb.cost[k]
		if cb == 0 {
			continue
		}
		for c, v := range tb.t[i] {
			if v != 0 {
				d[c] -= cb * v
			}
		}
	}
	return d
}

// entering returns the nonbasic column to move and its direction, or -1 when
// the basis is optimal.
func (tb *tableau) entering(bland bool) (int, float64) {
	d := tb.reducedCosts()
	best, bestDir, bestScore := -1, 0.0, 0.0
	for k, dk := range d {
		if tb.pos[k] >= 0 || tb.hi[k]-tb.lo[k] <= tb.tol {
			continue
		}
		var dir float64
		switch {
		case !tb.atUpper[k] && dk < -reducedCostTol:
			dir = 1
		case tb.atUpper[k] && dk > reducedCostTol:
			dir = -1
		default:
			continue
		}
		if bland {
			return k, dir
		}
		if score := math.Abs(dk); score > bestScore {
			best, bestDir, bestScore = k, dir, score
		}
	}
	return best, bestDir
}

// ratio returns the row whose basic variable first reaches a bound when
// column j moves in direction dir, and the step length. A row of -1 means
// column j reaches its own opposite bound first.
func (tb *tableau) ratio(j int, dir float64, bland bool) (int, float64) {
	row, theta, pivot := -1, tb.hi[j]-tb.lo[j], 0.0
	for i, k := range tb.basis {
		alpha := dir * tb.t[i][j]
		var limit float64
		switch {
		case alpha > pivotTol:
			if math.IsInf(tb.lo[k], -1) {
				continue
			}
			limit = (tb.val[k] - tb.lo[k]) / alpha
		case alpha < -pivotTol:
			if math.IsInf(tb.hi[k], 1) {
				continue
			}
			limit = (tb.hi[k] - tb.val[k]) / -alpha
		default:
			continue
		}
		limit = math.Max(limit, 0)

		if row < 0 {
			if limit < theta {
				row, theta, pivot = i, limit, alpha
			}
			continue
		}
		switch {
		case limit < theta-tb.tol:
			row, theta, pivot = i, limit, alpha
		case limit <= theta+tb.tol:
			if (bland && k < tb.basis[row]) || (!bland && math.Abs(alpha) > math.Abs(pivot)) {
				row, pivot = i, alpha
			}
			theta = math.Min(theta, limit)
		}
	}
	return row, theta
}

// step moves column j by theta in direction dir, then flips its bound when
// row is -1 or pivots it into the basis of row otherwise.
func (tb *tableau) step(j int, dir float64, row int, theta float64) {
	if theta > 0 {
		delta := dir * theta
		tb.val[j] += delta
		for i, k := range tb.basis {
			if a := tb.t[i][j]; a != 0 {
				tb.val[k] -= a * delta
			}
		}
	}

	if row < 0 {
		tb.atUpper[j] = dir > 0
		if dir > 0 {
			tb.val[j] = tb.hi[j]
		} else {
			tb.val[j] = tb.lo[j]
		}
		return
	}

	leaving := tb.basis[row]
	if dir*tb.t[row][j] > 0 {
		tb.val[leaving], tb.atUpper[leaving] = tb.lo[leaving], false
	} else {
		tb.val[leaving], tb.atUpper[leaving] = tb.hi[leaving], true
	}
	tb.pivot(row, j)
	if leaving >= tb.firstArtificial {
		// artificials never re-enter
		tb.hi[leaving] = tb.lo[leaving]
	}
}

func (tb *tableau) pivot(row, j int) {
	r := tb.t[row]
	p := r[j]
	for k := range r {
		r[k] /= p
	}
	r[j] = 1
	for i, other := range tb.t {
		f := other[j]
		if i == row || f == 0 {
			continue
		}
		for k, v := range r {
			if v != 0 {
				other[k] -= f * v
			}
		}
		other[j] = 0
	}
	tb.pos[tb.basis[row]] = -1
	tb.basis[row] = j
	tb.pos[j] = row
}

// recompute derives the basic values from the nonbasic ones to drop the
// drift accumulated by incremental updates.
func (tb *tableau) recompute() {
	for i, b := range tb.basis {
		v := 0.0
		for k, a := range tb.t[i] {
			if k != b && a != 0 {
				v -= a * tb.val[k]
			}
		}
		tb.val[b] = v
	}
}
