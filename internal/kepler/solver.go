package kepler

import "math"

// DefaultIterations is the pass count of the default fixed-iteration solver.
const DefaultIterations = 10

// Solver returns the eccentric anomaly E (radians) satisfying Kepler's
// equation M = E - e·sin(E) for a mean anomaly M (radians) and e in [0, 1).
type Solver interface {
	Solve(meanAnomaly, eccentricity float64) float64
}

// FixedIterations runs exactly N Newton-Raphson passes starting from E = M,
// whether or not the iteration has converged. Output is reproducible across
// runs and matches reference data produced with ten passes.
type FixedIterations struct {
	N int
}

// Solve implements Solver.
func (f FixedIterations) Solve(m, e float64) float64 {
	n := f.N
	if n <= 0 {
		n = DefaultIterations
	}
	E := m
	for i := 0; i < n; i++ {
		E = newtonStep(E, m, e)
	}
	return E
}

// Converging iterates until the Newton-Raphson correction drops below
// Tolerance or MaxIterations passes have run.
type Converging struct {
	Tolerance     float64
	MaxIterations int
}

// DefaultConverging returns a Converging solver with a 1e-10 rad tolerance
// and a 50 pass cap.
func DefaultConverging() Converging {
	return Converging{Tolerance: 1e-10, MaxIterations: 50}
}

// Solve implements Solver.
func (c Converging) Solve(m, e float64) float64 {
	tol := c.Tolerance
	if tol <= 0 {
		tol = 1e-10
	}
	max := c.MaxIterations
	if max <= 0 {
		max = 50
	}
	E := m
	for i := 0; i < max; i++ {
		next := newtonStep(E, m, e)
		delta := next - E
		E = next
		if math.Abs(delta) < tol {
			break
		}
	}
	return E
}

func newtonStep(E, m, e float64) float64 {
	return E - (E-e*math.Sin(E)-m)/(1-e*math.Cos(E))
}

// SolveKepler solves Kepler's equation with the default ten-pass solver.
func SolveKepler(meanAnomaly, eccentricity float64) float64 {
	return FixedIterations{N: DefaultIterations}.Solve(meanAnomaly, eccentricity)
}
