// Package kepler propagates classical orbital elements to an arbitrary time
// using two-body Keplerian motion.
//
// The year length is fixed at 365.25 days for a 1 AU orbit, so the period of
// a body depends only on its semi-major axis. The central body's actual
// gravitational parameter is never used.
package kepler

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dylan7474/planetaryLogger/internal/elements"
)

const (
	// DaysPerYear is the length of a 1 AU orbit in days.
	DaysPerYear = 365.25

	secondsPerDay = 24 * 60 * 60
)

// Position is a body's location in the reference ecliptic frame, in AU,
// centered on the focus the elements are relative to (the Sun for
// heliocentric elements). All components are NaN for invalid elements.
type Position struct {
	r3.Vec
}

// NaNPosition is the result for element sets that cannot be propagated.
func NaNPosition() Position {
	nan := math.NaN()
	return Position{r3.Vec{X: nan, Y: nan, Z: nan}}
}

// Valid reports whether all components are finite numbers.
func (p Position) Valid() bool {
	for _, c := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Radius returns the distance from the focus in AU.
func (p Position) Radius() float64 {
	return r3.Norm(p.Vec)
}

// Longitude projects the position onto the ecliptic plane and returns its
// longitude in degrees, in [0, 360).
//
// Only X and Y are used, so this is an in-plane longitude seen from the focus
// of the orbit. Older tooling labelled this value "geocentric"; it is not:
// Earth's position never enters the computation.
func (p Position) Longitude() float64 {
	return Normalize360(math.Atan2(p.Y, p.X) * radToDeg)
}

// State holds the intermediate values of one propagation.
type State struct {
	DaysSinceEpoch   float64
	MeanMotionDeg    float64 // degrees per day
	MeanAnomalyDeg   float64 // in [0, 360)
	EccentricAnomaly float64 // radians
	OrbitalX         float64 // AU, toward periapsis
	OrbitalY         float64 // AU
	Position         Position
}

func nanState() State {
	nan := math.NaN()
	return State{
		DaysSinceEpoch:   nan,
		MeanMotionDeg:    nan,
		MeanAnomalyDeg:   nan,
		EccentricAnomaly: nan,
		OrbitalX:         nan,
		OrbitalY:         nan,
		Position:         NaNPosition(),
	}
}

// Calculator turns orbital elements and a target time into a position.
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	solver Solver
}

// NewCalculator creates a Calculator. A nil solver selects the default
// ten-pass fixed-iteration solver.
func NewCalculator(solver Solver) *Calculator {
	if solver == nil {
		solver = FixedIterations{N: DefaultIterations}
	}
	return &Calculator{solver: solver}
}

// Solver returns the active Kepler solver.
func (c *Calculator) Solver() Solver {
	return c.solver
}

// Propagate computes the full propagation state of el at t.
// Elements rejected by Validate (non-positive semi-major axis, eccentricity
// outside [0, 1), missing epoch) yield a state whose every field is NaN.
func (c *Calculator) Propagate(el elements.OrbitalElements, t time.Time) State {
	if el.Validate() != nil {
		return nanState()
	}
	a, e := el.SemiMajorAxisAU, el.Eccentricity

	days := DaysBetween(el.Epoch, t)
	n := MeanMotion(a)
	mDeg := Normalize360(el.MeanAnomalyAtEpochDeg + n*days)
	E := c.solver.Solve(mDeg*degToRad, e)

	xOrb := a * (math.Cos(E) - e)
	yOrb := a * math.Sqrt(1-e*e) * math.Sin(E)

	return State{
		DaysSinceEpoch:   days,
		MeanMotionDeg:    n,
		MeanAnomalyDeg:   mDeg,
		EccentricAnomaly: E,
		OrbitalX:         xOrb,
		OrbitalY:         yOrb,
		Position:         rotate(xOrb, yOrb, el),
	}
}

// Position returns the 3D position of el at t.
func (c *Calculator) Position(el elements.OrbitalElements, t time.Time) Position {
	return c.Propagate(el, t).Position
}

// Longitude returns the in-plane ecliptic longitude of el at t in degrees.
// See Position.Longitude for what this value does and does not mean.
func (c *Calculator) Longitude(el elements.OrbitalElements, t time.Time) float64 {
	return c.Position(el, t).Longitude()
}

// rotate applies the argument of periapsis, inclination and longitude of the
// ascending node to an orbital-plane point (x, y, 0).
func rotate(xOrb, yOrb float64, el elements.OrbitalElements) Position {
	w := el.ArgPeriapsisDeg * degToRad
	N := el.LongitudeAscendingNodeDeg * degToRad
	i := el.InclinationDeg * degToRad

	cosW, sinW := math.Cos(w), math.Sin(w)
	cosN, sinN := math.Cos(N), math.Sin(N)
	cosI, sinI := math.Cos(i), math.Sin(i)

	return Position{r3.Vec{
		X: xOrb*(cosW*cosN-sinW*sinN*cosI) - yOrb*(sinW*cosN+cosW*sinN*cosI),
		Y: xOrb*(cosW*sinN+sinW*cosN*cosI) + yOrb*(-sinW*sinN+cosW*cosN*cosI),
		Z: xOrb*(sinW*sinI) + yOrb*(cosW*sinI),
	}}
}

// MeanMotion returns the mean motion in degrees per day for a semi-major
// axis in AU.
func MeanMotion(semiMajorAxisAU float64) float64 {
	return 360.0 / (math.Sqrt(math.Pow(semiMajorAxisAU, 3)) * DaysPerYear)
}

// Period returns the orbital period in days for a semi-major axis in AU.
func Period(semiMajorAxisAU float64) float64 {
	return 360.0 / MeanMotion(semiMajorAxisAU)
}

// DaysBetween returns the fractional number of days from epoch to t.
// It avoids time.Duration so spans beyond ±292 years do not overflow.
func DaysBetween(epoch, t time.Time) float64 {
	secs := float64(t.Unix() - epoch.Unix())
	nanos := float64(t.Nanosecond() - epoch.Nanosecond())
	return (secs + nanos/1e9) / secondsPerDay
}
