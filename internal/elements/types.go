package elements

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalid is returned by Validate for element sets that cannot describe a
// bound elliptical orbit.
var ErrInvalid = errors.New("invalid orbital elements")

// OrbitalElements is a snapshot of one body's classical elements, all valid at Epoch.
// Angles are in degrees and are not range restricted.
type OrbitalElements struct {
	Eccentricity              float64
	SemiMajorAxisAU           float64
	InclinationDeg            float64
	LongitudeAscendingNodeDeg float64
	ArgPeriapsisDeg           float64
	MeanAnomalyAtEpochDeg     float64
	Epoch                     time.Time
}

// Validate reports whether the elements describe a bound orbit.
// Propagation does not require a nil error; invalid sets propagate to NaN.
func (e OrbitalElements) Validate() error {
	switch {
	case math.IsNaN(e.SemiMajorAxisAU) || e.SemiMajorAxisAU <= 0:
		return fmt.Errorf("%w: semi-major axis %g AU", ErrInvalid, e.SemiMajorAxisAU)
	case math.IsNaN(e.Eccentricity) || e.Eccentricity < 0 || e.Eccentricity >= 1:
		return fmt.Errorf("%w: eccentricity %g outside [0, 1)", ErrInvalid, e.Eccentricity)
	case e.Epoch.IsZero():
		return fmt.Errorf("%w: missing epoch", ErrInvalid)
	}
	return nil
}

// Body is one named body and its element set.
type Body struct {
	Name     string
	ID       string // Horizons command id, e.g. "499"
	Elements OrbitalElements
}

// Set is an ordered collection of bodies produced once per run.
// Body order is the column order of every generated row.
type Set struct {
	Source    string
	FetchedAt time.Time
	Bodies    []Body
}

// Names returns the body names in set order.
func (s *Set) Names() []string {
	names := make([]string, len(s.Bodies))
	for i, b := range s.Bodies {
		names[i] = b.Name
	}
	return names
}

// EpochRange returns the earliest and latest epoch in the set.
func (s *Set) EpochRange() (min, max time.Time) {
	for i, b := range s.Bodies {
		ep := b.Elements.Epoch
		if i == 0 || ep.Before(min) {
			min = ep
		}
		if i == 0 || ep.After(max) {
			max = ep
		}
	}
	return min, max
}
