package kepler

import "math"

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// Normalize360 reduces an angle in degrees to [0, 360). NaN and Inf give NaN.
func Normalize360(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	// -tiny + 360 rounds to 360.
	if r >= 360 {
		r = 0
	}
	return r
}
