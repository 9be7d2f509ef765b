package export

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/dylan7474/planetaryLogger/internal/propagation"
)

// XYZ is a position in AU.
type XYZ struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// JSONRow is one date of a time series in JSON form. Entries follow the body
// order; bodies that could not be propagated are null, since JSON has no NaN.
type JSONRow struct {
	Date       string     `json:"date"`
	JD         float64    `json:"jd"`
	Longitudes []*float64 `json:"longitudes,omitempty"`
	Positions  []*XYZ     `json:"positions,omitempty"`
}

// NewJSONRow converts a generated row for the given mode.
func NewJSONRow(row propagation.Row, mode Mode) JSONRow {
	out := JSONRow{
		Date: row.Date.Format(time.DateOnly),
		JD:   julian.TimeToJD(row.Date),
	}
	if mode == Vector {
		out.Positions = make([]*XYZ, len(row.Positions))
		for i, p := range row.Positions {
			if p.Valid() {
				out.Positions[i] = &XYZ{X: p.X, Y: p.Y, Z: p.Z}
			}
		}
		return out
	}
	out.Longitudes = make([]*float64, len(row.Positions))
	for i, p := range row.Positions {
		if lon := p.Longitude(); !math.IsNaN(lon) {
			out.Longitudes[i] = &lon
		}
	}
	return out
}
