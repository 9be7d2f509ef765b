// Package export writes generated rows as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dylan7474/planetaryLogger/internal/propagation"
)

// Mode selects which representation of a position is written.
type Mode int

const (
	// Longitude writes one in-plane ecliptic longitude per body, in degrees.
	Longitude Mode = iota
	// Vector writes the X, Y and Z components per body, in AU.
	Vector
)

// ParseMode parses "longitude" or "vector".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "longitude", "lon", "":
		return Longitude, nil
	case "vector", "xyz":
		return Vector, nil
	}
	return 0, fmt.Errorf("unknown output mode %q (want longitude or vector)", s)
}

func (m Mode) String() string {
	if m == Vector {
		return "vector"
	}
	return "longitude"
}

// CSVWriter writes a header and one line per date. It is not safe for
// concurrent use.
type CSVWriter struct {
	w     *csv.Writer
	mode  Mode
	names []string
}

// NewCSVWriter creates a writer for the given body columns.
func NewCSVWriter(w io.Writer, mode Mode, names []string) *CSVWriter {
	return &CSVWriter{
		w:     csv.NewWriter(w),
		mode:  mode,
		names: names,
	}
}

// WriteHeader writes the column names.
func (c *CSVWriter) WriteHeader() error {
	header := []string{"Date"}
	for _, name := range c.names {
		if c.mode == Vector {
			header = append(header, name+"_x", name+"_y", name+"_z")
		} else {
			header = append(header, name)
		}
	}
	return c.w.Write(header)
}

// WriteRow writes one generated row. Positions must match the body columns.
func (c *CSVWriter) WriteRow(row propagation.Row) error {
	if len(row.Positions) != len(c.names) {
		return fmt.Errorf("row %s has %d positions for %d columns",
			row.Date.Format(time.DateOnly), len(row.Positions), len(c.names))
	}

	record := make([]string, 0, 1+3*len(row.Positions))
	record = append(record, row.Date.Format(time.DateOnly))
	for _, p := range row.Positions {
		if c.mode == Vector {
			record = append(record, formatFloat(p.X, 6), formatFloat(p.Y, 6), formatFloat(p.Z, 6))
		} else {
			record = append(record, formatFloat(p.Longitude(), 4))
		}
	}
	return c.w.Write(record)
}

// WriteLongitudes writes one line of externally obtained longitudes, such as
// the daily ephemeris log. Missing values should be NaN.
func (c *CSVWriter) WriteLongitudes(date time.Time, lons []float64) error {
	if len(lons) != len(c.names) {
		return fmt.Errorf("%d longitudes for %d columns", len(lons), len(c.names))
	}
	record := make([]string, 0, 1+len(lons))
	record = append(record, date.Format(time.DateOnly))
	for _, lon := range lons {
		record = append(record, formatFloat(lon, 4))
	}
	return c.w.Write(record)
}

// Flush writes buffered lines to the underlying writer.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// formatFloat renders v with fixed precision; NaN is written as "NaN".
func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
