package propagation

import (
	"time"

	"github.com/dylan7474/planetaryLogger/internal/kepler"
)

// Row holds the positions of all bodies on a single date, in body order.
type Row struct {
	Date      time.Time
	Positions []kepler.Position
}

// Config holds generator configuration.
type Config struct {
	Workers int           // Worker pool size (default: runtime.NumCPU())
	Solver  kepler.Solver // Kepler solver (default: ten fixed passes)
}
