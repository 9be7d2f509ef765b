package horizons

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/dylan7474/planetaryLogger/internal/elements"
	"github.com/dylan7474/planetaryLogger/internal/kepler"
)

// KmPerAU is the IAU astronomical unit in kilometers.
const KmPerAU = 149597870.7

var (
	// ErrNoElements is returned when a response has no $$SOE data block.
	ErrNoElements = errors.New("no $$SOE marker in Horizons result")
	// ErrIncomplete is returned when required fields are missing from the data block.
	ErrIncomplete = errors.New("incomplete Horizons record")
)

var (
	// fieldRe matches "NAME= value" pairs. Names must be preceded by
	// whitespace so MA/TA/AD never match as A.
	fieldRe = regexp.MustCompile(`(?:^|\s)(EC|IN|OM|W|MA|A|X|Y|Z)\s*=\s*([-+]?\d+(?:\.\d*)?(?:[Ee][-+]?\d+)?)`)
	// jdRe matches the leading "2460310.500000000 = A.D. ..." line of a record.
	jdRe = regexp.MustCompile(`(?m)^\s*(\d+\.\d+)\s*=\s*A\.D\.`)
)

var elementFields = []string{"EC", "IN", "OM", "W", "MA", "A"}

// dataBlock returns the text between $$SOE and $$EOE.
func dataBlock(result string) (string, error) {
	_, block, ok := strings.Cut(result, "$$SOE")
	if !ok {
		return "", ErrNoElements
	}
	block, _, _ = strings.Cut(block, "$$EOE")
	return block, nil
}

// fields returns the first value of each known field in block.
func fields(block string) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range fieldRe.FindAllStringSubmatch(block, -1) {
		if _, seen := out[m[1]]; seen {
			continue
		}
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		out[m[1]] = v
	}
	return out
}

// ParseElements reads the first osculating-element record of an ELEMENTS
// result. The semi-major axis is converted from km to AU. The epoch comes
// from the record's Julian date; fallbackEpoch is used when it is absent.
func ParseElements(result string, fallbackEpoch time.Time) (elements.OrbitalElements, error) {
	block, err := dataBlock(result)
	if err != nil {
		return elements.OrbitalElements{}, err
	}

	f := fields(block)
	var missing []string
	for _, name := range elementFields {
		if _, ok := f[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return elements.OrbitalElements{}, fmt.Errorf("%w: parsed %d of %d elements, missing %s",
			ErrIncomplete, len(elementFields)-len(missing), len(elementFields), strings.Join(missing, ","))
	}

	epoch := fallbackEpoch
	if m := jdRe.FindStringSubmatch(block); m != nil {
		if jd, err := strconv.ParseFloat(m[1], 64); err == nil {
			epoch = julian.JDToTime(jd).UTC()
		}
	}

	return elements.OrbitalElements{
		Eccentricity:              f["EC"],
		SemiMajorAxisAU:           f["A"] / KmPerAU,
		InclinationDeg:            f["IN"],
		LongitudeAscendingNodeDeg: f["OM"],
		ArgPeriapsisDeg:           f["W"],
		MeanAnomalyAtEpochDeg:     f["MA"],
		Epoch:                     epoch,
	}, nil
}

// ParseVectorLongitude reads the first state vector of a VECTORS result and
// returns the ecliptic longitude of its X/Y projection in degrees.
func ParseVectorLongitude(result string) (float64, error) {
	block, err := dataBlock(result)
	if err != nil {
		return math.NaN(), err
	}
	f := fields(block)
	x, okX := f["X"]
	y, okY := f["Y"]
	if !okX || !okY {
		return math.NaN(), fmt.Errorf("%w: no X/Y state vector", ErrIncomplete)
	}
	return kepler.Normalize360(math.Atan2(y, x) * 180 / math.Pi), nil
}
