package cosmod

import (
	"fmt"
	"math"
)

// Ephemeris stores the Chebyshev interpolation data of a single body: an ordered,
// contiguous list of fixed duration time windows, each holding one coefficient
// array per position component. Velocities are evaluated from the analytic
// derivative of the position polynomials and are natively in km/day.
type Ephemeris struct {
	Name       string
	StartJDE   float64 // JDE of the start of the first window
	WindowDays float64 // fixed duration of each window, in days
	PosDegree  int     // number of Chebyshev coefficients per component
	X, Y, Z    [][]float64
	Constants  map[string]float64 // GM, Flattening, Equatorial radius
	children   []*Ephemeris
}

// EndJDE returns the JDE of the end of the last window.
func (e *Ephemeris) EndJDE() float64 {
	return e.StartJDE + float64(len(e.X))*e.WindowDays
}

// Children returns the sub-bodies of this ephemeris.
func (e *Ephemeris) Children() []*Ephemeris { return e.children }

// window returns the coefficient window index and the offset within that window
// for the provided JDE. An offset landing exactly on the upper boundary is clamped
// to the last instant of the previous window.
func (e *Ephemeris) window(jde float64) (index int, offset float64, err error) {
	if len(e.X) == 0 {
		return 0, 0, fmt.Errorf("%s: %w", e.Name, ErrNoInterpolationData)
	}
	deltaJDE := jde - e.StartJDE
	// Floor, not truncate: a pre-start epoch must land on a negative index and
	// be rejected, never on window zero with a negative offset.
	index = int(math.Floor(deltaJDE / e.WindowDays))
	offset = deltaJDE - float64(index)*e.WindowDays
	if index == len(e.X) && offset == 0 {
		index--
		offset = e.WindowDays
	}
	if index < 0 || index >= len(e.X) {
		return 0, 0, fmt.Errorf("%s at JDE %f: %w", e.Name, jde, ErrNoStateData)
	}
	return index, offset, nil
}

// interpolate evaluates the scaled Chebyshev position polynomials and their analytic
// derivative at the provided JDE. Returns position in km and velocity in km/day.
func (e *Ephemeris) interpolate(jde float64) (pos, vel [3]float64, err error) {
	coeffCount := e.PosDegree
	if coeffCount <= 2 {
		// The derivative recurrence needs at least three terms.
		return pos, vel, fmt.Errorf("position degree is %d for %s: %w", coeffCount, e.Name, ErrInvalidInterpolationData)
	}
	index, offset, werr := e.window(jde)
	if werr != nil {
		return pos, vel, werr
	}

	t1 := 2*offset/e.WindowDays - 1
	interpT := make([]float64, coeffCount)
	interpT[0] = 1
	interpT[1] = t1
	for i := 2; i < coeffCount; i++ {
		interpT[i] = 2*t1*interpT[i-1] - interpT[i-2]
	}
	interpDt := make([]float64, coeffCount)
	interpDt[0] = 0
	interpDt[1] = 1
	interpDt[2] = 2 * (2 * t1)
	for i := 3; i < coeffCount; i++ {
		interpDt[i] = 2*t1*interpDt[i-1] - interpDt[i-2] + interpT[i-1] + interpT[i-1]
	}
	dtScale := 2 / e.WindowDays
	coeffs := [3][]float64{e.X[index], e.Y[index], e.Z[index]}
	for axis := 0; axis < 3; axis++ {
		var p, v float64
		for i := 0; i < coeffCount; i++ {
			p += interpT[i] * coeffs[axis][i]
			v += interpDt[i] * coeffs[axis][i]
		}
		pos[axis] = p
		vel[axis] = v * dtScale
	}
	return pos, vel, nil
}

// EphemerisStore is the pre-loaded hierarchical ephemeris database. The root is the
// solar system barycenter and carries no interpolation data of its own.
type EphemerisStore struct {
	root *Ephemeris
}

// Root returns the solar system barycenter node.
func (s *EphemerisStore) Root() *Ephemeris { return s.root }

// FromPath returns the ephemeris at the provided path, e.g. [2 1] for the second
// child of the third top level body.
func (s *EphemerisStore) FromPath(path []int) (*Ephemeris, error) {
	e := s.root
	for _, idx := range path {
		if idx < 0 || idx >= len(e.children) {
			return nil, fmt.Errorf("ephemeris path %v: %w", path, ErrObjectNotFound)
		}
		e = e.children[idx]
	}
	return e, nil
}
