package cosmod

import (
	"fmt"
	"math"
	"time"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
)

// Orbit defines the Cartesian state of an object in a given frame at a given epoch.
// Positions are in km, velocities in km/s.
type Orbit struct {
	X, Y, Z    float64
	VX, VY, VZ float64
	DT         time.Time
	Frame      Frame
}

// NewOrbitCartesian creates a new orbit from its Cartesian components.
func NewOrbitCartesian(x, y, z, vx, vy, vz float64, dt time.Time, frame Frame) Orbit {
	return Orbit{x, y, z, vx, vy, vz, dt, frame}
}

// NewOrbitKeplerian creates a new orbit from the Keplerian elements: semi major
// axis in km, angles in degrees.
func NewOrbitKeplerian(a, e, i, Ω, ω, ν float64, dt time.Time, frame Frame) Orbit {
	μ := frame.GM()
	i *= deg2rad
	Ω *= deg2rad
	ω *= deg2rad
	ν *= deg2rad
	p := a * (1 - e*e)
	if floats.EqualWithinAbs(p, 0, 1e-12) {
		panic("semilatus rectum is zero, cannot convert to Cartesian")
	}
	sν, cν := math.Sincos(ν)
	r := p / (1 + e*cν)
	rPQW := []float64{r * cν, r * sν, 0}
	vFact := math.Sqrt(μ / p)
	vPQW := []float64{-vFact * sν, vFact * (e + cν), 0}
	sω, cω := math.Sincos(ω)
	sΩ, cΩ := math.Sincos(Ω)
	si, ci := math.Sincos(i)
	rot := mat64.NewDense(3, 3, []float64{
		cΩ*cω - sΩ*sω*ci, -cΩ*sω - sΩ*cω*ci, sΩ * si,
		sΩ*cω + cΩ*sω*ci, -sΩ*sω + cΩ*cω*ci, -cΩ * si,
		sω * si, cω * si, ci,
	})
	R := MxV33(rot, rPQW)
	V := MxV33(rot, vPQW)
	return Orbit{R[0], R[1], R[2], V[0], V[1], V[2], dt, frame}
}

// Radius returns the position vector of this orbit in km.
func (o Orbit) Radius() []float64 { return []float64{o.X, o.Y, o.Z} }

// Velocity returns the velocity vector of this orbit in km/s.
func (o Orbit) Velocity() []float64 { return []float64{o.VX, o.VY, o.VZ} }

// Vector returns the full position and velocity vector.
func (o Orbit) Vector() []float64 { return []float64{o.X, o.Y, o.Z, o.VX, o.VY, o.VZ} }

// RMag returns the norm of the position in km.
func (o Orbit) RMag() float64 { return Norm(o.Radius()) }

// VMag returns the norm of the velocity in km/s.
func (o Orbit) VMag() float64 { return Norm(o.Velocity()) }

// RHat returns the unit position vector.
func (o Orbit) RHat() []float64 { return Unit(o.Radius()) }

// Energy returns the specific mechanical energy of this orbit in km^2/s^2.
func (o Orbit) Energy() float64 {
	return 0.5*o.VMag()*o.VMag() - o.Frame.GM()/o.RMag()
}

// SMA returns the semi major axis in km.
func (o Orbit) SMA() float64 {
	return -o.Frame.GM() / (2 * o.Energy())
}

// Period returns the orbital period.
func (o Orbit) Period() time.Duration {
	a := o.SMA()
	seconds := 2 * math.Pi * math.Sqrt(a*a*a/o.Frame.GM())
	return time.Duration(seconds*1e9) * time.Nanosecond
}

// Add returns the sum of both orbits. Panics if the epochs or frames differ because
// adding states expressed in different frames is meaningless.
func (o Orbit) Add(o2 Orbit) Orbit {
	if !o.Frame.Equals(o2.Frame) {
		panic(fmt.Errorf("cannot add %s to %s", o2.Frame, o.Frame))
	}
	if !o.DT.Equal(o2.DT) {
		panic(fmt.Errorf("cannot add orbits at different epochs (%s != %s)", o.DT, o2.DT))
	}
	return o.rawAdd(o2)
}

// Sub returns the difference of both orbits, with the same frame and epoch checks
// as Add.
func (o Orbit) Sub(o2 Orbit) Orbit {
	return o.Add(o2.Neg())
}

// rawAdd sums the states without any frame check. Used by the frame change walks,
// where the intermediate states are knowingly expressed in different tree nodes.
func (o Orbit) rawAdd(o2 Orbit) Orbit {
	return Orbit{o.X + o2.X, o.Y + o2.Y, o.Z + o2.Z, o.VX + o2.VX, o.VY + o2.VY, o.VZ + o2.VZ, o.DT, o.Frame}
}

func (o Orbit) rawSub(o2 Orbit) Orbit {
	return o.rawAdd(o2.Neg())
}

// Neg returns this orbit with all components negated. The frame and epoch are kept.
func (o Orbit) Neg() Orbit {
	return Orbit{-o.X, -o.Y, -o.Z, -o.VX, -o.VY, -o.VZ, o.DT, o.Frame}
}

// ApplyDCM returns this orbit with both the position and the velocity rotated by
// the provided direction cosine matrix.
func (o Orbit) ApplyDCM(dcm *mat64.Dense) Orbit {
	R := MxV33(dcm, o.Radius())
	V := MxV33(dcm, o.Velocity())
	return Orbit{R[0], R[1], R[2], V[0], V[1], V[2], o.DT, o.Frame}
}

// WithFrame returns this orbit relabeled in the provided frame.
func (o Orbit) WithFrame(frame Frame) Orbit {
	o.Frame = frame
	return o
}

func (o Orbit) String() string {
	return fmt.Sprintf("R=[%.6f %.6f %.6f] km V=[%.9f %.9f %.9f] km/s @ %s", o.X, o.Y, o.Z, o.VX, o.VY, o.VZ, o.DT.Format(time.RFC3339))
}
