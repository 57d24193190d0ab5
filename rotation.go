package cosmod

import (
	"math"
	"time"

	"github.com/gonum/matrix/mat64"
	"github.com/soniakeys/meeus/julian"
)

// R1 rotation about the 1st axis.
func R1(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m mat64.Matrix, v []float64) (o []float64) {
	vVec := mat64.NewVector(len(v), v)
	var rVec mat64.Vector
	rVec.MulVec(m, vVec)
	return []float64{rVec.At(0, 0), rVec.At(1, 0), rVec.At(2, 0)}
}

// GEO2ECEF converts the provided parameters (in km and radians) to the ECEF vector.
// Note that the first parameter is the altitude, not the radius from the center of the body!
func GEO2ECEF(altitude, latitude, longitude, bodyRadius float64) []float64 {
	sLong, cLong := math.Sincos(longitude)
	sLat, cLat := math.Sincos(latitude)
	r := altitude + bodyRadius
	return []float64{r * cLat * cLong, r * cLat * sLong, r * sLat}
}

// ECI2ECEF converts the provided ECI vector to ECEF for the θgst given in radians.
func ECI2ECEF(R []float64, θgst float64) []float64 {
	return MxV33(R3(θgst), R)
}

// ECEF2ECI converts the provided ECEF vector to ECI for the θgst given in radians.
func ECEF2ECI(R []float64, θgst float64) []float64 {
	return ECI2ECEF(R, -θgst)
}

// GSTAngle returns the Greenwich sidereal angle (in radians) at the provided date time.
func GSTAngle(dt time.Time) float64 {
	Δjd := julian.TimeToJD(dt.UTC()) - J2000JDE
	return math.Mod(4.894961212823059+6.300388098984891*Δjd, 2*math.Pi)
}

// Euler3AxisDt defines a time dependent three-axis Euler rotation between a frame and
// its parent, driven by the IAU right ascension, declination and prime meridian angles.
// Each angle is a polynomial whose coefficients are ordered by increasing power.
// Right ascension and declination are functions of Julian centuries past J2000, and the
// prime meridian angle is a function of days past J2000, per the IAU/IAG WGCCRE reports.
type Euler3AxisDt struct {
	RightAsc, Declin, W []float64
	unitIsDeg           bool
}

// NewEuler3AxisDt initializes an IAU rotation from the angle polynomials in degrees.
func NewEuler3AxisDt(rightAsc, declin, w []float64) *Euler3AxisDt {
	return &Euler3AxisDt{rightAsc, declin, w, true}
}

func polyEval(coeffs []float64, x float64) (v float64) {
	for i := len(coeffs) - 1; i >= 0; i-- {
		v = v*x + coeffs[i]
	}
	return
}

// DCMToParent returns the direction cosine matrix rotating vectors expressed in this
// frame into its parent frame at the provided date time.
func (e *Euler3AxisDt) DCMToParent(dt time.Time) *mat64.Dense {
	Δdays := julian.TimeToJD(dt.UTC()) - J2000JDE
	T := Δdays / JulianCentury
	ra := polyEval(e.RightAsc, T)
	dec := polyEval(e.Declin, T)
	w := polyEval(e.W, Δdays)
	if e.unitIsDeg {
		ra *= deg2rad
		dec *= deg2rad
		w *= deg2rad
	}
	// The DCM from parent (J2000) to body fixed is R3(w)·R1(π/2-δ)·R3(π/2+α);
	// its transpose rotates back to the parent.
	var toBody, tmp mat64.Dense
	tmp.Mul(R1(halfPi-dec), R3(halfPi+ra))
	toBody.Mul(R3(w), &tmp)
	return mat64.DenseCopyOf(toBody.T())
}
