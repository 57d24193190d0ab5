package cosmod

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/gonum/matrix/mat64"
	"github.com/gonum/stat/distmv"
)

var (
	σρ    = math.Pow(5e-3, 2) // km^2
	σρDot = math.Pow(5e-6, 2) // (km/s)^2
	// DSS34Canberra is the 34m beam waveguide antenna of the Canberra DSN complex.
	DSS34Canberra = NewGroundStation("DSS34Canberra", 0.691750, 0, -35.398333, 148.981944, σρ, σρDot)
	// DSS65Madrid is the 34m antenna of the Madrid DSN complex.
	DSS65Madrid = NewGroundStation("DSS65Madrid", 0.834939, 0, 40.427222, 4.250556, σρ, σρDot)
	// DSS13Goldstone is the 34m research antenna of the Goldstone DSN complex.
	DSS13Goldstone = NewGroundStation("DSS13Goldstone", 1.07114904, 0, 35.247164, 243.205, σρ, σρDot)
)

const stationBodyRadius = 6378.1363 // km, Earth

// GroundStation is an Earth fixed range and range rate measurement device.
type GroundStation struct {
	Name        string
	R, V        []float64 // position and velocity in ECEF
	LatΦ, Longθ float64   // stored in radians
	Altitude    float64   // km
	Elevation   float64   // minimum elevation for visibility, in degrees

	// nil noise distributions generate perfect measurements
	rangeNoise, rangeRateNoise *distmv.Normal
}

// NewGroundStation returns a ground station from its geodetic position. Angles in
// degrees, altitude in km, noises are variances in km^2 and (km/s)^2. A zero
// variance means the corresponding observable is generated without noise.
func NewGroundStation(name string, altitude, elevation, latΦ, longθ, σρ2, σρDot2 float64) GroundStation {
	R := GEO2ECEF(altitude, latΦ*deg2rad, longθ*deg2rad, stationBodyRadius)
	V := Cross([]float64{0, 0, EarthRotationRate}, R)
	seed := rand.New(rand.NewSource(time.Now().UnixNano()))
	var ρNoise, ρDotNoise *distmv.Normal
	if σρ2 > 0 {
		var ok bool
		ρNoise, ok = distmv.NewNormal([]float64{0}, mat64.NewSymDense(1, []float64{σρ2}), seed)
		if !ok {
			panic("NOK in Gaussian")
		}
	}
	if σρDot2 > 0 {
		var ok bool
		ρDotNoise, ok = distmv.NewNormal([]float64{0}, mat64.NewSymDense(1, []float64{σρDot2}), seed)
		if !ok {
			panic("NOK in Gaussian")
		}
	}
	return GroundStation{name, R, V, latΦ * deg2rad, longθ * deg2rad, altitude, elevation, ρNoise, ρDotNoise}
}

// BuiltinStationFromName returns one of the builtin DSN stations.
func BuiltinStationFromName(name string) GroundStation {
	switch strings.ToLower(name) {
	case "dss13", "dss13goldstone":
		return DSS13Goldstone
	case "dss34", "dss34canberra":
		return DSS34Canberra
	case "dss65", "dss65madrid":
		return DSS65Madrid
	default:
		panic(fmt.Errorf("unknown station `%s`", name))
	}
}

// Measure returns the computed range and range rate measurement of this state, and
// whether the state is above the elevation mask of this station.
func (s GroundStation) Measure(state Orbit) (Measurement, bool) {
	θgst := GSTAngle(state.DT)
	rECEF := ECI2ECEF(state.Radius(), θgst)
	vECEF := ECI2ECEF(state.Velocity(), θgst)
	ρECEF, ρ, el, _ := s.RangeElAz(rECEF)
	vDiffECEF := make([]float64, 3)
	for i := 0; i < 3; i++ {
		vDiffECEF[i] = (vECEF[i] - s.V[i]) / ρ
	}
	ρDot := Dot(ρECEF, vDiffECEF)
	ρNoisy, ρDotNoisy := ρ, ρDot
	if s.rangeNoise != nil {
		ρNoisy += s.rangeNoise.Rand(nil)[0]
	}
	if s.rangeRateNoise != nil {
		ρDotNoisy += s.rangeRateNoise.Rand(nil)[0]
	}
	visible := el >= s.Elevation
	return StationMeasurement{visible, ρNoisy, ρDotNoisy, ρ, ρDot, θgst, state, s}, visible
}

// RangeElAz returns the range vector and range (ECEF), and the elevation and
// azimuth (in degrees) of the provided ECEF position as seen from this station.
func (s GroundStation) RangeElAz(rECEF []float64) (ρECEF []float64, ρ, el, az float64) {
	ρECEF = make([]float64, 3)
	for i := 0; i < 3; i++ {
		ρECEF[i] = rECEF[i] - s.R[i]
	}
	ρ = Norm(ρECEF)
	rSEZ := MxV33(R3(s.Longθ), ρECEF)
	rSEZ = MxV33(R2(halfPi-s.LatΦ), rSEZ)
	el = math.Asin(rSEZ[2]/ρ) * rad2deg
	az = (2*math.Pi + math.Atan2(rSEZ[1], -rSEZ[0])) * rad2deg
	return
}

func (s GroundStation) String() string {
	return fmt.Sprintf("%s (%f,%f); alt = %f km; el = %f deg", s.Name, s.LatΦ*rad2deg, s.Longθ*rad2deg, s.Altitude, s.Elevation)
}

// StationMeasurement is a two-way range and range rate observation of an orbit.
type StationMeasurement struct {
	visible          bool
	ρ, ρDot          float64 // observed (noisy when the station carries noise)
	trueρ, trueρDot  float64
	θgst             float64
	state            Orbit
	station          GroundStation
}

// Visible returns whether the state was above the station elevation mask.
func (m StationMeasurement) Visible() bool { return m.visible }

// Epoch returns the measurement epoch.
func (m StationMeasurement) Epoch() time.Time { return m.state.DT }

// Observation returns the [range, range rate] vector in km and km/s.
func (m StationMeasurement) Observation() *mat64.Vector {
	return mat64.NewVector(2, []float64{m.ρ, m.ρDot})
}

// TrueObservation returns the noise free [range, range rate] vector.
func (m StationMeasurement) TrueObservation() *mat64.Vector {
	return mat64.NewVector(2, []float64{m.trueρ, m.trueρDot})
}

// Sensitivity returns the partials of the range and range rate with respect to the
// inertial position and velocity.
func (m StationMeasurement) Sensitivity() *mat64.Dense {
	stationR := ECEF2ECI(m.station.R, m.θgst)
	stationV := ECEF2ECI(m.station.V, m.θgst)
	x := m.state.X - stationR[0]
	y := m.state.Y - stationR[1]
	z := m.state.Z - stationR[2]
	xDot := m.state.VX - stationV[0]
	yDot := m.state.VY - stationV[1]
	zDot := m.state.VZ - stationV[2]
	ρ := m.trueρ
	ρDot := m.trueρDot
	H := mat64.NewDense(2, 6, nil)
	H.Set(0, 0, x/ρ)
	H.Set(0, 1, y/ρ)
	H.Set(0, 2, z/ρ)
	H.Set(1, 0, xDot/ρ-ρDot*x/(ρ*ρ))
	H.Set(1, 1, yDot/ρ-ρDot*y/(ρ*ρ))
	H.Set(1, 2, zDot/ρ-ρDot*z/(ρ*ρ))
	H.Set(1, 3, x/ρ)
	H.Set(1, 4, y/ρ)
	H.Set(1, 5, z/ρ)
	return H
}

// CSV returns the true and noisy observables as CSV (does not include the new line).
func (m StationMeasurement) CSV() string {
	return fmt.Sprintf("%f,%f,%f,%f,", m.trueρ, m.trueρDot, m.ρ, m.ρDot)
}

func (m StationMeasurement) String() string {
	return fmt.Sprintf("%s@%s", m.station.Name, m.state.DT.Format(time.RFC3339))
}
