package cosmod

import (
	"fmt"
	"math"

	"github.com/soniakeys/meeus/moonposition"
	"github.com/soniakeys/meeus/planetposition"
)

const (
	// obliquity of the ecliptic at J2000, in radians.
	obliquityJ2000 = 23.43929111 * deg2rad
	// moonMassFraction is μ(Moon) / (μ(Earth) + μ(Moon)), used to split the
	// Earth-Moon barycenter into its two bodies.
	moonMassFraction = 4902.800066163796 / (398600.435436096 + 4902.800066163796)

	chebyshevDegree  = 13
	planetWindowDays = 16.0
	moonWindowDays   = 4.0
)

// meanElements defines a body orbit via its mean Keplerian elements at J2000 in the
// ecliptic frame: semi major axis (km), eccentricity, inclination, longitude of the
// ascending node, longitude of periapsis and mean longitude (radians), and the mean
// motion (radians per day).
type meanElements struct {
	a, e, i, Ω, ϖ, L0, n float64
}

// bodyDef lists everything needed to build both the ephemeris and the default frame
// of a solar system body.
type bodyDef struct {
	name      string
	gm        float64
	flatten   float64
	eqRadius  float64
	elements  meanElements
	vsopIndex int // index into planetposition, -1 when VSOP87 has no series for it
}

func elems(aAU, e, iDeg, ΩDeg, ϖDeg, LDeg float64) meanElements {
	a := aAU * AU
	// Mean motion from the restricted two body problem about the Sun.
	n := math.Sqrt(SunGM/(a*a*a)) * SecondsPerDay
	return meanElements{a, e, iDeg * deg2rad, ΩDeg * deg2rad, ϖDeg * deg2rad, LDeg * deg2rad, n}
}

// The planetary mean elements follow the JPL approximate element tables at J2000.
// The Sun carries the reflex of the Jupiter orbit so that it is not pinned to the
// solar system barycenter.
var solarSystem = []bodyDef{
	{"Mercury Barycenter", 22032.080486418, 0, 2439.7, elems(0.38709927, 0.20563593, 7.00497902, 48.33076593, 77.45779628, 252.25032350), planetposition.Mercury},
	{"Venus Barycenter", 324858.59882646, 0, 6051.8, elems(0.72333566, 0.00677672, 3.39467605, 76.67984255, 131.60246718, 181.97909950), planetposition.Venus},
	{"Earth Barycenter", 398600.435436096 + 4902.800066163796, 0.0033528131084554717, 6378.1370, elems(1.00000261, 0.01671123, 0.0, 0.0, 102.93768193, 100.46457166), planetposition.Earth},
	{"Mars Barycenter", 42828.37362069909, 0, 3396.19, elems(1.52371034, 0.09339410, 1.84969142, 49.55953891, -23.94362959, -4.55343205), planetposition.Mars},
	{"Jupiter Barycenter", 126712764.8, 0, 71492.0, elems(5.20288700, 0.04838624, 1.30439695, 100.47390909, 14.72847983, 34.39644051), planetposition.Jupiter},
	{"Saturn Barycenter", 37940585.2, 0, 60268.0, elems(9.53667594, 0.05386179, 2.48599187, 113.66242448, 92.59887831, 49.95424423), planetposition.Saturn},
	{"Uranus Barycenter", 5794548.6, 0, 25559.0, elems(19.18916464, 0.04725744, 0.77263783, 74.01692503, 170.95427630, 313.23810451), planetposition.Uranus},
	{"Neptune Barycenter", 6836527.10058, 0, 24764.0, elems(30.06992276, 0.00859048, 1.77004347, 131.78422574, 44.96476227, -55.12002969), planetposition.Neptune},
	{"Sun", SunGM, 0, 696342.0, sunReflexElements(), -1},
}

var earthDef = bodyDef{"Earth", 398600.435436096, 0.0033528131084554717, 6378.1363, meanElements{}, -1}
var moonDef = bodyDef{"Moon", 4902.800066163796, 0.0012, 1738.1, moonElements(), -1}

func sunReflexElements() meanElements {
	jup := elems(5.20288700, 0.04838624, 1.30439695, 100.47390909, 14.72847983, 34.39644051)
	// Same period and shape as Jupiter, scaled by the mass ratio and opposite in phase.
	scale := 126712764.8 / SunGM
	return meanElements{jup.a * scale, jup.e, jup.i, jup.Ω, math.Mod(jup.ϖ+math.Pi, 2*math.Pi), math.Mod(jup.L0+math.Pi, 2*math.Pi), jup.n}
}

func moonElements() meanElements {
	a := 384400.0
	n := 13.176358 * deg2rad // rad/day
	Ω := 125.08 * deg2rad
	ϖ := math.Mod((125.08+318.15)*deg2rad, 2*math.Pi)
	L0 := math.Mod(ϖ+135.27*deg2rad, 2*math.Pi)
	return meanElements{a, 0.0554, 5.16 * deg2rad, Ω, ϖ, L0, n}
}

// keplerPosition returns the equatorial J2000 position (km) of the body on this mean
// element orbit at the provided JDE.
func (el meanElements) keplerPosition(jde float64) [3]float64 {
	M := math.Mod(el.L0-el.ϖ+el.n*(jde-J2000JDE), 2*math.Pi)
	E := M
	for iter := 0; iter < 10; iter++ {
		E = E - (E-el.e*math.Sin(E)-M)/(1-el.e*math.Cos(E))
	}
	sE, cE := math.Sincos(E)
	// Perifocal coordinates.
	xP := el.a * (cE - el.e)
	yP := el.a * math.Sqrt(1-el.e*el.e) * sE
	ω := el.ϖ - el.Ω
	sω, cω := math.Sincos(ω)
	sΩ, cΩ := math.Sincos(el.Ω)
	si, ci := math.Sincos(el.i)
	// Rotate to the ecliptic frame.
	xE := (cΩ*cω-sΩ*sω*ci)*xP + (-cΩ*sω-sΩ*cω*ci)*yP
	yE := (sΩ*cω+cΩ*sω*ci)*xP + (-sΩ*sω+cΩ*cω*ci)*yP
	zE := (sω*si)*xP + (cω*si)*yP
	// And to the equator.
	sε, cε := math.Sincos(obliquityJ2000)
	return [3]float64{xE, cε*yE - sε*zE, sε*yE + cε*zE}
}

// positionSampler returns a body position in km at a given JDE, relative to the
// parent of that body in the ephemeris hierarchy.
type positionSampler func(jde float64) [3]float64

// chebFitWindows interpolates the sampler on Chebyshev nodes, window per window.
// The zeroth coefficient is stored pre-halved so that evaluation is a plain
// clenshaw-free Σ cⱼ·Tⱼ sum.
func chebFitWindows(sample positionSampler, startJDE, windowDays float64, numWindows, degree int) (X, Y, Z [][]float64) {
	X = make([][]float64, numWindows)
	Y = make([][]float64, numWindows)
	Z = make([][]float64, numWindows)
	samples := make([][3]float64, degree)
	for w := 0; w < numWindows; w++ {
		t0 := startJDE + float64(w)*windowDays
		for k := 0; k < degree; k++ {
			xk := math.Cos(math.Pi * (float64(k) + 0.5) / float64(degree))
			samples[k] = sample(t0 + (xk+1)/2*windowDays)
		}
		cx := make([]float64, degree)
		cy := make([]float64, degree)
		cz := make([]float64, degree)
		for j := 0; j < degree; j++ {
			var sx, sy, sz float64
			for k := 0; k < degree; k++ {
				cosTerm := math.Cos(float64(j) * math.Pi * (float64(k) + 0.5) / float64(degree))
				sx += samples[k][0] * cosTerm
				sy += samples[k][1] * cosTerm
				sz += samples[k][2] * cosTerm
			}
			factor := 2 / float64(degree)
			if j == 0 {
				factor = 1 / float64(degree)
			}
			cx[j] = sx * factor
			cy[j] = sy * factor
			cz[j] = sz * factor
		}
		X[w] = cx
		Y[w] = cy
		Z[w] = cz
	}
	return
}

func constantsOf(def bodyDef) map[string]float64 {
	consts := map[string]float64{"GM": def.gm}
	if def.flatten > 0 {
		consts["Flattening"] = def.flatten
	}
	if def.eqRadius > 0 {
		consts["Equatorial radius"] = def.eqRadius
	}
	return consts
}

// buildEphemeris fits one body and wraps it into an Ephemeris.
func buildEphemeris(def bodyDef, sample positionSampler, startJDE, windowDays float64, spanDays float64) *Ephemeris {
	numWindows := int(math.Ceil(spanDays / windowDays))
	X, Y, Z := chebFitWindows(sample, startJDE, windowDays, numWindows, chebyshevDegree)
	return &Ephemeris{
		Name:       def.name,
		StartJDE:   startJDE,
		WindowDays: windowDays,
		PosDegree:  chebyshevDegree,
		X:          X,
		Y:          Y,
		Z:          Z,
		Constants:  constantsOf(def),
	}
}

// DefaultEphemerides generates the bundled ephemeris database from the built-in mean
// element orbits, spanning the provided number of days from the provided JDE. When
// the VSOP87 data directory is configured, the planet and Moon samplers use the
// VSOP87 and ELP series from meeus instead of the mean elements.
func DefaultEphemerides(startJDE, spanDays float64) (*EphemerisStore, error) {
	cfg := cosmodConfig()
	root := &Ephemeris{Name: "Solar System Barycenter", Constants: map[string]float64{}}

	for _, def := range solarSystem {
		sampler, err := samplerFor(def, cfg)
		if err != nil {
			return nil, err
		}
		root.children = append(root.children, buildEphemeris(def, sampler, startJDE, planetWindowDays, spanDays))
	}

	// The Earth and the Moon orbit the Earth-Moon barycenter in opposition, split
	// by the mass fraction.
	moonGeo := moonGeocentricSampler(cfg)
	earthSampler := func(jde float64) [3]float64 {
		p := moonGeo(jde)
		return [3]float64{-moonMassFraction * p[0], -moonMassFraction * p[1], -moonMassFraction * p[2]}
	}
	moonSampler := func(jde float64) [3]float64 {
		p := moonGeo(jde)
		f := 1 - moonMassFraction
		return [3]float64{f * p[0], f * p[1], f * p[2]}
	}
	emb := root.children[2]
	emb.children = append(emb.children,
		buildEphemeris(earthDef, earthSampler, startJDE, moonWindowDays, spanDays),
		buildEphemeris(moonDef, moonSampler, startJDE, moonWindowDays, spanDays))

	return &EphemerisStore{root: root}, nil
}

func samplerFor(def bodyDef, cfg _cosmodConfig) (positionSampler, error) {
	if cfg.VSOP87 && def.vsopIndex >= 0 {
		planet, err := planetposition.LoadPlanetPath(def.vsopIndex, cfg.VSOP87Dir)
		if err != nil {
			return nil, fmt.Errorf("could not load VSOP87 data for %s: %s", def.name, err)
		}
		return func(jde float64) [3]float64 {
			l, b, r := planet.Position2000(jde)
			return eclSpherical2Equatorial(l.Rad(), b.Rad(), r*AU)
		}, nil
	}
	if cfg.VSOP87 && def.name == "Sun" {
		// In VSOP87 mode the planet positions are heliocentric, so the Sun is
		// pinned to the barycenter.
		return func(jde float64) [3]float64 { return [3]float64{} }, nil
	}
	el := def.elements
	return el.keplerPosition, nil
}

func moonGeocentricSampler(cfg _cosmodConfig) positionSampler {
	if cfg.VSOP87 {
		return func(jde float64) [3]float64 {
			λ, β, Δ := moonposition.Position(jde)
			return eclSpherical2Equatorial(λ.Rad(), β.Rad(), Δ)
		}
	}
	el := moonDef.elements
	return el.keplerPosition
}

func eclSpherical2Equatorial(lon, lat, r float64) [3]float64 {
	sLon, cLon := math.Sincos(lon)
	sLat, cLat := math.Sincos(lat)
	xE := r * cLat * cLon
	yE := r * cLat * sLon
	zE := r * sLat
	sε, cε := math.Sincos(obliquityJ2000)
	return [3]float64{xE, cε*yE - sε*zE, sε*yE + cε*zE}
}
