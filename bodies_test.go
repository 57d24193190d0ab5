package cosmod

import (
	"math"
	"testing"
)

func TestKeplerPositionEarth(t *testing.T) {
	el := solarSystem[2].elements // Earth-Moon barycenter
	for _, jde := range []float64{J2000JDE, J2000JDE + 100, J2000JDE + 365.25} {
		pos := el.keplerPosition(jde)
		r := Norm(pos[:])
		if r < 0.96*AU || r > 1.04*AU {
			t.Fatalf("implausible EMB heliocentric distance at %f: %f km", jde, r)
		}
	}
	// One year later the EMB is back to nearly the same spot.
	p0 := el.keplerPosition(J2000JDE)
	p1 := el.keplerPosition(J2000JDE + 365.25)
	if Norm([]float64{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}) > 0.05*AU {
		t.Fatal("EMB did not return after one year")
	}
}

func TestKeplerPositionMoon(t *testing.T) {
	el := moonDef.elements
	for jde := J2000JDE; jde < J2000JDE+27; jde += 3.3 {
		pos := el.keplerPosition(jde)
		r := Norm(pos[:])
		if r < 384400*(1-0.06) || r > 384400*(1+0.06) {
			t.Fatalf("implausible geocentric Moon distance at %f: %f km", jde, r)
		}
	}
}

func TestEarthMoonBarycenterSplit(t *testing.T) {
	// The mass weighted sum of the Earth and Moon positions about the EMB is zero.
	store := testCosm(t).ephem
	earth, err := store.FromPath([]int{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	moon, err := store.FromPath([]int{2, 1})
	if err != nil {
		t.Fatal(err)
	}
	jde := J2000JDE + 10.5
	earthPos, _, err := earth.interpolate(jde)
	if err != nil {
		t.Fatal(err)
	}
	moonPos, _, err := moon.interpolate(jde)
	if err != nil {
		t.Fatal(err)
	}
	μE := earth.Constants["GM"]
	μM := moon.Constants["GM"]
	for axis := 0; axis < 3; axis++ {
		bary := (μE*earthPos[axis] + μM*moonPos[axis]) / (μE + μM)
		if math.Abs(bary) > 1e-4 {
			t.Fatalf("EMB split off balance on axis %d: %e km", axis, bary)
		}
	}
}

func TestSolarSystemGMs(t *testing.T) {
	cosm := testCosm(t)
	sun := cosm.Frame("Sun")
	if sun.GM() != SunGM {
		t.Fatalf("unexpected Sun GM: %f", sun.GM())
	}
	// The gas giants dominate the planetary masses.
	if cosm.Frame("jupiter").GM() < cosm.Frame("saturn").GM() {
		t.Fatal("Jupiter must outweigh Saturn")
	}
	if cosm.Frame("EME2000").GM() < cosm.Frame("Luna").GM() {
		t.Fatal("the Earth must outweigh the Moon")
	}
}
